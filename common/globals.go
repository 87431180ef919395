package common

import (
	"github.com/alexedwards/scs/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Shared singletons wired up in main and used across packages.
var (
	DB             *pgxpool.Pool
	SessionManager *scs.SessionManager
)

const (
	SessionName = "sysmanage_sess"
)
