// main.go - process startup, background sweepers, TLS
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"sysmanage/common"
	"sysmanage/database"
	"sysmanage/services"
)

var startedAt = time.Now()

// Use common logging functions
var (
	infoLog  = common.InfoLog
	errorLog = common.ErrorLog
	fatalLog = common.FatalLog
)

func main() {
	_ = godotenv.Load()
	if err := common.LoadConfigFile(); err != nil {
		fatalLog("config file load failed: %v", err)
	}

	infoLog("sysmanage starting with log level: %s",
		strings.ToLower(common.Env("SYSMANAGE_LOG_LEVEL", "info")))

	if err := services.InitTokens(); err != nil {
		fatalLog("token setup failed: %v", err)
	}
	if err := InitAuthFromEnv(); err != nil {
		fatalLog("auth setup failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.InitDBFromEnv(ctx); err != nil {
		fatalLog("DB init failed: %v", err)
	}

	services.InitPrivileges(database.GetUserRoleNames,
		common.EnvDuration("SYSMANAGE_PRIVILEGE_CACHE_TTL", "1m"))

	if err := bootstrapAdmin(ctx); err != nil {
		fatalLog("admin bootstrap failed: %v", err)
	}

	startSweeper(ctx)

	addr := net.JoinHostPort(
		common.Env("SYSMANAGE_BIND_HOST", ""),
		common.Env("SYSMANAGE_BIND_PORT", "8443"),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           makeRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !common.EnvBool("SYSMANAGE_TLS_ENABLE", "true") {
		infoLog("http: listening on %s (TLS disabled)", addr)
		fatalLog("HTTP server error: %v", srv.ListenAndServe())
		return
	}

	certFile := strings.TrimSpace(common.Env("SYSMANAGE_TLS_CERT_FILE", ""))
	keyFile := strings.TrimSpace(common.Env("SYSMANAGE_TLS_KEY_FILE", ""))
	if certFile != "" && keyFile != "" {
		infoLog("https: listening on %s (cert=%s)", addr, certFile)
		fatalLog("HTTPS server error: %v", srv.ListenAndServeTLS(certFile, keyFile))
		return
	}

	if !common.EnvBool("SYSMANAGE_TLS_SELF_SIGNED", "true") {
		fatalLog("https: TLS enabled but no cert files and self-signed disabled")
	}

	// Ephemeral self-signed (in-memory)
	certPEM, keyPEM, err := generateSelfSigned("sysmanage.local")
	if err != nil {
		fatalLog("Failed to generate self-signed certificate: %v", err)
	}
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		fatalLog("Failed to load certificate key pair: %v", err)
	}
	srv.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		MinVersion:   tls.VersionTLS12,
	}
	infoLog("https: listening on %s (self-signed)", addr)
	fatalLog("HTTPS server error: %v", srv.ListenAndServeTLS("", ""))
}

// bootstrapAdmin creates the initial admin account when the users table is
// empty. The credentials come from env; without them a fresh install has no
// way to log in.
func bootstrapAdmin(ctx context.Context) error {
	users, err := database.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	username := common.Env("SYSMANAGE_ADMIN_USER", "admin")
	password, err := common.EnvOrFile("SYSMANAGE_ADMIN_PASS", "SYSMANAGE_ADMIN_PASS_FILE")
	if err != nil {
		return err
	}
	if password == "" {
		password = services.RandHex(24)
		// NoticeLog, not WarnLog: the sanitizer would redact the credential
		// out of its own announcement.
		common.NoticeLog("bootstrap: generated admin password: %s (set SYSMANAGE_ADMIN_PASS to override)", password)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u, err := database.CreateUser(ctx, username, common.Env("SYSMANAGE_ADMIN_EMAIL", ""), string(hash), true)
	if err != nil {
		return err
	}
	infoLog("bootstrap: created admin user %s (%s)", u.Username, u.ID)
	return nil
}

/* -------- background sweeper -------- */

func startSweeper(ctx context.Context) {
	interval := common.EnvDuration("SYSMANAGE_SWEEP_INTERVAL", "1m")
	hostStale := common.EnvDuration("SYSMANAGE_HOST_STALE_AFTER", "5m")
	cmdTimeout := common.EnvDuration("SYSMANAGE_COMMAND_TIMEOUT", "15m")
	infoLog("sweep: enabled interval=%s host_stale=%s command_timeout=%s",
		interval, hostStale, cmdTimeout)

	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C:
				services.SweepStaleState(ctx, hostStale, cmdTimeout)
			case <-ctx.Done():
				infoLog("sweep: stopping: %v", ctx.Err())
				return
			}
		}
	}()
}

/* -------- TLS self-signed helper -------- */

func generateSelfSigned(cn string) ([]byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}

	serial, _ := rand.Int(rand.Reader, big.NewInt(1<<62))
	tpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{cn, "localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}
