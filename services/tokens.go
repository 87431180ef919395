package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"sysmanage/common"
)

// Access tokens are short-lived HMAC-signed JWTs; refresh tokens are opaque
// random values stored hashed by the database layer.

var (
	jwtSecret []byte
	jwtSigner jose.Signer

	ErrTokenInvalid = errors.New("token invalid or expired")
)

// AccessTokenTTL is how long a minted access token stays valid.
var AccessTokenTTL = 15 * time.Minute

// RefreshTokenTTL is how long a refresh token stays valid without rotation.
var RefreshTokenTTL = 7 * 24 * time.Hour

// TokenClaims is what the middleware gets back from a verified token.
type TokenClaims struct {
	UserID   string
	Username string
}

// InitTokens wires the signing secret. Generates an ephemeral one when
// unset, which invalidates outstanding tokens across restarts.
func InitTokens() error {
	sec, err := common.EnvOrFile("SYSMANAGE_JWT_SECRET", "SYSMANAGE_JWT_SECRET_FILE")
	if err != nil {
		return err
	}
	if sec == "" {
		sec = RandHex(64)
		common.WarnLog("auth: SYSMANAGE_JWT_SECRET not set, using ephemeral signing key")
	}
	jwtSecret = []byte(sec)
	jwtSigner, err = jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: jwtSecret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	return err
}

// MintAccessToken issues a signed access token for a console user.
func MintAccessToken(userID, username string) (string, error) {
	if jwtSigner == nil {
		return "", errors.New("token signer not initialized")
	}
	now := time.Now()
	cl := jwt.Claims{
		Subject:  userID,
		Issuer:   "sysmanage",
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(AccessTokenTTL)),
	}
	private := map[string]any{"username": username}
	return jwt.Signed(jwtSigner).Claims(cl).Claims(private).Serialize()
}

// VerifyAccessToken validates a bearer token and returns its claims.
func VerifyAccessToken(raw string) (*TokenClaims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, ErrTokenInvalid
	}
	var cl jwt.Claims
	var private struct {
		Username string `json:"username"`
	}
	if err := tok.Claims(jwtSecret, &cl, &private); err != nil {
		return nil, ErrTokenInvalid
	}
	if err := cl.Validate(jwt.Expected{Issuer: "sysmanage", Time: time.Now()}); err != nil {
		return nil, ErrTokenInvalid
	}
	return &TokenClaims{UserID: cl.Subject, Username: private.Username}, nil
}

// NewRefreshToken returns a fresh opaque refresh token.
func NewRefreshToken() string {
	return RandHex(64)
}

// RandHex returns n hex characters of crypto randomness.
func RandHex(n int) string {
	b := make([]byte, n/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
