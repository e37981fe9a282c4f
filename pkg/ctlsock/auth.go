package ctlsock

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/pbkdf2"
)

// Privileged opcodes (everything that mutates bridge state) are gated by a
// bearer token: the operator exchanges the configured passphrase for a
// short-lived HS256 JWT via OpAuthToken and presents it on each mutating
// request. The signing key is derived from the passphrase with PBKDF2, so no
// raw key is ever stored.

// tokenSalt is not a secret; it only domain-separates this key derivation
// from any other use of the same passphrase.
var tokenSalt = []byte("mstpd-ctlsock-v1")

const pbkdf2Iterations = 4096

var (
	// ErrAuthDisabled is returned by token operations when no passphrase is
	// configured (the socket then relies on filesystem permissions alone).
	ErrAuthDisabled = errors.New("control socket authentication is not configured")

	// ErrBadPassphrase is returned when the presented passphrase does not
	// match.
	ErrBadPassphrase = errors.New("passphrase mismatch")

	// ErrBadToken is returned when a presented token fails verification.
	ErrBadToken = errors.New("invalid or expired token")
)

// Authenticator issues and verifies control-socket bearer tokens.
type Authenticator struct {
	key      []byte // nil when auth is disabled
	checksum [32]byte
	ttl      time.Duration
}

// NewAuthenticator derives the signing key from passphrase. An empty
// passphrase disables authentication: Require then accepts every request.
func NewAuthenticator(passphrase string, ttl time.Duration) *Authenticator {
	a := &Authenticator{ttl: ttl}
	if passphrase == "" {
		return a
	}
	if ttl <= 0 {
		a.ttl = 5 * time.Minute
	}
	a.key = pbkdf2.Key([]byte(passphrase), tokenSalt, pbkdf2Iterations, 32, sha256.New)
	a.checksum = sha256.Sum256([]byte(passphrase))
	return a
}

// Enabled reports whether a passphrase was configured.
func (a *Authenticator) Enabled() bool { return a.key != nil }

// Issue checks the presented passphrase and returns a signed token.
func (a *Authenticator) Issue(passphrase string) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}
	sum := sha256.Sum256([]byte(passphrase))
	if subtle.ConstantTimeCompare(sum[:], a.checksum[:]) != 1 {
		return "", ErrBadPassphrase
	}
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "mstpd",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	})
	signed, err := tok.SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Require verifies the token presented on a mutating request. With auth
// disabled it always succeeds.
func (a *Authenticator) Require(token string) error {
	if !a.Enabled() {
		return nil
	}
	if token == "" {
		return ErrBadToken
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.key, nil
	}, jwt.WithIssuer("mstpd"), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return ErrBadToken
	}
	return nil
}
