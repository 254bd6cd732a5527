// Package token derives confirmation tokens that prove a specific email
// address was the one offered a confirmation link. Tokens are deterministic
// and one-way: they are recomputed on demand from the secret key and the
// address, never stored.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/optin-mailer/internal/subscriber"
)

// Length is the number of hex characters in a confirmation token.
const Length = 32

var (
	// ErrNoEmail is returned when a subscriber record lacks an email field.
	ErrNoEmail = errors.New("subscriber has no email address")
	// ErrMalformed is returned for token strings that do not parse.
	ErrMalformed = errors.New("malformed confirmation token")
	// ErrExpired is returned when an expiring token is past its deadline.
	ErrExpired = errors.New("confirmation token expired")
	// ErrMismatch is returned when a token does not verify for the claimed email.
	ErrMismatch = errors.New("confirmation token does not match")
)

// Generator produces and verifies tokens under one secret key.
type Generator struct {
	secret []byte
}

// NewGenerator creates a Generator. The secret key is mandatory: there is no
// fallback value, and startup must fail rather than sign with a known key.
func NewGenerator(secret string) (*Generator, error) {
	if secret == "" {
		return nil, errors.New("token secret key is required")
	}
	return &Generator{secret: []byte(secret)}, nil
}

// NormalizeEmail canonicalizes an address for hashing: surrounding
// whitespace is trimmed and the address is lower-cased, so "User@X" and
// " user@x " yield the same token.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TokenFor derives the confirmation token for a subscriber record.
func (g *Generator) TokenFor(sub subscriber.Subscriber) (string, error) {
	email := sub.Email()
	if strings.TrimSpace(email) == "" {
		return "", ErrNoEmail
	}
	return g.tokenForEmail(email), nil
}

// TokenForEmail derives the confirmation token for a bare address.
func (g *Generator) TokenForEmail(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", ErrNoEmail
	}
	return g.tokenForEmail(email), nil
}

func (g *Generator) tokenForEmail(email string) string {
	return g.sign(NormalizeEmail(email))[:Length]
}

func (g *Generator) sign(data string) string {
	h := hmac.New(sha256.New, g.secret)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// ExpiringTokenFor encodes "token.expiry.verifyhash": the base token, a unix
// expiration timestamp, and a hash binding the two together. The link in a
// sent email can use either form; this one stops working after the TTL.
func (g *Generator) ExpiringTokenFor(email string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", ErrNoEmail
	}
	base := g.tokenForEmail(email)
	expiry := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s.%d.%s", base, expiry, g.verifyHash(base, expiry)), nil
}

// ValidateExpiringToken checks a tri-part expiring token against the claimed
// email. It rejects malformed strings, tokens past their embedded deadline,
// and tokens whose base or verification hash does not recompute.
func (g *Generator) ValidateExpiringToken(email, tok string) error {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return ErrMalformed
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ErrMalformed
	}
	if time.Now().Unix() > expiry {
		return ErrExpired
	}

	base := g.tokenForEmail(email)
	if !hmac.Equal([]byte(parts[0]), []byte(base)) {
		return ErrMismatch
	}
	if !hmac.Equal([]byte(parts[2]), []byte(g.verifyHash(base, expiry))) {
		return ErrMismatch
	}
	return nil
}

// ValidateConfirmRequest checks a plain email+token pair as arriving from
// confirmation URL parameters.
func (g *Generator) ValidateConfirmRequest(email, tok string) error {
	if strings.TrimSpace(email) == "" || tok == "" {
		return ErrMalformed
	}
	if !hmac.Equal([]byte(tok), []byte(g.tokenForEmail(email))) {
		return ErrMismatch
	}
	return nil
}

func (g *Generator) verifyHash(base string, expiry int64) string {
	return g.sign(fmt.Sprintf("%s.%d", base, expiry))[:Length]
}
