// Package token implements the timed account-action tokens used for email
// confirmation, password reset, email change and Telegram chat linking.
//
// A token is MAC(purpose|subject|extra|issued_at) appended to the encoded
// payload. Verification recomputes the signature with a constant-time
// compare and enforces a per-purpose TTL. Every failure mode collapses to
// ErrInvalid so callers cannot distinguish a tampered token from an
// expired one.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Purpose scopes a token to one account action. A reset token can never be
// replayed as a confirmation token.
type Purpose string

const (
	PurposeConfirm     Purpose = "confirm"
	PurposeReset       Purpose = "reset"
	PurposeEmailChange Purpose = "email_change"
	PurposeChatLink    Purpose = "chat_link"
)

// ErrInvalid is returned for any malformed, tampered or expired token.
var ErrInvalid = errors.New("token is invalid or expired")

// NowFunc is the clock used when issuing and verifying tokens. Mockable.
var NowFunc = time.Now

const sep = "."

// Generator issues and verifies signed expiring tokens.
type Generator struct {
	secret []byte
	ttls   map[Purpose]time.Duration
}

// NewGenerator builds a Generator keyed with the server secret.
func NewGenerator(secret string, ttls map[Purpose]time.Duration) *Generator {
	return &Generator{secret: []byte(secret), ttls: ttls}
}

// Claims is the verified content of a token.
type Claims struct {
	Purpose  Purpose
	Subject  int64
	Extra    string
	IssuedAt time.Time
}

// Sign issues a token binding purpose and subject. extra carries
// purpose-specific data (the new address for an email change); it must not
// contain the "|" separator.
func (g *Generator) Sign(purpose Purpose, subject int64, extra string) (string, error) {
	if strings.Contains(extra, "|") {
		return "", fmt.Errorf("token extra must not contain %q", "|")
	}
	payload := encodePayload(purpose, subject, extra, NowFunc().UTC().Unix())
	return payload + sep + g.signature(payload), nil
}

// Verify parses and validates a token for the expected purpose.
func (g *Generator) Verify(purpose Purpose, raw string) (*Claims, error) {
	parts := strings.SplitN(raw, sep, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrInvalid
	}

	if subtle.ConstantTimeCompare([]byte(g.signature(parts[0])), []byte(parts[1])) == 0 {
		return nil, ErrInvalid
	}

	claims, err := decodePayload(parts[0])
	if err != nil {
		return nil, ErrInvalid
	}
	if claims.Purpose != purpose {
		return nil, ErrInvalid
	}

	ttl, ok := g.ttls[purpose]
	if !ok || NowFunc().UTC().Sub(claims.IssuedAt) > ttl {
		return nil, ErrInvalid
	}

	return claims, nil
}

func (g *Generator) signature(payload string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encodePayload(purpose Purpose, subject int64, extra string, issuedAt int64) string {
	plain := fmt.Sprintf("%s|%d|%s|%d", purpose, subject, extra, issuedAt)
	return base64.RawURLEncoding.EncodeToString([]byte(plain))
}

func decodePayload(encoded string) (*Claims, error) {
	plain, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	fields := strings.Split(string(plain), "|")
	if len(fields) != 4 {
		return nil, ErrInvalid
	}

	subject, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, ErrInvalid
	}
	issued, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, ErrInvalid
	}

	return &Claims{
		Purpose:  Purpose(fields[0]),
		Subject:  subject,
		Extra:    fields[2],
		IssuedAt: time.Unix(issued, 0).UTC(),
	}, nil
}
