package webui

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "barberia-elite/webui"

// ErrInvalidSessionToken is returned for tokens this server did not sign.
var ErrInvalidSessionToken = errors.New("webui: invalid session token")

var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// SessionTokens signs session ids so a reloaded page can resume its session
// without being able to pick another visitor's.
type SessionTokens struct {
	key    []byte
	parser *jwt.Parser
}

// NewSessionTokens signs with secret. An empty secret gets a random key, so
// tokens only survive until the process restarts.
func NewSessionTokens(secret []byte) *SessionTokens {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	return &SessionTokens{
		key: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
		),
	}
}

// Issue returns the token for id.
func (t *SessionTokens) Issue(id string) (string, error) {
	claims := jwt.RegisteredClaims{Issuer: tokenIssuer, Subject: id}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("webui: sign session token: %w", err)
	}
	return signed, nil
}

// Verify returns the session id carried by token.
func (t *SessionTokens) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := t.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if !ValidSessionID(claims.Subject) {
		return "", ErrInvalidSessionToken
	}
	return claims.Subject, nil
}

// ValidSessionID reports whether id has the shape of a server generated id.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func generateSessionID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
