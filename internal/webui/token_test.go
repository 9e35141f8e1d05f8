package webui

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokens_RoundTrip(t *testing.T) {
	tokens := NewSessionTokens([]byte("0123456789abcdef0123456789abcdef"))
	id := generateSessionID()
	require.True(t, ValidSessionID(id))

	token, err := tokens.Issue(id)
	require.NoError(t, err)

	got, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSessionTokens_Rejects(t *testing.T) {
	tokens := NewSessionTokens([]byte("0123456789abcdef0123456789abcdef"))
	other := NewSessionTokens(nil)

	foreign, err := other.Issue(generateSessionID())
	require.NoError(t, err)

	badSubject, err := tokens.Issue("a:b*")
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{Issuer: "someone-else", Subject: generateSessionID()}
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tokens.key)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"other key":    foreign,
		"bad subject":  badSubject,
		"wrong issuer": wrongIssuer,
		"raw id":       generateSessionID(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidSessionToken)
		})
	}
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, ValidSessionID("0123456789abcdef0123456789abcdef"))
	assert.False(t, ValidSessionID(""))
	assert.False(t, ValidSessionID("*"))
	assert.False(t, ValidSessionID("0123456789ABCDEF0123456789ABCDEF"))
	assert.False(t, ValidSessionID("0123456789abcdef0123456789abcde:"))
}
