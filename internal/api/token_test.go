package api

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tokens := NewTokens([]byte("secret"), time.Hour)
	tokens.now = func() time.Time { return now }

	tok := tokens.Issue(7)
	assert.True(t, tokens.Verify(7, tok))
	assert.False(t, tokens.Verify(8, tok), "bound to the order")

	other := NewTokens([]byte("other-secret"), time.Hour)
	other.now = tokens.now
	assert.False(t, other.Verify(7, tok), "bound to the secret")

	now = now.Add(59 * time.Minute)
	assert.True(t, tokens.Verify(7, tok))
	now = now.Add(time.Minute)
	assert.False(t, tokens.Verify(7, tok), "expired")
}

func TestTokens_RejectsForgedExpiry(t *testing.T) {
	tokens := NewTokens([]byte("secret"), time.Minute)
	tok := tokens.Issue(3)

	_, sig, _ := strings.Cut(tok, ".")
	forged := "zzzzzzzz." + sig
	assert.False(t, tokens.Verify(3, forged))
}
