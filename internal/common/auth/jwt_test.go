package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "sjfulfillment/internal/common/errors"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-secret", "sjfulfillment", time.Hour)
}

func TestTokenManager_IssueVerify(t *testing.T) {
	m := newTestTokenManager()

	token, err := m.Issue("user-1", "MERCHANT_ADMIN", "merchant-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "MERCHANT_ADMIN", claims.Role)
	assert.Equal(t, "merchant-1", claims.MerchantID)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	token, err := newTestTokenManager().Issue("user-1", "STAFF", "")
	require.NoError(t, err)

	other := NewTokenManager("a-different-secret", "sjfulfillment", time.Hour)
	claims, err := other.Verify(token)
	assert.Nil(t, claims)
	assertUnauthorized(t, err)
}

func TestTokenManager_Verify_WrongIssuer(t *testing.T) {
	token, err := NewTokenManager("test-secret", "someone-else", time.Hour).Issue("user-1", "STAFF", "")
	require.NoError(t, err)

	claims, err := newTestTokenManager().Verify(token)
	assert.Nil(t, claims)
	assertUnauthorized(t, err)
}

func TestTokenManager_Verify_Expired(t *testing.T) {
	expired := NewTokenManager("test-secret", "sjfulfillment", -time.Minute)
	token, err := expired.Issue("user-1", "ADMIN", "")
	require.NoError(t, err)

	claims, err := newTestTokenManager().Verify(token)
	assert.Nil(t, claims)
	assertUnauthorized(t, err)
}

func TestTokenManager_Verify_Garbage(t *testing.T) {
	claims, err := newTestTokenManager().Verify("not-a-token")
	assert.Nil(t, claims)
	assertUnauthorized(t, err)
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := err.(*stderrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, stderrors.ErrCodeUnauthorized, stdErr.Code)
}
