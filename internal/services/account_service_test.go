package services

import (
	"errors"
	"testing"
	"time"

	"github.com/itayelfasy/nominal-assignment/internal/models"
	"github.com/itayelfasy/nominal-assignment/internal/quickbooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountServiceGetAccounts(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{
		accountsResult: map[string]interface{}{
			"QueryResponse": map[string]interface{}{
				"Account": []interface{}{map[string]interface{}{"Name": "Cash"}},
			},
		},
	}
	tokens := NewTokenService(db, client)
	accounts := NewAccountService(tokens, client)

	require.NoError(t, tokens.StoreTokens("realm-1", sampleToken()))

	payload, err := accounts.GetAccounts("realm-1", "Ca")

	require.NoError(t, err)
	assert.Equal(t, 1, client.getAccountsCalls)
	assert.Equal(t, "access-1", client.lastAccessToken, "the stored token is forwarded upstream")
	assert.Equal(t, "realm-1", client.lastRealmID)
	assert.Equal(t, "Ca", client.lastNamePrefix)
	assert.Contains(t, payload, "QueryResponse")
}

func TestAccountServicePropagatesNotAuthenticated(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{}
	accounts := NewAccountService(NewTokenService(db, client), client)

	_, err := accounts.GetAccounts("unknown-realm", "")

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, client.getAccountsCalls, "no query without a token")
}

func TestAccountServicePropagatesRefreshFailure(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{refreshErr: errors.New("invalid_grant")}
	tokens := NewTokenService(db, client)
	accounts := NewAccountService(tokens, client)

	stale := models.QuickBooksToken{
		RealmID:      "realm-1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		ExpiresIn:    60,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&stale).Error)

	_, err := accounts.GetAccounts("realm-1", "")

	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Zero(t, client.getAccountsCalls)
}

func TestAccountServicePropagatesUpstreamFailure(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{accountsErr: quickbooks.ErrUnauthorized}
	tokens := NewTokenService(db, client)
	accounts := NewAccountService(tokens, client)

	require.NoError(t, tokens.StoreTokens("realm-1", sampleToken()))

	_, err := accounts.GetAccounts("realm-1", "")

	assert.ErrorIs(t, err, quickbooks.ErrUnauthorized)
}
