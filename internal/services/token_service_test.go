package services

import (
	"errors"
	"testing"
	"time"

	"github.com/itayelfasy/nominal-assignment/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.QuickBooksToken{})
	require.NoError(t, err)

	return db
}

// fakeQuickBooksClient substitutes the upstream client and records calls
type fakeQuickBooksClient struct {
	getTokensCalls    int
	refreshCalls      int
	getAccountsCalls  int
	tokenResult       *models.Token
	refreshResult     *models.Token
	refreshErr        error
	accountsResult    map[string]interface{}
	accountsErr       error
	lastAccessToken   string
	lastRealmID       string
	lastNamePrefix    string
	lastRefreshToken  string
}

func (f *fakeQuickBooksClient) GetTokens(authCode string) (*models.Token, error) {
	f.getTokensCalls++
	if f.tokenResult == nil {
		return nil, errors.New("no token configured")
	}
	return f.tokenResult, nil
}

func (f *fakeQuickBooksClient) RefreshTokens(refreshToken string) (*models.Token, error) {
	f.refreshCalls++
	f.lastRefreshToken = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshResult, nil
}

func (f *fakeQuickBooksClient) GetAccounts(accessToken, realmID, namePrefix string) (map[string]interface{}, error) {
	f.getAccountsCalls++
	f.lastAccessToken = accessToken
	f.lastRealmID = realmID
	f.lastNamePrefix = namePrefix
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return f.accountsResult, nil
}

func sampleToken() *models.Token {
	return &models.Token{
		AccessToken:            "access-1",
		RefreshToken:           "refresh-1",
		TokenType:              "bearer",
		ExpiresIn:              3600,
		XRefreshTokenExpiresIn: 8726400,
	}
}

func TestGetValidTokenNotAuthenticated(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{}
	service := NewTokenService(db, client)

	_, err := service.GetValidToken("unknown-realm")

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, client.refreshCalls, "no upstream call for a missing realm")
}

func TestGetValidTokenFresh(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{}
	service := NewTokenService(db, client)

	require.NoError(t, service.StoreTokens("realm-1", sampleToken()))

	accessToken, err := service.GetValidToken("realm-1")

	require.NoError(t, err)
	assert.Equal(t, "access-1", accessToken)
	assert.Zero(t, client.refreshCalls, "fresh tokens must not trigger a refresh")
}

func TestGetValidTokenStaleTriggersRefresh(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{
		refreshResult: &models.Token{
			AccessToken:            "access-2",
			RefreshToken:           "refresh-2",
			TokenType:              "bearer",
			ExpiresIn:              3600,
			XRefreshTokenExpiresIn: 8726400,
		},
	}
	service := NewTokenService(db, client)

	// Store a record whose validity window elapsed two hours ago
	stale := models.QuickBooksToken{
		RealmID:                "realm-1",
		AccessToken:            "access-1",
		RefreshToken:           "refresh-1",
		TokenType:              "bearer",
		ExpiresIn:              3600,
		XRefreshTokenExpiresIn: 8726400,
		CreatedAt:              time.Now().UTC().Add(-3 * time.Hour),
	}
	require.NoError(t, db.Create(&stale).Error)

	before := time.Now().UTC()
	accessToken, err := service.GetValidToken("realm-1")

	require.NoError(t, err)
	assert.Equal(t, "access-2", accessToken)
	assert.Equal(t, 1, client.refreshCalls, "exactly one refresh")
	assert.Equal(t, "refresh-1", client.lastRefreshToken)

	var updated models.QuickBooksToken
	require.NoError(t, db.Where("realm_id = ?", "realm-1").First(&updated).Error)
	assert.Equal(t, "access-2", updated.AccessToken)
	assert.Equal(t, "refresh-2", updated.RefreshToken)
	assert.False(t, updated.CreatedAt.Before(before.Truncate(time.Second)), "issuance time must be reset")
}

func TestGetValidTokenRefreshFailure(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{refreshErr: errors.New("invalid_grant")}
	service := NewTokenService(db, client)

	stale := models.QuickBooksToken{
		RealmID:      "realm-1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		ExpiresIn:    60,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&stale).Error)

	_, err := service.GetValidToken("realm-1")

	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Contains(t, err.Error(), "invalid_grant")

	// The stale record must survive untouched
	var record models.QuickBooksToken
	require.NoError(t, db.Where("realm_id = ?", "realm-1").First(&record).Error)
	assert.Equal(t, "access-1", record.AccessToken)
}

func TestStoreTokensRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	service := NewTokenService(db, &fakeQuickBooksClient{})

	require.NoError(t, service.StoreTokens("realm-1", sampleToken()))

	accessToken, err := service.GetValidToken("realm-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", accessToken)
}

func TestStoreTokensUpsertIdempotence(t *testing.T) {
	db := setupTestDB(t)
	service := NewTokenService(db, &fakeQuickBooksClient{})

	require.NoError(t, service.StoreTokens("realm-1", sampleToken()))

	second := &models.Token{
		AccessToken:            "access-2",
		RefreshToken:           "refresh-2",
		TokenType:              "bearer",
		ExpiresIn:              7200,
		XRefreshTokenExpiresIn: 8726400,
	}
	require.NoError(t, service.StoreTokens("realm-1", second))

	var count int64
	db.Model(&models.QuickBooksToken{}).Count(&count)
	assert.Equal(t, int64(1), count, "exactly one record per realm")

	var record models.QuickBooksToken
	require.NoError(t, db.Where("realm_id = ?", "realm-1").First(&record).Error)
	assert.Equal(t, "access-2", record.AccessToken)
	assert.Equal(t, "refresh-2", record.RefreshToken)
	assert.Equal(t, 7200, record.ExpiresIn)
}

func TestHandleCallback(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{tokenResult: sampleToken()}
	service := NewTokenService(db, client)

	result, err := service.HandleCallback("auth-code", "realm-1")

	require.NoError(t, err)
	assert.Equal(t, 1, client.getTokensCalls)
	assert.Equal(t, "Successfully authenticated with QuickBooks", result["message"])
	assert.Equal(t, "access-1", result["access_token"])
	assert.Equal(t, "refresh-1", result["refresh_token"])
	assert.Equal(t, "realm-1", result["realm_id"])

	var record models.QuickBooksToken
	require.NoError(t, db.Where("realm_id = ?", "realm-1").First(&record).Error)
	assert.Equal(t, "access-1", record.AccessToken)
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeQuickBooksClient{}
	service := NewTokenService(db, client)

	_, err := service.HandleCallback("bad-code", "realm-1")

	require.Error(t, err)

	var count int64
	db.Model(&models.QuickBooksToken{}).Count(&count)
	assert.Zero(t, count, "nothing stored on a failed exchange")
}
