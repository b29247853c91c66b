package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/itayelfasy/nominal-assignment/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// ErrNotAuthenticated is returned when no credential record exists for a
// realm. The caller recovers by re-running the consent flow.
var ErrNotAuthenticated = errors.New("not authenticated with QuickBooks. Please visit /auth/quickbooks first")

// ErrRefreshFailed wraps an upstream rejection of the refresh grant. A stale
// token is never used as a fallback.
var ErrRefreshFailed = errors.New("token refresh failed")

// QuickBooksClient is the upstream surface the token and account services
// depend on. Satisfied by *quickbooks.Client; substitutable in tests.
type QuickBooksClient interface {
	GetTokens(authCode string) (*models.Token, error)
	RefreshTokens(refreshToken string) (*models.Token, error)
	GetAccounts(accessToken, realmID, namePrefix string) (map[string]interface{}, error)
}

// TokenService owns the credential lifecycle for QuickBooks realms
type TokenService interface {
	// HandleCallback exchanges an authorization code and stores the resulting
	// credential pair for the realm
	HandleCallback(code, realmID string) (map[string]string, error)
	// StoreTokens upserts the credential record for a realm, resetting its
	// issuance time to now
	StoreTokens(realmID string, token *models.Token) error
	// GetValidToken returns a usable access token for the realm, refreshing
	// the stored credential first when it has gone stale
	GetValidToken(realmID string) (string, error)
}

// tokenService is the implementation of the TokenService interface
type tokenService struct {
	db     *gorm.DB
	client QuickBooksClient
}

// NewTokenService creates a new instance of TokenService
func NewTokenService(db *gorm.DB, client QuickBooksClient) TokenService {
	return &tokenService{db: db, client: client}
}

func (s *tokenService) HandleCallback(code, realmID string) (map[string]string, error) {
	token, err := s.client.GetTokens(code)
	if err != nil {
		return nil, err
	}

	if err := s.StoreTokens(realmID, token); err != nil {
		return nil, err
	}

	log.WithField("realm_id", realmID).Info("Successfully authenticated with QuickBooks")

	return map[string]string{
		"message":       "Successfully authenticated with QuickBooks",
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"realm_id":      realmID,
	}, nil
}

func (s *tokenService) StoreTokens(realmID string, token *models.Token) error {
	record := models.QuickBooksToken{
		RealmID:                realmID,
		AccessToken:            token.AccessToken,
		RefreshToken:           token.RefreshToken,
		TokenType:              token.TokenType,
		ExpiresIn:              token.ExpiresIn,
		XRefreshTokenExpiresIn: token.XRefreshTokenExpiresIn,
		CreatedAt:              time.Now().UTC(),
	}

	// Read-then-write upsert. Two concurrent writers for the same realm race
	// as last-writer-wins; each write is a full row, so no partial state can
	// be observed.
	var existing models.QuickBooksToken
	err := s.db.Where("realm_id = ?", realmID).First(&existing).Error
	switch {
	case err == nil:
		return s.db.Save(&record).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.Create(&record).Error
	default:
		return err
	}
}

func (s *tokenService) GetValidToken(realmID string) (string, error) {
	var record models.QuickBooksToken
	if err := s.db.Where("realm_id = ?", realmID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", err
	}

	if !record.IsExpired(time.Now().UTC()) {
		return record.AccessToken, nil
	}

	log.WithField("realm_id", realmID).Info("Access token is stale, refreshing")

	refreshed, err := s.client.RefreshTokens(record.RefreshToken)
	if err != nil {
		log.WithError(err).WithField("realm_id", realmID).Error("Token refresh failed")
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	record.AccessToken = refreshed.AccessToken
	record.RefreshToken = refreshed.RefreshToken
	record.TokenType = refreshed.TokenType
	record.ExpiresIn = refreshed.ExpiresIn
	record.XRefreshTokenExpiresIn = refreshed.XRefreshTokenExpiresIn
	record.CreatedAt = time.Now().UTC()

	if err := s.db.Save(&record).Error; err != nil {
		return "", err
	}

	return refreshed.AccessToken, nil
}
