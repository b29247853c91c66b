package models

import (
	"time"
)

// QuickBooksToken is the stored credential record for a QuickBooks company.
// At most one row exists per realm; a new OAuth exchange or refresh overwrites
// every field, including CreatedAt.
type QuickBooksToken struct {
	RealmID                string `gorm:"primaryKey"`
	AccessToken            string `gorm:"not null"`
	RefreshToken           string `gorm:"not null"`
	TokenType              string `gorm:"not null"`
	ExpiresIn              int    `gorm:"not null"`
	XRefreshTokenExpiresIn int    `gorm:"not null"`
	CreatedAt              time.Time
}

func (QuickBooksToken) TableName() string {
	return "quickbooks_tokens"
}

// IsExpired reports whether the access token's validity window has elapsed
// relative to now. The boundary itself still counts as valid.
func (t *QuickBooksToken) IsExpired(now time.Time) bool {
	return now.Sub(t.CreatedAt) > time.Duration(t.ExpiresIn)*time.Second
}

// Token is the decoded OAuth token response from QuickBooks. It only exists
// in transit between the upstream client and the token service.
type Token struct {
	AccessToken            string `json:"access_token"`
	RefreshToken           string `json:"refresh_token"`
	TokenType              string `json:"token_type"`
	ExpiresIn              int    `json:"expires_in"`
	XRefreshTokenExpiresIn int    `json:"x_refresh_token_expires_in"`
}
