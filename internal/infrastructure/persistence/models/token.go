package models

import (
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// OAuthTokenModel is the persistence model for integration.OAuthToken.
// AccessToken and RefreshToken hold ciphertext when a token cipher is configured.
type OAuthTokenModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key"`
	RealmID          string     `gorm:"type:varchar(64);not null;index:idx_oauth_tokens_realm"`
	AccessToken      string     `gorm:"type:text;not null"`
	RefreshToken     string     `gorm:"type:text;not null"`
	AccessExpiresAt  time.Time  `gorm:"not null"`
	RefreshExpiresAt time.Time  `gorm:"not null"`
	LastRefreshedAt  *time.Time `gorm:"default:null"`
	Scope            string     `gorm:"type:text"`
	IsActive         bool       `gorm:"not null"`
	Version          int        `gorm:"not null;default:1"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OAuthTokenModel) TableName() string {
	return "oauth_tokens"
}

// ToDomain converts the model to a domain token; tokens are passed as given
func (m *OAuthTokenModel) ToDomain() *integration.OAuthToken {
	return &integration.OAuthToken{
		ID:               m.ID,
		RealmID:          m.RealmID,
		AccessToken:      m.AccessToken,
		RefreshToken:     m.RefreshToken,
		AccessExpiresAt:  m.AccessExpiresAt,
		RefreshExpiresAt: m.RefreshExpiresAt,
		LastRefreshedAt:  m.LastRefreshedAt,
		Scope:            m.Scope,
		IsActive:         m.IsActive,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// OAuthTokenModelFromDomain creates a model from a domain token
func OAuthTokenModelFromDomain(t *integration.OAuthToken) *OAuthTokenModel {
	return &OAuthTokenModel{
		ID:               t.ID,
		RealmID:          t.RealmID,
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
		LastRefreshedAt:  t.LastRefreshedAt,
		Scope:            t.Scope,
		IsActive:         t.IsActive,
		Version:          t.Version,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}
