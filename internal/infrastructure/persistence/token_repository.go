package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/flocon/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// TokenCipher encrypts credentials before they reach the database
type TokenCipher interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// GormTokenRepository implements integration.TokenRepository using GORM
type GormTokenRepository struct {
	db     *gorm.DB
	cipher TokenCipher
}

// NewGormTokenRepository creates a new GormTokenRepository. A nil cipher
// stores tokens as given.
func NewGormTokenRepository(db *gorm.DB, cipher TokenCipher) *GormTokenRepository {
	return &GormTokenRepository{db: db, cipher: cipher}
}

// FindActiveByRealm returns the active token of the realm
func (r *GormTokenRepository) FindActiveByRealm(ctx context.Context, realmID string) (*integration.OAuthToken, error) {
	var model models.OAuthTokenModel
	if err := r.db.WithContext(ctx).
		Where("realm_id = ? AND is_active = ?", realmID, true).
		Order("updated_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return r.decode(&model)
}

// ReplaceActive deactivates the realm's active tokens and inserts token
func (r *GormTokenRepository) ReplaceActive(ctx context.Context, token *integration.OAuthToken) error {
	model, err := r.encode(token)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deactivateRealm(tx, token.RealmID); err != nil {
			return err
		}
		return tx.Create(model).Error
	})
}

// UpdateIfUnchanged writes the token only while the stored row still has
// priorVersion and is active
func (r *GormTokenRepository) UpdateIfUnchanged(ctx context.Context, token *integration.OAuthToken, priorVersion int) (bool, error) {
	model, err := r.encode(token)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Model(&models.OAuthTokenModel{}).
		Where("id = ? AND version = ?", token.ID, priorVersion).
		Where("is_active = ?", true).
		Updates(map[string]any{
			"access_token":       model.AccessToken,
			"refresh_token":      model.RefreshToken,
			"access_expires_at":  model.AccessExpiresAt,
			"refresh_expires_at": model.RefreshExpiresAt,
			"last_refreshed_at":  model.LastRefreshedAt,
			"scope":              model.Scope,
			"is_active":          model.IsActive,
			"version":            model.Version,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Deactivate marks every token of the realm inactive
func (r *GormTokenRepository) Deactivate(ctx context.Context, realmID string) error {
	return deactivateRealm(r.db.WithContext(ctx), realmID)
}

func deactivateRealm(db *gorm.DB, realmID string) error {
	return db.Model(&models.OAuthTokenModel{}).
		Where("realm_id = ? AND is_active = ?", realmID, true).
		Updates(map[string]any{
			"is_active":  false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *GormTokenRepository) encode(token *integration.OAuthToken) (*models.OAuthTokenModel, error) {
	model := models.OAuthTokenModelFromDomain(token)
	if r.cipher == nil {
		return model, nil
	}
	var err error
	if model.AccessToken, err = r.cipher.Seal(token.AccessToken); err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	if model.RefreshToken, err = r.cipher.Seal(token.RefreshToken); err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}
	return model, nil
}

func (r *GormTokenRepository) decode(model *models.OAuthTokenModel) (*integration.OAuthToken, error) {
	token := model.ToDomain()
	if r.cipher == nil {
		return token, nil
	}
	var err error
	if token.AccessToken, err = r.cipher.Open(model.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if token.RefreshToken, err = r.cipher.Open(model.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return token, nil
}

var _ integration.TokenRepository = (*GormTokenRepository)(nil)
