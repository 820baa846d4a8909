//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/infrastructure/migration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgresDB starts a disposable PostgreSQL container and applies the
// embedded migrations
func setupPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("flocon_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func TestPostgres_TokenRefreshRace(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTokenRepository(setupPostgresDB(t), nil)
	now := time.Now().UTC()

	token := newTestToken(t, "9130", now)
	require.NoError(t, repo.ReplaceActive(ctx, token))

	const contenders = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			candidate := *token
			candidate.ApplyRefresh(integration.TokenGrant{
				AccessToken:     "refreshed",
				AccessExpiresAt: now.Add(time.Hour),
			}, now)
			ok, err := repo.UpdateIfUnchanged(ctx, &candidate, token.Version)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	found, err := repo.FindActiveByRealm(ctx, "9130")
	require.NoError(t, err)
	assert.Equal(t, 2, found.Version)
}

func TestPostgres_SingleActiveTokenPerRealm(t *testing.T) {
	ctx := context.Background()
	db := setupPostgresDB(t)
	repo := NewGormTokenRepository(db, nil)
	now := time.Now().UTC()

	require.NoError(t, repo.ReplaceActive(ctx, newTestToken(t, "9130", now)))
	require.NoError(t, repo.ReplaceActive(ctx, newTestToken(t, "9130", now.Add(time.Minute))))

	var active int64
	require.NoError(t, db.Table("oauth_tokens").Where("realm_id = ? AND is_active", "9130").Count(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestPostgres_BillingRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupPostgresDB(t)
	projects := NewGormProjectRepository(db)
	payApps := NewGormPayApplicationRepository(db)

	project := newTestProject(t, "2024-017")
	require.NoError(t, projects.Save(ctx, project))

	app := billing.NewPayApplication(project.ID, 1, decimal.RequireFromString("15234.56"))
	app.RetainageThisPeriod = decimal.RequireFromString("1523.46")
	require.NoError(t, payApps.Save(ctx, app))

	found, err := payApps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "15234.56", found.Amount.StringFixed(2))
	assert.Equal(t, "1523.46", found.RetainageThisPeriod.StringFixed(2))

	ids, err := payApps.ProjectIDsWithPayApplications(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, project.ID, ids[0])
}
