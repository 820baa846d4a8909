package persistence

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompanies builds n companies with distinct names from a seeded faker
func fakeCompanies(t *testing.T, seed uint64, n int) []*billing.Company {
	t.Helper()
	faker := gofakeit.New(seed)
	roles := []billing.CompanyRole{
		billing.CompanyRoleCustomer,
		billing.CompanyRoleVendor,
		billing.CompanyRoleSubcontractor,
	}

	seen := make(map[string]bool, n)
	companies := make([]*billing.Company, 0, n)
	for len(companies) < n {
		name := faker.Company()
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true

		c, err := billing.NewCompany(name, roles[len(companies)%len(roles)])
		require.NoError(t, err)
		c.Email = faker.Email()
		c.Phone = faker.Phone()
		companies = append(companies, c)
	}
	return companies
}

func TestGormCompanyRepository_FakeDirectory(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCompanyRepository(setupSQLiteDB(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	companies := fakeCompanies(t, 42, 30)
	for i, c := range companies {
		if i%2 == 0 {
			c.LinkRemote(kindOf(c), gofakeit.New(uint64(i)).Numerify("####"), now)
		}
		require.NoError(t, repo.Save(ctx, c))
	}

	for _, want := range companies {
		got, err := repo.FindByName(ctx, "  "+strings.ToUpper(want.Name)+" ")
		require.NoError(t, err, want.Name)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Email, got.Email)
		assert.Equal(t, want.Phone, got.Phone)
		assert.Equal(t, want.IsCustomer, got.IsCustomer)
		assert.Equal(t, want.IsSubcontractor, got.IsSubcontractor)

		kind := kindOf(want)
		if want.RemoteID(kind) == "" {
			assert.Nil(t, got.LastSyncedAt)
			continue
		}
		byRemote, err := repo.FindByRemoteID(ctx, kind, want.RemoteID(kind))
		require.NoError(t, err)
		assert.Equal(t, want.RemoteID(kind), byRemote.RemoteID(kind))
	}
}

func kindOf(c *billing.Company) integration.PartyKind {
	if c.IsCustomer {
		return integration.PartyKindCustomer
	}
	return integration.PartyKindVendor
}

func TestBaseModel_BeforeCreateFillsIdentity(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)

	row := &models.CompanyModel{Name: gofakeit.New(7).Company()}
	require.NoError(t, db.WithContext(ctx).Create(row).Error)
	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.False(t, row.CreatedAt.IsZero())
	assert.Equal(t, row.CreatedAt, row.UpdatedAt)

	found, err := NewGormCompanyRepository(db).FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, row.Name, found.Name)
}
