package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProject(t *testing.T, number string) *billing.Project {
	t.Helper()
	project, err := billing.NewProject(number, "Project "+number)
	require.NoError(t, err)
	return project
}

func TestGormProjectRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormProjectRepository(setupSQLiteDB(t))
	now := time.Now().UTC()

	linked := newTestProject(t, "2024-017")
	require.NoError(t, linked.LinkRemote("58", "61", now))
	require.NoError(t, repo.Save(ctx, linked))

	unlinked := newTestProject(t, "2024-003")
	require.NoError(t, repo.Save(ctx, unlinked))

	inactive := newTestProject(t, "2023-044")
	inactive.Active = false
	require.NoError(t, repo.Save(ctx, inactive))

	t.Run("finds by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, linked.ID)
		require.NoError(t, err)
		assert.Equal(t, "2024-017", found.Number)
		assert.Equal(t, "58", found.RemoteCustomerID)
		require.NotNil(t, found.LastSyncedAt)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("finds by remote job", func(t *testing.T) {
		found, err := repo.FindByRemoteJobID(ctx, "61")
		require.NoError(t, err)
		assert.Equal(t, linked.ID, found.ID)

		_, err = repo.FindByRemoteJobID(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists active projects by number", func(t *testing.T) {
		projects, err := repo.FindActive(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, "2024-003", projects[0].Number)
		assert.Equal(t, "2024-017", projects[1].Number)
	})

	t.Run("lists linked projects", func(t *testing.T) {
		projects, err := repo.FindLinked(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, linked.ID, projects[0].ID)
	})

	t.Run("save updates an existing row", func(t *testing.T) {
		require.NoError(t, unlinked.LinkRemote("58", "77", now))
		require.NoError(t, repo.Save(ctx, unlinked))

		found, err := repo.FindByRemoteJobID(ctx, "77")
		require.NoError(t, err)
		assert.Equal(t, unlinked.ID, found.ID)

		projects, err := repo.FindActive(ctx)
		require.NoError(t, err)
		assert.Len(t, projects, 2)
	})
}

func TestGormCompanyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCompanyRepository(setupSQLiteDB(t))

	company, err := billing.NewCompany("Acme Builders LLC", billing.CompanyRoleCustomer, billing.CompanyRoleVendor)
	require.NoError(t, err)
	company.LinkRemote(integration.PartyKindCustomer, "58", time.Now().UTC())
	company.LinkRemote(integration.PartyKindVendor, "301", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, company))

	vendorOnly, err := billing.NewCompany("Lumber Depot", billing.CompanyRoleVendor)
	require.NoError(t, err)
	vendorOnly.LinkRemote(integration.PartyKindVendor, "58", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, vendorOnly))

	t.Run("finds by name ignoring case", func(t *testing.T) {
		found, err := repo.FindByName(ctx, "  acme builders llc ")
		require.NoError(t, err)
		assert.Equal(t, company.ID, found.ID)
		assert.True(t, found.IsCustomer)
	})

	t.Run("finds by remote id of each kind", func(t *testing.T) {
		found, err := repo.FindByRemoteID(ctx, integration.PartyKindCustomer, "58")
		require.NoError(t, err)
		assert.Equal(t, company.ID, found.ID)
		assert.Equal(t, "301", found.RemoteVendorID)

		found, err = repo.FindByRemoteID(ctx, integration.PartyKindVendor, "58")
		require.NoError(t, err)
		assert.Equal(t, vendorOnly.ID, found.ID)

		found, err = repo.FindByRemoteID(ctx, integration.PartyKindVendor, "301")
		require.NoError(t, err)
		assert.Equal(t, company.ID, found.ID)

		_, err = repo.FindByRemoteID(ctx, integration.PartyKindCustomer, "301")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty lookups are not found", func(t *testing.T) {
		_, err := repo.FindByName(ctx, " ")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByRemoteID(ctx, integration.PartyKindCustomer, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		_, err := repo.FindByRemoteID(ctx, integration.PartyKind("employee"), "58")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("unknown name is not found", func(t *testing.T) {
		_, err := repo.FindByName(ctx, "Nobody Inc")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormPartyResolver_PrimaryCustomer(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	companies := NewGormCompanyRepository(db)
	resolver := NewGormPartyResolver(db)
	projectID := uuid.New()

	save := func(name string) *billing.Company {
		c, err := billing.NewCompany(name, billing.CompanyRoleCustomer)
		require.NoError(t, err)
		require.NoError(t, companies.Save(ctx, c))
		return c
	}
	secondary := save("Secondary Owner")
	primary := save("Primary Owner")
	architect := save("Design Studio")

	t.Run("no customer is not found", func(t *testing.T) {
		_, err := resolver.PrimaryCustomer(ctx, projectID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	require.NoError(t, resolver.AddParty(ctx, billing.ProjectParty{
		ProjectID: projectID, CompanyID: architect.ID, Role: billing.ProjectPartyRoleArchitect, IsPrimary: true,
	}))
	require.NoError(t, resolver.AddParty(ctx, billing.ProjectParty{
		ProjectID: projectID, CompanyID: secondary.ID, Role: billing.ProjectPartyRoleCustomer,
	}))

	t.Run("falls back to any customer", func(t *testing.T) {
		found, err := resolver.PrimaryCustomer(ctx, projectID)
		require.NoError(t, err)
		assert.Equal(t, secondary.ID, found.ID)
	})

	require.NoError(t, resolver.AddParty(ctx, billing.ProjectParty{
		ProjectID: projectID, CompanyID: primary.ID, Role: billing.ProjectPartyRoleCustomer, IsPrimary: true,
	}))

	t.Run("prefers the primary customer", func(t *testing.T) {
		found, err := resolver.PrimaryCustomer(ctx, projectID)
		require.NoError(t, err)
		assert.Equal(t, primary.ID, found.ID)
	})
}

func TestGormPayApplicationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPayApplicationRepository(setupSQLiteDB(t))
	projectA := uuid.New()
	projectB := uuid.New()

	second := billing.NewPayApplication(projectA, 2, decimal.NewFromInt(2500))
	first := billing.NewPayApplication(projectA, 1, decimal.NewFromInt(1000))
	first.MarkSynced("130", time.Now().UTC())
	removed := billing.NewPayApplication(projectA, 3, decimal.NewFromInt(10))
	removed.Deleted = true
	other := billing.NewPayApplication(projectB, 1, decimal.RequireFromString("812.40"))
	other.MarkSynced("131", time.Now().UTC())

	require.NoError(t, repo.SaveAll(ctx, []*billing.PayApplication{second, first, removed, other}))

	t.Run("lists live applications by sequence", func(t *testing.T) {
		apps, err := repo.FindByProject(ctx, projectA)
		require.NoError(t, err)
		require.Len(t, apps, 2)
		assert.Equal(t, 1, apps[0].SequenceNumber)
		assert.Equal(t, 2, apps[1].SequenceNumber)
		assert.True(t, decimal.NewFromInt(2500).Equal(apps[1].Amount))
	})

	t.Run("finds deleted applications by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, removed.ID)
		require.NoError(t, err)
		assert.True(t, found.Deleted)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists invoiced applications", func(t *testing.T) {
		apps, err := repo.FindWithRemoteInvoice(ctx)
		require.NoError(t, err)
		require.Len(t, apps, 2)
		ids := []string{apps[0].RemoteInvoiceID, apps[1].RemoteInvoiceID}
		assert.ElementsMatch(t, []string{"130", "131"}, ids)
	})

	t.Run("lists projects with applications", func(t *testing.T) {
		ids, err := repo.ProjectIDsWithPayApplications(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{projectA, projectB}, ids)
	})

	t.Run("save persists sync state", func(t *testing.T) {
		second.MarkSyncFailed("Duplicate Document Number Error", time.Now().UTC())
		require.NoError(t, repo.Save(ctx, second))

		found, err := repo.FindByID(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, second.SyncStatus, found.SyncStatus)
		assert.Equal(t, "Duplicate Document Number Error", found.SyncError)
	})

	t.Run("lists every application in creation order", func(t *testing.T) {
		base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		projectC := uuid.New()
		one := billing.NewPayApplication(projectC, 1, decimal.NewFromInt(100))
		one.CreatedAt = base
		two := billing.NewPayApplication(projectC, 2, decimal.NewFromInt(200))
		two.CreatedAt = base.AddDate(0, 1, 0)
		two.Deleted = true
		three := billing.NewPayApplication(projectC, 3, decimal.NewFromInt(300))
		three.CreatedAt = base.AddDate(0, 2, 0)
		require.NoError(t, repo.SaveAll(ctx, []*billing.PayApplication{three, one, two}))

		apps, err := repo.FindAllByProject(ctx, projectC)
		require.NoError(t, err)
		require.Len(t, apps, 3)
		assert.Equal(t, []uuid.UUID{one.ID, two.ID, three.ID}, []uuid.UUID{apps[0].ID, apps[1].ID, apps[2].ID})
		assert.True(t, apps[1].Deleted)
	})

	t.Run("empty save is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.SaveAll(ctx, nil))
	})
}

func TestGormChangeOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormChangeOrderRepository(setupSQLiteDB(t))
	projectID := uuid.New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	later := billing.NewChangeOrder(projectID, "Added outlets", decimal.NewFromInt(400))
	later.CreatedAt = base.Add(time.Hour)
	earlier := billing.NewChangeOrder(projectID, "Upgraded flooring", decimal.NewFromInt(1200))
	earlier.CreatedAt = base
	earlier.Deleted = true
	foreign := billing.NewChangeOrder(uuid.New(), "Other job", decimal.NewFromInt(5))

	require.NoError(t, repo.SaveAll(ctx, []*billing.ChangeOrder{later, earlier, foreign}))

	orders, err := repo.FindByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, earlier.ID, orders[0].ID)
	assert.True(t, orders[0].Deleted)
	assert.Equal(t, later.ID, orders[1].ID)
}

func TestGormBillingTransactionScope(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	scope := NewGormBillingTransactionScope(db)
	projectID := uuid.New()

	t.Run("commits on success", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appintegration.BillingRepositories) error {
			app := billing.NewPayApplication(projectID, 1, decimal.NewFromInt(100))
			if err := repos.PayApplications().Save(ctx, app); err != nil {
				return err
			}
			order := billing.NewChangeOrder(projectID, "Extra", decimal.NewFromInt(50))
			return repos.ChangeOrders().SaveAll(ctx, []*billing.ChangeOrder{order})
		})
		require.NoError(t, err)

		apps, err := NewGormPayApplicationRepository(db).FindByProject(ctx, projectID)
		require.NoError(t, err)
		assert.Len(t, apps, 1)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := scope.Execute(ctx, func(repos appintegration.BillingRepositories) error {
			app := billing.NewPayApplication(projectID, 2, decimal.NewFromInt(200))
			if err := repos.PayApplications().Save(ctx, app); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		apps, err := NewGormPayApplicationRepository(db).FindByProject(ctx, projectID)
		require.NoError(t, err)
		assert.Len(t, apps, 1)
	})
}
