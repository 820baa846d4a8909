package integration

import (
	"context"
	"fmt"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecomputeResult counts the pay applications a recompute changed
type RecomputeResult struct {
	ProjectID     uuid.UUID `json:"project_id"`
	PayApps       int       `json:"pay_apps"`
	Normalized    int       `json:"normalized"`
	Renumbered    int       `json:"renumbered"`
	DeltasChanged int       `json:"deltas_changed"`
	Reclassified  int       `json:"reclassified"`
	Saved         int       `json:"saved"`
}

// RenumberResult counts the change orders a renumber changed
type RenumberResult struct {
	ProjectID    uuid.UUID `json:"project_id"`
	ChangeOrders int       `json:"change_orders"`
	Renumbered   int       `json:"renumbered"`
}

// BillingService applies the billing invariants to stored records
type BillingService struct {
	txScope  BillingTransactionScope
	projects billing.ProjectIDLister
	runner   *BatchRunner
	logger   *zap.Logger
}

// NewBillingService creates a BillingService
func NewBillingService(txScope BillingTransactionScope, projects billing.ProjectIDLister, runner *BatchRunner, logger *zap.Logger) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		txScope:  txScope,
		projects: projects,
		runner:   runner,
		logger:   logger,
	}
}

// RecomputeProject renumbers every pay application of a project in creation
// order, deleted ones included, so historical numbers never shift. Rounding,
// payment deltas and retainage classification then run over the live pay
// applications only. Changed rows are saved in one transaction. Running it
// twice changes nothing the second time.
func (s *BillingService) RecomputeProject(ctx context.Context, projectID uuid.UUID) (*RecomputeResult, error) {
	result := &RecomputeResult{ProjectID: projectID}

	err := s.txScope.Execute(ctx, func(repos BillingRepositories) error {
		all, err := repos.PayApplications().FindAllByProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load pay applications: %w", err)
		}
		live := make([]*billing.PayApplication, 0, len(all))
		for _, app := range all {
			if !app.Deleted {
				live = append(live, app)
			}
		}
		result.PayApps = len(live)

		dirty := newChangeSet()
		renumbered := billing.Renumber(all)
		dirty.add(renumbered...)
		normalized := billing.NormalizeAmounts(live)
		dirty.add(normalized...)
		deltas := billing.RecomputeDeltas(live)
		dirty.add(deltas...)
		reclassified := billing.ClassifyRetainageBilling(live)
		dirty.add(reclassified...)

		result.Normalized = len(normalized)
		result.Renumbered = len(renumbered)
		result.DeltasChanged = len(deltas)
		result.Reclassified = len(reclassified)
		result.Saved = len(dirty.items)

		if len(dirty.items) == 0 {
			return nil
		}
		if err := repos.PayApplications().SaveAll(ctx, dirty.items); err != nil {
			return fmt.Errorf("save pay applications: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Saved > 0 {
		s.logger.Info("Billing recomputed",
			zap.String("project_id", projectID.String()),
			zap.Int("renumbered", result.Renumbered),
			zap.Int("deltas_changed", result.DeltasChanged),
			zap.Int("reclassified", result.Reclassified),
			zap.Int("saved", result.Saved))
	}
	return result, nil
}

// RecomputeAll recomputes every project that has pay applications
func (s *BillingService) RecomputeAll(ctx context.Context) (*integration.BatchResult, error) {
	ids, err := s.projects.ProjectIDsWithPayApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("list billed projects: %w", err)
	}
	return RunBatch(ctx, s.runner.Unthrottled(), OpRecompute, ids, uuid.UUID.String,
		func(ctx context.Context, id uuid.UUID) (integration.ItemResult, error) {
			res, err := s.RecomputeProject(ctx, id)
			if err != nil {
				return integration.ItemResult{}, err
			}
			action := integration.ActionNone
			if res.Saved > 0 {
				action = integration.ActionUpdated
			}
			return integration.ItemResult{
				Outcome: integration.OutcomeSucceeded,
				Action:  action,
				Message: fmt.Sprintf("%d of %d pay applications changed", res.Saved, res.PayApps),
			}, nil
		}), nil
}

// RenumberChangeOrders numbers a project's change orders 1..N in creation
// order, deleted ones included
func (s *BillingService) RenumberChangeOrders(ctx context.Context, projectID uuid.UUID) (*RenumberResult, error) {
	result := &RenumberResult{ProjectID: projectID}
	err := s.txScope.Execute(ctx, func(repos BillingRepositories) error {
		orders, err := repos.ChangeOrders().FindByProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load change orders: %w", err)
		}
		result.ChangeOrders = len(orders)
		changed := billing.Renumber(orders)
		result.Renumbered = len(changed)
		if len(changed) == 0 {
			return nil
		}
		if err := repos.ChangeOrders().SaveAll(ctx, changed); err != nil {
			return fmt.Errorf("save change orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// changeSet collects changed pay applications once each, in first-seen order
type changeSet struct {
	seen  map[uuid.UUID]struct{}
	items []*billing.PayApplication
}

func newChangeSet() *changeSet {
	return &changeSet{seen: make(map[uuid.UUID]struct{})}
}

func (c *changeSet) add(apps ...*billing.PayApplication) {
	for _, app := range apps {
		if _, ok := c.seen[app.ID]; ok {
			continue
		}
		c.seen[app.ID] = struct{}{}
		c.items = append(c.items, app)
	}
}
