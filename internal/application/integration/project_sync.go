package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation names used in logs and metrics
const (
	OpSyncProject   = "sync_project"
	OpSyncCompany   = "sync_company"
	OpPullVendors   = "pull_vendors"
	OpPullCustomers = "pull_customers"
	OpSyncPayApp    = "sync_pay_app"
	OpPullPayment   = "pull_payment"
	OpRecompute     = "recompute_billing"
	OpRenumberCOs   = "renumber_change_orders"
	OpComputeCost   = "compute_cost"
	OpProfitAndLoss = "profit_and_loss"
)

// ProjectSyncResult reports what a project sync did remotely
type ProjectSyncResult struct {
	ProjectID        uuid.UUID          `json:"project_id"`
	CompanyID        uuid.UUID          `json:"company_id"`
	RemoteCustomerID string             `json:"remote_customer_id"`
	RemoteJobID      string             `json:"remote_job_id"`
	CustomerAction   integration.Action `json:"customer_action"`
	JobAction        integration.Action `json:"job_action"`
}

// CompanySyncResult reports what a company sync did remotely
type CompanySyncResult struct {
	CompanyID uuid.UUID           `json:"company_id"`
	Role      billing.CompanyRole `json:"role"`
	RemoteID  string              `json:"remote_id"`
	Action    integration.Action  `json:"action"`
}

// SyncEngine maps local projects and companies onto remote customers, jobs
// and vendors. Stored remote ids are authoritative: once linked, a record is
// only ever updated through its stored id.
type SyncEngine struct {
	realmID   string
	projects  billing.ProjectRepository
	companies billing.CompanyRepository
	parties   billing.PartyResolver
	partyGW   integration.PartyGateway
	jobGW     integration.JobGateway
	runner    *BatchRunner
	logger    *zap.Logger
	now       func() time.Time
}

// NewSyncEngine creates a SyncEngine for one realm
func NewSyncEngine(
	realmID string,
	projects billing.ProjectRepository,
	companies billing.CompanyRepository,
	parties billing.PartyResolver,
	partyGW integration.PartyGateway,
	jobGW integration.JobGateway,
	runner *BatchRunner,
	logger *zap.Logger,
) *SyncEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncEngine{
		realmID:   realmID,
		projects:  projects,
		companies: companies,
		parties:   parties,
		partyGW:   partyGW,
		jobGW:     jobGW,
		runner:    runner,
		logger:    logger,
		now:       time.Now,
	}
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// SyncProjectToRemote links a project to a remote job under its primary
// customer, creating either when missing. Calling it again with unchanged
// inputs creates nothing.
func (e *SyncEngine) SyncProjectToRemote(ctx context.Context, projectID uuid.UUID) (*ProjectSyncResult, error) {
	project, err := e.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if err := project.ValidateForSync(); err != nil {
		return nil, err
	}

	company, err := e.parties.PrimaryCustomer(ctx, projectID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("project %s: %w", project.Number, integration.ErrMissingCustomer)
		}
		return nil, fmt.Errorf("resolve primary customer: %w", err)
	}

	parent, customerAction, err := e.ensureParty(ctx, company, billing.CompanyRoleCustomer)
	if err != nil {
		return nil, fmt.Errorf("sync customer %q: %w", company.Name, err)
	}

	job, jobAction, err := e.ensureJob(ctx, project, parent.ID)
	if err != nil {
		return nil, fmt.Errorf("sync job for project %s: %w", project.Number, err)
	}

	now := e.now()
	if err := project.LinkRemote(parent.ID, job.ID, now); err != nil {
		return nil, err
	}
	if err := e.projects.Save(ctx, project); err != nil {
		return nil, fmt.Errorf("save project links: %w", err)
	}

	company.LinkRemote(integration.PartyKindCustomer, parent.ID, now)
	if err := e.companies.Save(ctx, company); err != nil {
		e.logger.Warn("Failed to store company remote id",
			zap.String("company_id", company.ID.String()),
			zap.String("remote_id", parent.ID),
			zap.Error(err))
	}

	e.logger.Info("Project synced",
		zap.String("project_number", project.Number),
		zap.String("remote_customer_id", parent.ID),
		zap.String("remote_job_id", job.ID),
		zap.String("customer_action", string(customerAction)),
		zap.String("job_action", string(jobAction)))

	return &ProjectSyncResult{
		ProjectID:        project.ID,
		CompanyID:        company.ID,
		RemoteCustomerID: parent.ID,
		RemoteJobID:      job.ID,
		CustomerAction:   customerAction,
		JobAction:        jobAction,
	}, nil
}

// SyncProjects syncs the given projects sequentially
func (e *SyncEngine) SyncProjects(ctx context.Context, ids []uuid.UUID) *integration.BatchResult {
	return RunBatch(ctx, e.runner, OpSyncProject, ids, uuid.UUID.String,
		func(ctx context.Context, id uuid.UUID) (integration.ItemResult, error) {
			res, err := e.SyncProjectToRemote(ctx, id)
			if err != nil {
				return integration.ItemResult{}, err
			}
			return integration.ItemResult{
				Outcome:  integration.OutcomeSucceeded,
				Action:   res.JobAction,
				RemoteID: res.RemoteJobID,
			}, nil
		})
}

// SyncAllProjects syncs every active project
func (e *SyncEngine) SyncAllProjects(ctx context.Context) (*integration.BatchResult, error) {
	projects, err := e.projects.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active projects: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return e.SyncProjects(ctx, ids), nil
}

// ensureJob updates the job stored on the project, or adopts an existing job
// under parentID whose name starts with the project number, or creates one
func (e *SyncEngine) ensureJob(ctx context.Context, project *billing.Project, parentID string) (*integration.BillingChild, integration.Action, error) {
	desired := integration.JobDisplayName(project.Number, project.Name)

	if project.HasRemoteJob() {
		job, err := e.jobGW.GetJob(ctx, e.realmID, project.RemoteJobID)
		if err != nil {
			return nil, "", err
		}
		if job.DisplayName == desired && job.ParentID == parentID {
			return job, integration.ActionNone, nil
		}
		job.DisplayName = desired
		job.ParentID = parentID
		job.BillWithParent = true
		updated, err := e.jobGW.UpdateJob(ctx, e.realmID, *job)
		if err != nil {
			return nil, "", err
		}
		return updated, integration.ActionUpdated, nil
	}

	candidates, err := e.jobGW.FindJobsByPrefix(ctx, e.realmID, project.Number)
	if err != nil {
		return nil, "", err
	}
	for i := range candidates {
		c := candidates[i]
		if c.ParentID == parentID && hasProjectNumber(c.DisplayName, project.Number) {
			return &c, integration.ActionLinked, nil
		}
	}

	created, err := e.jobGW.CreateJob(ctx, e.realmID, integration.BillingChild{
		ParentID:       parentID,
		DisplayName:    desired,
		BillWithParent: true,
		Active:         true,
	})
	if err != nil {
		return nil, "", err
	}
	return created, integration.ActionCreated, nil
}

// hasProjectNumber reports whether a job name starts with the project number
// as a whole token, so 1304 matches "1304 Main St" but not "13045 Elm"
func hasProjectNumber(name, number string) bool {
	if !strings.HasPrefix(name, number) {
		return false
	}
	rest := name[len(number):]
	if rest == "" {
		return true
	}
	next := []rune(rest)[0]
	return !unicode.IsDigit(next) && !unicode.IsLetter(next)
}

// ---------------------------------------------------------------------------
// Companies
// ---------------------------------------------------------------------------

// SyncCompanyToRemote creates or updates the remote record of a company in
// the given role: customers become customers, vendors and subcontractors
// become vendors (subcontractors flagged for 1099)
func (e *SyncEngine) SyncCompanyToRemote(ctx context.Context, companyID uuid.UUID, role billing.CompanyRole) (*CompanySyncResult, error) {
	if !role.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage("unknown company role: " + string(role))
	}
	company, err := e.companies.FindByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if !company.HasRole(role) {
		return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("company %q is not a %s", company.Name, role))
	}

	party, action, err := e.ensureParty(ctx, company, role)
	if err != nil {
		return nil, fmt.Errorf("sync %s %q: %w", role, company.Name, err)
	}

	company.LinkRemote(role.PartyKind(), party.ID, e.now())
	if err := e.companies.Save(ctx, company); err != nil {
		return nil, fmt.Errorf("save company link: %w", err)
	}

	e.logger.Info("Company synced",
		zap.String("company_id", company.ID.String()),
		zap.String("role", string(role)),
		zap.String("remote_id", party.ID),
		zap.String("action", string(action)))

	return &CompanySyncResult{CompanyID: company.ID, Role: role, RemoteID: party.ID, Action: action}, nil
}

// ensureParty resolves the remote party of company for the kind role maps
// to. The id stored for that kind is fetched and updated when the name (or
// 1099 flag) drifted. Without one, a single remote party with the same
// normalized name is adopted; several are a conflict; none means create.
func (e *SyncEngine) ensureParty(ctx context.Context, company *billing.Company, role billing.CompanyRole) (*integration.BillingParent, integration.Action, error) {
	kind := role.PartyKind()
	desired := company.ToRemote(role)

	if stored := company.RemoteID(kind); stored != "" {
		party, err := e.partyGW.GetParty(ctx, e.realmID, kind, stored)
		if err != nil {
			return nil, "", err
		}
		if party.DisplayName == desired.DisplayName && (!role.Is1099() || party.Is1099) {
			return party, integration.ActionNone, nil
		}
		party.DisplayName = desired.DisplayName
		party.CompanyName = desired.CompanyName
		party.Is1099 = party.Is1099 || desired.Is1099
		updated, err := e.partyGW.UpdateParty(ctx, e.realmID, *party)
		if err != nil {
			return nil, "", err
		}
		return updated, integration.ActionUpdated, nil
	}

	candidates, err := e.partyGW.FindPartiesByName(ctx, e.realmID, kind, company.Name)
	if err != nil {
		return nil, "", err
	}
	var matches []integration.BillingParent
	for _, c := range candidates {
		if integration.NamesMatch(c.DisplayName, company.Name) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
	case 1:
		return &matches[0], integration.ActionLinked, nil
	default:
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		return nil, "", fmt.Errorf("%w: %d remote %ss named %q (%s)",
			integration.ErrRemoteConflict, len(matches), kind, company.Name, strings.Join(ids, ", "))
	}

	created, err := e.partyGW.CreateParty(ctx, e.realmID, desired)
	if err != nil {
		return nil, "", err
	}
	return created, integration.ActionCreated, nil
}

// ---------------------------------------------------------------------------
// Party import
// ---------------------------------------------------------------------------

// PullVendors imports remote vendors as local vendor companies
func (e *SyncEngine) PullVendors(ctx context.Context) (*integration.BatchResult, error) {
	return e.pullVendors(ctx, billing.CompanyRoleVendor)
}

// PullSubcontractors imports remote 1099 vendors as local subcontractors
func (e *SyncEngine) PullSubcontractors(ctx context.Context) (*integration.BatchResult, error) {
	return e.pullVendors(ctx, billing.CompanyRoleSubcontractor)
}

func (e *SyncEngine) pullVendors(ctx context.Context, role billing.CompanyRole) (*integration.BatchResult, error) {
	vendors, err := e.partyGW.ListVendors(ctx, e.realmID, role.Is1099())
	if err != nil {
		return nil, fmt.Errorf("list remote vendors: %w", err)
	}
	return e.importParties(ctx, OpPullVendors, vendors, role), nil
}

// PullCustomers imports remote top-level customers (jobs excluded) as local
// customer companies
func (e *SyncEngine) PullCustomers(ctx context.Context) (*integration.BatchResult, error) {
	customers, err := e.partyGW.ListCustomers(ctx, e.realmID)
	if err != nil {
		return nil, fmt.Errorf("list remote customers: %w", err)
	}
	return e.importParties(ctx, OpPullCustomers, customers, billing.CompanyRoleCustomer), nil
}

func (e *SyncEngine) importParties(ctx context.Context, op string, parties []integration.BillingParent, role billing.CompanyRole) *integration.BatchResult {
	key := func(p integration.BillingParent) string { return p.ID }
	return RunBatch(ctx, e.runner.Unthrottled(), op, parties, key,
		func(ctx context.Context, p integration.BillingParent) (integration.ItemResult, error) {
			return e.importParty(ctx, p, role)
		})
}

// importParty matches a remote party by the id stored for its kind, then by
// name (case-insensitive) to link, and creates a company otherwise
func (e *SyncEngine) importParty(ctx context.Context, p integration.BillingParent, role billing.CompanyRole) (integration.ItemResult, error) {
	kind := role.PartyKind()
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = strings.TrimSpace(p.CompanyName)
	}
	if name == "" {
		return integration.ItemResult{Outcome: integration.OutcomeSkipped, Message: fmt.Sprintf("remote %s has no name", kind)}, nil
	}
	now := e.now()

	company, err := e.companies.FindByRemoteID(ctx, kind, p.ID)
	switch {
	case err == nil:
		changed := applyPartyDetails(company, p, role)
		if !changed {
			return integration.ItemResult{Outcome: integration.OutcomeSucceeded, Action: integration.ActionNone, RemoteID: p.ID}, nil
		}
		company.LinkRemote(kind, p.ID, now)
		if err := e.companies.Save(ctx, company); err != nil {
			return integration.ItemResult{}, err
		}
		return integration.ItemResult{Outcome: integration.OutcomeSucceeded, Action: integration.ActionUpdated, RemoteID: p.ID}, nil
	case !errors.Is(err, shared.ErrNotFound):
		return integration.ItemResult{}, err
	}

	company, err = e.companies.FindByName(ctx, name)
	switch {
	case err == nil:
		if stored := company.RemoteID(kind); stored != "" && stored != p.ID {
			return integration.ItemResult{
				Outcome: integration.OutcomeSkipped,
				Message: fmt.Sprintf("company %q is already linked to remote %s %s", company.Name, kind, stored),
			}, nil
		}
		applyPartyDetails(company, p, role)
		company.LinkRemote(kind, p.ID, now)
		if err := e.companies.Save(ctx, company); err != nil {
			return integration.ItemResult{}, err
		}
		return integration.ItemResult{Outcome: integration.OutcomeSucceeded, Action: integration.ActionLinked, RemoteID: p.ID}, nil
	case !errors.Is(err, shared.ErrNotFound):
		return integration.ItemResult{}, err
	}

	company, err = billing.NewCompany(name, role)
	if err != nil {
		return integration.ItemResult{}, err
	}
	company.Email = p.Email
	company.Phone = p.Phone
	company.LinkRemote(kind, p.ID, now)
	if err := e.companies.Save(ctx, company); err != nil {
		return integration.ItemResult{}, err
	}
	return integration.ItemResult{Outcome: integration.OutcomeSucceeded, Action: integration.ActionCreated, RemoteID: p.ID}, nil
}

// applyPartyDetails copies contact details and the role onto company and
// reports whether anything changed. The local name is kept.
func applyPartyDetails(company *billing.Company, p integration.BillingParent, role billing.CompanyRole) bool {
	changed := false
	if !company.HasRole(role) {
		_ = company.AddRole(role)
		changed = true
	}
	if p.Email != "" && company.Email != p.Email {
		company.Email = p.Email
		changed = true
	}
	if p.Phone != "" && company.Phone != p.Phone {
		company.Phone = p.Phone
		changed = true
	}
	return changed
}
