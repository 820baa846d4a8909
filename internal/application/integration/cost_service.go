package integration

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/costing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Report names used in archive keys
const (
	reportGeneralLedger = "GeneralLedger"
	reportProfitAndLoss = "ProfitAndLoss"
)

// CostSummary is the cost of one remote job over a date range
type CostSummary struct {
	ProjectID  *uuid.UUID              `json:"project_id,omitempty"`
	JobID      string                  `json:"job_id"`
	StartDate  string                  `json:"start_date"`
	EndDate    string                  `json:"end_date"`
	Basis      costing.AccountingBasis `json:"basis"`
	NetCost    costing.NetCost         `json:"net_cost"`
	Payroll    costing.PayrollCost     `json:"payroll"`
	ArchiveKey string                  `json:"archive_key,omitempty"`
}

// ProfitAndLossSummary is the cash P&L of one remote job
type ProfitAndLossSummary struct {
	JobID      string                `json:"job_id"`
	StartDate  string                `json:"start_date"`
	EndDate    string                `json:"end_date"`
	Summary    costing.ProfitAndLoss `json:"summary"`
	ArchiveKey string                `json:"archive_key,omitempty"`
}

// CostService fetches financial reports and aggregates job cost
type CostService struct {
	realmID    string
	reports    integration.ReportGateway
	projects   billing.ProjectRepository
	archive    ReportArchive
	classifier costing.AccountClassifier
	basis      costing.AccountingBasis
	logger     *zap.Logger
	now        func() time.Time
}

// NewCostService creates a CostService. archive may be nil to skip archiving;
// a nil classifier falls back to the default code-range/keyword policy.
func NewCostService(
	realmID string,
	reports integration.ReportGateway,
	projects billing.ProjectRepository,
	archive ReportArchive,
	classifier costing.AccountClassifier,
	basis costing.AccountingBasis,
	logger *zap.Logger,
) *CostService {
	if classifier == nil {
		classifier = costing.DefaultClassifier()
	}
	if !basis.IsValid() {
		basis = costing.BasisAccrual
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CostService{
		realmID:    realmID,
		reports:    reports,
		projects:   projects,
		archive:    archive,
		classifier: classifier,
		basis:      basis,
		logger:     logger,
		now:        time.Now,
	}
}

// ComputeNetCost fetches the job's general ledger and sums the cost accounts
func (s *CostService) ComputeNetCost(ctx context.Context, jobID string, dateRange costing.DateRange) (*CostSummary, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: remote job id is required", integration.ErrMissingLocalLink)
	}
	dateRange = defaultRange(dateRange)

	fetched, err := s.reports.GeneralLedger(ctx, s.realmID, integration.ReportQuery{
		JobID: jobID,
		Range: dateRange,
		Basis: s.basis,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch general ledger: %w", err)
	}

	summary := &CostSummary{
		JobID:      jobID,
		StartDate:  dateRange.StartString(),
		EndDate:    dateRange.EndString(),
		Basis:      s.basis,
		NetCost:    costing.ComputeNetCost(fetched.Report, s.classifier),
		Payroll:    costing.ComputePayrollCost(fetched.Report, jobID),
		ArchiveKey: s.store(ctx, reportGeneralLedger, jobID, dateRange, fetched.Payload),
	}
	if summary.NetCost.MalformedCells > 0 {
		s.logger.Warn("Report contained unparseable amounts",
			zap.String("job_id", jobID),
			zap.Int("cells", summary.NetCost.MalformedCells))
	}
	s.logger.Info("Job cost computed",
		zap.String("job_id", jobID),
		zap.String("net_cost", summary.NetCost.Total.StringFixed(2)),
		zap.Int("transactions", summary.NetCost.TransactionCount))
	return summary, nil
}

// ComputeProjectCost resolves the project's remote job and computes its cost
func (s *CostService) ComputeProjectCost(ctx context.Context, projectID uuid.UUID, dateRange costing.DateRange) (*CostSummary, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.HasRemoteJob() {
		return nil, fmt.Errorf("project %s: %w: not synced to a remote job", project.Number, integration.ErrMissingLocalLink)
	}
	summary, err := s.ComputeNetCost(ctx, project.RemoteJobID, dateRange)
	if err != nil {
		return nil, err
	}
	summary.ProjectID = &project.ID
	return summary, nil
}

// ProfitAndLoss fetches the job's cash-basis profit and loss report
func (s *CostService) ProfitAndLoss(ctx context.Context, jobID string, dateRange costing.DateRange) (*ProfitAndLossSummary, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: remote job id is required", integration.ErrMissingLocalLink)
	}
	dateRange = defaultRange(dateRange)

	fetched, err := s.reports.ProfitAndLoss(ctx, s.realmID, integration.ReportQuery{
		JobID: jobID,
		Range: dateRange,
		Basis: costing.BasisCash,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch profit and loss: %w", err)
	}

	return &ProfitAndLossSummary{
		JobID:      jobID,
		StartDate:  dateRange.StartString(),
		EndDate:    dateRange.EndString(),
		Summary:    costing.SummarizeProfitAndLoss(fetched.Report),
		ArchiveKey: s.store(ctx, reportProfitAndLoss, jobID, dateRange, fetched.Payload),
	}, nil
}

// store archives a raw report payload and returns its key. Archiving is best
// effort: a failure is logged and the computed figures are still returned.
func (s *CostService) store(ctx context.Context, report, jobID string, dateRange costing.DateRange, payload []byte) string {
	if s.archive == nil || len(payload) == 0 {
		return ""
	}
	key := ArchiveKey(s.realmID, report, jobID, dateRange, s.now())
	if err := s.archive.Store(ctx, key, payload); err != nil {
		s.logger.Warn("Failed to archive report",
			zap.String("key", key),
			zap.Error(err))
		return ""
	}
	return key
}

// ArchiveKey builds the object key of an archived report:
// reports/<realm>/<report>/<job>_<start>_<end>_<unix>.json
func ArchiveKey(realmID, report, jobID string, dateRange costing.DateRange, at time.Time) string {
	name := fmt.Sprintf("%s_%s_%s_%d.json", jobID, dateRange.StartString(), dateRange.EndString(), at.Unix())
	return path.Join("reports", realmID, report, name)
}

func defaultRange(r costing.DateRange) costing.DateRange {
	all := costing.AllTime()
	if r.Start.IsZero() {
		r.Start = all.Start
	}
	if r.End.IsZero() {
		r.End = all.End
	}
	return r
}
