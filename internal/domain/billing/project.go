package billing

import (
	"strings"
	"time"

	"github.com/flocon/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Project is a construction engagement billed through pay applications.
// A stored RemoteJobID implies a stored RemoteCustomerID.
type Project struct {
	shared.BaseEntity
	Number           string
	Name             string
	RemoteCustomerID string
	RemoteJobID      string
	LastSyncedAt     *time.Time
	Active           bool
}

// NewProject creates an active project
func NewProject(number, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PROJECT_NAME", "Project name cannot be empty")
	}
	return &Project{
		BaseEntity: shared.NewBaseEntity(),
		Number:     strings.TrimSpace(number),
		Name:       name,
		Active:     true,
	}, nil
}

// ValidateForSync checks the project can be mapped to a remote job
func (p *Project) ValidateForSync() error {
	if strings.TrimSpace(p.Number) == "" {
		return shared.ErrInvalidInput.WithMessage("project must have a project number before syncing")
	}
	return nil
}

// HasRemoteJob returns true if the project is linked to a remote job
func (p *Project) HasRemoteJob() bool {
	return p.RemoteJobID != ""
}

// LinkRemote stores the remote ids after a successful sync
func (p *Project) LinkRemote(customerID, jobID string, now time.Time) error {
	if jobID != "" && customerID == "" {
		return shared.NewDomainError("INVALID_REMOTE_LINK", "A remote job requires a remote customer")
	}
	p.RemoteCustomerID = customerID
	p.RemoteJobID = jobID
	synced := now
	p.LastSyncedAt = &synced
	p.Touch(now)
	return nil
}

// ProjectPartyRole is the role a company plays on a project
type ProjectPartyRole string

const (
	ProjectPartyRoleCustomer      ProjectPartyRole = "customer"
	ProjectPartyRoleSubcontractor ProjectPartyRole = "subcontractor"
	ProjectPartyRoleArchitect     ProjectPartyRole = "architect"
)

// ProjectParty links a company to a project
type ProjectParty struct {
	ProjectID uuid.UUID
	CompanyID uuid.UUID
	Role      ProjectPartyRole
	IsPrimary bool
}
