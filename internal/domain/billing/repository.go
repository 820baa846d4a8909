package billing

import (
	"context"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// ProjectRepository reads projects and stores their remote links
type ProjectRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Project, error)
	FindByRemoteJobID(ctx context.Context, remoteJobID string) (*Project, error)
	FindActive(ctx context.Context) ([]*Project, error)
	// FindLinked returns projects with a stored remote job id
	FindLinked(ctx context.Context) ([]*Project, error)
	Save(ctx context.Context, project *Project) error
}

// CompanyRepository reads companies and stores their remote links
type CompanyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Company, error)
	// FindByRemoteID finds the company linked to the remote party of kind
	FindByRemoteID(ctx context.Context, kind integration.PartyKind, remoteID string) (*Company, error)
	// FindByName matches case-insensitively
	FindByName(ctx context.Context, name string) (*Company, error)
	Save(ctx context.Context, company *Company) error
}

// PartyResolver resolves the parties of a project
type PartyResolver interface {
	// PrimaryCustomer returns the project's primary customer company or
	// shared.ErrNotFound
	PrimaryCustomer(ctx context.Context, projectID uuid.UUID) (*Company, error)
}

// PayApplicationRepository persists pay applications
type PayApplicationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PayApplication, error)
	// FindByProject returns live pay applications ordered by sequence number
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]*PayApplication, error)
	// FindAllByProject returns every pay application of the project, deleted
	// ones included, in creation order
	FindAllByProject(ctx context.Context, projectID uuid.UUID) ([]*PayApplication, error)
	// FindWithRemoteInvoice returns live pay applications that have been invoiced remotely
	FindWithRemoteInvoice(ctx context.Context) ([]*PayApplication, error)
	Save(ctx context.Context, app *PayApplication) error
	SaveAll(ctx context.Context, apps []*PayApplication) error
}

// ChangeOrderRepository persists change orders
type ChangeOrderRepository interface {
	// FindByProject returns every change order of the project, deleted ones included
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]*ChangeOrder, error)
	SaveAll(ctx context.Context, orders []*ChangeOrder) error
}

// ProjectIDLister lists the projects that own billing records
type ProjectIDLister interface {
	ProjectIDsWithPayApplications(ctx context.Context) ([]uuid.UUID, error)
}
