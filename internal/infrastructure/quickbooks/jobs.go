package quickbooks

import (
	"context"
	"fmt"

	"github.com/flocon/backend/internal/domain/integration"
)

// JobGateway implements integration.JobGateway. A job is stored remotely as
// a sub-customer: a Customer with Job set and a ParentRef.
type JobGateway struct {
	client *Client
}

// NewJobGateway creates a new JobGateway
func NewJobGateway(client *Client) *JobGateway {
	return &JobGateway{client: client}
}

// GetJob reads a job by id
func (g *JobGateway) GetJob(ctx context.Context, realmID string, id string) (*integration.BillingChild, error) {
	resp, err := g.client.read(ctx, realmID, "get_job", "customer", id)
	if err != nil {
		return nil, err
	}
	return jobFromResponse(resp)
}

// FindJobsByPrefix returns active and inactive jobs whose display name starts
// with prefix
func (g *JobGateway) FindJobsByPrefix(ctx context.Context, realmID string, prefix string) ([]integration.BillingChild, error) {
	if prefix == "" {
		return nil, nil
	}
	stmt := fmt.Sprintf("SELECT * FROM Customer WHERE DisplayName LIKE '%s%%' AND Active IN (true, false)", escape(prefix))

	var jobs []integration.BillingChild
	err := g.client.query(ctx, realmID, "find_jobs", stmt, func(resp *queryResponse) int {
		for _, c := range resp.QueryResponse.Customer {
			if c.Job {
				jobs = append(jobs, customerToJob(c))
			}
		}
		return len(resp.QueryResponse.Customer)
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// CreateJob creates a job under job.ParentID
func (g *JobGateway) CreateJob(ctx context.Context, realmID string, job integration.BillingChild) (*integration.BillingChild, error) {
	if job.ParentID == "" {
		return nil, fmt.Errorf("%w: job %q has no billing parent", integration.ErrMissingLocalLink, job.DisplayName)
	}
	resp, err := g.client.write(ctx, realmID, "create_job", "customer", jobToCustomer(job))
	if err != nil {
		return nil, err
	}
	return jobFromResponse(resp)
}

// UpdateJob sparse-updates a job. job.SyncToken must be the token last read.
func (g *JobGateway) UpdateJob(ctx context.Context, realmID string, job integration.BillingChild) (*integration.BillingChild, error) {
	if job.ID == "" {
		return nil, fmt.Errorf("%w: job id is required for update", integration.ErrMissingLocalLink)
	}
	body := jobToCustomer(job)
	body.ID, body.SyncToken, body.Sparse = job.ID, job.SyncToken, true
	resp, err := g.client.write(ctx, realmID, "update_job", "customer", body)
	if err != nil {
		return nil, err
	}
	return jobFromResponse(resp)
}

func jobFromResponse(resp *entityResponse) (*integration.BillingChild, error) {
	if resp.Customer == nil {
		return nil, integration.NewRemoteError(integration.ErrRemoteValidation, 200, "", "unexpected response", "missing customer")
	}
	job := customerToJob(*resp.Customer)
	return &job, nil
}

func customerToJob(c qbCustomer) integration.BillingChild {
	job := integration.BillingChild{
		ID:             c.ID,
		SyncToken:      c.SyncToken,
		DisplayName:    c.DisplayName,
		BillWithParent: c.BillWithParent,
		Active:         isActive(c.Active),
	}
	if c.ParentRef != nil {
		job.ParentID = c.ParentRef.Value
	}
	return job
}

func jobToCustomer(job integration.BillingChild) qbCustomer {
	return qbCustomer{
		DisplayName:    job.DisplayName,
		Job:            true,
		ParentRef:      &ref{Value: job.ParentID},
		BillWithParent: job.BillWithParent,
		Active:         boolPtr(job.Active),
	}
}

var _ integration.JobGateway = (*JobGateway)(nil)
