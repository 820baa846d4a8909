package billing

import (
	"strings"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
)

// CompanyRole is a role a company can be synced as
type CompanyRole string

const (
	CompanyRoleCustomer      CompanyRole = "customer"
	CompanyRoleVendor        CompanyRole = "vendor"
	CompanyRoleSubcontractor CompanyRole = "subcontractor"
)

// IsValid returns true if the role is known
func (r CompanyRole) IsValid() bool {
	switch r {
	case CompanyRoleCustomer, CompanyRoleVendor, CompanyRoleSubcontractor:
		return true
	default:
		return false
	}
}

// PartyKind returns the remote subtype the role is stored as.
// Subcontractors are vendors flagged for 1099 reporting.
func (r CompanyRole) PartyKind() integration.PartyKind {
	if r == CompanyRoleCustomer {
		return integration.PartyKindCustomer
	}
	return integration.PartyKindVendor
}

// Is1099 returns true if the remote record carries the 1099 flag
func (r CompanyRole) Is1099() bool {
	return r == CompanyRoleSubcontractor
}

// Company is a customer, vendor or subcontractor. The remote customer and
// remote vendor are separate records, so a company playing both roles keeps
// one id per party kind. Vendors and subcontractors share the vendor id.
type Company struct {
	shared.BaseEntity
	Name             string
	Email            string
	Phone            string
	RemoteCustomerID string
	RemoteVendorID   string
	IsCustomer       bool
	IsVendor         bool
	IsSubcontractor  bool
	LastSyncedAt     *time.Time
}

// NewCompany creates a company with the given roles
func NewCompany(name string, roles ...CompanyRole) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_COMPANY_NAME", "Company name cannot be empty")
	}
	c := &Company{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
	}
	for _, role := range roles {
		if err := c.AddRole(role); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddRole flags the company with role
func (c *Company) AddRole(role CompanyRole) error {
	switch role {
	case CompanyRoleCustomer:
		c.IsCustomer = true
	case CompanyRoleVendor:
		c.IsVendor = true
	case CompanyRoleSubcontractor:
		c.IsVendor = true
		c.IsSubcontractor = true
	default:
		return shared.NewDomainError("INVALID_COMPANY_ROLE", "Unknown company role: "+string(role))
	}
	return nil
}

// HasRole returns true if the company plays role
func (c *Company) HasRole(role CompanyRole) bool {
	switch role {
	case CompanyRoleCustomer:
		return c.IsCustomer
	case CompanyRoleVendor:
		return c.IsVendor
	case CompanyRoleSubcontractor:
		return c.IsSubcontractor
	default:
		return false
	}
}

// RemoteID returns the remote id stored for kind
func (c *Company) RemoteID(kind integration.PartyKind) string {
	if kind == integration.PartyKindCustomer {
		return c.RemoteCustomerID
	}
	return c.RemoteVendorID
}

// LinkRemote stores the remote id of kind after a successful sync
func (c *Company) LinkRemote(kind integration.PartyKind, remoteID string, now time.Time) {
	if kind == integration.PartyKindCustomer {
		c.RemoteCustomerID = remoteID
	} else {
		c.RemoteVendorID = remoteID
	}
	synced := now
	c.LastSyncedAt = &synced
	c.Touch(now)
}

// ToRemote builds the remote party for role
func (c *Company) ToRemote(role CompanyRole) integration.BillingParent {
	return integration.BillingParent{
		ID:          c.RemoteID(role.PartyKind()),
		Kind:        role.PartyKind(),
		DisplayName: c.Name,
		CompanyName: c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		Is1099:      role.Is1099(),
		Active:      true,
	}
}
