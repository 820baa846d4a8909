package quickbooks

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/flocon/backend/internal/domain/integration"
)

// PartyGateway implements integration.PartyGateway over customers and vendors
type PartyGateway struct {
	client *Client
}

// NewPartyGateway creates a new PartyGateway
func NewPartyGateway(client *Client) *PartyGateway {
	return &PartyGateway{client: client}
}

func entityFor(kind integration.PartyKind) (string, error) {
	switch kind {
	case integration.PartyKindCustomer:
		return "customer", nil
	case integration.PartyKindVendor:
		return "vendor", nil
	default:
		return "", fmt.Errorf("quickbooks: unknown party kind %q", kind)
	}
}

// GetParty reads a customer or vendor by id
func (g *PartyGateway) GetParty(ctx context.Context, realmID string, kind integration.PartyKind, id string) (*integration.BillingParent, error) {
	entity, err := entityFor(kind)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.read(ctx, realmID, "get_party", entity, id)
	if err != nil {
		return nil, err
	}
	return partyFromResponse(resp, kind)
}

// FindPartiesByName searches active and inactive parties on the first word of
// name. Callers compare normalized names to pick the match.
func (g *PartyGateway) FindPartiesByName(ctx context.Context, realmID string, kind integration.PartyKind, name string) ([]integration.BillingParent, error) {
	entity, err := entityFor(kind)
	if err != nil {
		return nil, err
	}
	word := firstWord(name)
	if word == "" {
		return nil, nil
	}
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE DisplayName LIKE '%%%s%%' AND Active IN (true, false)",
		strings.ToUpper(entity[:1])+entity[1:], escape(word))

	var parties []integration.BillingParent
	err = g.client.query(ctx, realmID, "find_parties", stmt, func(resp *queryResponse) int {
		if kind == integration.PartyKindCustomer {
			for _, c := range resp.QueryResponse.Customer {
				if !c.Job {
					parties = append(parties, customerToParty(c))
				}
			}
			return len(resp.QueryResponse.Customer)
		}
		for _, v := range resp.QueryResponse.Vendor {
			parties = append(parties, vendorToParty(v))
		}
		return len(resp.QueryResponse.Vendor)
	})
	if err != nil {
		return nil, err
	}
	return parties, nil
}

// CreateParty creates a customer or vendor
func (g *PartyGateway) CreateParty(ctx context.Context, realmID string, party integration.BillingParent) (*integration.BillingParent, error) {
	return g.writeParty(ctx, realmID, "create_party", party, false)
}

// UpdateParty sparse-updates a customer or vendor. party.SyncToken must be
// the token last read.
func (g *PartyGateway) UpdateParty(ctx context.Context, realmID string, party integration.BillingParent) (*integration.BillingParent, error) {
	if party.ID == "" {
		return nil, fmt.Errorf("%w: party id is required for update", integration.ErrMissingLocalLink)
	}
	return g.writeParty(ctx, realmID, "update_party", party, true)
}

func (g *PartyGateway) writeParty(ctx context.Context, realmID, operation string, party integration.BillingParent, update bool) (*integration.BillingParent, error) {
	entity, err := entityFor(party.Kind)
	if err != nil {
		return nil, err
	}
	var body any
	if party.Kind == integration.PartyKindCustomer {
		c := partyToCustomer(party)
		if update {
			c.ID, c.SyncToken, c.Sparse = party.ID, party.SyncToken, true
		}
		body = c
	} else {
		v := partyToVendor(party)
		if update {
			v.ID, v.SyncToken, v.Sparse = party.ID, party.SyncToken, true
		}
		body = v
	}
	resp, err := g.client.write(ctx, realmID, operation, entity, body)
	if err != nil {
		return nil, err
	}
	return partyFromResponse(resp, party.Kind)
}

// ListVendors returns active vendors, optionally only 1099 contractors
func (g *PartyGateway) ListVendors(ctx context.Context, realmID string, onlyContractors bool) ([]integration.BillingParent, error) {
	stmt := "SELECT * FROM Vendor WHERE Active = true"
	var vendors []integration.BillingParent
	err := g.client.query(ctx, realmID, "list_vendors", stmt, func(resp *queryResponse) int {
		for _, v := range resp.QueryResponse.Vendor {
			if onlyContractors && !v.Vendor1099 {
				continue
			}
			vendors = append(vendors, vendorToParty(v))
		}
		return len(resp.QueryResponse.Vendor)
	})
	if err != nil {
		return nil, err
	}
	return vendors, nil
}

// ListCustomers returns active customers that are not jobs
func (g *PartyGateway) ListCustomers(ctx context.Context, realmID string) ([]integration.BillingParent, error) {
	stmt := "SELECT * FROM Customer WHERE Active = true"
	var customers []integration.BillingParent
	err := g.client.query(ctx, realmID, "list_customers", stmt, func(resp *queryResponse) int {
		for _, c := range resp.QueryResponse.Customer {
			if c.Job || c.ParentRef != nil {
				continue
			}
			customers = append(customers, customerToParty(c))
		}
		return len(resp.QueryResponse.Customer)
	})
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func partyFromResponse(resp *entityResponse, kind integration.PartyKind) (*integration.BillingParent, error) {
	switch {
	case kind == integration.PartyKindCustomer && resp.Customer != nil:
		p := customerToParty(*resp.Customer)
		return &p, nil
	case kind == integration.PartyKindVendor && resp.Vendor != nil:
		p := vendorToParty(*resp.Vendor)
		return &p, nil
	}
	return nil, integration.NewRemoteError(integration.ErrRemoteValidation, 200, "", "unexpected response", "missing "+string(kind))
}

func customerToParty(c qbCustomer) integration.BillingParent {
	p := integration.BillingParent{
		ID:          c.ID,
		SyncToken:   c.SyncToken,
		Kind:        integration.PartyKindCustomer,
		DisplayName: c.DisplayName,
		CompanyName: c.CompanyName,
		Active:      isActive(c.Active),
	}
	if c.PrimaryEmailAddr != nil {
		p.Email = c.PrimaryEmailAddr.Address
	}
	if c.PrimaryPhone != nil {
		p.Phone = c.PrimaryPhone.FreeFormNumber
	}
	return p
}

func vendorToParty(v qbVendor) integration.BillingParent {
	p := integration.BillingParent{
		ID:          v.ID,
		SyncToken:   v.SyncToken,
		Kind:        integration.PartyKindVendor,
		DisplayName: v.DisplayName,
		CompanyName: v.CompanyName,
		Is1099:      v.Vendor1099,
		Active:      isActive(v.Active),
	}
	if v.PrimaryEmailAddr != nil {
		p.Email = v.PrimaryEmailAddr.Address
	}
	if v.PrimaryPhone != nil {
		p.Phone = v.PrimaryPhone.FreeFormNumber
	}
	return p
}

func partyToCustomer(p integration.BillingParent) qbCustomer {
	c := qbCustomer{
		DisplayName: p.DisplayName,
		CompanyName: p.CompanyName,
		Active:      boolPtr(p.Active),
	}
	if p.Email != "" {
		c.PrimaryEmailAddr = &emailAddress{Address: p.Email}
	}
	if p.Phone != "" {
		c.PrimaryPhone = &telephoneNumber{FreeFormNumber: p.Phone}
	}
	return c
}

func partyToVendor(p integration.BillingParent) qbVendor {
	v := qbVendor{
		DisplayName: p.DisplayName,
		CompanyName: p.CompanyName,
		Vendor1099:  p.Is1099,
		Active:      boolPtr(p.Active),
	}
	if p.Email != "" {
		v.PrimaryEmailAddr = &emailAddress{Address: p.Email}
	}
	if p.Phone != "" {
		v.PrimaryPhone = &telephoneNumber{FreeFormNumber: p.Phone}
	}
	return v
}

// firstWord returns the first whitespace-separated word of name with
// surrounding punctuation trimmed
func firstWord(name string) string {
	for _, f := range strings.Fields(name) {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			return w
		}
	}
	return ""
}

var _ integration.PartyGateway = (*PartyGateway)(nil)
