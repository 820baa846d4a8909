package quickbooks

import (
	"context"
	"fmt"

	"github.com/flocon/backend/internal/domain/integration"
)

const (
	salesItemLine = "SalesItemLineDetail"
	incomeAccount = "Income"
)

// InvoiceGateway implements integration.InvoiceGateway
type InvoiceGateway struct {
	client *Client
}

// NewInvoiceGateway creates a new InvoiceGateway
func NewInvoiceGateway(client *Client) *InvoiceGateway {
	return &InvoiceGateway{client: client}
}

// GetInvoice reads an invoice by id
func (g *InvoiceGateway) GetInvoice(ctx context.Context, realmID string, id string) (*integration.RemoteInvoice, error) {
	resp, err := g.client.read(ctx, realmID, "get_invoice", "invoice", id)
	if err != nil {
		return nil, err
	}
	return invoiceFromResponse(resp)
}

// FindInvoiceByDocNumber returns the invoice numbered docNumber, or nil
func (g *InvoiceGateway) FindInvoiceByDocNumber(ctx context.Context, realmID string, docNumber string) (*integration.RemoteInvoice, error) {
	stmt := fmt.Sprintf("SELECT * FROM Invoice WHERE DocNumber = '%s'", escape(docNumber))
	var found *integration.RemoteInvoice
	err := g.client.query(ctx, realmID, "find_invoice", stmt, func(resp *queryResponse) int {
		if found == nil && len(resp.QueryResponse.Invoice) > 0 {
			inv := invoiceToDomain(resp.QueryResponse.Invoice[0])
			found = &inv
		}
		return len(resp.QueryResponse.Invoice)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// CreateInvoice creates an invoice
func (g *InvoiceGateway) CreateInvoice(ctx context.Context, realmID string, invoice integration.RemoteInvoice) (*integration.RemoteInvoice, error) {
	resp, err := g.client.write(ctx, realmID, "create_invoice", "invoice", invoiceToWire(invoice))
	if err != nil {
		return nil, err
	}
	return invoiceFromResponse(resp)
}

// UpdateInvoice sparse-updates an invoice. The line list is replaced.
func (g *InvoiceGateway) UpdateInvoice(ctx context.Context, realmID string, invoice integration.RemoteInvoice) (*integration.RemoteInvoice, error) {
	if invoice.ID == "" {
		return nil, fmt.Errorf("%w: invoice id is required for update", integration.ErrMissingLocalLink)
	}
	body := invoiceToWire(invoice)
	body.ID, body.SyncToken, body.Sparse = invoice.ID, invoice.SyncToken, true
	resp, err := g.client.write(ctx, realmID, "update_invoice", "invoice", body)
	if err != nil {
		return nil, err
	}
	return invoiceFromResponse(resp)
}

// FindItemByName returns the item called name, or nil
func (g *InvoiceGateway) FindItemByName(ctx context.Context, realmID string, name string) (*integration.RemoteItem, error) {
	stmt := fmt.Sprintf("SELECT * FROM Item WHERE Name = '%s'", escape(name))
	var found *integration.RemoteItem
	err := g.client.query(ctx, realmID, "find_item", stmt, func(resp *queryResponse) int {
		if found == nil && len(resp.QueryResponse.Item) > 0 {
			item := itemToDomain(resp.QueryResponse.Item[0])
			found = &item
		}
		return len(resp.QueryResponse.Item)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// CreateServiceItem creates a service item posting to incomeAccountID
func (g *InvoiceGateway) CreateServiceItem(ctx context.Context, realmID string, name string, incomeAccountID string) (*integration.RemoteItem, error) {
	resp, err := g.client.write(ctx, realmID, "create_item", "item", qbItem{
		Name:             name,
		Type:             "Service",
		IncomeAccountRef: &ref{Value: incomeAccountID},
	})
	if err != nil {
		return nil, err
	}
	if resp.Item == nil {
		return nil, integration.NewRemoteError(integration.ErrRemoteValidation, 200, "", "unexpected response", "missing item")
	}
	item := itemToDomain(*resp.Item)
	return &item, nil
}

// FindIncomeAccount returns the first active income account, restricted to
// subType when given, or nil
func (g *InvoiceGateway) FindIncomeAccount(ctx context.Context, realmID string, subType string) (*integration.RemoteAccount, error) {
	stmt := fmt.Sprintf("SELECT * FROM Account WHERE AccountType = '%s' AND Active = true", incomeAccount)
	if subType != "" {
		stmt += fmt.Sprintf(" AND AccountSubType = '%s'", escape(subType))
	}
	var found *integration.RemoteAccount
	err := g.client.query(ctx, realmID, "find_account", stmt, func(resp *queryResponse) int {
		if found == nil && len(resp.QueryResponse.Account) > 0 {
			a := resp.QueryResponse.Account[0]
			found = &integration.RemoteAccount{
				ID:             a.ID,
				Name:           a.Name,
				AccountType:    a.AccountType,
				AccountSubType: a.AccountSubType,
			}
		}
		return len(resp.QueryResponse.Account)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ListPaymentsForCustomer returns every payment received from customerID
func (g *InvoiceGateway) ListPaymentsForCustomer(ctx context.Context, realmID string, customerID string) ([]integration.RemotePayment, error) {
	stmt := fmt.Sprintf("SELECT * FROM Payment WHERE CustomerRef = '%s'", escape(customerID))
	var payments []integration.RemotePayment
	err := g.client.query(ctx, realmID, "list_payments", stmt, func(resp *queryResponse) int {
		for _, p := range resp.QueryResponse.Payment {
			payments = append(payments, paymentToDomain(p))
		}
		return len(resp.QueryResponse.Payment)
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func invoiceFromResponse(resp *entityResponse) (*integration.RemoteInvoice, error) {
	if resp.Invoice == nil {
		return nil, integration.NewRemoteError(integration.ErrRemoteValidation, 200, "", "unexpected response", "missing invoice")
	}
	inv := invoiceToDomain(*resp.Invoice)
	return &inv, nil
}

func invoiceToWire(inv integration.RemoteInvoice) qbInvoice {
	wire := qbInvoice{
		DocNumber:   inv.DocNumber,
		CustomerRef: &ref{Value: inv.CustomerID},
	}
	if !inv.TxnDate.IsZero() {
		wire.TxnDate = inv.TxnDate.Format(dateLayout)
	}
	for _, l := range inv.Lines {
		line := qbLine{
			Amount:      amount(l.Amount),
			Description: l.Description,
			DetailType:  salesItemLine,
		}
		if l.ItemID != "" {
			line.SalesItemLineDetail = &salesItemLineDetail{ItemRef: ref{Value: l.ItemID}}
		}
		wire.Line = append(wire.Line, line)
	}
	return wire
}

// invoiceToDomain keeps sales lines only; subtotal and discount lines are
// computed by the remote
func invoiceToDomain(wire qbInvoice) integration.RemoteInvoice {
	inv := integration.RemoteInvoice{
		ID:          wire.ID,
		SyncToken:   wire.SyncToken,
		DocNumber:   wire.DocNumber,
		TxnDate:     parseDate(wire.TxnDate),
		TotalAmount: parseAmount(wire.TotalAmt),
		Balance:     parseAmount(wire.Balance),
	}
	if wire.CustomerRef != nil {
		inv.CustomerID = wire.CustomerRef.Value
	}
	for _, l := range wire.Line {
		if l.DetailType != salesItemLine {
			continue
		}
		line := integration.InvoiceLine{
			Amount:      parseAmount(l.Amount),
			Description: l.Description,
		}
		if l.SalesItemLineDetail != nil {
			line.ItemID = l.SalesItemLineDetail.ItemRef.Value
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv
}

func itemToDomain(wire qbItem) integration.RemoteItem {
	item := integration.RemoteItem{ID: wire.ID, Name: wire.Name}
	if wire.IncomeAccountRef != nil {
		item.IncomeAccountID = wire.IncomeAccountRef.Value
	}
	return item
}

// paymentToDomain collects the lines of the payment that link to invoices
func paymentToDomain(wire qbPayment) integration.RemotePayment {
	p := integration.RemotePayment{
		ID:          wire.ID,
		TxnDate:     parseDate(wire.TxnDate),
		TotalAmount: parseAmount(wire.TotalAmt),
	}
	if wire.CustomerRef != nil {
		p.CustomerID = wire.CustomerRef.Value
	}
	for _, l := range wire.Line {
		for _, txn := range l.LinkedTxn {
			if txn.TxnType != "Invoice" {
				continue
			}
			p.Applied = append(p.Applied, integration.PaymentApplication{
				InvoiceID: txn.TxnID,
				Amount:    parseAmount(l.Amount),
			})
		}
	}
	return p
}

var _ integration.InvoiceGateway = (*InvoiceGateway)(nil)
