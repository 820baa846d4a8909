package quickbooks

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wire types of the QuickBooks Online v3 REST API. Only the fields this
// integration reads or writes are declared.

type ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type emailAddress struct {
	Address string `json:"Address,omitempty"`
}

type telephoneNumber struct {
	FreeFormNumber string `json:"FreeFormNumber,omitempty"`
}

// qbCustomer is a Customer; a job is a Customer with Job set and a ParentRef
type qbCustomer struct {
	ID                 string           `json:"Id,omitempty"`
	SyncToken          string           `json:"SyncToken,omitempty"`
	Sparse             bool             `json:"sparse,omitempty"`
	DisplayName        string           `json:"DisplayName,omitempty"`
	CompanyName        string           `json:"CompanyName,omitempty"`
	FullyQualifiedName string           `json:"FullyQualifiedName,omitempty"`
	PrimaryEmailAddr   *emailAddress    `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone       *telephoneNumber `json:"PrimaryPhone,omitempty"`
	Job                bool             `json:"Job,omitempty"`
	ParentRef          *ref             `json:"ParentRef,omitempty"`
	BillWithParent     bool             `json:"BillWithParent,omitempty"`
	Active             *bool            `json:"Active,omitempty"`
}

type qbVendor struct {
	ID               string           `json:"Id,omitempty"`
	SyncToken        string           `json:"SyncToken,omitempty"`
	Sparse           bool             `json:"sparse,omitempty"`
	DisplayName      string           `json:"DisplayName,omitempty"`
	CompanyName      string           `json:"CompanyName,omitempty"`
	PrimaryEmailAddr *emailAddress    `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone     *telephoneNumber `json:"PrimaryPhone,omitempty"`
	Vendor1099       bool             `json:"Vendor1099"`
	Active           *bool            `json:"Active,omitempty"`
}

type salesItemLineDetail struct {
	ItemRef ref `json:"ItemRef"`
}

type linkedTxn struct {
	TxnID   string `json:"TxnId"`
	TxnType string `json:"TxnType"`
}

type qbLine struct {
	Amount              json.Number          `json:"Amount"`
	Description         string               `json:"Description,omitempty"`
	DetailType          string               `json:"DetailType,omitempty"`
	SalesItemLineDetail *salesItemLineDetail `json:"SalesItemLineDetail,omitempty"`
	LinkedTxn           []linkedTxn          `json:"LinkedTxn,omitempty"`
}

type qbInvoice struct {
	ID          string      `json:"Id,omitempty"`
	SyncToken   string      `json:"SyncToken,omitempty"`
	Sparse      bool        `json:"sparse,omitempty"`
	DocNumber   string      `json:"DocNumber,omitempty"`
	TxnDate     string      `json:"TxnDate,omitempty"`
	CustomerRef *ref        `json:"CustomerRef,omitempty"`
	Line        []qbLine    `json:"Line,omitempty"`
	TotalAmt    json.Number `json:"TotalAmt,omitempty"`
	Balance     json.Number `json:"Balance,omitempty"`
}

type qbPayment struct {
	ID          string      `json:"Id"`
	CustomerRef *ref        `json:"CustomerRef,omitempty"`
	TxnDate     string      `json:"TxnDate,omitempty"`
	TotalAmt    json.Number `json:"TotalAmt,omitempty"`
	Line        []qbLine    `json:"Line,omitempty"`
}

type qbItem struct {
	ID               string `json:"Id,omitempty"`
	Name             string `json:"Name"`
	Type             string `json:"Type,omitempty"`
	IncomeAccountRef *ref   `json:"IncomeAccountRef,omitempty"`
}

type qbAccount struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	AccountType    string `json:"AccountType"`
	AccountSubType string `json:"AccountSubType"`
	Active         *bool  `json:"Active,omitempty"`
}

// queryResponse is the envelope of the query endpoint
type queryResponse struct {
	QueryResponse struct {
		Customer      []qbCustomer `json:"Customer"`
		Vendor        []qbVendor   `json:"Vendor"`
		Invoice       []qbInvoice  `json:"Invoice"`
		Payment       []qbPayment  `json:"Payment"`
		Item          []qbItem     `json:"Item"`
		Account       []qbAccount  `json:"Account"`
		StartPosition int          `json:"startPosition"`
		MaxResults    int          `json:"maxResults"`
	} `json:"QueryResponse"`
}

// entityResponse is the envelope of read, create and update calls
type entityResponse struct {
	Customer *qbCustomer `json:"Customer"`
	Vendor   *qbVendor   `json:"Vendor"`
	Invoice  *qbInvoice  `json:"Invoice"`
	Item     *qbItem     `json:"Item"`
}

// fault is the error body. The API uses both "Fault"/"Error" and
// "fault"/"error"; encoding/json matches either.
type fault struct {
	Fault struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
			Element string `json:"element"`
		} `json:"Error"`
		Type string `json:"type"`
	} `json:"Fault"`
}

// Report wire types

type colData struct {
	Value string `json:"value"`
	ID    string `json:"id,omitempty"`
}

type reportRow struct {
	Type    string    `json:"type"`
	Group   string    `json:"group"`
	ColData []colData `json:"ColData"`
	Header  *struct {
		ColData []colData `json:"ColData"`
	} `json:"Header"`
	Rows *struct {
		Row []reportRow `json:"Row"`
	} `json:"Rows"`
	Summary *struct {
		ColData []colData `json:"ColData"`
	} `json:"Summary"`
}

type reportBody struct {
	Header struct {
		ReportName  string `json:"ReportName"`
		ReportBasis string `json:"ReportBasis"`
		StartPeriod string `json:"StartPeriod"`
		EndPeriod   string `json:"EndPeriod"`
	} `json:"Header"`
	Columns struct {
		Column []struct {
			ColTitle string `json:"ColTitle"`
			ColType  string `json:"ColType"`
			MetaData []struct {
				Name  string `json:"Name"`
				Value string `json:"Value"`
			} `json:"MetaData"`
		} `json:"Column"`
	} `json:"Columns"`
	Rows struct {
		Row []reportRow `json:"Row"`
	} `json:"Rows"`
}

const dateLayout = "2006-01-02"

func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func parseAmount(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolPtr(b bool) *bool {
	return &b
}

func isActive(b *bool) bool {
	return b == nil || *b
}

// escape quotes a literal for the query language
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
