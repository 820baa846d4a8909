// Package costing aggregates project cost from the hierarchical financial
// reports of the accounting system. Everything here is pure: reports in,
// totals out.
package costing

import (
	"fmt"
	"strings"
	"time"
)

// Column keys of report columns used by the aggregators
const (
	ColumnDebit    = "debt_amt"
	ColumnCredit   = "credit_amt"
	ColumnAmount   = "subt_nat_amount"
	ColumnTxnType  = "txn_type"
	ColumnCustomer = "cust_name"
	ColumnAccount  = "account_name"
	ColumnTxnDate  = "tx_date"
)

// AccountingBasis selects accrual or cash reports
type AccountingBasis string

const (
	BasisAccrual AccountingBasis = "Accrual"
	BasisCash    AccountingBasis = "Cash"
)

// IsValid returns true if the basis is known
func (b AccountingBasis) IsValid() bool {
	return b == BasisAccrual || b == BasisCash
}

// DateRange is an inclusive range of report dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DateLayout is the date format of report parameters
const DateLayout = "2006-01-02"

// AllTime is the default range used when none is given
func AllTime() DateRange {
	return DateRange{
		Start: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

// ParseDateRange parses "YYYY-MM-DD" bounds; an empty bound takes the
// AllTime default
func ParseDateRange(start, end string) (DateRange, error) {
	r := AllTime()
	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		r.Start = t
	}
	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		r.End = t
	}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return r, nil
}

// StartString formats the start bound
func (r DateRange) StartString() string { return r.Start.Format(DateLayout) }

// EndString formats the end bound
func (r DateRange) EndString() string { return r.End.Format(DateLayout) }

// RowType distinguishes section rows from data rows
type RowType string

const (
	RowTypeSection RowType = "Section"
	RowTypeData    RowType = "Data"
)

// Cell is one column value; ID carries the remote id of a referenced entity
type Cell struct {
	Value string
	ID    string
}

// Column describes one report column
type Column struct {
	Title string
	Type  string
	Key   string
}

// Row is a node of the report tree. A section row has a Header naming the
// account or group, child Rows and a Summary of totals. A data row has Cells.
type Row struct {
	Type    RowType
	Group   string
	Header  []Cell
	Cells   []Cell
	Rows    []Row
	Summary []Cell
}

// HeaderText returns the first header cell value
func (r Row) HeaderText() string {
	if len(r.Header) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Header[0].Value)
}

// Cell returns the cell at index or an empty cell
func (r Row) Cell(index int) Cell {
	if index < 0 || index >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[index]
}

// Report is a parsed financial report
type Report struct {
	Name        string
	Basis       AccountingBasis
	StartPeriod string
	EndPeriod   string
	Columns     []Column
	Rows        []Row
}

// ColumnIndex returns the index of the first column whose key or title
// matches one of names (case-insensitive), or -1
func (r *Report) ColumnIndex(names ...string) int {
	for _, name := range names {
		for i, c := range r.Columns {
			if strings.EqualFold(c.Key, name) || strings.EqualFold(c.Title, name) {
				return i
			}
		}
	}
	return -1
}
