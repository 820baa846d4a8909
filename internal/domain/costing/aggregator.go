package costing

import (
	"sort"

	"github.com/flocon/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// NetCost is the cost aggregated from a general ledger report
type NetCost struct {
	Total            decimal.Decimal            `json:"total"`
	Debit            decimal.Decimal            `json:"debit"`
	Credit           decimal.Decimal            `json:"credit"`
	ByAccount        map[string]decimal.Decimal `json:"by_account"`
	Accounts         []string                   `json:"accounts"`
	TransactionCount int                        `json:"transaction_count"`
	// MalformedCells counts amount cells that could not be parsed
	MalformedCells int `json:"malformed_cells"`
}

// amountColumns locates the amount columns of a report. When the report has
// no debit/credit columns the signed amount column is used.
type amountColumns struct {
	debit  int
	credit int
	amount int
}

func locateAmountColumns(report *Report) amountColumns {
	return amountColumns{
		debit:  report.ColumnIndex(ColumnDebit, "Debit"),
		credit: report.ColumnIndex(ColumnCredit, "Credit"),
		amount: report.ColumnIndex(ColumnAmount, "Amount"),
	}
}

type costAccumulator struct {
	classifier AccountClassifier
	columns    amountColumns
	result     NetCost
}

// ComputeNetCost walks the report tree and sums debit minus credit over the
// data rows of cost accounts. Section headers set the account for the rows
// beneath them; summary rows are never read, so totals are not double counted.
func ComputeNetCost(report *Report, classifier AccountClassifier) NetCost {
	acc := &costAccumulator{
		classifier: classifier,
		result: NetCost{
			Total:     decimal.Zero,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
			ByAccount: make(map[string]decimal.Decimal),
			Accounts:  []string{},
		},
	}
	if report == nil {
		return acc.result
	}
	acc.columns = locateAmountColumns(report)
	acc.walk(report.Rows, "")

	acc.result.Total = valueobject.RoundCents(acc.result.Debit.Sub(acc.result.Credit))
	acc.result.Debit = valueobject.RoundCents(acc.result.Debit)
	acc.result.Credit = valueobject.RoundCents(acc.result.Credit)
	for name := range acc.result.ByAccount {
		acc.result.ByAccount[name] = valueobject.RoundCents(acc.result.ByAccount[name])
		acc.result.Accounts = append(acc.result.Accounts, name)
	}
	sort.Strings(acc.result.Accounts)
	return acc.result
}

func (a *costAccumulator) walk(rows []Row, account string) {
	for _, row := range rows {
		switch {
		case row.Type == RowTypeSection || len(row.Header) > 0:
			active := account
			if header := row.HeaderText(); header != "" {
				active = header
			}
			a.walk(row.Rows, active)
		case len(row.Cells) > 0:
			a.addDataRow(row, account)
		}
	}
}

func (a *costAccumulator) addDataRow(row Row, account string) {
	if account == "" || !a.classifier.IsCost(account) {
		return
	}

	var debit, credit decimal.Decimal
	if a.columns.debit >= 0 || a.columns.credit >= 0 {
		debit = a.parse(row.Cell(a.columns.debit).Value)
		credit = a.parse(row.Cell(a.columns.credit).Value)
	} else {
		amount := a.parse(row.Cell(a.columns.amount).Value)
		if amount.IsNegative() {
			credit = amount.Neg()
		} else {
			debit = amount
		}
	}
	if debit.IsZero() && credit.IsZero() {
		return
	}

	a.result.Debit = a.result.Debit.Add(debit)
	a.result.Credit = a.result.Credit.Add(credit)
	a.result.ByAccount[account] = a.result.ByAccount[account].Add(debit.Sub(credit))
	a.result.TransactionCount++
}

func (a *costAccumulator) parse(value string) decimal.Decimal {
	d, err := valueobject.ParseAmount(value)
	if err != nil {
		a.result.MalformedCells++
		return decimal.Zero
	}
	return d
}
