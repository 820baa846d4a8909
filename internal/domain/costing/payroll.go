package costing

import (
	"strings"

	"github.com/flocon/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PayrollTxnType is the transaction type of payroll checks
const PayrollTxnType = "Payroll Check"

var nonCostAccountWords = []string{"cash", "checking", "savings", "bank", "payable", "liability"}

// IsCashOrLiability reports whether an account is the funding side of a
// payroll check rather than the labor expense
func IsCashOrLiability(account string) bool {
	name := strings.ToLower(account)
	for _, w := range nonCostAccountWords {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

// PayrollCost is the labor cost booked through payroll checks
type PayrollCost struct {
	Total            decimal.Decimal `json:"total"`
	TransactionCount int             `json:"transaction_count"`
}

// ComputePayrollCost sums payroll check rows of a general ledger report that
// reference jobID (by customer id). The expense side is kept; rows posted to
// cash or liability accounts are the other side of the same check.
func ComputePayrollCost(report *Report, jobID string) PayrollCost {
	result := PayrollCost{Total: decimal.Zero}
	if report == nil {
		return result
	}
	txnCol := report.ColumnIndex(ColumnTxnType, "Transaction Type")
	custCol := report.ColumnIndex(ColumnCustomer, "Customer")
	acctCol := report.ColumnIndex(ColumnAccount, "Account")
	amountCols := locateAmountColumns(report)
	if txnCol < 0 {
		return result
	}

	var walk func(rows []Row, account string)
	walk = func(rows []Row, account string) {
		for _, row := range rows {
			if row.Type == RowTypeSection || len(row.Header) > 0 {
				active := account
				if h := row.HeaderText(); h != "" {
					active = h
				}
				walk(row.Rows, active)
				continue
			}
			if row.Cell(txnCol).Value != PayrollTxnType {
				continue
			}
			if jobID != "" && custCol >= 0 && row.Cell(custCol).ID != jobID {
				continue
			}
			rowAccount := account
			if acctCol >= 0 && row.Cell(acctCol).Value != "" {
				rowAccount = row.Cell(acctCol).Value
			}
			if IsCashOrLiability(rowAccount) {
				continue
			}
			amount := payrollAmount(row, amountCols)
			if amount.IsZero() {
				continue
			}
			result.Total = result.Total.Add(amount)
			result.TransactionCount++
		}
	}
	walk(report.Rows, "")
	result.Total = valueobject.RoundCents(result.Total)
	return result
}

func payrollAmount(row Row, cols amountColumns) decimal.Decimal {
	if cols.debit >= 0 {
		if d, err := valueobject.ParseAmount(row.Cell(cols.debit).Value); err == nil && !d.IsZero() {
			return d.Abs()
		}
	}
	if cols.amount >= 0 {
		if d, err := valueobject.ParseAmount(row.Cell(cols.amount).Value); err == nil {
			return d.Abs()
		}
	}
	return decimal.Zero
}
