package costing

import (
	"sort"
	"strings"

	"github.com/flocon/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Section classifies a profit and loss section
type Section string

const (
	SectionIncome      Section = "income"
	SectionCostOfGoods Section = "cost_of_goods"
	SectionExpenses    Section = "expenses"
	SectionOther       Section = "other"
)

// classifySection maps a section header to a Section. Headers that name
// nothing recognizable inherit the enclosing section.
func classifySection(header string, parent Section) Section {
	h := strings.ToLower(header)
	switch {
	case strings.Contains(h, "cost of goods") || strings.Contains(h, "cogs"):
		return SectionCostOfGoods
	case strings.Contains(h, "income") || strings.Contains(h, "revenue"):
		return SectionIncome
	case strings.Contains(h, "expense"):
		return SectionExpenses
	default:
		return parent
	}
}

// ProfitAndLoss summarizes a profit and loss report filtered by job
type ProfitAndLoss struct {
	Income          decimal.Decimal `json:"income"`
	CostOfGoods     decimal.Decimal `json:"cost_of_goods"`
	Expenses        decimal.Decimal `json:"expenses"`
	GrossProfit     decimal.Decimal `json:"gross_profit"`
	NetIncome       decimal.Decimal `json:"net_income"`
	IncomeAccounts  []string        `json:"income_accounts"`
	ExpenseAccounts []string        `json:"expense_accounts"`
	Basis           AccountingBasis `json:"basis"`
}

type plAccumulator struct {
	amountColumn int
	income       decimal.Decimal
	cogs         decimal.Decimal
	expenses     decimal.Decimal
	incomeNames  map[string]struct{}
	expenseNames map[string]struct{}
}

// SummarizeProfitAndLoss walks a profit and loss report. Data rows name the
// account in their first cell and carry the amount in the amount column (the
// second column when none is labelled). Summary rows are skipped.
func SummarizeProfitAndLoss(report *Report) ProfitAndLoss {
	acc := &plAccumulator{
		amountColumn: 1,
		income:       decimal.Zero,
		cogs:         decimal.Zero,
		expenses:     decimal.Zero,
		incomeNames:  make(map[string]struct{}),
		expenseNames: make(map[string]struct{}),
	}
	result := ProfitAndLoss{}
	if report != nil {
		if idx := report.ColumnIndex(ColumnAmount, "Total", "Amount"); idx >= 0 {
			acc.amountColumn = idx
		}
		acc.walk(report.Rows, SectionOther)
		result.Basis = report.Basis
	}

	result.Income = valueobject.RoundCents(acc.income)
	result.CostOfGoods = valueobject.RoundCents(acc.cogs)
	result.Expenses = valueobject.RoundCents(acc.expenses)
	result.GrossProfit = result.Income.Sub(result.CostOfGoods)
	result.NetIncome = result.GrossProfit.Sub(result.Expenses)
	result.IncomeAccounts = sortedKeys(acc.incomeNames)
	result.ExpenseAccounts = sortedKeys(acc.expenseNames)
	return result
}

func (a *plAccumulator) walk(rows []Row, section Section) {
	for _, row := range rows {
		if row.Type == RowTypeSection || len(row.Header) > 0 {
			a.walk(row.Rows, classifySection(row.HeaderText(), section))
			continue
		}
		a.addDataRow(row, section)
	}
}

func (a *plAccumulator) addDataRow(row Row, section Section) {
	name := strings.TrimSpace(row.Cell(0).Value)
	if name == "" {
		return
	}
	amount, err := valueobject.ParseAmount(row.Cell(a.amountColumn).Value)
	if err != nil || amount.IsZero() {
		return
	}
	amount = amount.Abs()

	switch section {
	case SectionIncome:
		a.income = a.income.Add(amount)
		a.incomeNames[name] = struct{}{}
	case SectionCostOfGoods:
		a.cogs = a.cogs.Add(amount)
		a.expenseNames[name] = struct{}{}
	case SectionExpenses:
		a.expenses = a.expenses.Add(amount)
		a.expenseNames[name] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
