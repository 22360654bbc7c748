package core

import "github.com/shopspring/decimal"

// Totals are the derived financial figures of one event. They are never
// stored; every read recomputes them from the ledger rows.
type Totals struct {
	TotalExpenses         float64 `json:"total_expenses"`
	IncomeFromExpenses    float64 `json:"income_from_expenses"`
	IncomeWithoutExpenses float64 `json:"income_without_expenses"`
	TotalIncome           float64 `json:"total_income"`
	ProfitLoss            float64 `json:"profit_loss"`
}

// CategoryGroup holds the expenses of one category with their subtotals.
type CategoryGroup struct {
	Category  Category  `json:"category"`
	Expenses  []Expense `json:"expenses"`
	TotalCost float64   `json:"total_cost"`
	Profit    float64   `json:"profit"`
}

// IncomeLine is an expense that may earn income, with its figures.
type IncomeLine struct {
	Expense
	TotalCost float64 `json:"total_cost"`
	Profit    float64 `json:"profit"`
}

// ExpenseTotalCost is quantity times cost per unit.
func ExpenseTotalCost(e Expense) float64 {
	return toFloat(totalCost(e))
}

// ExpenseProfit is the resale margin of an expense, zero when it is not resold.
func ExpenseProfit(e Expense) float64 {
	return toFloat(profit(e))
}

// IncomeTotal is quantity times price per unit.
func IncomeTotal(i StandaloneIncome) float64 {
	return toFloat(incomeTotal(i))
}

// ComputeTotals reduces the rows of one event to its totals.
func ComputeTotals(expenses []Expense, incomes []StandaloneIncome) Totals {
	var cost, fromExpenses, standalone decimal.Decimal
	for _, e := range expenses {
		cost = cost.Add(totalCost(e))
		fromExpenses = fromExpenses.Add(profit(e))
	}
	for _, i := range incomes {
		standalone = standalone.Add(incomeTotal(i))
	}
	income := fromExpenses.Add(standalone)
	return Totals{
		TotalExpenses:         toFloat(cost),
		IncomeFromExpenses:    toFloat(fromExpenses),
		IncomeWithoutExpenses: toFloat(standalone),
		TotalIncome:           toFloat(income),
		ProfitLoss:            toFloat(income.Sub(cost)),
	}
}

// GroupByCategory partitions expenses by category. Known categories come
// first in display order, followed by unknown ones in first seen order.
// Empty groups are omitted and each group keeps the input order.
func GroupByCategory(expenses []Expense) []CategoryGroup {
	byCat := make(map[Category][]Expense)
	var unknown []Category
	for _, e := range expenses {
		if _, seen := byCat[e.Category]; !seen && !e.Category.IsValid() {
			unknown = append(unknown, e.Category)
		}
		byCat[e.Category] = append(byCat[e.Category], e)
	}

	order := append(Categories(), unknown...)
	groups := make([]CategoryGroup, 0, len(byCat))
	for _, c := range order {
		items, ok := byCat[c]
		if !ok {
			continue
		}
		var cost, margin decimal.Decimal
		for _, e := range items {
			cost = cost.Add(totalCost(e))
			margin = margin.Add(profit(e))
		}
		groups = append(groups, CategoryGroup{
			Category:  c,
			Expenses:  items,
			TotalCost: toFloat(cost),
			Profit:    toFloat(margin),
		})
	}
	return groups
}

// IncomeEligible filters out expenses whose category never earns income.
func IncomeEligible(expenses []Expense) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Category.EarnsIncome() {
			out = append(out, e)
		}
	}
	return out
}

// IncomeLines lists the income eligible expenses in input order.
func IncomeLines(expenses []Expense) []IncomeLine {
	eligible := IncomeEligible(expenses)
	out := make([]IncomeLine, 0, len(eligible))
	for _, e := range eligible {
		out = append(out, IncomeLine{Expense: e, TotalCost: ExpenseTotalCost(e), Profit: ExpenseProfit(e)})
	}
	return out
}

func totalCost(e Expense) decimal.Decimal {
	return amount(e.Quantity).Mul(amount(e.CostPerUnit))
}

func incomeTotal(i StandaloneIncome) decimal.Decimal {
	return amount(i.Quantity).Mul(amount(i.PricePerUnit))
}

func profit(e Expense) decimal.Decimal {
	if e.SellingPricePerUnit == nil {
		return decimal.Zero
	}
	return amount(*e.SellingPricePerUnit).Sub(amount(e.CostPerUnit)).Mul(amount(e.Quantity))
}
