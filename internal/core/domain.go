package core

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Expense categories. Values are the labels stored in the database and sent
// over the wire.
const (
	CategoryBeverages            Category = "Getränke"
	CategoryFood                 Category = "Speisen"
	CategoryOther                Category = "Sonstige"
	CategoryExpenseWithoutIncome Category = "Ausgabe ohne Einnahme"
)

// MaxNameLength bounds every user supplied name, in runes.
const MaxNameLength = 200

// MaxAmount bounds quantities and per unit prices so that every derived
// total stays a finite float64.
const MaxAmount = 1e9

type (
	UserID int64

	Category string

	User struct {
		ID           UserID
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Session is one login. Its ID is the jti of the session token.
	Session struct {
		ID        string
		UserID    UserID
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	// EventRef locates an event together with its owner.
	EventRef struct {
		Owner   UserID
		EventID int64
	}

	Event struct {
		ID        int64     `json:"id"`
		Owner     UserID    `json:"-"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	Responsible struct {
		ID        int64     `json:"id"`
		EventID   int64     `json:"event_id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Expense is a cost line item. SellingPricePerUnit is nil when the item
	// is not resold; an explicit zero is a present price of zero.
	Expense struct {
		ID                  int64     `json:"id"`
		EventID             int64     `json:"event_id"`
		Category            Category  `json:"category"`
		Name                string    `json:"name"`
		Quantity            float64   `json:"quantity"`
		CostPerUnit         float64   `json:"cost_per_unit"`
		SellingPricePerUnit *float64  `json:"selling_price_per_unit"`
		CreatedAt           time.Time `json:"created_at"`
	}

	// StandaloneIncome is income not tied to an expense. Total is derived
	// on load and never stored.
	StandaloneIncome struct {
		ID           int64     `json:"id"`
		EventID      int64     `json:"event_id"`
		Name         string    `json:"name"`
		Quantity     float64   `json:"quantity"`
		PricePerUnit float64   `json:"price_per_unit"`
		Total        float64   `json:"total"`
		CreatedAt    time.Time `json:"created_at"`
	}

	ExpenseInput struct {
		Category            Category
		Name                string
		Quantity            float64
		CostPerUnit         float64
		SellingPricePerUnit *float64
	}

	IncomeInput struct {
		Name         string
		Quantity     float64
		PricePerUnit float64
	}

	// EventSummary is one row of the event list.
	EventSummary struct {
		Event
		ResponsibleCount int `json:"responsible_count"`
		ExpenseCount     int `json:"expense_count"`
		IncomeCount      int `json:"income_count"`
		Totals
	}

	// EventDetail is an event with all of its children in insertion order.
	EventDetail struct {
		Event
		Responsibles []Responsible      `json:"responsibles"`
		Expenses     []Expense          `json:"expenses"`
		Incomes      []StandaloneIncome `json:"incomeWithoutExpense"`
		Totals       Totals             `json:"totals"`
		Groups       []CategoryGroup    `json:"categories"`

		// IncomeEligible holds the expenses whose category may be resold.
		IncomeEligible []IncomeLine `json:"income_eligible_expenses"`
	}
)

// Categories returns the known categories in display order.
func Categories() []Category {
	return []Category{
		CategoryBeverages,
		CategoryFood,
		CategoryOther,
		CategoryExpenseWithoutIncome,
	}
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryBeverages, CategoryFood, CategoryOther, CategoryExpenseWithoutIncome:
		return true
	default:
		return false
	}
}

// EarnsIncome reports whether expenses of this category may be resold.
func (c Category) EarnsIncome() bool {
	return c != CategoryExpenseWithoutIncome
}

// NormalizeName trims a user supplied name and checks its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// Normalize trims the name and validates every field of the input.
func (in *ExpenseInput) Normalize() error {
	name, err := NormalizeName(in.Name)
	if err != nil {
		return err
	}
	in.Name = name
	in.Category = Category(strings.TrimSpace(string(in.Category)))
	if !in.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !isFinite(in.Quantity) || in.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !isFinite(in.CostPerUnit) || in.CostPerUnit < 0 {
		return ErrInvalidCost
	}
	if p := in.SellingPricePerUnit; p != nil && (!isFinite(*p) || *p < 0) {
		return ErrInvalidSellingPrice
	}
	if err := checkBounds("quantity", in.Quantity); err != nil {
		return err
	}
	if err := checkBounds("cost_per_unit", in.CostPerUnit); err != nil {
		return err
	}
	if p := in.SellingPricePerUnit; p != nil {
		return checkBounds("selling_price_per_unit", *p)
	}
	return nil
}

// Normalize trims the name and validates every field of the input.
func (in *IncomeInput) Normalize() error {
	name, err := NormalizeName(in.Name)
	if err != nil {
		return err
	}
	in.Name = name
	if !isFinite(in.Quantity) || in.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !isFinite(in.PricePerUnit) || in.PricePerUnit <= 0 {
		return ErrInvalidPrice
	}
	if err := checkBounds("quantity", in.Quantity); err != nil {
		return err
	}
	return checkBounds("price_per_unit", in.PricePerUnit)
}

func checkBounds(field string, v float64) error {
	if v > MaxAmount {
		return &ValidationError{Field: field, Reason: "must be at most " + strconv.FormatFloat(MaxAmount, 'f', -1, 64)}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
