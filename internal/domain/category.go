package domain

import "time"

// CategoryKind tells which transaction kind a category applies to.
type CategoryKind string

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

// Valid reports whether the kind is income or expense.
func (k CategoryKind) Valid() bool {
	return k == CategoryIncome || k == CategoryExpense
}

// Category labels transactions for budgeting and reports.
type Category struct {
	ID        string
	Name      string
	Kind      CategoryKind
	Icon      string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks category invariants.
func (c *Category) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if !c.Kind.Valid() {
		return ErrInvalidCategoryKind
	}
	if c.Color != "" {
		if err := ValidateHexColor(c.Color); err != nil {
			return err
		}
	}
	return nil
}
