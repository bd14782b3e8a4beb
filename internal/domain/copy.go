package domain

import "time"

// Condition describes the physical state of a copy.
type Condition string

// Copy conditions. Only Good copies circulate.
const (
	ConditionGood    Condition = "Good"
	ConditionDamaged Condition = "Damaged"
	ConditionLost    Condition = "Lost"
)

// ValidCondition reports whether s is a known condition value.
func ValidCondition(s string) bool {
	switch Condition(s) {
	case ConditionGood, ConditionDamaged, ConditionLost:
		return true
	}
	return false
}

// Copy is one physical instance of a book title.
//
// Invariant: Borrowed agrees with the loan ledger - a copy is borrowed iff
// exactly one open loan references it. The store's allocation and return
// operations maintain this; nothing else may flip the flag.
type Copy struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Condition Condition `json:"condition"`
	Borrowed  bool      `json:"is_borrowed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCopy creates an available copy in Good condition.
func NewCopy(id, bookID string) *Copy {
	return &Copy{
		ID:        id,
		BookID:    bookID,
		Condition: ConditionGood,
		Borrowed:  false,
		CreatedAt: time.Now().UTC(),
	}
}

// Eligible reports whether the copy can be allocated to a loan:
// Good condition and not currently borrowed.
func (c *Copy) Eligible() bool {
	return c.Condition == ConditionGood && !c.Borrowed
}
