package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
)

// Direction is the account linkage of a transaction or a scheduled transaction.
// Its fields are unexported so that an expense always has only a source, an income
// only a destination and a transfer two distinct accounts. The zero value is invalid.
type Direction struct {
	kind        TransactionType
	source      int
	destination int
}

func Expense(source int) (Direction, error) {
	if source <= 0 {
		return Direction{}, fmt.Errorf("%w: expense requires a source account", ErrInvalidDirection)
	}
	return Direction{kind: TransactionExpense, source: source}, nil
}

func Income(destination int) (Direction, error) {
	if destination <= 0 {
		return Direction{}, fmt.Errorf("%w: income requires a destination account", ErrInvalidDirection)
	}
	return Direction{kind: TransactionIncome, destination: destination}, nil
}

func Transfer(source, destination int) (Direction, error) {
	if source <= 0 || destination <= 0 {
		return Direction{}, fmt.Errorf("%w: transfer requires source and destination accounts", ErrInvalidDirection)
	}
	if source == destination {
		return Direction{}, fmt.Errorf("%w: transfer accounts must differ", ErrInvalidDirection)
	}
	return Direction{kind: TransactionTransfer, source: source, destination: destination}, nil
}

// NewDirection builds a Direction from nullable account references as they come
// from storage or API input.
func NewDirection(kind TransactionType, source, destination *int) (Direction, error) {
	switch kind {
	case TransactionExpense:
		if source == nil || destination != nil {
			return Direction{}, fmt.Errorf("%w: expense must set source and leave destination empty", ErrInvalidDirection)
		}
		return Expense(*source)
	case TransactionIncome:
		if source != nil || destination == nil {
			return Direction{}, fmt.Errorf("%w: income must set destination and leave source empty", ErrInvalidDirection)
		}
		return Income(*destination)
	case TransactionTransfer:
		if source == nil || destination == nil {
			return Direction{}, fmt.Errorf("%w: transfer must set both accounts", ErrInvalidDirection)
		}
		return Transfer(*source, *destination)
	default:
		return Direction{}, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidDirection, kind)
	}
}

func (d Direction) Type() TransactionType { return d.kind }

func (d Direction) IsZero() bool { return d.kind == "" }

func (d Direction) Source() (int, bool) { return d.source, d.source != 0 }

func (d Direction) Destination() (int, bool) { return d.destination, d.destination != 0 }

// SourceID returns the source account as a nullable column value.
func (d Direction) SourceID() *int {
	if d.source == 0 {
		return nil
	}
	id := d.source
	return &id
}

// DestinationID returns the destination account as a nullable column value.
func (d Direction) DestinationID() *int {
	if d.destination == 0 {
		return nil
	}
	id := d.destination
	return &id
}

type directionJSON struct {
	Type                 TransactionType `json:"type"`
	SourceAccountID      *int            `json:"source_account_id"`
	DestinationAccountID *int            `json:"destination_account_id"`
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(directionJSON{
		Type:                 d.kind,
		SourceAccountID:      d.SourceID(),
		DestinationAccountID: d.DestinationID(),
	})
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var raw directionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewDirection(raw.Type, raw.SourceAccountID, raw.DestinationAccountID)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
