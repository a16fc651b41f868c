package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

const (
	entityAccount  = "account"
	entityCategory = "category"
)

func loadAccount(ctx context.Context, tx Tx, userID, id int) (*models.Account, error) {
	a, err := tx.GetAccount(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil, &DanglingReferenceError{Entity: entityAccount, ID: id, Reason: "does not exist"}
	case err != nil:
		return nil, fmt.Errorf("loadAccount: %w", err)
	case a.DeletedAt != nil:
		return nil, &DanglingReferenceError{Entity: entityAccount, ID: id, Reason: "was deleted"}
	case a.UserID != userID:
		return nil, &DanglingReferenceError{Entity: entityAccount, ID: id, Reason: "belongs to another user"}
	}
	return a, nil
}

func loadCategory(ctx context.Context, tx Tx, userID, id int, kind models.TransactionType) (*models.Category, error) {
	c, err := tx.GetCategory(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil, &DanglingReferenceError{Entity: entityCategory, ID: id, Reason: "does not exist"}
	case err != nil:
		return nil, fmt.Errorf("loadCategory: %w", err)
	case c.DeletedAt != nil:
		return nil, &DanglingReferenceError{Entity: entityCategory, ID: id, Reason: "was deleted"}
	case c.UserID != userID:
		return nil, &DanglingReferenceError{Entity: entityCategory, ID: id, Reason: "belongs to another user"}
	case !c.Matches(kind):
		return nil, fmt.Errorf("%w: category %d is %s, transaction is %s", models.ErrCategoryKind, id, c.Type, kind)
	}
	return c, nil
}

// resolveLegs loads the accounts and category an entry refers to and checks
// that the entry currency is the one its debited or credited account holds.
// For transfers the amount is in the source currency.
func resolveLegs(ctx context.Context, tx Tx, userID int, legs models.Direction, currency string, categoryID *int) (src, dst *models.Account, err error) {
	if id, ok := legs.Source(); ok {
		if src, err = loadAccount(ctx, tx, userID, id); err != nil {
			return nil, nil, err
		}
	}
	if id, ok := legs.Destination(); ok {
		if dst, err = loadAccount(ctx, tx, userID, id); err != nil {
			return nil, nil, err
		}
	}
	if categoryID != nil {
		if _, err = loadCategory(ctx, tx, userID, *categoryID, legs.Type()); err != nil {
			return nil, nil, err
		}
	}

	holder := src
	if holder == nil {
		holder = dst
	}
	if holder.Currency != currency {
		return nil, nil, fmt.Errorf("%w: account %d holds %s, entry is in %s", ErrCurrencyMismatch, holder.ID, holder.Currency, currency)
	}
	return src, dst, nil
}

// post writes t and applies its balance deltas: the source is debited Amount,
// the destination is credited DestinationAmount in its own currency.
func post(ctx context.Context, tx Tx, t *models.Transaction, src, dst *models.Account) error {
	t.DestinationAmount = t.Amount
	if src != nil && dst != nil {
		converted, err := convertFor(ctx, tx, t.UserID, t.Amount, src.Currency, dst.Currency)
		if err != nil {
			return err
		}
		if !converted.IsPositive() {
			return fmt.Errorf("%w: %s %s converts to %s %s", models.ErrNonPositiveAmount, t.Amount, src.Currency, converted, dst.Currency)
		}
		t.DestinationAmount = converted
	}

	if err := tx.InsertTransaction(ctx, t); err != nil {
		return fmt.Errorf("post: insert transaction: %w", err)
	}
	if src != nil {
		if err := tx.AdjustBalance(ctx, src.ID, t.Amount.Neg()); err != nil {
			return balanceErr(src.ID, err)
		}
	}
	if dst != nil {
		if err := tx.AdjustBalance(ctx, dst.ID, t.DestinationAmount); err != nil {
			return balanceErr(dst.ID, err)
		}
	}
	return nil
}

// balanceErr reports an account deleted after it was loaded as dangling.
func balanceErr(id int, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return &DanglingReferenceError{Entity: entityAccount, ID: id, Reason: "was deleted"}
	}
	return fmt.Errorf("post: adjust balance of account %d: %w", id, err)
}

// claimedRule reloads the rule inside the unit of work and makes sure the
// caller still owns the claim on it.
func claimedRule(ctx context.Context, tx Tx, id int, token uuid.UUID) (*models.ScheduledTransaction, error) {
	rule, err := tx.GetScheduledTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("claimedRule: %w", err)
	}
	if !rule.IsActive || rule.ClaimToken == nil || *rule.ClaimToken != token {
		return nil, fmt.Errorf("%w: rule %d", models.ErrClaimLost, id)
	}
	return rule, nil
}
