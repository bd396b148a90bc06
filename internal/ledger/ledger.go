package ledger

import (
	"context"
	"errors"

	"github.com/naffle-labs/allowlist-engine/internal/money"
)

// ErrInsufficientFunds is returned by Debit when the balance cannot cover
// the requested amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger moves money between user balances. Implementations must honour the
// transaction carried by ctx: a Debit or Credit made inside a TxRunner
// callback is rolled back with the rest of the transaction.
type Ledger interface {
	Debit(ctx context.Context, userID, token string, amount money.Amount) error
	Credit(ctx context.Context, userID, token string, amount money.Amount) error
}
