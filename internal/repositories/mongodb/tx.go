package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/naffle-labs/allowlist-engine/internal/repositories"
)

// SessionTxRunner implements repositories.TxRunner on MongoDB sessions.
// Repository calls made with the callback's context join the transaction;
// an error from the callback aborts it, leaving every document untouched.
type SessionTxRunner struct {
	client *mongo.Client
}

// NewSessionTxRunner creates a new SessionTxRunner
func NewSessionTxRunner(client *mongo.Client) repositories.TxRunner {
	return &SessionTxRunner{client: client}
}

// WithTransaction runs fn inside one MongoDB transaction
func (r *SessionTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
