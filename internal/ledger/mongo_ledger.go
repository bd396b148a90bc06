package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/naffle-labs/allowlist-engine/internal/money"
)

// ErrWriteConflict is returned when a concurrent balance change raced the
// update outside a transaction. Callers retry on their next tick.
var ErrWriteConflict = errors.New("ledger write conflict")

type balanceDoc struct {
	UserID    string       `bson:"userId"`
	Token     string       `bson:"token"`
	Balance   money.Amount `bson:"balance"`
	UpdatedAt time.Time    `bson:"updatedAt"`
}

// MongoLedger implements Ledger over a wallet_balances collection. Balances
// are arbitrary-precision strings, so updates are guarded read-modify-write:
// inside a settlement transaction the session serializes them, and outside
// one the previous-balance filter turns a lost race into ErrWriteConflict
// instead of a silent overwrite.
type MongoLedger struct {
	collection *mongo.Collection
}

// NewMongoLedger creates a new MongoLedger
func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{collection: db.Collection("wallet_balances")}
}

// EnsureLedgerIndexes creates the unique (userId, token) index. Called once
// at startup.
func EnsureLedgerIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("wallet_balances").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "token", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Debit removes amount from the user's balance, failing with
// ErrInsufficientFunds when the balance cannot cover it.
func (l *MongoLedger) Debit(ctx context.Context, userID, token string, amount money.Amount) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("debit amount must not be negative, got %s", amount)
	}
	if amount.IsZero() {
		return nil
	}

	var doc balanceDoc
	err := l.collection.FindOne(ctx, bson.M{"userId": userID, "token": token}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrInsufficientFunds
		}
		return err
	}
	if doc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	res, err := l.collection.UpdateOne(ctx,
		bson.M{"userId": userID, "token": token, "balance": doc.Balance},
		bson.M{"$set": bson.M{"balance": doc.Balance.Sub(amount), "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrWriteConflict
	}
	return nil
}

// Credit adds amount to the user's balance, creating it if absent.
func (l *MongoLedger) Credit(ctx context.Context, userID, token string, amount money.Amount) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("credit amount must not be negative, got %s", amount)
	}
	if amount.IsZero() {
		return nil
	}

	var doc balanceDoc
	err := l.collection.FindOne(ctx, bson.M{"userId": userID, "token": token}).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		doc = balanceDoc{UserID: userID, Token: token, Balance: money.New(0)}
	}

	res, err := l.collection.UpdateOne(ctx,
		bson.M{"userId": userID, "token": token, "balance": doc.Balance},
		bson.M{"$set": bson.M{"balance": doc.Balance.Add(amount), "updatedAt": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrWriteConflict
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrWriteConflict
	}
	return nil
}
