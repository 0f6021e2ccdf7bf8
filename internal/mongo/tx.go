package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"canteen/internal/repository"
)

const (
	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"
	commitAttempts     = 3
)

// TxManager multi-document transactions on a session. Repositories receive the
// session context as ctx, so their calls join the transaction.
type TxManager struct {
	client *mongo.Client
	policy repository.RetryPolicy
}

func NewTxManager(client *mongo.Client, policy repository.RetryPolicy) *TxManager {
	return &TxManager{client: client, policy: policy}
}

var _ repository.TxManager = (*TxManager)(nil)

func (t *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return repository.Retry(ctx, t.policy, func(ctx context.Context) error {
		sess, err := t.client.StartSession()
		if err != nil {
			return fmt.Errorf("cannot start session: %w", err)
		}
		defer sess.EndSession(ctx)

		return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
			if err := sess.StartTransaction(txOpts); err != nil {
				return fmt.Errorf("cannot start transaction: %w", err)
			}
			if err := fn(sc); err != nil {
				_ = sess.AbortTransaction(context.Background())
				return mapWriteError(err)
			}
			return commit(sc, sess)
		})
	})
}

// commit повторяет только сам коммит, если его исход неизвестен
func commit(sc mongo.SessionContext, sess mongo.Session) error {
	var err error
	for i := 0; i < commitAttempts; i++ {
		err = sess.CommitTransaction(sc)
		if err == nil || !hasLabel(err, labelUnknownCommit) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("cannot commit transaction: %w", mapWriteError(err))
	}
	return nil
}

// mapWriteError конфликт записи в транзакции -> repository.ErrConflict
func mapWriteError(err error) error {
	if err == nil || errors.Is(err, repository.ErrConflict) {
		return err
	}
	if hasLabel(err, labelTransient) {
		return fmt.Errorf("%w: %v", repository.ErrConflict, err)
	}
	return err
}

func hasLabel(err error, label string) bool {
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel(label)
}

func now() time.Time { return time.Now().UTC() }
