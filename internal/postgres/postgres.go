package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"canteen/internal/config"
	"canteen/internal/repository"
)

const notifyChannel = "canteen_orders_changed"

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                UUID PRIMARY KEY,
	customer_id       TEXT NOT NULL,
	recipient_ref     TEXT NOT NULL DEFAULT '',
	line_items        JSONB NOT NULL,
	total_amount      NUMERIC(12,2) NOT NULL CHECK (total_amount >= 0),
	payment_state     TEXT NOT NULL,
	payment_id        TEXT NOT NULL DEFAULT '',
	order_state       TEXT NOT NULL,
	queue_number      BIGINT,
	queue_batch       TEXT NOT NULL DEFAULT '',
	estimated_minutes INTEGER,
	degraded_number   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	queued_at         TIMESTAMPTZ,
	preparing_at      TIMESTAMPTZ,
	ready_at          TIMESTAMPTZ,
	completed_at      TIMESTAMPTZ,
	cancelled_at      TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_active_queue_number
	ON orders (queue_batch, queue_number)
	WHERE queue_number IS NOT NULL AND NOT degraded_number
	  AND order_state IN ('QUEUED', 'PREPARING', 'READY');
CREATE INDEX IF NOT EXISTS orders_customer_created ON orders (customer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS orders_state_created ON orders (order_state, created_at);

CREATE TABLE IF NOT EXISTS queue_counters (
	batch TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
	id           TEXT PRIMARY KEY,
	device_token TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS menu_items (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	price        NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	prep_minutes INTEGER NOT NULL DEFAULT 0,
	available    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id          UUID PRIMARY KEY,
	order_id    TEXT NOT NULL UNIQUE,
	customer_id TEXT NOT NULL,
	rating      SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
	message     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS feedback_created ON feedback (created_at DESC);

CREATE TABLE IF NOT EXISTS favorites (
	customer_id  TEXT NOT NULL,
	menu_item_id TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (customer_id, menu_item_id)
);
`

// querier общее подмножество pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type txState struct {
	tx            pgx.Tx
	ordersChanged bool
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// db возвращает транзакцию из ctx или пул
func db(ctx context.Context, pool *pgxpool.Pool) querier {
	if st := txFrom(ctx); st != nil {
		return st.tx
	}
	return pool
}

// notifyOrders внутри транзакции откладывает NOTIFY до коммита
func notifyOrders(ctx context.Context, pool *pgxpool.Pool) error {
	if st := txFrom(ctx); st != nil {
		st.ordersChanged = true
		return nil
	}
	_, err := pool.Exec(ctx, "SELECT pg_notify($1, '')", notifyChannel)
	return err
}

func Connect(ctx context.Context, cfg config.PostgresConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping postgres: %w", err)
	}
	log.Info("connected to postgres", zap.Int32("max_conns", poolCfg.MaxConns))
	return pool, nil
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("cannot apply schema: %w", err)
	}
	return nil
}

// NewStore собирает repository.Store поверх PostgreSQL
func NewStore(ctx context.Context, cfg config.PostgresConfig, policy repository.RetryPolicy, log *zap.Logger) (*repository.Store, error) {
	pool, err := Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	orders := NewOrderRepo(pool)
	feed := NewFeed(pool, orders, log)
	return &repository.Store{
		Orders:     orders,
		Counters:   NewCounterRepo(pool),
		Recipients: NewRecipientRepo(pool),
		Menu:       NewMenuRepo(pool),
		Feedback:   NewFeedbackRepo(pool),
		Favorites:  NewFavoriteRepo(pool),
		Tx:         NewTxManager(pool, policy),
		Feed:       feed,
		Run:        feed.Run,
		Close: func(context.Context) error {
			feed.Close()
			pool.Close()
			return nil
		},
	}, nil
}

// TxManager транзакции SERIALIZABLE; ошибки сериализации повторяются
type TxManager struct {
	pool   *pgxpool.Pool
	policy repository.RetryPolicy
}

func NewTxManager(pool *pgxpool.Pool, policy repository.RetryPolicy) *TxManager {
	return &TxManager{pool: pool, policy: policy}
}

var _ repository.TxManager = (*TxManager)(nil)

func (t *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	return repository.Retry(ctx, t.policy, func(ctx context.Context) error {
		tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("cannot begin transaction: %w", err)
		}
		st := &txState{tx: tx}
		if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
			_ = tx.Rollback(context.Background())
			return mapError(err)
		}
		if st.ordersChanged {
			if _, err := tx.Exec(ctx, "SELECT pg_notify($1, '')", notifyChannel); err != nil {
				_ = tx.Rollback(context.Background())
				return mapError(err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return mapError(fmt.Errorf("cannot commit transaction: %w", err))
		}
		return nil
	})
}

// mapError serialization_failure и deadlock_detected -> repository.ErrConflict
func mapError(err error) error {
	if err == nil || errors.Is(err, repository.ErrConflict) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", repository.ErrConflict, err)
		}
	}
	return err
}

// isUniqueViolation unique_violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func now() time.Time { return time.Now().UTC() }
