package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"canteen/internal/config"
	"canteen/internal/repository"
)

const (
	ordersCollection    = "orders"
	countersCollection  = "counters"
	usersCollection     = "users"
	menuCollection      = "menu_items"
	feedbackCollection  = "feedback"
	favoritesCollection = "favorites"
)

// Client подключение к MongoDB. Транзакции и change streams требуют replica set.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

func Connect(ctx context.Context, cfg config.MongoConfig, log *zap.Logger) (*Client, error) {
	connString := cfg.URL
	if connString == "" {
		connString = "mongodb://localhost:27017"
	}
	dbName := cfg.Name
	if dbName == "" {
		dbName = "canteen"
	}

	clientOptions := options.Client().ApplyURI(connString).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	log.Info("connected to MongoDB", zap.String("database", dbName))
	return &Client{client: client, db: client.Database(dbName), log: log}, nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	c.log.Info("disconnected from MongoDB")
	return nil
}

// EnsureIndexes номер очереди уникален в партии среди активных заказов,
// отзыв уникален для заказа
func (c *Client) EnsureIndexes(ctx context.Context) error {
	orders := c.db.Collection(ordersCollection)
	_, err := orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "queue_batch", Value: 1}, {Key: "queue_number", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_queue_number").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"queue_number":    bson.M{"$exists": true},
					"degraded_number": false,
					"status":          bson.M{"$in": bson.A{"QUEUED", "PREPARING", "READY"}},
				}),
		},
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create order indexes: %w", err)
	}
	_, err = c.db.Collection(feedbackCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().
			SetName("uniq_feedback_order").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"order_id": bson.M{"$exists": true}}),
	})
	if err != nil {
		return fmt.Errorf("cannot create feedback indexes: %w", err)
	}
	return nil
}

// NewStore собирает repository.Store поверх MongoDB
func NewStore(ctx context.Context, cfg config.MongoConfig, policy repository.RetryPolicy, log *zap.Logger) (*repository.Store, error) {
	c, err := Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := c.EnsureIndexes(ctx); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, err
	}
	orders := NewOrderRepo(c.db)
	feed := NewFeed(orders, log)
	return &repository.Store{
		Orders:     orders,
		Counters:   NewCounterRepo(c.db),
		Recipients: NewRecipientRepo(c.db),
		Menu:       NewMenuRepo(c.db),
		Feedback:   NewFeedbackRepo(c.db),
		Favorites:  NewFavoriteRepo(c.db),
		Tx:         NewTxManager(c.client, policy),
		Feed:       feed,
		Run:        feed.Run,
		Close: func(ctx context.Context) error {
			feed.Close()
			return c.Disconnect(ctx)
		},
	}, nil
}
