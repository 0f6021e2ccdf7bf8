package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

// feedbackDocument старые отзывы хранят orderId, userId и createdAt
type feedbackDocument struct {
	ID         string    `bson:"_id"`
	OrderID    string    `bson:"order_id,omitempty"`
	CustomerID string    `bson:"customer_id,omitempty"`
	Rating     int       `bson:"rating"`
	Message    string    `bson:"message"`
	CreatedAt  time.Time `bson:"created_at,omitempty"`

	// legacy
	LegacyOrderID   string    `bson:"orderId,omitempty"`
	UserID          string    `bson:"userId,omitempty"`
	LegacyCreatedAt time.Time `bson:"createdAt,omitempty"`
}

func (d feedbackDocument) toDomain() domain.Feedback {
	created := d.CreatedAt
	if created.IsZero() {
		created = d.LegacyCreatedAt
	}
	return domain.Feedback{
		ID:         d.ID,
		OrderID:    firstNonEmpty(d.OrderID, d.LegacyOrderID),
		CustomerID: firstNonEmpty(d.CustomerID, d.UserID),
		Rating:     d.Rating,
		Message:    d.Message,
		CreatedAt:  created.UTC(),
	}
}

func byOrder(orderID string) bson.M {
	return bson.M{"$or": bson.A{bson.M{"order_id": orderID}, bson.M{"orderId": orderID}}}
}

type FeedbackRepo struct {
	collection *mongo.Collection
}

func NewFeedbackRepo(db *mongo.Database) *FeedbackRepo {
	return &FeedbackRepo{collection: db.Collection(feedbackCollection)}
}

var _ repository.FeedbackRepository = (*FeedbackRepo)(nil)

// Create уникальный индекс по order_id ловит гонку, проверка byOrder ловит старые записи
func (r *FeedbackRepo) Create(ctx context.Context, f *domain.Feedback) error {
	if _, err := r.GetByOrder(ctx, f.OrderID); err == nil {
		return fmt.Errorf("%w: feedback for order %s", repository.ErrAlreadyExists, f.OrderID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now()
	}
	_, err := r.collection.InsertOne(ctx, feedbackDocument{
		ID:         f.ID,
		OrderID:    f.OrderID,
		CustomerID: f.CustomerID,
		Rating:     f.Rating,
		Message:    f.Message,
		CreatedAt:  f.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: feedback for order %s", repository.ErrAlreadyExists, f.OrderID)
	}
	if err != nil {
		return fmt.Errorf("cannot create feedback: %w", err)
	}
	return nil
}

func (r *FeedbackRepo) GetByOrder(ctx context.Context, orderID string) (*domain.Feedback, error) {
	var doc feedbackDocument
	err := r.collection.FindOne(ctx, byOrder(orderID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get feedback: %w", err)
	}
	f := doc.toDomain()
	return &f, nil
}

func (r *FeedbackRepo) List(ctx context.Context) ([]domain.Feedback, error) {
	cur, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("cannot list feedback: %w", err)
	}
	defer cur.Close(ctx)
	out := make([]domain.Feedback, 0)
	for cur.Next(ctx) {
		var doc feedbackDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("cannot decode feedback: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cannot list feedback: %w", err)
	}
	// createdAt у старых записей, сортировать приходится после чтения
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type favoritesDocument struct {
	ID        string    `bson:"_id"`
	Items     []string  `bson:"items"`
	CreatedAt time.Time `bson:"created_at,omitempty"`
}

// FavoriteRepo один документ на покупателя, _id = id покупателя
type FavoriteRepo struct {
	collection *mongo.Collection
}

func NewFavoriteRepo(db *mongo.Database) *FavoriteRepo {
	return &FavoriteRepo{collection: db.Collection(favoritesCollection)}
}

var _ repository.FavoriteRepository = (*FavoriteRepo)(nil)

func (r *FavoriteRepo) List(ctx context.Context, customerID string) ([]string, error) {
	var doc favoritesDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": customerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get favorites: %w", err)
	}
	if doc.Items == nil {
		return []string{}, nil
	}
	return doc.Items, nil
}

func (r *FavoriteRepo) Add(ctx context.Context, customerID, menuItemID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": customerID},
		bson.M{
			"$addToSet":    bson.M{"items": menuItemID},
			"$setOnInsert": bson.M{"created_at": now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cannot add favorite: %w", err)
	}
	return nil
}

func (r *FavoriteRepo) Remove(ctx context.Context, customerID, menuItemID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": customerID},
		bson.M{"$pull": bson.M{"items": menuItemID}},
	)
	if err != nil {
		return fmt.Errorf("cannot remove favorite: %w", err)
	}
	return nil
}
