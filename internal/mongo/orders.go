package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

type OrderRepo struct {
	collection *mongo.Collection
}

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{collection: db.Collection(ordersCollection)}
}

var _ repository.OrderRepository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	o.UpdatedAt = o.CreatedAt
	doc, err := toDocument(*o)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("cannot create order: %w", mapWriteError(err))
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get order: %w", mapWriteError(err))
	}
	o, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Update заменяет документ целиком: старые поля статуса при этом исчезают
func (r *OrderRepo) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = now()
	doc, err := toDocument(*o)
	if err != nil {
		return err
	}
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": o.ID}, doc)
	if err != nil {
		return fmt.Errorf("cannot update order: %w", mapWriteError(err))
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateIfState ReplaceOne с условием на статус: запись не пройдёт, если заказ
// успели перевести после чтения
func (r *OrderRepo) UpdateIfState(ctx context.Context, o *domain.Order, expected domain.OrderState) error {
	o.UpdatedAt = now()
	doc, err := toDocument(*o)
	if err != nil {
		return err
	}
	filter := stateQuery([]domain.OrderState{expected})
	filter["_id"] = o.ID
	res, err := r.collection.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("cannot update order: %w", mapWriteError(err))
	}
	if res.MatchedCount == 0 {
		cur, err := r.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		return repository.StateMismatch(o.ID, expected, cur.State)
	}
	return nil
}

func (r *OrderRepo) List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	cursor, err := r.collection.Find(ctx, orderQuery(f), options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", mapWriteError(err))
	}
	defer cursor.Close(ctx)

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", mapWriteError(err))
	}
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		// старые написания статуса шире фильтра, окончательно решает Match
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

// orderQuery переводит фильтр в запрос с учётом старых полей userId, orderStatus, paymentStatus
func orderQuery(f repository.OrderFilter) bson.M {
	var and bson.A
	if f.CustomerID != "" {
		and = append(and, bson.M{"$or": bson.A{bson.M{"customer_id": f.CustomerID}, bson.M{"userId": f.CustomerID}}})
	}
	if len(f.States) > 0 {
		and = append(and, stateQuery(f.States))
	}
	if len(f.PaymentStates) > 0 {
		if q := paymentQuery(f.PaymentStates); q != nil {
			and = append(and, q)
		}
	}

	q := bson.M{}
	if len(and) > 0 {
		q["$and"] = and
	}
	if f.QueueBatch != "" {
		q["queue_batch"] = f.QueueBatch
	}
	created := bson.M{}
	if f.CreatedFrom != nil {
		created["$gte"] = *f.CreatedFrom
	}
	if f.CreatedTo != nil {
		created["$lt"] = *f.CreatedTo
	}
	if len(created) > 0 {
		q["created_at"] = created
	}
	return q
}

// stateQuery status главнее orderStatus, поэтому orderStatus смотрим только при пустом status
func stateQuery(states []domain.OrderState) bson.M {
	values := repository.StoredStateValues(states)
	return bson.M{"$or": bson.A{
		bson.M{"status": bson.M{"$in": values}},
		bson.M{"status": bson.M{"$in": bson.A{nil, ""}}, "orderStatus": bson.M{"$in": values}},
	}}
}

// paymentQuery nil, если подходит и пустое поле: такой фильтр проще проверить после чтения
func paymentQuery(states []domain.PaymentState) bson.M {
	values, withEmpty := repository.StoredPaymentValues(states)
	if withEmpty {
		return nil
	}
	return bson.M{"$or": bson.A{
		bson.M{"payment_state": bson.M{"$in": values}},
		bson.M{"payment_state": bson.M{"$in": bson.A{nil, ""}}, "paymentStatus": bson.M{"$in": values}},
	}}
}
