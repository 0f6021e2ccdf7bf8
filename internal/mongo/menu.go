package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

type menuDocument struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Category    string               `bson:"category,omitempty"`
	Price       primitive.Decimal128 `bson:"price"`
	PrepMinutes int                  `bson:"prep_minutes,omitempty"`
	Available   bool                 `bson:"available"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type MenuRepo struct {
	collection *mongo.Collection
}

func NewMenuRepo(db *mongo.Database) *MenuRepo {
	return &MenuRepo{collection: db.Collection(menuCollection)}
}

var _ repository.MenuRepository = (*MenuRepo)(nil)

func (r *MenuRepo) Create(ctx context.Context, it *domain.MenuItem) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.CreatedAt = now()
	it.UpdatedAt = it.CreatedAt
	doc, err := toMenuDocument(*it)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("cannot create menu item: %w", err)
	}
	return nil
}

func (r *MenuRepo) GetByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	var doc menuDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get menu item: %w", err)
	}
	it, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *MenuRepo) Update(ctx context.Context, it *domain.MenuItem) error {
	it.UpdatedAt = now()
	price, err := toDecimal128(it.Price)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": it.ID}, bson.M{"$set": bson.M{
		"name":         it.Name,
		"category":     it.Category,
		"price":        price,
		"prep_minutes": it.PrepMinutes,
		"available":    it.Available,
		"updated_at":   it.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("cannot update menu item: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MenuRepo) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot delete menu item: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MenuRepo) List(ctx context.Context, f repository.MenuFilter) ([]domain.MenuItem, error) {
	q := bson.M{}
	if f.NameSubstring != "" {
		q["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.NameSubstring), Options: "i"}
	}
	if f.OnlyAvailable {
		q["available"] = true
	}
	cursor, err := r.collection.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list menu: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []menuDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cannot decode menu: %w", err)
	}
	out := make([]domain.MenuItem, 0, len(docs))
	for _, d := range docs {
		it, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		// price range and category are compared on decoded values
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

func toMenuDocument(it domain.MenuItem) (menuDocument, error) {
	price, err := toDecimal128(it.Price)
	if err != nil {
		return menuDocument{}, err
	}
	return menuDocument{
		ID:          it.ID,
		Name:        it.Name,
		Category:    it.Category,
		Price:       price,
		PrepMinutes: it.PrepMinutes,
		Available:   it.Available,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}, nil
}

func (d menuDocument) toDomain() (domain.MenuItem, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return domain.MenuItem{}, err
	}
	return domain.MenuItem{
		ID:          d.ID,
		Name:        d.Name,
		Category:    d.Category,
		Price:       price,
		PrepMinutes: d.PrepMinutes,
		Available:   d.Available,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}
