package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"canteen/internal/repository"
)

// userDocument в старых профилях токен лежит в deviceToken или fcmToken
type userDocument struct {
	ID          string `bson:"_id"`
	Token       string `bson:"device_token,omitempty"`
	DeviceToken string `bson:"deviceToken,omitempty"`
	FCMToken    string `bson:"fcmToken,omitempty"`
}

type RecipientRepo struct {
	collection *mongo.Collection
}

func NewRecipientRepo(db *mongo.Database) *RecipientRepo {
	return &RecipientRepo{collection: db.Collection(usersCollection)}
}

var _ repository.RecipientRepository = (*RecipientRepo)(nil)

func (r *RecipientRepo) Get(ctx context.Context, customerID string) (string, error) {
	var doc userDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": customerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cannot get recipient: %w", err)
	}
	tok := firstNonEmpty(doc.Token, doc.DeviceToken, doc.FCMToken)
	if tok == "" {
		return "", repository.ErrNotFound
	}
	return tok, nil
}

func (r *RecipientRepo) Set(ctx context.Context, customerID, token string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": customerID},
		bson.M{
			"$set":   bson.M{"device_token": token, "token_updated_at": now()},
			"$unset": bson.M{"deviceToken": "", "fcmToken": ""},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cannot save recipient: %w", err)
	}
	return nil
}

func (r *RecipientRepo) Clear(ctx context.Context, customerID, token string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": customerID, "$or": bson.A{
			bson.M{"device_token": token},
			bson.M{"deviceToken": token},
			bson.M{"fcmToken": token},
		}},
		bson.M{"$unset": bson.M{"device_token": "", "deviceToken": "", "fcmToken": ""}},
	)
	if err != nil {
		return fmt.Errorf("cannot clear recipient: %w", err)
	}
	return nil
}
