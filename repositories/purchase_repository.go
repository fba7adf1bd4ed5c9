package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/referral_backend/models"
)

type MongoPurchaseRepository struct {
	collection *mongo.Collection
}

func NewPurchaseRepository(db *mongo.Database) *MongoPurchaseRepository {
	return &MongoPurchaseRepository{
		collection: db.Collection(PurchasesCollection),
	}
}

func (r *MongoPurchaseRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (r *MongoPurchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	if purchase.ID.IsZero() {
		purchase.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, purchase)
	return translateError(err)
}

func (r *MongoPurchaseRepository) CountByAccount(ctx context.Context, account primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"user": account})
}

func (r *MongoPurchaseRepository) ListByAccount(ctx context.Context, account primitive.ObjectID) ([]models.Purchase, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user": account}, opts)
	if err != nil {
		return nil, err
	}
	purchases := []models.Purchase{}
	if err := cursor.All(ctx, &purchases); err != nil {
		return nil, err
	}
	return purchases, nil
}
