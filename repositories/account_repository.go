package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/referral_backend/models"
)

type MongoAccountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{
		collection: db.Collection(UsersCollection),
	}
}

func (r *MongoAccountRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "referralCode", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "successfulReferrals", Value: -1}, {Key: "credits", Value: -1}}},
	})
	return err
}

func (r *MongoAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, account)
	return translateError(err)
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var account models.Account
	if err := r.collection.FindOne(ctx, filter).Decode(&account); err != nil {
		return nil, translateError(err)
	}
	return &account, nil
}

func (r *MongoAccountRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoAccountRepository) FindByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"referralCode": code})
}

func (r *MongoAccountRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Account, error) {
	out := make(map[primitive.ObjectID]models.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var accounts []models.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	for _, a := range accounts {
		out[a.ID] = a
	}
	return out, nil
}

// update applies the update and returns the document as it is afterwards.
func (r *MongoAccountRepository) update(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Account, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var account models.Account
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&account)
	if err != nil {
		return nil, translateError(err)
	}
	return &account, nil
}

func (r *MongoAccountRepository) TouchPurchase(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return r.update(ctx, id, bson.M{
		"$inc": bson.M{"purchaseCount": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	})
}

func (r *MongoAccountRepository) AddCredits(ctx context.Context, id primitive.ObjectID, credits, successfulReferrals int) (*models.Account, error) {
	return r.update(ctx, id, bson.M{
		"$inc": bson.M{"credits": credits, "successfulReferrals": successfulReferrals},
		"$set": bson.M{"updatedAt": time.Now()},
	})
}

func (r *MongoAccountRepository) IncrementTotalReferrals(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.update(ctx, id, bson.M{
		"$inc": bson.M{"totalReferrals": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	})
	return err
}

func (r *MongoAccountRepository) UpdateName(ctx context.Context, id primitive.ObjectID, name string) (*models.Account, error) {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{"name": name, "updatedAt": time.Now()},
	})
}

func (r *MongoAccountRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := r.update(ctx, id, bson.M{
		"$set": bson.M{"password": hash, "updatedAt": time.Now()},
	})
	return err
}

func (r *MongoAccountRepository) TopReferrers(ctx context.Context, limit int) ([]models.Account, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "successfulReferrals", Value: -1}, {Key: "credits", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	accounts := []models.Account{}
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}
