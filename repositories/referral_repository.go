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

type MongoReferralRepository struct {
	collection *mongo.Collection
}

func NewReferralRepository(db *mongo.Database) *MongoReferralRepository {
	return &MongoReferralRepository{
		collection: db.Collection(ReferralsCollection),
	}
}

func (r *MongoReferralRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "referrer", Value: 1}, {Key: "referred", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "referred", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "referrer", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	return err
}

// pendingFilter matches a referral that can still award credits.
func pendingFilter() bson.M {
	return bson.M{"status": models.ReferralPending, "creditsAwarded": false}
}

func (r *MongoReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	if referral.ID.IsZero() {
		referral.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, referral)
	return translateError(err)
}

func (r *MongoReferralRepository) findOne(ctx context.Context, filter bson.M) (*models.Referral, error) {
	var referral models.Referral
	if err := r.collection.FindOne(ctx, filter).Decode(&referral); err != nil {
		return nil, translateError(err)
	}
	return &referral, nil
}

func (r *MongoReferralRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Referral, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoReferralRepository) FindPendingByReferred(ctx context.Context, referred primitive.ObjectID) (*models.Referral, error) {
	filter := pendingFilter()
	filter["referred"] = referred
	return r.findOne(ctx, filter)
}

func (r *MongoReferralRepository) FindByReferred(ctx context.Context, referred primitive.ObjectID) (*models.Referral, error) {
	return r.findOne(ctx, bson.M{"referred": referred})
}

func (r *MongoReferralRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Referral, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	referrals := []models.Referral{}
	if err := cursor.All(ctx, &referrals); err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *MongoReferralRepository) ListByReferrer(ctx context.Context, referrer primitive.ObjectID) ([]models.Referral, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"referrer": referrer}, opts)
}

func (r *MongoReferralRepository) CountByReferrer(ctx context.Context, referrer primitive.ObjectID) (int64, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{"referrer": referrer})
	if err != nil {
		return 0, 0, err
	}
	converted, err := r.collection.CountDocuments(ctx, bson.M{
		"referrer":       referrer,
		"status":         models.ReferralConverted,
		"creditsAwarded": true,
	})
	if err != nil {
		return 0, 0, err
	}
	return total, converted, nil
}

func (r *MongoReferralRepository) List(ctx context.Context, filter ReferralFilter) ([]models.Referral, error) {
	query := bson.M{}
	if filter.From != nil || filter.To != nil {
		created := bson.M{}
		if filter.From != nil {
			created["$gte"] = *filter.From
		}
		if filter.To != nil {
			created["$lte"] = *filter.To
		}
		query["createdAt"] = created
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, query, opts)
}

func (r *MongoReferralRepository) Convert(ctx context.Context, id primitive.ObjectID, conversion models.ConversionType, credits int, at time.Time) (bool, error) {
	filter := pendingFilter()
	filter["_id"] = id
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"status":         models.ReferralConverted,
			"creditsAwarded": true,
			"creditsAmount":  credits,
			"convertedAt":    at,
			"conversionType": conversion,
		},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoReferralRepository) Expire(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.ReferralPending},
		bson.M{"$set": bson.M{"status": models.ReferralExpired}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoReferralRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"status": models.ReferralPending, "createdAt": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"status": models.ReferralExpired}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
