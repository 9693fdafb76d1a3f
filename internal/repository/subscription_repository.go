package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"commerce-app/subscription-service/internal/models"
)

type SubscriptionRepository struct {
	col *mongo.Collection
}

func NewSubscriptionRepository(db *mongo.Database) *SubscriptionRepository {
	return &SubscriptionRepository{col: db.Collection("subscriptions")}
}

// ListFilter is the minimum query surface the service layer needs: field
// equality plus range predicates composed into Query by the caller.
type ListFilter struct {
	Query  bson.M
	Limit  int64
	Offset int64
	Sort   string // field name, "-" prefix for descending
}

func (r *SubscriptionRepository) Find(ctx context.Context, filter ListFilter) ([]models.Subscription, error) {
	query := filter.Query
	if query == nil {
		query = bson.M{}
	}

	opts := options.Find()
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}
	if filter.Sort != "" {
		opts.SetSort(sortSpec(filter.Sort))
	}

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []models.Subscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func sortSpec(sort string) bson.D {
	if strings.HasPrefix(sort, "-") {
		return bson.D{{Key: sort[1:], Value: -1}}
	}
	return bson.D{{Key: sort, Value: 1}}
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// FindDue returns the records the renewal batch selects: next order date
// arrived, end date not yet passed, still active.
func (r *SubscriptionRepository) FindDue(ctx context.Context, today time.Time) ([]models.Subscription, error) {
	return r.Find(ctx, ListFilter{Query: bson.M{
		"dates.dateOrderNext": bson.M{"$lte": today},
		"dates.dateEnd":       bson.M{"$gte": today},
		"status":              models.StatusActive,
	}})
}

// FindActiveDuplicates backs the advisory duplicate-subscription guard on
// insert.
func (r *SubscriptionRepository) FindActiveDuplicates(ctx context.Context, userID, orderItemName string) ([]models.Subscription, error) {
	return r.Find(ctx, ListFilter{Query: bson.M{
		"userId":        userID,
		"orderItemName": orderItemName,
		"status":        models.StatusActive,
	}})
}

func (r *SubscriptionRepository) Insert(ctx context.Context, s *models.Subscription) error {
	res, err := r.col.InsertOne(ctx, s)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		s.ID = oid
	}
	return nil
}

// UpdateByID persists the record body under the given id and returns the
// stored document. The id never travels inside the body; a zero ObjectID is
// omitted from the $set so the immutable _id is not overwritten.
func (r *SubscriptionRepository) UpdateByID(ctx context.Context, id primitive.ObjectID, s *models.Subscription) (*models.Subscription, error) {
	body := *s
	body.ID = primitive.NilObjectID

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": body}, opts)

	var updated models.Subscription
	if err := res.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}
