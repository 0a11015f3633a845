package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"plansync-backend-go/internal/models"
)

func classifyMongoError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrUnavailable, err)
}

// EnsureMongoIndexes creates the lookup indexes the repositories rely on.
// customerId is deliberately not unique: duplicates are detected and reported
// by the caller instead of rejected at write time.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database, usersCollection, eventsCollection string) error {
	if usersCollection == "" {
		usersCollection = DefaultUsersCollection
	}
	if eventsCollection == "" {
		eventsCollection = DefaultBillingEventsCollection
	}
	if _, err := database.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "customerId", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create customerId index: %w", err)
	}
	if _, err := database.Collection(eventsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "receivedAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create billing event index: %w", err)
	}
	return nil
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a UserRepository backed by a MongoDB collection.
// Documents are keyed by the Firebase UID in _id.
func NewMongoUserRepository(database *mongo.Database, collection string) UserRepository {
	if collection == "" {
		collection = DefaultUsersCollection
	}
	return &mongoUserRepository{coll: database.Collection(collection)}
}

func (r *mongoUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	var user models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return nil, classifyMongoError(err, "get user '%s'", userID)
	}
	return &user, nil
}

func (r *mongoUserRepository) FindIDsByCustomerID(ctx context.Context, customerID string, limit int) ([]string, error) {
	if customerID == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 1
	}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"customerId": customerID}, opts)
	if err != nil {
		return nil, classifyMongoError(err, "query users by customerId '%s'", customerID)
	}
	defer cur.Close(ctx)

	ids := make([]string, 0, limit)
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, classifyMongoError(err, "iterate users by customerId '%s'", customerID)
	}
	return ids, nil
}

// UpdateFields issues a single findOneAndUpdate with $set on the patched paths
// and returns the pre-image.
func (r *mongoUserRepository) UpdateFields(ctx context.Context, userID string, patch models.UserPatch) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for UpdateFields operation")
	}
	if patch.IsEmpty() {
		return r.GetByID(ctx, userID)
	}

	set, err := mongoSetFromPatch(patch)
	if err != nil {
		return nil, err
	}

	// Only plan is needed from the pre-image; other fields belong to other writers
	// and may not decode into models.User.
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"plan": 1})
	var before models.User
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&before)
	if err != nil {
		return nil, classifyMongoError(err, "update user '%s'", userID)
	}
	return &before, nil
}

// mongoSetFromPatch builds the $set document for a patch. Invoice IDs become
// path segments, so '.' and '$' are rejected.
func mongoSetFromPatch(patch models.UserPatch) (bson.M, error) {
	set := bson.M{}
	if patch.Plan != nil {
		set["plan"] = string(*patch.Plan)
	}
	if patch.ClearSubscription {
		set["subscription"] = nil
	} else if patch.Subscription != nil {
		set["subscription"] = patch.Subscription
	}
	for invoiceID, rec := range patch.Invoices {
		if invoiceID == "" || strings.ContainsAny(invoiceID, ".$") {
			return nil, fmt.Errorf("%w: invoice id '%s' is not a valid field name", ErrInvalidPatch, invoiceID)
		}
		set["invoices."+invoiceID] = rec
	}
	return set, nil
}

func (r *mongoUserRepository) SetCustomerID(ctx context.Context, userID, customerID string) error {
	if userID == "" || customerID == "" {
		return errors.New("userID and customerID are required for SetCustomerID operation")
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"customerId": customerID,
		"updatedAt":  time.Now().UTC(),
	}})
	if err != nil {
		return classifyMongoError(err, "set customerId for user '%s'", userID)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("set customerId for user '%s': %w", userID, ErrNotFound)
	}
	return nil
}

type mongoBillingEventRepository struct {
	coll *mongo.Collection
}

// NewMongoBillingEventRepository creates a BillingEventRepository backed by MongoDB.
func NewMongoBillingEventRepository(database *mongo.Database, collection string) BillingEventRepository {
	if collection == "" {
		collection = DefaultBillingEventsCollection
	}
	return &mongoBillingEventRepository{coll: database.Collection(collection)}
}

func (r *mongoBillingEventRepository) Create(ctx context.Context, event models.BillingEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if _, err := r.coll.InsertOne(ctx, event); err != nil {
		return classifyMongoError(err, "create billing event '%s'", event.EventID)
	}
	return nil
}

func (r *mongoBillingEventRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]models.BillingEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "receivedAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, classifyMongoError(err, "list billing events for user '%s'", userID)
	}
	events := make([]models.BillingEvent, 0)
	if err := cur.All(ctx, &events); err != nil {
		return nil, classifyMongoError(err, "decode billing events for user '%s'", userID)
	}
	return events, nil
}
