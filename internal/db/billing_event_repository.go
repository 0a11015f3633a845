package db

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"plansync-backend-go/internal/models"
)

// DefaultBillingEventsCollection is used when no collection name is configured.
const DefaultBillingEventsCollection = "billing_events"

// ListByUserID filters on eventUserField and orders by eventTimeField descending.
// Firestore needs a composite index for that; it is declared in
// firestore.indexes.json at the repository root (firebase deploy --only firestore:indexes).
const (
	eventUserField = "userId"
	eventTimeField = "receivedAt"
)

type firestoreBillingEventRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreBillingEventRepository creates a BillingEventRepository backed by Firestore.
func NewFirestoreBillingEventRepository(client *firestore.Client, collection string) BillingEventRepository {
	if collection == "" {
		collection = DefaultBillingEventsCollection
	}
	return &firestoreBillingEventRepository{client: client, collection: collection}
}

// Create stores the record under an auto-generated document ID.
func (r *firestoreBillingEventRepository) Create(ctx context.Context, event models.BillingEvent) error {
	_, _, err := r.client.Collection(r.collection).Add(ctx, event)
	if err != nil {
		return classifyFirestoreError(err, "create billing event '%s'", event.EventID)
	}
	return nil
}

// ListByUserID returns the newest records for a user first.
func (r *firestoreBillingEventRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]models.BillingEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	iter := r.client.Collection(r.collection).
		Where(eventUserField, "==", userID).
		OrderBy(eventTimeField, firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	events := make([]models.BillingEvent, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classifyFirestoreError(err, "list billing events for user '%s'", userID)
		}
		var ev models.BillingEvent
		if err := doc.DataTo(&ev); err != nil {
			return nil, err
		}
		ev.ID = doc.Ref.ID
		events = append(events, ev)
	}
	return events, nil
}
