package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"plansync-backend-go/internal/models"
)

// DefaultUsersCollection is used when no collection name is configured.
const DefaultUsersCollection = "users"

// firestoreUserRepository implements the UserRepository interface using Firestore.
type firestoreUserRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client, collection string) UserRepository {
	if collection == "" {
		collection = DefaultUsersCollection
	}
	return &firestoreUserRepository{client: client, collection: collection}
}

// GetByID retrieves a user document from Firestore by its ID (Firebase Auth UID).
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(r.collection).Doc(userID).Get(ctx)
	if err != nil {
		return nil, classifyFirestoreError(err, "get user '%s'", userID)
	}
	return decodeUser(docSnap)
}

// FindIDsByCustomerID runs an exact-match query on customerId and returns only document IDs.
func (r *firestoreUserRepository) FindIDsByCustomerID(ctx context.Context, customerID string, limit int) ([]string, error) {
	if customerID == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 1
	}

	// Select() with no paths fetches references only.
	iter := r.client.Collection(r.collection).
		Where("customerId", "==", customerID).
		Select().
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	ids := make([]string, 0, limit)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classifyFirestoreError(err, "query users by customerId '%s'", customerID)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

// UpdateFields applies patch inside a transaction. Only the patched paths are
// sent to Firestore, so concurrent writers of other fields are not clobbered.
func (r *firestoreUserRepository) UpdateFields(ctx context.Context, userID string, patch models.UserPatch) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for UpdateFields operation")
	}
	ref := r.client.Collection(r.collection).Doc(userID)

	var before *models.User
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		before = &models.User{ID: snap.Ref.ID, Plan: planFromField(snap.DataAt("plan"))}

		updates := firestoreUpdatesFromPatch(patch)
		if len(updates) == 0 {
			return nil
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return nil, classifyFirestoreError(err, "update user '%s'", userID)
	}
	return before, nil
}

// SetCustomerID links a billing customer to the user. The document must exist.
func (r *firestoreUserRepository) SetCustomerID(ctx context.Context, userID, customerID string) error {
	if userID == "" || customerID == "" {
		return errors.New("userID and customerID are required for SetCustomerID operation")
	}
	_, err := r.client.Collection(r.collection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "customerId", Value: customerID},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return classifyFirestoreError(err, "set customerId for user '%s'", userID)
	}
	return nil
}

func decodeUser(docSnap *firestore.DocumentSnapshot) (*models.User, error) {
	var user models.User
	if err := docSnap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", docSnap.Ref.ID, err)
	}
	user.ID = docSnap.Ref.ID
	return &user, nil
}

// planFromField reads the stored plan without decoding the rest of the
// document. Collaborator fields may hold shapes models.User cannot decode.
// A missing or non-string plan reads as empty, which EffectivePlan treats as free.
func planFromField(v any, err error) models.Plan {
	if err != nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return models.Plan(s)
}

// firestoreUpdatesFromPatch turns a patch into field-path updates.
// Invoice entries use a FieldPath so IDs are never parsed as dotted paths.
func firestoreUpdatesFromPatch(patch models.UserPatch) []firestore.Update {
	var updates []firestore.Update
	if patch.Plan != nil {
		updates = append(updates, firestore.Update{Path: "plan", Value: string(*patch.Plan)})
	}
	if patch.ClearSubscription {
		updates = append(updates, firestore.Update{Path: "subscription", Value: nil})
	} else if patch.Subscription != nil {
		updates = append(updates, firestore.Update{Path: "subscription", Value: *patch.Subscription})
	}
	for invoiceID, rec := range patch.Invoices {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"invoices", invoiceID}, Value: rec})
	}
	return updates
}
