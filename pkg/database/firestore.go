package database

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FirestoreHealthcheck reads at most one document ID from collection. An empty
// collection is healthy.
func FirestoreHealthcheck(client *firestore.Client, collection string) func(context.Context) error {
	return func(ctx context.Context) error {
		iter := client.Collection(collection).Select().Limit(1).Documents(ctx)
		defer iter.Stop()
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return fmt.Errorf("%w: firestore: %v", ErrHealthcheckFailed, err)
		}
		return nil
	}
}
