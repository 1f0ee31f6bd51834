// Package directory provides the organization-record collaborators.
// The production store is Firestore; the in-memory store serves dev
// setups and tests.
package directory

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/harborlight-org/tokend/internal/core"
)

const defaultCollection = "orgs"

var _ core.Directory = (*FirestoreDirectory)(nil)

// FirestoreDirectory looks up organizational records in a Firestore
// collection keyed by subject id.
type FirestoreDirectory struct {
	client     *firestore.Client
	collection string
}

func NewFirestore(ctx context.Context, projectID, collection string, opts ...option.ClientOption) (*FirestoreDirectory, error) {
	if collection == "" {
		collection = defaultCollection
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreDirectory{
		client:     client,
		collection: collection,
	}, nil
}

func (d *FirestoreDirectory) Lookup(ctx context.Context, subject string) (*core.OrgRecord, error) {
	snap, err := d.client.Collection(d.collection).Doc(subject).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, core.ErrRecordNotFound
		}
		return nil, fmt.Errorf("fetching record for subject: %w", err)
	}

	var record core.OrgRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decoding record for subject: %w", err)
	}
	return &record, nil
}

func (d *FirestoreDirectory) Close() error {
	return d.client.Close()
}
