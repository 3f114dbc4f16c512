// Package firestore adapts Cloud Firestore to remote.Store.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rpggio/adherence/internal/remote"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// auditField holds the write's audit time inside each document.
const auditField = "_audit_time"

// Store persists documents to Firestore with last-writer-wins on audit time.
type Store struct {
	client *firestore.Client
}

// New opens a client for projectID. With FIRESTORE_EMULATOR_HOST set the
// client talks to the emulator.
func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Put(ctx context.Context, doc remote.Document) error {
	ref := s.client.Collection(doc.Collection).Doc(doc.ID)
	data := maps.Clone(doc.Fields)
	if data == nil {
		data = map[string]any{}
	}
	data[auditField] = doc.AuditTime

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if stored, ok := snap.Data()[auditField].(time.Time); ok && stored.After(doc.AuditTime) {
				return remote.ErrStaleWrite
			}
		}
		return tx.Set(ref, data)
	})
	if err != nil {
		return mapError(fmt.Sprintf("putting %s", doc.Path()), err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q remote.Query) ([]remote.Document, error) {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		switch f.Op {
		case remote.OpEqual, remote.OpGreaterEqual, remote.OpLess:
		default:
			return nil, fmt.Errorf("%w: %q", remote.ErrUnsupportedFilter, f.Op)
		}
		query = query.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		query = query.OrderBy(q.OrderBy, firestore.Asc)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, mapError(fmt.Sprintf("querying %s", q.Collection), err)
	}

	out := make([]remote.Document, 0, len(snaps))
	for _, snap := range snaps {
		data := snap.Data()
		audit, _ := data[auditField].(time.Time)
		delete(data, auditField)
		out = append(out, remote.Document{
			Collection: q.Collection,
			ID:         snap.Ref.ID,
			Fields:     data,
			AuditTime:  audit,
		})
	}
	return out, nil
}

func mapError(op string, err error) error {
	if errors.Is(err, remote.ErrStaleWrite) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%s: %w: %v", op, remote.ErrRemoteUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, remote.ErrRemoteUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
