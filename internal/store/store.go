// Package store is the persistence layer: a uniform document interface with a
// local JSON file backend, two cloud backends (Postgres JSONB, MongoDB) and a
// Mirrored decorator that composes the local file with a cloud store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/campus-dues/backend/pkg/apperr"
)

// Collection names. They double as the top-level keys of the local file.
const (
	Organizations   = "organizations"
	Events          = "events"
	Payments        = "payments"
	OfficerProfiles = "officerProfiles"
	Users           = "users"
)

// AllCollections lists every collection in write order.
var AllCollections = []string{Organizations, Events, Payments, OfficerProfiles, Users}

// Document is a raw JSON record and its id.
type Document struct {
	ID   string
	Body json.RawMessage
}

// Backend stores raw documents per collection. Get returns an error matching
// apperr.ErrNotFound for a missing id; any other error means the backend
// could not be reached.
type Backend interface {
	Name() string
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
}

// Record is implemented by every model stored through a Collection.
type Record interface {
	DocID() string
}

// Collection is a typed view over one backend collection.
type Collection[T Record] struct {
	name    string
	backend Backend
	logger  *zap.Logger
}

// NewCollection returns a typed view of collection name on b.
func NewCollection[T Record](b Backend, name string) *Collection[T] {
	return &Collection[T]{name: name, backend: b, logger: zap.NewNop()}
}

// WithLogger sets the logger that reports undecodable records.
func (c *Collection[T]) WithLogger(logger *zap.Logger) *Collection[T] {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// List decodes every record and keeps those accepted by match (all when nil).
// Undecodable records are skipped and logged.
func (c *Collection[T]) List(ctx context.Context, match func(T) bool) ([]T, error) {
	docs, err := c.backend.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var rec T
		if err := json.Unmarshal(d.Body, &rec); err != nil {
			c.logger.Warn("skipping undecodable record",
				zap.String("collection", c.name),
				zap.String("id", d.ID),
				zap.String("backend", c.backend.Name()),
				zap.Error(err))
			continue
		}
		if match == nil || match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Get returns the record with id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	doc, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(doc.Body, &rec); err != nil {
		return rec, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return rec, nil
}

// Upsert writes rec under rec.DocID(), replacing any previous version.
func (c *Collection[T]) Upsert(ctx context.Context, rec T) error {
	id := rec.DocID()
	if id == "" {
		return apperr.Validation("%s record has no id", c.name)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return c.backend.Put(ctx, c.name, Document{ID: id, Body: body})
}

// Delete removes the record with id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.backend.Delete(ctx, c.name, id)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool { return errors.Is(err, apperr.ErrNotFound) }

// docID extracts the id of a raw record. Map-keyed collections pass the key
// as fallback.
func docID(body json.RawMessage, fallback string) string {
	var keys struct {
		ID  string `json:"id"`
		UID string `json:"uid"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &keys); err != nil {
		return fallback
	}
	switch {
	case keys.ID != "":
		return keys.ID
	case keys.UID != "":
		return keys.UID
	case keys.Key != "":
		return keys.Key
	}
	return fallback
}
