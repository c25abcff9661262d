package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campus-dues/backend/pkg/apperr"
)

// MongoBackend stores each collection as a MongoDB collection with the record
// id as _id. Records round-trip through relaxed extended JSON.
type MongoBackend struct {
	db *mongo.Database
}

// NewMongoBackend creates a MongoDB-backed document store.
func NewMongoBackend(db *mongo.Database) *MongoBackend {
	return &MongoBackend{db: db}
}

// Name implements Backend.
func (m *MongoBackend) Name() string { return "mongo" }

// List implements Backend.
func (m *MongoBackend) List(ctx context.Context, collection string) ([]Document, error) {
	cur, err := m.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, apperr.Upstream(m.Name(), err)
	}
	defer cur.Close(ctx)
	var list []Document
	for cur.Next(ctx) {
		d, err := rawToDocument(cur.Current)
		if err != nil {
			return nil, apperr.Upstream(m.Name(), err)
		}
		list = append(list, d)
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Upstream(m.Name(), err)
	}
	return list, nil
}

// Get implements Backend.
func (m *MongoBackend) Get(ctx context.Context, collection, id string) (Document, error) {
	raw, err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, apperr.NotFound(collection + "/" + id)
	}
	if err != nil {
		return Document{}, apperr.Upstream(m.Name(), err)
	}
	d, err := rawToDocument(raw)
	if err != nil {
		return Document{}, apperr.Upstream(m.Name(), err)
	}
	return d, nil
}

// Put implements Backend.
func (m *MongoBackend) Put(ctx context.Context, collection string, doc Document) error {
	var body bson.D
	if err := bson.UnmarshalExtJSON(doc.Body, false, &body); err != nil {
		return apperr.Validation("record %s/%s is not a JSON object", collection, doc.ID)
	}
	_, err := m.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": doc.ID}, body, options.Replace().SetUpsert(true))
	if err != nil {
		return apperr.Upstream(m.Name(), err)
	}
	return nil
}

// Delete implements Backend.
func (m *MongoBackend) Delete(ctx context.Context, collection, id string) error {
	if _, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperr.Upstream(m.Name(), err)
	}
	return nil
}

func rawToDocument(raw bson.Raw) (Document, error) {
	id, _ := raw.Lookup("_id").StringValueOK()
	body, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Body: body}, nil
}
