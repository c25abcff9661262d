package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Mirrored composes the local file backend with a cloud backend. Reads go to
// the cloud store and fall back to the local file only when the cloud call
// fails; an empty or not-found cloud answer is authoritative. Writes go to
// both; a failure on one side is logged and the write still succeeds as long
// as the other side accepted it.
type Mirrored struct {
	local  Backend
	cloud  Backend
	logger *zap.Logger
}

// NewMirrored returns local alone when cloud is nil, otherwise the composed backend.
func NewMirrored(local, cloud Backend, logger *zap.Logger) Backend {
	if cloud == nil {
		return local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirrored{local: local, cloud: cloud, logger: logger}
}

// Name implements Backend.
func (m *Mirrored) Name() string { return m.cloud.Name() + "+" + m.local.Name() }

// List implements Backend.
func (m *Mirrored) List(ctx context.Context, collection string) ([]Document, error) {
	docs, err := m.cloud.List(ctx, collection)
	if err == nil {
		return docs, nil
	}
	m.logger.Warn("cloud read failed; serving local mirror",
		zap.String("backend", m.cloud.Name()), zap.String("collection", collection), zap.String("op", "list"), zap.Error(err))
	return m.local.List(ctx, collection)
}

// Get implements Backend.
func (m *Mirrored) Get(ctx context.Context, collection, id string) (Document, error) {
	doc, err := m.cloud.Get(ctx, collection, id)
	if err == nil || IsNotFound(err) {
		return doc, err
	}
	m.logger.Warn("cloud read failed; serving local mirror",
		zap.String("backend", m.cloud.Name()), zap.String("collection", collection), zap.String("id", id), zap.String("op", "get"), zap.Error(err))
	return m.local.Get(ctx, collection, id)
}

// Put implements Backend.
func (m *Mirrored) Put(ctx context.Context, collection string, doc Document) error {
	return m.both(collection, doc.ID, "put",
		func() error { return m.local.Put(ctx, collection, doc) },
		func() error { return m.cloud.Put(ctx, collection, doc) })
}

// Delete implements Backend.
func (m *Mirrored) Delete(ctx context.Context, collection, id string) error {
	return m.both(collection, id, "delete",
		func() error { return m.local.Delete(ctx, collection, id) },
		func() error { return m.cloud.Delete(ctx, collection, id) })
}

func (m *Mirrored) both(collection, id, op string, local, cloud func() error) error {
	localErr := local()
	if localErr != nil {
		m.logger.Error("local write failed",
			zap.String("collection", collection), zap.String("id", id), zap.String("op", op), zap.Error(localErr))
	}
	cloudErr := cloud()
	if cloudErr != nil {
		m.logger.Warn("cloud mirror write failed",
			zap.String("backend", m.cloud.Name()), zap.String("collection", collection), zap.String("id", id), zap.String("op", op), zap.Error(cloudErr))
	}
	if localErr != nil && cloudErr != nil {
		return errors.Join(localErr, cloudErr)
	}
	return nil
}
