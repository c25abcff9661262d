package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/campus-dues/backend/pkg/apperr"
)

// Collections persisted as objects keyed by id rather than arrays.
var keyedCollections = map[string]bool{OfficerProfiles: true, Users: true}

// FileBackend keeps every collection in one JSON document on local disk.
// Each write is a whole-file read-modify-write replaced atomically via rename.
// There is no locking: concurrent writers can lose updates (last write wins).
type FileBackend struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
}

// NewFileBackend returns a backend for the JSON document at path. The file is
// created on first write.
func NewFileBackend(path string, logger *zap.Logger) *FileBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileBackend{path: path, logger: logger, now: time.Now}
}

// Name implements Backend.
func (f *FileBackend) Name() string { return "file" }

// Path returns the location of the JSON document.
func (f *FileBackend) Path() string { return f.path }

// List implements Backend.
func (f *FileBackend) List(_ context.Context, collection string) ([]Document, error) {
	top, err := f.load()
	if err != nil {
		return nil, err
	}
	return f.docs(top, collection), nil
}

// Get implements Backend.
func (f *FileBackend) Get(ctx context.Context, collection, id string) (Document, error) {
	docs, err := f.List(ctx, collection)
	if err != nil {
		return Document{}, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, nil
		}
	}
	return Document{}, apperr.NotFound(collection + "/" + id)
}

// Put implements Backend.
func (f *FileBackend) Put(_ context.Context, collection string, doc Document) error {
	top, err := f.load()
	if err != nil {
		return err
	}
	docs := f.docs(top, collection)
	replaced := false
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}
	if err := setDocs(top, collection, docs); err != nil {
		return err
	}
	return f.save(top)
}

// Delete implements Backend. Deleting a missing id is not an error.
func (f *FileBackend) Delete(_ context.Context, collection, id string) error {
	top, err := f.load()
	if err != nil {
		return err
	}
	docs := f.docs(top, collection)
	kept := docs[:0]
	for _, d := range docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(docs) {
		return nil
	}
	if err := setDocs(top, collection, kept); err != nil {
		return err
	}
	return f.save(top)
}

// Backup copies the current file next to itself with a timestamp suffix and
// returns the backup path. A missing file yields an empty path.
func (f *FileBackend) Backup() (string, error) {
	src, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open store file: %w", err)
	}
	defer src.Close()

	dst := fmt.Sprintf("%s.bak-%s", f.path, f.now().UTC().Format("20060102-150405"))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}
	return dst, nil
}

// load reads the whole document. A corrupt file is moved aside and replaced
// by an empty structure instead of failing the request.
func (f *FileBackend) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyTop(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}
	top := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &top); err != nil {
			aside := fmt.Sprintf("%s.corrupt-%s", f.path, f.now().UTC().Format("20060102-150405"))
			if rerr := os.Rename(f.path, aside); rerr != nil {
				aside = ""
			}
			f.logger.Warn("store file is not valid JSON; starting from an empty store",
				zap.String("path", f.path), zap.String("moved_to", aside), zap.Error(err))
			return emptyTop(), nil
		}
	}
	for _, c := range AllCollections {
		if _, ok := top[c]; !ok {
			top[c] = emptyValue(c)
		}
	}
	return top, nil
}

func (f *FileBackend) save(top map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// docs decodes one collection. A collection of the wrong shape is treated as
// empty and logged.
func (f *FileBackend) docs(top map[string]json.RawMessage, collection string) []Document {
	raw, ok := top[collection]
	if !ok {
		return nil
	}
	if keyedCollections[collection] {
		m := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &m); err != nil {
			f.logger.Warn("store collection has unexpected shape", zap.String("collection", collection), zap.Error(err))
			return nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Document, 0, len(keys))
		for _, k := range keys {
			out = append(out, Document{ID: k, Body: m[k]})
		}
		return out
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		f.logger.Warn("store collection has unexpected shape", zap.String("collection", collection), zap.Error(err))
		return nil
	}
	out := make([]Document, 0, len(list))
	for _, body := range list {
		out = append(out, Document{ID: docID(body, ""), Body: body})
	}
	return out
}

func setDocs(top map[string]json.RawMessage, collection string, docs []Document) error {
	var (
		raw []byte
		err error
	)
	if keyedCollections[collection] {
		m := make(map[string]json.RawMessage, len(docs))
		for _, d := range docs {
			m[d.ID] = d.Body
		}
		raw, err = json.Marshal(m)
	} else {
		list := make([]json.RawMessage, 0, len(docs))
		for _, d := range docs {
			list = append(list, d.Body)
		}
		raw, err = json.Marshal(list)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	top[collection] = raw
	return nil
}

func emptyTop() map[string]json.RawMessage {
	top := make(map[string]json.RawMessage, len(AllCollections))
	for _, c := range AllCollections {
		top[c] = emptyValue(c)
	}
	return top
}

func emptyValue(collection string) json.RawMessage {
	if keyedCollections[collection] {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(`[]`)
}
