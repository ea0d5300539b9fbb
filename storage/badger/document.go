// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/idgen"
	"github.com/poiesic/libindex/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	newID   idgen.Generator
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
// A nil generator means idgen.Default.
func NewDocumentRepository(backend *Backend, newID idgen.Generator) (*DocumentRepository, error) {
	if newID == nil {
		newID = idgen.Default
	}
	return &DocumentRepository{
		backend: backend,
		newID:   newID,
	}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *DocumentRepository) Close() error {
	return nil
}

// ReserveDocument atomically inserts doc in the SCANNED state.
func (r *DocumentRepository) ReserveDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	reserved := *doc
	reserved.Status = core.StatusScanned
	reserved.ErrorText = ""
	reserved.ChunkCount = 0
	reserved.LastIndexedAt = time.Time{}
	if reserved.ID == "" {
		reserved.ID = core.ID(r.newID())
	}
	if reserved.CreatedAt.IsZero() {
		reserved.CreatedAt = time.Now().UTC()
	}
	if err := core.ValidateDocument(&reserved); err != nil {
		return nil, err
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		// Reading the index keys inside the transaction makes a concurrent
		// reservation of the same keys fail the commit with ErrConflict.
		exists, err := keyExists(tx, makeFilenameKey(reserved.Filename))
		if err != nil {
			return err
		}
		if exists {
			return storage.ErrDuplicateKey
		}
		if reserved.ContentHash != "" {
			exists, err := keyExists(tx, makeHashKey(reserved.ContentHash))
			if err != nil {
				return err
			}
			if exists {
				return storage.ErrDuplicateKey
			}
		}
		exists, err = keyExists(tx, makeDocumentKey(reserved.ID))
		if err != nil {
			return err
		}
		if exists {
			return storage.ErrDuplicateKey
		}

		idValue := storage.MarshalID(reserved.ID)
		if err := tx.Set(makeDocumentKey(reserved.ID), storage.MarshalDocument(&reserved)); err != nil {
			return err
		}
		if err := tx.Set(makeFilenameKey(reserved.Filename), idValue); err != nil {
			return err
		}
		if reserved.ContentHash != "" {
			if err := tx.Set(makeHashKey(reserved.ContentHash), idValue); err != nil {
				return err
			}
		}
		return tx.Set(makeDocumentDateKey(reserved.CreatedAt, reserved.ID), idValue)
	})
	if err != nil {
		return nil, err
	}

	return &reserved, nil
}

// UpdateDocumentStatus applies update to the document with the given ID.
func (r *DocumentRepository) UpdateDocumentStatus(ctx context.Context, id core.ID, update core.StatusUpdate) error {
	if err := core.ValidateStatus(update.Status); err != nil {
		return err
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		doc.Status = update.Status
		doc.ErrorText = update.ErrorText
		if update.ChunkCount != 0 {
			doc.ChunkCount = update.ChunkCount
		}
		if !update.LastIndexedAt.IsZero() {
			doc.LastIndexedAt = update.LastIndexedAt.UTC()
		}
		return tx.Set(key, storage.MarshalDocument(doc))
	})
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// FindDocumentByFilename retrieves a document by its unique filename.
func (r *DocumentRepository) FindDocumentByFilename(ctx context.Context, filename string) (*core.Document, error) {
	return r.findByIndex(makeFilenameKey(filename))
}

// FindDocumentByHash retrieves a document by its content hash.
func (r *DocumentRepository) FindDocumentByHash(ctx context.Context, hash string) (*core.Document, error) {
	if hash == "" {
		return nil, storage.ErrNotFound
	}
	return r.findByIndex(makeHashKey(hash))
}

func (r *DocumentRepository) findByIndex(indexKey []byte) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		id, err := readIndex(tx, indexKey)
		if err != nil {
			return err
		}
		result, err = readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetRecentDocuments returns up to limit documents, most recently created first.
func (r *DocumentRepository) GetRecentDocuments(ctx context.Context, limit int) ([]*core.Document, error) {
	var results []*core.Document
	if limit <= 0 {
		return results, nil
	}
	err := r.backend.View(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent records first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(documentDatePrefix)
		// One past the largest possible date key
		seek := append([]byte(documentDatePrefix), 0xFF)

		for iter.Seek(seek); iter.Valid() && len(results) < limit; iter.Next() {
			key := iter.Item().Key()
			if !hasPrefix(key, prefix) {
				break
			}

			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	})
	return results, err
}

// CountDocuments returns the number of documents in storage.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// readDocument reads a document, returning nil if the key doesn't exist.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

// readIndex resolves an index key to the document ID it points at.
func readIndex(tx *badger.Txn, key []byte) (core.ID, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	var id core.ID
	err = item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}

func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
