// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/archgraph/services/arch/importer"
	"github.com/AleutianAI/archgraph/services/arch/model"
)

// BadgerDB key prefixes for universe snapshots.
const (
	keyPrefixSnap      = "arch:snap:"
	keyPrefixSnapIndex = "arch:snap:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// ErrSnapshotNotFound indicates the requested snapshot does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Metadata contains metadata about a saved universe snapshot.
type Metadata struct {
	// SnapshotID is the unique identifier for this snapshot.
	// Derived from SHA256(ProjectRoot + UniverseHash)[:16].
	SnapshotID string `json:"snapshot_id"`

	// ProjectRoot is the project the universe was imported from.
	ProjectRoot string `json:"project_root"`

	// ProjectHash is SHA256(ProjectRoot)[:16] for key grouping.
	ProjectHash string `json:"project_hash"`

	// UniverseHash is the deterministic hash of the class data.
	UniverseHash string `json:"universe_hash"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// CreatedAtMilli is when the snapshot was saved (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// ClassCount is the number of classes in the universe.
	ClassCount int `json:"class_count"`

	// SchemaVersion is the serialization schema version.
	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the size of the gzip-compressed JSON payload.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 hash of the compressed payload.
	ContentHash string `json:"content_hash"`
}

// Store manages saving and loading universe snapshots in BadgerDB.
//
// Description:
//
//	Provides CRUD operations for snapshots stored as gzip-compressed JSON
//	in BadgerDB. Loading reconstructs the universe by re-running the
//	two-phase import over the deserialized descriptors, so a loaded
//	universe is indistinguishable from a freshly imported one.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewStore creates a snapshot store over an opened BadgerDB instance.
// The DB is owned by the caller and must outlive the store.
func NewStore(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Save persists a universe snapshot.
//
// Description:
//
//	Serializes the universe deterministically, gzip-compresses the JSON
//	payload and stores data, metadata, a per-project latest pointer and a
//	reverse index entry in one transaction.
//
// Key Schema:
//
//	arch:snap:{projectHash}:{snapshotID}:data → gzip(JSON(SerializableUniverse))
//	arch:snap:{projectHash}:{snapshotID}:meta → JSON(Metadata)
//	arch:snap:{projectHash}:latest            → snapshotID
//	arch:snap:index:{snapshotID}              → projectHash
func (s *Store) Save(ctx context.Context, universe *model.Classes, projectRoot, label string) (*Metadata, error) {
	if universe == nil {
		return nil, fmt.Errorf("universe must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	serializable, err := ToSerializable(universe, projectRoot)
	if err != nil {
		return nil, fmt.Errorf("serializing universe: %w", err)
	}
	payload, err := json.Marshal(serializable)
	if err != nil {
		return nil, fmt.Errorf("marshaling universe: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing universe: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	compressedData := compressed.Bytes()

	projectHash := hashString(projectRoot)[:16]
	snapshotID := hashString(projectRoot + ":" + serializable.UniverseHash)[:16]

	meta := &Metadata{
		SnapshotID:     snapshotID,
		ProjectRoot:    projectRoot,
		ProjectHash:    projectHash,
		UniverseHash:   serializable.UniverseHash,
		Label:          label,
		CreatedAtMilli: time.Now().UnixMilli(),
		ClassCount:     universe.Len(),
		SchemaVersion:  SchemaVersion,
		CompressedSize: int64(len(compressedData)),
		ContentHash:    hashString(string(compressedData)),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + projectHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(latestKey), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(indexKey), []byte(projectHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	s.logger.Info("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("project_root", projectRoot),
		slog.Int("class_count", meta.ClassCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a universe snapshot by its ID and reconstructs the
// universe with a fresh two-phase import.
func (s *Store) Load(ctx context.Context, snapshotID string) (*model.Classes, *Metadata, error) {
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}
	projectHash, err := s.getProjectHash(snapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return s.loadByKeys(ctx, projectHash, snapshotID)
}

// LoadLatest loads the most recent snapshot for a project root.
func (s *Store) LoadLatest(ctx context.Context, projectRoot string) (*model.Classes, *Metadata, error) {
	if projectRoot == "" {
		return nil, nil, fmt.Errorf("project root must not be empty")
	}
	projectHash := hashString(projectRoot)[:16]
	latestKey := keyPrefixSnap + projectHash + keySuffixLatest

	var snapshotID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snapshotID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("project %s: %w", projectRoot, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer: %w", err)
	}
	return s.loadByKeys(ctx, projectHash, snapshotID)
}

// List returns snapshot metadata, newest first. An empty projectRoot lists
// every project.
func (s *Store) List(ctx context.Context, projectRoot string) ([]*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(keyPrefixSnap)
	if projectRoot != "" {
		prefix = []byte(keyPrefixSnap + hashString(projectRoot)[:16] + ":")
	}

	var metas []*Metadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !bytes.HasSuffix(item.Key(), []byte(keySuffixMeta)) {
				continue
			}
			err := item.Value(func(val []byte) error {
				var meta Metadata
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("unmarshaling metadata: %w", err)
				}
				metas = append(metas, &meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAtMilli > metas[j].CreatedAtMilli
	})
	return metas, nil
}

// Delete removes a snapshot and its index entries.
func (s *Store) Delete(ctx context.Context, snapshotID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	projectHash, err := s.getProjectHash(snapshotID)
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}

	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta
	indexKey := keyPrefixSnapIndex + snapshotID

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{dataKey, metaKey, indexKey} {
			if err := txn.Delete([]byte(key)); err != nil {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}

	s.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

// loadByKeys loads and reconstructs one snapshot from its storage keys.
func (s *Store) loadByKeys(ctx context.Context, projectHash, snapshotID string) (*model.Classes, *Metadata, error) {
	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta

	var compressedData, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataKey))
		if err != nil {
			return err
		}
		compressedData, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		metaJSON, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("snapshot %s: %w", snapshotID, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	payload, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot: %w", err)
	}
	if err := gr.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing gzip reader: %w", err)
	}

	var serializable SerializableUniverse
	if err := json.Unmarshal(payload, &serializable); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling universe: %w", err)
	}
	descriptors, err := serializable.ToDescriptors()
	if err != nil {
		return nil, nil, fmt.Errorf("reconstructing descriptors: %w", err)
	}

	result, err := importer.New().Import(ctx, descriptors)
	if err != nil {
		return nil, nil, fmt.Errorf("re-importing universe: %w", err)
	}
	return result.Classes, &meta, nil
}

// getProjectHash resolves a snapshot ID to its project hash via the reverse
// index.
func (s *Store) getProjectHash(snapshotID string) (string, error) {
	indexKey := keyPrefixSnapIndex + snapshotID
	var projectHash string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			projectHash = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrSnapshotNotFound
	}
	if err != nil {
		return "", err
	}
	return projectHash, nil
}

// hashString returns the SHA256 hex digest of a string.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
