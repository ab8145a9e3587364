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
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/archgraph/services/arch/importer"
	"github.com/AleutianAI/archgraph/services/arch/model"
)

// newTestDB creates an in-memory BadgerDB for testing.
func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestStore creates a Store with an in-memory DB.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := NewStore(newTestDB(t), logger)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

// buildTestUniverse imports a small two-class universe: Order depends on
// Customer and reads its own field.
func buildTestUniverse(t *testing.T) *model.Classes {
	t.Helper()
	order := model.ClassInput{
		ID:         "proj:com.acme.Order",
		Name:       "com.acme.Order",
		SimpleName: "Order",
		Package:    "com.acme",
		Fields:     []model.FieldInput{{Name: "total", TypeRef: "java.math.BigDecimal"}},
		Methods: []model.CodeUnitInput{{
			Name: "charge",
			Accesses: []model.AccessRecord{
				{Kind: model.AccessFieldRead, TargetOwner: "com.acme.Order", TargetName: "total", Line: 12},
				{Kind: model.AccessMethodCall, TargetOwner: "com.acme.Customer", TargetName: "notify", Line: 13},
				{Kind: model.AccessMethodCall, TargetOwner: "java.io.PrintStream", TargetName: "println", Line: 14},
			},
		}},
	}
	customer := model.ClassInput{
		ID:         "proj:com.acme.Customer",
		Name:       "com.acme.Customer",
		SimpleName: "Customer",
		Package:    "com.acme",
		Methods:    []model.CodeUnitInput{{Name: "notify"}},
	}
	result, err := importer.New().Import(context.Background(), []model.ClassInput{order, customer})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	return result.Classes
}

func TestToSerializable(t *testing.T) {
	universe := buildTestUniverse(t)

	t.Run("deterministic output and hash", func(t *testing.T) {
		first, err := ToSerializable(universe, "/proj")
		if err != nil {
			t.Fatalf("ToSerializable failed: %v", err)
		}
		second, err := ToSerializable(universe, "/proj")
		if err != nil {
			t.Fatalf("ToSerializable failed: %v", err)
		}
		if first.UniverseHash == "" || first.UniverseHash != second.UniverseHash {
			t.Errorf("hashes differ: %q vs %q", first.UniverseHash, second.UniverseHash)
		}
		if len(first.Classes) != 2 {
			t.Fatalf("serialized %d classes, want 2", len(first.Classes))
		}
		// Sorted by fully qualified name.
		if first.Classes[0].Name != "com.acme.Customer" {
			t.Errorf("Classes[0] = %s", first.Classes[0].Name)
		}
	})

	t.Run("external references survive serialization", func(t *testing.T) {
		s, err := ToSerializable(universe, "/proj")
		if err != nil {
			t.Fatalf("ToSerializable failed: %v", err)
		}
		var order SerializableClass
		for _, c := range s.Classes {
			if c.SimpleName == "Order" {
				order = c
			}
		}
		if len(order.Methods) != 1 {
			t.Fatalf("order methods = %d", len(order.Methods))
		}
		if got := len(order.Methods[0].Accesses); got != 3 {
			t.Errorf("serialized accesses = %d, want 3 (including external)", got)
		}
	})

	t.Run("unresolvable enclosing ref survives the roundtrip", func(t *testing.T) {
		inner := model.ClassInput{
			ID:                "proj:ext.Outer$Inner",
			Name:              "ext.Outer$Inner",
			SimpleName:        "Inner",
			Package:           "ext",
			EnclosingClassRef: "ext.Outer",
		}
		result, err := importer.New().Import(context.Background(), []model.ClassInput{inner})
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		s, err := ToSerializable(result.Classes, "/proj")
		if err != nil {
			t.Fatalf("ToSerializable failed: %v", err)
		}
		if got := s.Classes[0].EnclosingClassRef; got != "ext.Outer" {
			t.Errorf("serialized enclosing ref = %q, want raw ref", got)
		}
		descriptors, err := s.ToDescriptors()
		if err != nil {
			t.Fatalf("ToDescriptors failed: %v", err)
		}
		if got := descriptors[0].EnclosingClassRef; got != "ext.Outer" {
			t.Errorf("roundtrip enclosing ref = %q, want raw ref", got)
		}
	})

	t.Run("roundtrip through descriptors rebuilds the graph", func(t *testing.T) {
		s, err := ToSerializable(universe, "/proj")
		if err != nil {
			t.Fatalf("ToSerializable failed: %v", err)
		}
		descriptors, err := s.ToDescriptors()
		if err != nil {
			t.Fatalf("ToDescriptors failed: %v", err)
		}
		result, err := importer.New().Import(context.Background(), descriptors)
		if err != nil {
			t.Fatalf("re-import failed: %v", err)
		}

		order, err := result.Classes.Get("com.acme.Order")
		if err != nil {
			t.Fatalf("Get(Order) failed: %v", err)
		}
		if got := len(order.DirectDependencies()); got != 1 {
			t.Errorf("rebuilt Order dependencies = %d, want 1", got)
		}
		if got := len(order.ExternalReferences()); got != 1 {
			t.Errorf("rebuilt Order external refs = %d, want 1", got)
		}

		again, err := ToSerializable(result.Classes, "/proj")
		if err != nil {
			t.Fatalf("ToSerializable failed: %v", err)
		}
		if again.UniverseHash != s.UniverseHash {
			t.Error("roundtrip changed the universe hash")
		}
	})
}

func TestStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)
	universe := buildTestUniverse(t)
	ctx := context.Background()

	meta, err := store.Save(ctx, universe, "/proj", "initial")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if meta.SnapshotID == "" || meta.ClassCount != 2 {
		t.Errorf("metadata = %+v", meta)
	}

	t.Run("load by id", func(t *testing.T) {
		loaded, loadedMeta, err := store.Load(ctx, meta.SnapshotID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loadedMeta.Label != "initial" {
			t.Errorf("label = %q", loadedMeta.Label)
		}
		order, err := loaded.Get("com.acme.Order")
		if err != nil {
			t.Fatalf("Get(Order) failed: %v", err)
		}
		if got := len(order.DirectDependencies()); got != 1 {
			t.Errorf("loaded Order dependencies = %d, want 1", got)
		}
	})

	t.Run("load latest", func(t *testing.T) {
		loaded, loadedMeta, err := store.LoadLatest(ctx, "/proj")
		if err != nil {
			t.Fatalf("LoadLatest failed: %v", err)
		}
		if loadedMeta.SnapshotID != meta.SnapshotID {
			t.Errorf("latest = %s, want %s", loadedMeta.SnapshotID, meta.SnapshotID)
		}
		if loaded.Len() != 2 {
			t.Errorf("loaded universe size = %d", loaded.Len())
		}
	})

	t.Run("list", func(t *testing.T) {
		metas, err := store.List(ctx, "/proj")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(metas) != 1 || metas[0].SnapshotID != meta.SnapshotID {
			t.Errorf("List = %+v", metas)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.Delete(ctx, meta.SnapshotID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, _, err := store.Load(ctx, meta.SnapshotID); !errors.Is(err, ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.Load(ctx, "deadbeef00000000"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Load: expected ErrSnapshotNotFound, got %v", err)
	}
	if _, _, err := store.LoadLatest(ctx, "/nowhere"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("LoadLatest: expected ErrSnapshotNotFound, got %v", err)
	}
}
