// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AleutianAI/archgraph/services/arch/model"
)

// descriptor creates a minimal class descriptor.
func descriptor(name string) model.ClassInput {
	return model.ClassInput{
		ID:         model.ClassID("test:" + name),
		Name:       name,
		SimpleName: name,
	}
}

func TestImporter_Import(t *testing.T) {
	t.Run("forward references resolve", func(t *testing.T) {
		// A is built before its superclass B exists; B is built before
		// its caller C exists. Both directions must link.
		a := descriptor("A")
		a.SuperClassRef = "B"
		b := descriptor("B")
		b.Methods = []model.CodeUnitInput{{Name: "helper"}}
		c := descriptor("C")
		c.Methods = []model.CodeUnitInput{{
			Name: "run",
			Accesses: []model.AccessRecord{
				{Kind: model.AccessMethodCall, TargetOwner: "B", TargetName: "helper"},
			},
		}}

		result, err := New().Import(context.Background(), []model.ClassInput{a, b, c})
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		classA, _ := result.Classes.TryGet("A")
		classB, _ := result.Classes.TryGet("B")
		classC, _ := result.Classes.TryGet("C")
		if classA == nil || classB == nil || classC == nil {
			t.Fatal("universe incomplete")
		}

		if super, ok := classA.SuperClass(); !ok || !super.Equals(classB) {
			t.Error("A.SuperClass did not resolve to B")
		}
		deps := classC.DirectDependencies()
		if len(deps) != 1 || !deps[0].Target.Equals(classB) {
			t.Errorf("C dependencies = %v, want one edge to B", deps)
		}
	})

	t.Run("stats reflect the import", func(t *testing.T) {
		a := descriptor("A")
		a.Methods = []model.CodeUnitInput{{
			Name: "run",
			Accesses: []model.AccessRecord{
				{Kind: model.AccessMethodCall, TargetOwner: "B", TargetName: "helper"},
				{Kind: model.AccessMethodCall, TargetOwner: "ext.Lib", TargetName: "call"},
			},
		}}
		b := descriptor("B")
		b.Methods = []model.CodeUnitInput{{Name: "helper"}}

		result, err := New().Import(context.Background(), []model.ClassInput{a, b})
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if result.Stats.ClassesBuilt != 2 {
			t.Errorf("ClassesBuilt = %d", result.Stats.ClassesBuilt)
		}
		// run + helper + two static initializers.
		if result.Stats.CodeUnits != 4 {
			t.Errorf("CodeUnits = %d", result.Stats.CodeUnits)
		}
		if result.Stats.AccessesResolved != 1 {
			t.Errorf("AccessesResolved = %d", result.Stats.AccessesResolved)
		}
		if result.Stats.ExternalReferences != 1 {
			t.Errorf("ExternalReferences = %d", result.Stats.ExternalReferences)
		}
	})

	t.Run("duplicate identity is fatal", func(t *testing.T) {
		_, err := New().Import(context.Background(), []model.ClassInput{
			descriptor("A"), descriptor("A"),
		})
		if !errors.Is(err, model.ErrDuplicateClass) {
			t.Errorf("expected ErrDuplicateClass, got %v", err)
		}
	})

	t.Run("missing identity is fatal", func(t *testing.T) {
		bad := descriptor("A")
		bad.ID = ""
		_, err := New().Import(context.Background(), []model.ClassInput{bad})
		if !errors.Is(err, model.ErrMissingIdentity) {
			t.Errorf("expected ErrMissingIdentity, got %v", err)
		}
	})

	t.Run("cyclic superclass chain is fatal", func(t *testing.T) {
		a := descriptor("A")
		a.SuperClassRef = "B"
		b := descriptor("B")
		b.SuperClassRef = "A"
		result, err := New().Import(context.Background(), []model.ClassInput{a, b})
		if !errors.Is(err, model.ErrCyclicHierarchy) {
			t.Errorf("expected ErrCyclicHierarchy, got %v", err)
		}
		if result != nil {
			t.Error("failed import must not return a universe")
		}
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New().Import(ctx, []model.ClassInput{descriptor("A")})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("empty import yields empty universe", func(t *testing.T) {
		result, err := New().Import(context.Background(), nil)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if result.Classes.Len() != 0 {
			t.Errorf("universe size = %d", result.Classes.Len())
		}
	})
}

func TestImporter_ParallelCompletion(t *testing.T) {
	// Many subclasses of one root: their completion steps all write the
	// root's subclass set concurrently.
	descriptors := []model.ClassInput{descriptor("Root")}
	for r := 'A'; r <= 'Z'; r++ {
		d := descriptor(string(r))
		d.SuperClassRef = "Root"
		descriptors = append(descriptors, d)
	}

	result, err := New(WithWorkerCount(8)).Import(context.Background(), descriptors)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	root, _ := result.Classes.TryGet("Root")
	if got := len(root.SubClasses()); got != 26 {
		t.Errorf("root has %d subclasses, want 26", got)
	}
	if got := len(root.AllSubClasses()); got != 26 {
		t.Errorf("root has %d transitive subclasses, want 26", got)
	}
}

func TestImporter_Listener(t *testing.T) {
	var methods, constructors atomic.Int64
	listener := countingListener{methods: &methods, constructors: &constructors}

	a := descriptor("A")
	a.Methods = []model.CodeUnitInput{{Name: "one"}, {Name: "two"}}
	a.Constructors = []model.CodeUnitInput{{}}

	if _, err := New(WithListener(listener)).Import(context.Background(), []model.ClassInput{a}); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if methods.Load() != 2 {
		t.Errorf("listener saw %d methods, want 2", methods.Load())
	}
	if constructors.Load() != 1 {
		t.Errorf("listener saw %d constructors, want 1", constructors.Load())
	}
}

// countingListener counts build observations.
type countingListener struct {
	methods      *atomic.Int64
	constructors *atomic.Int64
}

func (l countingListener) OnMethodFound(*model.Class, *model.CodeUnit) { l.methods.Add(1) }

func (l countingListener) OnConstructorFound(*model.Class, *model.CodeUnit) { l.constructors.Add(1) }

func TestImporter_Progress(t *testing.T) {
	var mu sync.Mutex
	seen := map[Phase]int{}
	progress := func(phase Phase, done, total int) {
		mu.Lock()
		seen[phase]++
		mu.Unlock()
	}

	descriptors := []model.ClassInput{descriptor("A"), descriptor("B")}
	if _, err := New(WithProgress(progress)).Import(context.Background(), descriptors); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[PhaseBuild] != 2 {
		t.Errorf("build progress calls = %d, want 2", seen[PhaseBuild])
	}
	if seen[PhaseComplete] != 2 {
		t.Errorf("complete progress calls = %d, want 2", seen[PhaseComplete])
	}
}

func TestImporter_ProgressMonotonic(t *testing.T) {
	// Completion runs across workers; done must still count finished
	// completions, not whichever class a worker happened to pick up.
	var mu sync.Mutex
	var completed []int
	progress := func(phase Phase, done, total int) {
		if phase != PhaseComplete {
			return
		}
		mu.Lock()
		completed = append(completed, done)
		mu.Unlock()
	}

	descriptors := make([]model.ClassInput, 0, 40)
	for n := 0; n < 40; n++ {
		descriptors = append(descriptors, descriptor(fmt.Sprintf("C%02d", n)))
	}
	imp := New(WithWorkerCount(8), WithProgress(progress))
	if _, err := imp.Import(context.Background(), descriptors); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(completed) != 40 {
		t.Fatalf("completion progress calls = %d, want 40", len(completed))
	}
	for n, done := range completed {
		if done != n+1 {
			t.Fatalf("completion progress = %v, want 1..40 in order", completed)
		}
	}
}
