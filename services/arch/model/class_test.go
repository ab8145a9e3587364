// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"errors"
	"strings"
	"testing"
)

// classInput creates a minimal class descriptor with names derived from the
// fully qualified name.
func classInput(name string) ClassInput {
	simple := name
	pkg := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		simple = name[i+1:]
		pkg = name[:i]
	}
	return ClassInput{
		ID:         ClassID("test:" + name),
		Name:       name,
		SimpleName: simple,
		Package:    pkg,
	}
}

// buildUniverse builds and completes a universe from the given inputs.
func buildUniverse(t *testing.T, inputs ...ClassInput) *Classes {
	t.Helper()

	classes := make([]*Class, 0, len(inputs))
	for _, in := range inputs {
		c, err := NewClass(in, nil)
		if err != nil {
			t.Fatalf("NewClass(%s) failed: %v", in.Name, err)
		}
		classes = append(classes, c)
	}

	universe, err := NewClasses(classes)
	if err != nil {
		t.Fatalf("NewClasses failed: %v", err)
	}
	for _, c := range universe.All() {
		c.CompleteFrom(universe)
	}
	return universe
}

// mustGet fetches a class from the universe or fails the test.
func mustGet(t *testing.T, u *Classes, name string) *Class {
	t.Helper()
	c, err := u.Get(name)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", name, err)
	}
	return c
}

func TestClass_Identity(t *testing.T) {
	t.Run("equality depends only on identity", func(t *testing.T) {
		in := classInput("com.acme.Order")
		first, err := NewClass(in, nil)
		if err != nil {
			t.Fatalf("NewClass failed: %v", err)
		}
		second, err := NewClass(in, nil)
		if err != nil {
			t.Fatalf("NewClass failed: %v", err)
		}
		if !first.Equals(second) {
			t.Error("two builds of the same identity must be equal")
		}
	})

	t.Run("distinct identities unequal even with identical names", func(t *testing.T) {
		a := classInput("com.acme.Order")
		b := classInput("com.acme.Order")
		b.ID = "other:com.acme.Order"

		first, _ := NewClass(a, nil)
		second, _ := NewClass(b, nil)
		if first.Equals(second) {
			t.Error("distinct identities must not compare equal")
		}
	})

	t.Run("usable as map key via identity", func(t *testing.T) {
		c, _ := NewClass(classInput("com.acme.Order"), nil)
		m := map[ClassID]*Class{c.ID(): c}
		if m[c.ID()] != c {
			t.Error("lookup by identity key failed")
		}
	})

	t.Run("missing identity rejected", func(t *testing.T) {
		in := classInput("com.acme.Order")
		in.ID = ""
		if _, err := NewClass(in, nil); !errors.Is(err, ErrMissingIdentity) {
			t.Errorf("expected ErrMissingIdentity, got %v", err)
		}
	})

	t.Run("names and package", func(t *testing.T) {
		c, _ := NewClass(classInput("com.acme.Order"), nil)
		if c.Name() != "com.acme.Order" {
			t.Errorf("Name = %q", c.Name())
		}
		if c.SimpleName() != "Order" {
			t.Errorf("SimpleName = %q", c.SimpleName())
		}
		if c.Package() != "com.acme" {
			t.Errorf("Package = %q", c.Package())
		}
	})
}

func TestClass_Hierarchy(t *testing.T) {
	// A extends B extends root.
	root := classInput("java.lang.Object")
	b := classInput("com.acme.B")
	b.SuperClassRef = "java.lang.Object"
	a := classInput("com.acme.A")
	a.SuperClassRef = "com.acme.B"

	universe := buildUniverse(t, root, b, a)
	classA := mustGet(t, universe, "com.acme.A")
	classB := mustGet(t, universe, "com.acme.B")
	classRoot := mustGet(t, universe, "java.lang.Object")

	t.Run("class hierarchy ascends from self to root", func(t *testing.T) {
		got := Names(classA.ClassHierarchy())
		want := []string{"com.acme.A", "com.acme.B", "java.lang.Object"}
		if len(got) != len(want) {
			t.Fatalf("hierarchy = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("hierarchy[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("all super classes exclude self", func(t *testing.T) {
		got := Names(classA.AllSuperClasses())
		if len(got) != 2 || got[0] != "com.acme.B" || got[1] != "java.lang.Object" {
			t.Errorf("AllSuperClasses = %v", got)
		}
	})

	t.Run("root has no super classes", func(t *testing.T) {
		if got := classRoot.AllSuperClasses(); len(got) != 0 {
			t.Errorf("root AllSuperClasses = %v, want empty", Names(got))
		}
	})

	t.Run("superclass back-link symmetry", func(t *testing.T) {
		super, ok := classA.SuperClass()
		if !ok || !super.Equals(classB) {
			t.Fatalf("A.SuperClass = %v, want B", super)
		}
		found := false
		for _, sub := range classB.SubClasses() {
			if sub.Equals(classA) {
				found = true
			}
		}
		if !found {
			t.Error("A missing from B.SubClasses")
		}
	})

	t.Run("all subclasses are transitive", func(t *testing.T) {
		got := Names(classRoot.AllSubClasses())
		if len(got) != 2 || got[0] != "com.acme.A" || got[1] != "com.acme.B" {
			t.Errorf("root AllSubClasses = %v", got)
		}
	})

	t.Run("unresolvable superclass leaves hierarchy root", func(t *testing.T) {
		orphan := classInput("com.acme.Orphan")
		orphan.SuperClassRef = "external.Unknown"
		u := buildUniverse(t, orphan)
		c := mustGet(t, u, "com.acme.Orphan")
		if _, ok := c.SuperClass(); ok {
			t.Error("external superclass must resolve to absent")
		}
		if got := c.ClassHierarchy(); len(got) != 1 {
			t.Errorf("hierarchy = %v, want only self", Names(got))
		}
	})

	t.Run("enclosing class resolves like superclass", func(t *testing.T) {
		outer := classInput("com.acme.Outer")
		inner := classInput("com.acme.Outer$Inner")
		inner.EnclosingClassRef = "com.acme.Outer"
		u := buildUniverse(t, outer, inner)

		enclosing, ok := mustGet(t, u, "com.acme.Outer$Inner").EnclosingClass()
		if !ok || enclosing.Name() != "com.acme.Outer" {
			t.Errorf("EnclosingClass = %v, %v", enclosing, ok)
		}
		if _, ok := mustGet(t, u, "com.acme.Outer").EnclosingClass(); ok {
			t.Error("top-level class must have no enclosing class")
		}
	})
}

func TestClass_CyclicHierarchy(t *testing.T) {
	// Mutually recursive extends: a compiler rejects this, but a
	// source-level front-end still emits descriptors for it.
	a := classInput("com.acme.A")
	a.SuperClassRef = "com.acme.B"
	b := classInput("com.acme.B")
	b.SuperClassRef = "com.acme.A"

	universe := buildUniverse(t, a, b)
	classA := mustGet(t, universe, "com.acme.A")

	t.Run("hierarchy walks terminate", func(t *testing.T) {
		supers := classA.AllSuperClasses()
		if len(supers) != 1 || supers[0].Name() != "com.acme.B" {
			t.Errorf("AllSuperClasses = %v", Names(supers))
		}
		if got := len(classA.ClassHierarchy()); got != 2 {
			t.Errorf("len(ClassHierarchy) = %d, want 2", got)
		}
		if got := len(classA.AllAccesses()); got != 0 {
			t.Errorf("len(AllAccesses) = %d, want 0", got)
		}
	})

	t.Run("verification reports the cycle", func(t *testing.T) {
		if err := universe.VerifyHierarchy(); !errors.Is(err, ErrCyclicHierarchy) {
			t.Errorf("expected ErrCyclicHierarchy, got %v", err)
		}
	})

	t.Run("self extends is a cycle of one", func(t *testing.T) {
		selfish := classInput("com.acme.Selfish")
		selfish.SuperClassRef = "com.acme.Selfish"
		u := buildUniverse(t, selfish)
		c := mustGet(t, u, "com.acme.Selfish")
		if got := len(c.AllSuperClasses()); got != 0 {
			t.Errorf("len(AllSuperClasses) = %d, want 0", got)
		}
		if err := u.VerifyHierarchy(); !errors.Is(err, ErrCyclicHierarchy) {
			t.Errorf("expected ErrCyclicHierarchy, got %v", err)
		}
	})

	t.Run("acyclic universe verifies clean", func(t *testing.T) {
		root := classInput("com.acme.Root")
		leaf := classInput("com.acme.Leaf")
		leaf.SuperClassRef = "com.acme.Root"
		u := buildUniverse(t, root, leaf)
		if err := u.VerifyHierarchy(); err != nil {
			t.Errorf("VerifyHierarchy = %v, want nil", err)
		}
	})
}

func TestClass_CompletionIdempotence(t *testing.T) {
	b := classInput("com.acme.B")
	a := classInput("com.acme.A")
	a.SuperClassRef = "com.acme.B"
	a.Methods = []CodeUnitInput{{
		Name: "run",
		Accesses: []AccessRecord{
			{Kind: AccessMethodCall, TargetOwner: "com.acme.B", TargetName: "helper"},
		},
	}}

	universe := buildUniverse(t, a, b)
	classA := mustGet(t, universe, "com.acme.A")
	classB := mustGet(t, universe, "com.acme.B")

	// Complete a second time over the same built graph.
	for _, c := range universe.All() {
		c.CompleteFrom(universe)
	}

	if got := len(classB.SubClasses()); got != 1 {
		t.Errorf("B.SubClasses has %d entries after double completion, want 1", got)
	}
	if got := len(classA.Accesses()); got != 1 {
		t.Errorf("A has %d accesses after double completion, want 1", got)
	}
}

func TestClass_MemberLookup(t *testing.T) {
	in := classInput("com.acme.Order")
	in.Fields = []FieldInput{{Name: "total", TypeRef: "java.math.BigDecimal"}}
	in.Methods = []CodeUnitInput{
		{Name: "charge", Parameters: []string{"java.lang.String"}},
		{Name: "charge"},
	}
	in.Constructors = []CodeUnitInput{{Parameters: []string{"int"}}}

	universe := buildUniverse(t, in)
	order := mustGet(t, universe, "com.acme.Order")

	t.Run("try field absent", func(t *testing.T) {
		if _, ok := order.TryField("x"); ok {
			t.Error("TryField(x) should be absent")
		}
	})

	t.Run("strict field absent fails with NotFound", func(t *testing.T) {
		_, err := order.Field("x")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatal("expected NotFoundError")
		}
		if nf.Query != "x" {
			t.Errorf("NotFoundError.Query = %q", nf.Query)
		}
		if len(nf.Searched) != 1 || nf.Searched[0] != "total" {
			t.Errorf("NotFoundError.Searched = %v", nf.Searched)
		}
	})

	t.Run("strict and try agree on present field", func(t *testing.T) {
		strict, err := order.Field("total")
		if err != nil {
			t.Fatalf("Field(total) failed: %v", err)
		}
		try, ok := order.TryField("total")
		if !ok || try != strict {
			t.Error("TryField and Field disagree")
		}
		if strict.Owner() != order {
			t.Error("field owner not set")
		}
		if strict.FullName() != "com.acme.Order.total" {
			t.Errorf("FullName = %q", strict.FullName())
		}
	})

	t.Run("method lookup distinguishes parameter signatures", func(t *testing.T) {
		with, err := order.Method("charge", "java.lang.String")
		if err != nil {
			t.Fatalf("Method(charge,String) failed: %v", err)
		}
		without, err := order.Method("charge")
		if err != nil {
			t.Fatalf("Method(charge) failed: %v", err)
		}
		if with == without {
			t.Error("overloads must be distinct code units")
		}
	})

	t.Run("constructor lookup uses synthetic name", func(t *testing.T) {
		ctor, err := order.Constructor("int")
		if err != nil {
			t.Fatalf("Constructor(int) failed: %v", err)
		}
		if ctor.Name() != ConstructorName {
			t.Errorf("constructor name = %q", ctor.Name())
		}
		if _, err := order.Constructor("long"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("code unit lookup spans all executable members", func(t *testing.T) {
		if _, err := order.CodeUnit("charge", "java.lang.String"); err != nil {
			t.Errorf("CodeUnit(charge) failed: %v", err)
		}
		if _, err := order.CodeUnit(ConstructorName, "int"); err != nil {
			t.Errorf("CodeUnit(<init>) failed: %v", err)
		}
		clinit, err := order.CodeUnit(StaticInitializerName)
		if err != nil {
			t.Fatalf("CodeUnit(<clinit>) failed: %v", err)
		}
		if clinit != order.StaticInitializer() {
			t.Error("CodeUnit(<clinit>) is not the static initializer")
		}
	})

	t.Run("code units are the disjoint union", func(t *testing.T) {
		want := len(order.Methods()) + len(order.Constructors()) + 1
		if got := len(order.CodeUnits()); got != want {
			t.Errorf("len(CodeUnits) = %d, want %d", got, want)
		}
	})

	t.Run("static initializer always present", func(t *testing.T) {
		bare, _ := NewClass(classInput("com.acme.Empty"), nil)
		init := bare.StaticInitializer()
		if init == nil {
			t.Fatal("static initializer missing")
		}
		if init.Kind() != KindStaticInitializer {
			t.Errorf("kind = %v", init.Kind())
		}
		if len(init.Parameters()) != 0 {
			t.Error("static initializer must have no parameters")
		}
	})

	t.Run("duplicate member signature rejected", func(t *testing.T) {
		bad := classInput("com.acme.Bad")
		bad.Methods = []CodeUnitInput{{Name: "run"}, {Name: "run"}}
		if _, err := NewClass(bad, nil); !errors.Is(err, ErrDuplicateMember) {
			t.Errorf("expected ErrDuplicateMember, got %v", err)
		}
	})
}

func TestClass_Accesses(t *testing.T) {
	// Order.charge() reads its own total field and calls Customer.notify().
	order := classInput("com.acme.Order")
	order.Fields = []FieldInput{{Name: "total", TypeRef: "java.math.BigDecimal"}}
	order.Methods = []CodeUnitInput{{
		Name: "charge",
		Accesses: []AccessRecord{
			{Kind: AccessFieldRead, TargetOwner: "com.acme.Order", TargetName: "total", Line: 12},
			{Kind: AccessMethodCall, TargetOwner: "com.acme.Customer", TargetName: "notify", Line: 13},
		},
	}}
	customer := classInput("com.acme.Customer")
	customer.Methods = []CodeUnitInput{{Name: "notify"}}

	universe := buildUniverse(t, order, customer)
	classOrder := mustGet(t, universe, "com.acme.Order")
	classCustomer := mustGet(t, universe, "com.acme.Customer")

	t.Run("direct accesses split into field accesses and calls", func(t *testing.T) {
		if got := len(classOrder.Accesses()); got != 2 {
			t.Fatalf("len(Accesses) = %d, want 2", got)
		}
		if got := len(classOrder.FieldAccesses()); got != 1 {
			t.Errorf("len(FieldAccesses) = %d, want 1", got)
		}
		if got := len(classOrder.Calls()); got != 1 {
			t.Errorf("len(Calls) = %d, want 1", got)
		}
	})

	t.Run("access carries origin and resolved target", func(t *testing.T) {
		call := classOrder.Calls()[0]
		if call.Origin().FullName() != "com.acme.Order.charge" {
			t.Errorf("origin = %s", call.Origin().FullName())
		}
		if !call.Target().Owner.Equals(classCustomer) {
			t.Errorf("target owner = %s", call.Target().Owner)
		}
		target, ok := call.Target().CodeUnit()
		if !ok || target.Name() != "notify" {
			t.Errorf("target code unit = %v, %v", target, ok)
		}
	})

	t.Run("order depends only on customer", func(t *testing.T) {
		deps := classOrder.DirectDependencies()
		if len(deps) != 1 {
			t.Fatalf("len(dependencies) = %d, want 1 (self access filtered)", len(deps))
		}
		if !deps[0].Target.Equals(classCustomer) {
			t.Errorf("dependency target = %s", deps[0].Target)
		}
		if deps[0].Access.Kind() != AccessMethodCall {
			t.Errorf("representative access kind = %v", deps[0].Access.Kind())
		}
	})

	t.Run("customer has no dependencies", func(t *testing.T) {
		if deps := classCustomer.DirectDependencies(); len(deps) != 0 {
			t.Errorf("customer dependencies = %v, want none", deps)
		}
	})

	t.Run("all accesses aggregate across hierarchy", func(t *testing.T) {
		base := classInput("com.acme.Base")
		base.Methods = []CodeUnitInput{{
			Name: "log",
			Accesses: []AccessRecord{
				{Kind: AccessMethodCall, TargetOwner: "com.acme.Sink", TargetName: "write"},
			},
		}}
		derived := classInput("com.acme.Derived")
		derived.SuperClassRef = "com.acme.Base"
		sink := classInput("com.acme.Sink")
		sink.Methods = []CodeUnitInput{{Name: "write"}}

		u := buildUniverse(t, base, derived, sink)
		d := mustGet(t, u, "com.acme.Derived")
		if got := len(d.Accesses()); got != 0 {
			t.Errorf("derived direct accesses = %d, want 0", got)
		}
		if got := len(d.AllAccesses()); got != 1 {
			t.Errorf("derived all accesses = %d, want 1", got)
		}
	})

	t.Run("unresolvable target becomes external reference", func(t *testing.T) {
		caller := classInput("com.acme.Caller")
		caller.Methods = []CodeUnitInput{{
			Name: "run",
			Accesses: []AccessRecord{
				{Kind: AccessMethodCall, TargetOwner: "java.io.PrintStream", TargetName: "println"},
			},
		}}
		u := buildUniverse(t, caller)
		c := mustGet(t, u, "com.acme.Caller")

		if got := len(c.Accesses()); got != 0 {
			t.Errorf("accesses = %d, want 0 (target is external)", got)
		}
		ext := c.ExternalReferences()
		if len(ext) != 1 {
			t.Fatalf("external references = %d, want 1", len(ext))
		}
		if ext[0].OwnerRef != "java.io.PrintStream" || ext[0].Name != "println" {
			t.Errorf("external reference = %v", ext[0])
		}
		if deps := c.DirectDependencies(); len(deps) != 0 {
			t.Error("external references must not produce dependencies")
		}
	})
}

func TestClass_AnalysisListener(t *testing.T) {
	type found struct {
		class string
		unit  string
	}
	var methods, constructors []found

	listener := &recordingListener{
		onMethod: func(c *Class, u *CodeUnit) {
			methods = append(methods, found{c.Name(), u.Name()})
		},
		onConstructor: func(c *Class, u *CodeUnit) {
			constructors = append(constructors, found{c.Name(), u.Name()})
		},
	}

	in := classInput("com.acme.Order")
	in.Methods = []CodeUnitInput{{Name: "charge"}, {Name: "cancel"}}
	in.Constructors = []CodeUnitInput{{}}
	if _, err := NewClass(in, listener); err != nil {
		t.Fatalf("NewClass failed: %v", err)
	}

	if len(methods) != 2 {
		t.Errorf("listener saw %d methods, want 2", len(methods))
	}
	if len(constructors) != 1 {
		t.Errorf("listener saw %d constructors, want 1", len(constructors))
	}
	if len(constructors) > 0 && constructors[0].unit != ConstructorName {
		t.Errorf("constructor reported as %q", constructors[0].unit)
	}
}

// recordingListener is a test AnalysisListener backed by callbacks.
type recordingListener struct {
	onMethod      func(*Class, *CodeUnit)
	onConstructor func(*Class, *CodeUnit)
}

func (l *recordingListener) OnMethodFound(c *Class, u *CodeUnit) { l.onMethod(c, u) }

func (l *recordingListener) OnConstructorFound(c *Class, u *CodeUnit) { l.onConstructor(c, u) }

func TestClasses_Universe(t *testing.T) {
	t.Run("duplicate identity rejected", func(t *testing.T) {
		a, _ := NewClass(classInput("com.acme.A"), nil)
		dup, _ := NewClass(classInput("com.acme.A"), nil)
		if _, err := NewClasses([]*Class{a, dup}); !errors.Is(err, ErrDuplicateClass) {
			t.Errorf("expected ErrDuplicateClass, got %v", err)
		}
	})

	t.Run("duplicate name with distinct identity rejected", func(t *testing.T) {
		a, _ := NewClass(classInput("com.acme.A"), nil)
		other := classInput("com.acme.A")
		other.ID = "elsewhere:com.acme.A"
		b, _ := NewClass(other, nil)
		if _, err := NewClasses([]*Class{a, b}); !errors.Is(err, ErrDuplicateClassName) {
			t.Errorf("expected ErrDuplicateClassName, got %v", err)
		}
	})

	t.Run("strict get fails with NotFound", func(t *testing.T) {
		u := buildUniverse(t, classInput("com.acme.A"))
		if _, err := u.Get("com.acme.Missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("resolution is deterministic", func(t *testing.T) {
		u := buildUniverse(t, classInput("com.acme.A"), classInput("com.acme.B"))
		first, ok1 := u.Resolve("com.acme.A")
		second, ok2 := u.Resolve("com.acme.A")
		if !ok1 || !ok2 || first != second {
			t.Error("same reference must resolve to same instance")
		}
		if _, ok := u.Resolve("com.acme.Missing"); ok {
			t.Error("unknown reference must consistently resolve to absent")
		}
	})

	t.Run("all is sorted by name", func(t *testing.T) {
		u := buildUniverse(t, classInput("com.acme.B"), classInput("com.acme.A"))
		names := Names(u.All())
		if names[0] != "com.acme.A" || names[1] != "com.acme.B" {
			t.Errorf("All order = %v", names)
		}
	})
}
