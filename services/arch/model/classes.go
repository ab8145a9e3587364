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
	"fmt"
	"sort"
)

// Classes is the built universe: every class of one import, keyed by
// identity, with name-based resolution on top.
//
// Description:
//
//	Classes is the identity-keyed lookup structure the two-phase
//	construction collects phase-1 results into, and it implements
//	ResolutionContext so phase-2 completion resolves raw references
//	through it. Resolution is by fully qualified name and is
//	deterministic: universes with ambiguous names are rejected at
//	construction.
//
// Thread Safety:
//
//	Immutable after NewClasses; safe for concurrent reads. Completion of
//	the contained classes mutates the classes, not this collection.
type Classes struct {
	byID   map[ClassID]*Class
	byName map[string]*Class
	sorted []*Class
}

// NewClasses collects built classes into a universe.
//
// Outputs:
//
//	*Classes - The universe, nil on error.
//	error - ErrDuplicateClass or ErrDuplicateClassName when two classes
//	        collide on identity or fully qualified name.
func NewClasses(classes []*Class) (*Classes, error) {
	u := &Classes{
		byID:   make(map[ClassID]*Class, len(classes)),
		byName: make(map[string]*Class, len(classes)),
		sorted: make([]*Class, 0, len(classes)),
	}
	for _, c := range classes {
		if _, dup := u.byID[c.id]; dup {
			return nil, fmt.Errorf("class %q: %w", c.id, ErrDuplicateClass)
		}
		if _, dup := u.byName[c.name]; dup {
			return nil, fmt.Errorf("class %q: %w", c.name, ErrDuplicateClassName)
		}
		u.byID[c.id] = c
		u.byName[c.name] = c
		u.sorted = append(u.sorted, c)
	}
	sortClasses(u.sorted)
	return u, nil
}

// Len returns the number of classes in the universe.
func (u *Classes) Len() int {
	return len(u.sorted)
}

// All returns every class, sorted by fully qualified name.
// The returned slice must not be modified.
func (u *Classes) All() []*Class {
	return u.sorted
}

// Get returns the class with the given fully qualified name, failing with a
// NotFoundError carrying the searched names otherwise.
func (u *Classes) Get(name string) (*Class, error) {
	if c, ok := u.byName[name]; ok {
		return c, nil
	}
	searched := make([]string, 0, len(u.byName))
	for n := range u.byName {
		searched = append(searched, n)
	}
	sort.Strings(searched)
	return nil, newNotFound("class", name, searched)
}

// TryGet returns the class with the given fully qualified name, if any.
func (u *Classes) TryGet(name string) (*Class, bool) {
	c, ok := u.byName[name]
	return c, ok
}

// ByID returns the class with the given identity, if any.
func (u *Classes) ByID(id ClassID) (*Class, bool) {
	c, ok := u.byID[id]
	return c, ok
}

// Contain reports whether a class with the given fully qualified name is
// part of the universe.
func (u *Classes) Contain(name string) bool {
	_, ok := u.byName[name]
	return ok
}

// Resolve implements ResolutionContext over the universe. References are
// fully qualified names; anything not in the universe is external.
func (u *Classes) Resolve(ref string) (*Class, bool) {
	return u.TryGet(ref)
}

// VerifyHierarchy checks that the completed superclass links form an
// acyclic ascent.
//
// Description:
//
//	Run once after completion, before the universe is handed to readers.
//	Each class has at most one superclass, so a chain either ends at a
//	hierarchy root or loops; a loop means the front-end emitted
//	inheritance descriptors a compiler would have rejected.
//
// Outputs:
//
//	error - Non-nil when any ascent revisits a class, wrapping
//	        ErrCyclicHierarchy and naming a class on the cycle.
func (u *Classes) VerifyHierarchy() error {
	for _, c := range u.sorted {
		seen := map[ClassID]struct{}{c.id: {}}
		for current := c.superClass; current != nil; current = current.superClass {
			if _, revisit := seen[current.id]; revisit {
				return fmt.Errorf("class %q: %w", current.name, ErrCyclicHierarchy)
			}
			seen[current.id] = struct{}{}
		}
	}
	return nil
}

// Filter returns the classes satisfying the predicate, in name order.
func (u *Classes) Filter(p Predicate) []*Class {
	return Filter(u.sorted, p)
}

// AllDependencies derives the direct dependencies of every class in the
// universe, in class name order.
func (u *Classes) AllDependencies() []Dependency {
	var out []Dependency
	for _, c := range u.sorted {
		out = append(out, c.DirectDependencies()...)
	}
	return out
}
