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

import "strings"

// Predicate selects classes. Rule engines compose predicates to filter sets
// of classes without depending on Class internals.
type Predicate func(*Class) bool

// Named matches classes by exact fully qualified name.
func Named(name string) Predicate {
	return func(c *Class) bool { return c.name == name }
}

// WithID matches the class wrapping the given raw identity.
func WithID(id ClassID) Predicate {
	return func(c *Class) bool { return c.id == id }
}

// HaveSimpleName matches classes by simple name.
func HaveSimpleName(name string) Predicate {
	return func(c *Class) bool { return c.simpleName == name }
}

// ResideInPackage matches classes declared exactly in the given package.
func ResideInPackage(pkg string) Predicate {
	return func(c *Class) bool { return c.pkg == pkg }
}

// ResideUnderPackage matches classes declared in the given package or any of
// its subpackages.
func ResideUnderPackage(pkg string) Predicate {
	return func(c *Class) bool {
		return c.pkg == pkg || strings.HasPrefix(c.pkg, pkg+".")
	}
}

// And matches classes satisfying every given predicate.
func And(ps ...Predicate) Predicate {
	return func(c *Class) bool {
		for _, p := range ps {
			if !p(c) {
				return false
			}
		}
		return true
	}
}

// Or matches classes satisfying at least one given predicate.
func Or(ps ...Predicate) Predicate {
	return func(c *Class) bool {
		for _, p := range ps {
			if p(c) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(c *Class) bool { return !p(c) }
}

// Filter returns the classes satisfying the predicate, preserving order.
func Filter(classes []*Class, p Predicate) []*Class {
	var out []*Class
	for _, c := range classes {
		if p(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names projects classes to their fully qualified names, preserving order.
func Names(classes []*Class) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.name
	}
	return out
}

// IDs projects classes to their raw identities, preserving order.
func IDs(classes []*Class) []ClassID {
	out := make([]ClassID, len(classes))
	for i, c := range classes {
		out[i] = c.id
	}
	return out
}
