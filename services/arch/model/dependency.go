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

import "fmt"

// Dependency is a derived directed edge between two distinct classes,
// extracted from one access between them. Never stored on the graph; always
// recomputed from accesses.
//
// Invariant: Origin never equals Target. A class accessing its own members
// produces no dependency.
type Dependency struct {
	// Origin is the class performing the access.
	Origin *Class

	// Target is the class owning the accessed member.
	Target *Class

	// Access is the representative access this edge was derived from,
	// kept for diagnostics.
	Access *Access
}

// String implements fmt.Stringer.
func (d Dependency) String() string {
	return fmt.Sprintf("Dependency{%s -> %s via %s}", d.Origin.Name(), d.Target.Name(), d.Access.Kind())
}

// DependenciesFrom derives dependency edges from a set of accesses.
//
// Description:
//
//	Emits one Dependency per access whose target owner differs from the
//	origin's owner class. Self-accesses are filtered unconditionally. No
//	deduplication happens here: multiple accesses between the same ordered
//	pair of classes yield one entry each, and collapsing them is the
//	consuming rule engine's concern.
//
// Outputs:
//
//	[]Dependency - At most len(accesses) entries, with equality exactly
//	when no access is self-targeted.
func DependenciesFrom(accesses []*Access) []Dependency {
	var out []Dependency
	for _, a := range accesses {
		origin := a.OriginOwner()
		target := a.Target().Owner
		if origin.Equals(target) {
			continue
		}
		out = append(out, Dependency{Origin: origin, Target: target, Access: a})
	}
	return out
}
