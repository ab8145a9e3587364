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
	"strings"
)

// Reserved synthetic member names. Constructors and the static initializer
// share the member namespace with methods; these names disambiguate them.
const (
	// ConstructorName is the synthetic name of every constructor.
	ConstructorName = "<init>"

	// StaticInitializerName is the synthetic name of the static initializer.
	StaticInitializerName = "<clinit>"
)

// CodeUnitKind discriminates the three kinds of executable members.
type CodeUnitKind int

const (
	// KindMethod is a regular named method.
	KindMethod CodeUnitKind = iota

	// KindConstructor is a constructor (name ConstructorName).
	KindConstructor

	// KindStaticInitializer is the synthetic static initializer
	// (name StaticInitializerName, no parameters).
	KindStaticInitializer
)

// String returns the string representation of the CodeUnitKind.
func (k CodeUnitKind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindStaticInitializer:
		return "static_initializer"
	default:
		return "unknown"
	}
}

// Field represents one declared field of a class.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type Field struct {
	owner   *Class
	name    string
	typeRef string
}

// Owner returns the class that declares this field. Never nil.
func (f *Field) Owner() *Class {
	return f.owner
}

// Name returns the field name.
func (f *Field) Name() string {
	return f.name
}

// TypeRef returns the raw reference to the declared field type.
func (f *Field) TypeRef() string {
	return f.typeRef
}

// FullName returns the fully qualified field name, e.g. "com.acme.Order.total".
func (f *Field) FullName() string {
	return f.owner.Name() + "." + f.name
}

// String implements fmt.Stringer.
func (f *Field) String() string {
	return fmt.Sprintf("Field{%s}", f.FullName())
}

// CodeUnit represents one executable member: a method, a constructor, or the
// synthetic static initializer.
//
// Description:
//
//	A code unit owns the set of accesses (field reads/writes, method calls,
//	constructor calls) it performs. Accesses are empty until phase-2
//	completion resolves their targets against the built universe. Access
//	targets that fall outside the analyzed universe are retained as
//	name-only ExternalReference records instead.
//
// Thread Safety:
//
//	Mutated exactly once, by completion. Immutable and safe for concurrent
//	reads afterwards.
type CodeUnit struct {
	owner      *Class
	name       string
	kind       CodeUnitKind
	parameters []string
	returnType string

	// rawAccesses is the unresolved access list from the descriptor,
	// retained so completion can be re-run deterministically.
	rawAccesses []AccessRecord

	accesses  []*Access
	externals []ExternalReference
}

// Owner returns the class that declares this code unit. Never nil.
func (u *CodeUnit) Owner() *Class {
	return u.owner
}

// Name returns the member name. Constructors report ConstructorName and the
// static initializer reports StaticInitializerName.
func (u *CodeUnit) Name() string {
	return u.name
}

// Kind returns the code unit kind.
func (u *CodeUnit) Kind() CodeUnitKind {
	return u.kind
}

// Parameters returns the ordered raw parameter type references.
// The returned slice must not be modified.
func (u *CodeUnit) Parameters() []string {
	return u.parameters
}

// ReturnType returns the raw reference to the declared return type.
// Empty for constructors and the static initializer.
func (u *CodeUnit) ReturnType() string {
	return u.returnType
}

// FullName returns the fully qualified name, e.g. "com.acme.Order.charge".
func (u *CodeUnit) FullName() string {
	return u.owner.Name() + "." + u.name
}

// Signature returns the rendered signature, e.g. "charge(java.lang.String)".
func (u *CodeUnit) Signature() string {
	return renderSignature(u.name, u.parameters)
}

// Accesses returns every resolved access this code unit performs.
// Empty before completion. The returned slice must not be modified.
func (u *CodeUnit) Accesses() []*Access {
	return u.accesses
}

// FieldAccesses returns the resolved field reads and writes this code unit
// performs.
func (u *CodeUnit) FieldAccesses() []*Access {
	return filterAccesses(u.accesses, func(a *Access) bool { return a.kind.IsFieldAccess() })
}

// Calls returns the resolved method and constructor calls this code unit
// performs.
func (u *CodeUnit) Calls() []*Access {
	return filterAccesses(u.accesses, func(a *Access) bool { return a.kind.IsCall() })
}

// ExternalReferences returns the accesses whose target owner could not be
// resolved within the analyzed universe. Empty before completion.
func (u *CodeUnit) ExternalReferences() []ExternalReference {
	return u.externals
}

// completeFrom resolves this code unit's raw accesses through the given
// resolution context. Called once per import by the class's completion step;
// re-running with the same context yields an identical result because the
// access sets are rebuilt, never appended to.
func (u *CodeUnit) completeFrom(rc ResolutionContext) {
	accesses := make([]*Access, 0, len(u.rawAccesses))
	var externals []ExternalReference

	for _, raw := range u.rawAccesses {
		owner, ok := rc.Resolve(raw.TargetOwner)
		if !ok {
			externals = append(externals, ExternalReference{
				Origin:   u,
				OwnerRef: raw.TargetOwner,
				Name:     raw.TargetName,
				Kind:     raw.Kind,
				Line:     raw.Line,
			})
			continue
		}
		accesses = append(accesses, &Access{
			origin: u,
			target: AccessTarget{
				Owner:      owner,
				Name:       raw.TargetName,
				Parameters: raw.TargetParameters,
			},
			kind: raw.Kind,
			line: raw.Line,
		})
	}

	u.accesses = accesses
	u.externals = externals
}

// String implements fmt.Stringer.
func (u *CodeUnit) String() string {
	return fmt.Sprintf("CodeUnit{%s.%s}", u.owner.Name(), u.Signature())
}

// renderSignature renders "name(param1,param2)" for diagnostics and lookup.
func renderSignature(name string, parameters []string) string {
	return name + "(" + strings.Join(parameters, ",") + ")"
}

// filterAccesses returns the accesses matching the given predicate.
func filterAccesses(accesses []*Access, keep func(*Access) bool) []*Access {
	var out []*Access
	for _, a := range accesses {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// parametersEqual reports whether two ordered parameter signatures match.
func parametersEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
