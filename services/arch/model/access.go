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

// AccessKind discriminates the kinds of member access.
type AccessKind int

const (
	// AccessFieldRead is a read of a field.
	AccessFieldRead AccessKind = iota

	// AccessFieldWrite is a write of a field.
	AccessFieldWrite

	// AccessMethodCall is an invocation of a method.
	AccessMethodCall

	// AccessConstructorCall is an invocation of a constructor.
	AccessConstructorCall
)

// String returns the string representation of the AccessKind.
func (k AccessKind) String() string {
	switch k {
	case AccessFieldRead:
		return "field_read"
	case AccessFieldWrite:
		return "field_write"
	case AccessMethodCall:
		return "method_call"
	case AccessConstructorCall:
		return "constructor_call"
	default:
		return "unknown"
	}
}

// IsFieldAccess reports whether the kind is a field read or write.
func (k AccessKind) IsFieldAccess() bool {
	return k == AccessFieldRead || k == AccessFieldWrite
}

// IsCall reports whether the kind is a method or constructor call.
func (k AccessKind) IsCall() bool {
	return k == AccessMethodCall || k == AccessConstructorCall
}

// AccessRecord is one unresolved access occurrence as reported by the
// introspection front-end. Target references are raw fully qualified names;
// resolution happens during phase-2 completion.
type AccessRecord struct {
	// Kind discriminates reads, writes, method calls and constructor calls.
	Kind AccessKind

	// TargetOwner is the raw reference to the class owning the target member.
	TargetOwner string

	// TargetName is the target member name. ConstructorName for
	// constructor calls.
	TargetName string

	// TargetParameters is the raw parameter signature of a call target.
	// Empty for field accesses.
	TargetParameters []string

	// Line is the source line of the occurrence, 1-based. Zero if unknown.
	Line int
}

// AccessTarget identifies the resolved target of an access: the owning class
// plus the member's name and parameter signature.
//
// The target member itself is looked up on demand rather than resolved at
// completion time: an access may legitimately target a member the owner
// inherits rather than declares, in which case the declared-member lookup
// comes back empty while the owner link stays valid.
type AccessTarget struct {
	// Owner is the class owning the target member. Never nil: accesses
	// whose owner cannot be resolved are recorded as ExternalReference
	// instead of Access.
	Owner *Class

	// Name is the target member name.
	Name string

	// Parameters is the parameter signature of a call target.
	Parameters []string
}

// Field returns the declared target field, if the owner declares it.
func (t AccessTarget) Field() (*Field, bool) {
	return t.Owner.TryField(t.Name)
}

// CodeUnit returns the declared target code unit, if the owner declares it.
func (t AccessTarget) CodeUnit() (*CodeUnit, bool) {
	return t.Owner.TryCodeUnit(t.Name, t.Parameters...)
}

// String implements fmt.Stringer.
func (t AccessTarget) String() string {
	return t.Owner.Name() + "." + renderSignature(t.Name, t.Parameters)
}

// Access represents one resolved occurrence of a code unit referencing a
// member of a class inside the analyzed universe.
//
// Thread Safety: Immutable after completion; safe for concurrent reads.
type Access struct {
	origin *CodeUnit
	target AccessTarget
	kind   AccessKind
	line   int
}

// Origin returns the code unit performing the access. Never nil.
func (a *Access) Origin() *CodeUnit {
	return a.origin
}

// OriginOwner returns the class owning the performing code unit.
func (a *Access) OriginOwner() *Class {
	return a.origin.Owner()
}

// Target returns the resolved access target.
func (a *Access) Target() AccessTarget {
	return a.target
}

// Kind returns the access kind.
func (a *Access) Kind() AccessKind {
	return a.kind
}

// Line returns the source line of the occurrence, 1-based. Zero if unknown.
func (a *Access) Line() int {
	return a.line
}

// String implements fmt.Stringer.
func (a *Access) String() string {
	return fmt.Sprintf("Access{%s %s -> %s}", a.kind, a.origin.FullName(), a.target)
}

// ExternalReference records an access whose target owner lies outside the
// analyzed universe. Only the raw name survives; no Access and no Dependency
// is materialized for it. This is the boundary of the analyzed universe, not
// an error.
type ExternalReference struct {
	// Origin is the code unit performing the access. Never nil.
	Origin *CodeUnit

	// OwnerRef is the raw reference to the unresolved target owner.
	OwnerRef string

	// Name is the target member name.
	Name string

	// Kind is the access kind of the occurrence.
	Kind AccessKind

	// Line is the source line of the occurrence, 1-based. Zero if unknown.
	Line int
}

// String implements fmt.Stringer.
func (r ExternalReference) String() string {
	return fmt.Sprintf("ExternalReference{%s %s -> %s.%s}", r.Kind, r.Origin.FullName(), r.OwnerRef, r.Name)
}
