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
	"fmt"
	"strings"
)

// Sentinel errors for construction invariant violations. These signal a bug
// in the introspection front-end, not a recoverable condition.
var (
	// ErrMissingIdentity indicates a class descriptor was supplied without
	// an identity handle.
	ErrMissingIdentity = errors.New("class identity must not be empty")

	// ErrDuplicateClass indicates two classes with the same identity were
	// supplied to the same universe.
	ErrDuplicateClass = errors.New("duplicate class identity")

	// ErrDuplicateClassName indicates two classes with distinct identities
	// but the same fully qualified name were supplied to the same universe.
	// Reference resolution would be ambiguous, so this is rejected outright.
	ErrDuplicateClassName = errors.New("duplicate fully qualified class name")

	// ErrDuplicateMember indicates a class declared two members with the
	// same name and parameter signature.
	ErrDuplicateMember = errors.New("duplicate member signature")

	// ErrCyclicHierarchy indicates completion linked a superclass chain
	// that loops back on itself. A compiler rejects such code, but a
	// source-level front-end can still emit the descriptors for it.
	ErrCyclicHierarchy = errors.New("cyclic superclass chain")

	// ErrNotFound is the sentinel wrapped by every NotFoundError.
	// Use errors.Is(err, ErrNotFound) to detect failed strict lookups.
	ErrNotFound = errors.New("not found")
)

// NotFoundError is returned by strict lookups when zero candidates match.
//
// Description:
//
//	Carries the query and the searched collection so callers can diagnose
//	what they asked for and what was actually available. Strict lookup
//	failure indicates a caller programming error and is never recovered
//	internally.
//
// Thread Safety: Immutable after creation.
type NotFoundError struct {
	// Kind is the category that was searched: "class", "field", "method",
	// "constructor" or "code unit".
	Kind string

	// Query is the rendered name/signature that was requested.
	Query string

	// Searched contains the rendered signatures of the candidates that
	// were examined.
	Searched []string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	searched := "(none)"
	if len(e.Searched) > 0 {
		searched = strings.Join(e.Searched, ", ")
	}
	return fmt.Sprintf("no %s matching %q in [%s]: %s", e.Kind, e.Query, searched, ErrNotFound)
}

// Unwrap returns ErrNotFound so errors.Is(err, ErrNotFound) works.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// newNotFound builds a NotFoundError for the given kind and query over the
// searched signatures.
func newNotFound(kind, query string, searched []string) *NotFoundError {
	return &NotFoundError{Kind: kind, Query: query, Searched: searched}
}
