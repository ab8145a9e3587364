// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot persists completed type graph universes: a deterministic
// JSON representation plus a BadgerDB-backed snapshot store.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/archgraph/services/arch/model"
)

// SchemaVersion is the version of the serialization schema.
// Increment when the serialization format changes in a breaking way.
const SchemaVersion = "1.0"

// SerializableUniverse is the JSON-serializable representation of a
// completed universe.
//
// Description:
//
//	Contains the raw descriptor data of every class, sorted by fully
//	qualified name for deterministic output, enabling reliable diffing and
//	content hashing. Cross-references are stored as raw references, so a
//	universe is reconstructed by re-running the two-phase import over the
//	deserialized descriptors.
//
// Thread Safety: SerializableUniverse is a value type with no internal state.
type SerializableUniverse struct {
	// SchemaVersion identifies the serialization format version.
	SchemaVersion string `json:"schema_version"`

	// ProjectRoot is the project the universe was imported from.
	ProjectRoot string `json:"project_root"`

	// UniverseHash is the deterministic hash of the class data.
	UniverseHash string `json:"universe_hash"`

	// Classes contains all classes, sorted by fully qualified name.
	Classes []SerializableClass `json:"classes"`
}

// SerializableClass is the JSON-serializable representation of one class.
type SerializableClass struct {
	ID                string                   `json:"id"`
	Name              string                   `json:"name"`
	SimpleName        string                   `json:"simple_name"`
	Package           string                   `json:"package,omitempty"`
	SuperClassRef     string                   `json:"super_class_ref,omitempty"`
	EnclosingClassRef string                   `json:"enclosing_class_ref,omitempty"`
	Fields            []SerializableField      `json:"fields,omitempty"`
	Methods           []SerializableCodeUnit   `json:"methods,omitempty"`
	Constructors      []SerializableCodeUnit   `json:"constructors,omitempty"`
	StaticInitializer []SerializableAccess     `json:"static_initializer,omitempty"`
}

// SerializableField is the JSON-serializable representation of one field.
type SerializableField struct {
	Name    string `json:"name"`
	TypeRef string `json:"type_ref,omitempty"`
}

// SerializableCodeUnit is the JSON-serializable representation of one
// method or constructor.
type SerializableCodeUnit struct {
	Name       string               `json:"name,omitempty"`
	Parameters []string             `json:"parameters,omitempty"`
	ReturnType string               `json:"return_type,omitempty"`
	Accesses   []SerializableAccess `json:"accesses,omitempty"`
}

// SerializableAccess is the JSON-serializable representation of one raw
// access occurrence.
type SerializableAccess struct {
	Kind             string   `json:"kind"`
	TargetOwner      string   `json:"target_owner"`
	TargetName       string   `json:"target_name"`
	TargetParameters []string `json:"target_parameters,omitempty"`
	Line             int      `json:"line,omitempty"`
}

// ToSerializable converts a completed universe to its deterministic
// serializable representation.
//
// Description:
//
//	Walks every class in name order and captures the raw descriptor data,
//	including unresolved external references, so the original import is
//	fully reproducible. The universe hash is SHA256 over the canonical
//	JSON of the class list.
//
// Complexity: O(C log C + M) for C classes and M members.
func ToSerializable(universe *model.Classes, projectRoot string) (*SerializableUniverse, error) {
	out := &SerializableUniverse{
		SchemaVersion: SchemaVersion,
		ProjectRoot:   projectRoot,
		Classes:       make([]SerializableClass, 0, universe.Len()),
	}

	for _, c := range universe.All() {
		sc := SerializableClass{
			ID:                string(c.ID()),
			Name:              c.Name(),
			SimpleName:        c.SimpleName(),
			Package:           c.Package(),
			SuperClassRef:     c.SuperClassRef(),
			EnclosingClassRef: c.EnclosingClassRef(),
			StaticInitializer: serializeAccesses(c.StaticInitializer()),
		}
		for _, f := range c.Fields() {
			sc.Fields = append(sc.Fields, SerializableField{Name: f.Name(), TypeRef: f.TypeRef()})
		}
		for _, m := range c.Methods() {
			sc.Methods = append(sc.Methods, SerializableCodeUnit{
				Name:       m.Name(),
				Parameters: m.Parameters(),
				ReturnType: m.ReturnType(),
				Accesses:   serializeAccesses(m),
			})
		}
		for _, ctor := range c.Constructors() {
			sc.Constructors = append(sc.Constructors, SerializableCodeUnit{
				Parameters: ctor.Parameters(),
				Accesses:   serializeAccesses(ctor),
			})
		}
		out.Classes = append(out.Classes, sc)
	}

	hash, err := hashClasses(out.Classes)
	if err != nil {
		return nil, err
	}
	out.UniverseHash = hash
	return out, nil
}

// serializeAccesses captures a code unit's occurrences: resolved accesses
// first, then the external boundary references, both in completion order.
func serializeAccesses(u *model.CodeUnit) []SerializableAccess {
	var out []SerializableAccess
	for _, a := range u.Accesses() {
		out = append(out, SerializableAccess{
			Kind:             a.Kind().String(),
			TargetOwner:      a.Target().Owner.Name(),
			TargetName:       a.Target().Name,
			TargetParameters: a.Target().Parameters,
			Line:             a.Line(),
		})
	}
	for _, ext := range u.ExternalReferences() {
		out = append(out, SerializableAccess{
			Kind:        ext.Kind.String(),
			TargetOwner: ext.OwnerRef,
			TargetName:  ext.Name,
			Line:        ext.Line,
		})
	}
	return out
}

// ToDescriptors converts a serialized universe back into raw class
// descriptors, ready for a fresh two-phase import.
func (s *SerializableUniverse) ToDescriptors() ([]model.ClassInput, error) {
	descriptors := make([]model.ClassInput, 0, len(s.Classes))
	for _, sc := range s.Classes {
		in := model.ClassInput{
			ID:                model.ClassID(sc.ID),
			Name:              sc.Name,
			SimpleName:        sc.SimpleName,
			Package:           sc.Package,
			SuperClassRef:     sc.SuperClassRef,
			EnclosingClassRef: sc.EnclosingClassRef,
		}
		for _, f := range sc.Fields {
			in.Fields = append(in.Fields, model.FieldInput{Name: f.Name, TypeRef: f.TypeRef})
		}
		for _, m := range sc.Methods {
			accesses, err := deserializeAccesses(m.Accesses)
			if err != nil {
				return nil, fmt.Errorf("class %s method %s: %w", sc.Name, m.Name, err)
			}
			in.Methods = append(in.Methods, model.CodeUnitInput{
				Name:       m.Name,
				Parameters: m.Parameters,
				ReturnType: m.ReturnType,
				Accesses:   accesses,
			})
		}
		for _, ctor := range sc.Constructors {
			accesses, err := deserializeAccesses(ctor.Accesses)
			if err != nil {
				return nil, fmt.Errorf("class %s constructor: %w", sc.Name, err)
			}
			in.Constructors = append(in.Constructors, model.CodeUnitInput{
				Parameters: ctor.Parameters,
				Accesses:   accesses,
			})
		}
		clinit, err := deserializeAccesses(sc.StaticInitializer)
		if err != nil {
			return nil, fmt.Errorf("class %s static initializer: %w", sc.Name, err)
		}
		in.StaticInitializerAccesses = clinit
		descriptors = append(descriptors, in)
	}
	return descriptors, nil
}

func deserializeAccesses(accesses []SerializableAccess) ([]model.AccessRecord, error) {
	var out []model.AccessRecord
	for _, a := range accesses {
		kind, err := parseAccessKind(a.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, model.AccessRecord{
			Kind:             kind,
			TargetOwner:      a.TargetOwner,
			TargetName:       a.TargetName,
			TargetParameters: a.TargetParameters,
			Line:             a.Line,
		})
	}
	return out, nil
}

func parseAccessKind(s string) (model.AccessKind, error) {
	switch s {
	case "field_read":
		return model.AccessFieldRead, nil
	case "field_write":
		return model.AccessFieldWrite, nil
	case "method_call":
		return model.AccessMethodCall, nil
	case "constructor_call":
		return model.AccessConstructorCall, nil
	default:
		return 0, fmt.Errorf("unknown access kind %q", s)
	}
}

// hashClasses computes the SHA256 hex digest of the canonical JSON of the
// sorted class list.
func hashClasses(classes []SerializableClass) (string, error) {
	payload, err := json.Marshal(classes)
	if err != nil {
		return "", fmt.Errorf("hash universe: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
