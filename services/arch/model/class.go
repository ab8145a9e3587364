// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model holds the type graph built from raw introspection
// descriptors: classes, their members, the accesses members perform and the
// dependencies derived from them.
//
// Construction is two-phase. Phase 1 builds every Class in isolation from
// locally available descriptor data (NewClass). Phase 2 resolves all
// cross-references (superclass, enclosing class, access targets) through a
// ResolutionContext once the whole universe is built (Class.CompleteFrom).
// After completion the graph is immutable and safe for concurrent reads.
package model

import (
	"fmt"
	"sort"
	"sync"
)

// ClassID is the opaque identity handle of a class, taken verbatim from the
// raw descriptor. Equality and hashing of classes are defined solely by this
// identity, never by derived data.
type ClassID string

// FieldInput describes one declared field for NewClass.
type FieldInput struct {
	// Name is the field name. Must be unique within the class.
	Name string

	// TypeRef is the raw reference to the declared field type.
	TypeRef string
}

// CodeUnitInput describes one declared method or constructor for NewClass.
type CodeUnitInput struct {
	// Name is the member name. Ignored for constructors, which always use
	// ConstructorName.
	Name string

	// Parameters is the ordered raw parameter signature.
	Parameters []string

	// ReturnType is the raw reference to the declared return type.
	ReturnType string

	// Accesses are the unresolved accesses this code unit performs.
	Accesses []AccessRecord
}

// ClassInput is the raw material for building one Class in phase 1. It
// mirrors the per-type descriptor produced by the introspection front-end
// and contains no cross-references to other built classes.
type ClassInput struct {
	// ID is the identity handle. Must not be empty.
	ID ClassID

	// Name is the fully qualified class name.
	Name string

	// SimpleName is the class name without package qualification.
	SimpleName string

	// Package is the declaring package. Empty if none.
	Package string

	// SuperClassRef is the raw reference to the superclass. Empty if none.
	SuperClassRef string

	// EnclosingClassRef is the raw reference to the enclosing class.
	// Empty for top-level classes.
	EnclosingClassRef string

	// Fields are the declared fields.
	Fields []FieldInput

	// Methods are the declared methods.
	Methods []CodeUnitInput

	// Constructors are the declared constructors.
	Constructors []CodeUnitInput

	// StaticInitializerAccesses are the unresolved accesses performed by
	// static initialization code, if any. The static initializer itself
	// always exists, even when this is empty.
	StaticInitializerAccesses []AccessRecord
}

// Class represents one analyzed class/interface/enum unit in the type graph.
//
// Description:
//
//	A Class carries its identity, names, member sets and, after phase-2
//	completion, its hierarchy links (superclass, subclass back-links,
//	enclosing class) and its members' resolved accesses. Exactly one Class
//	exists per identity within a universe, so pointer comparison is safe
//	once classes come from the same import; Equals compares by identity
//	across builds.
//
// Thread Safety:
//
//	CompleteFrom is the only post-build mutation and may run concurrently
//	across classes of one universe (the subclass back-link set is
//	mutex-guarded). All other methods are pure reads and are safe for
//	concurrent use once completion has finished.
type Class struct {
	id         ClassID
	name       string
	simpleName string
	pkg        string

	fields            []*Field
	methods           []*CodeUnit
	constructors      []*CodeUnit
	staticInitializer *CodeUnit
	codeUnits         []*CodeUnit

	superRef     string
	enclosingRef string

	superClass     *Class
	enclosingClass *Class

	// subMu guards subClasses during parallel completion. The set is
	// written only by direct subclasses' completion steps.
	subMu      sync.Mutex
	subClasses map[ClassID]*Class
}

// NewClass builds one Class from locally available descriptor data (phase 1).
//
// Description:
//
//	Validates the construction invariants (non-empty identity, unique field
//	names, unique code unit signatures), builds all member sets including
//	the always-present static initializer, and leaves every cross-reference
//	unresolved. No other class needs to exist yet.
//
// Inputs:
//
//	in - The raw class descriptor data.
//	listener - Build observation hook. May be nil for no observation.
//
// Outputs:
//
//	*Class - The built class, nil on error.
//	error - ErrMissingIdentity or ErrDuplicateMember on invariant violation.
func NewClass(in ClassInput, listener AnalysisListener) (*Class, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("build class %q: %w", in.Name, ErrMissingIdentity)
	}
	if listener == nil {
		listener = NoopAnalysisListener{}
	}

	c := &Class{
		id:           in.ID,
		name:         in.Name,
		simpleName:   in.SimpleName,
		pkg:          in.Package,
		superRef:     in.SuperClassRef,
		enclosingRef: in.EnclosingClassRef,
		subClasses:   make(map[ClassID]*Class),
	}

	seenFields := make(map[string]struct{}, len(in.Fields))
	for _, f := range in.Fields {
		if _, dup := seenFields[f.Name]; dup {
			return nil, fmt.Errorf("build class %q: field %q: %w", in.Name, f.Name, ErrDuplicateMember)
		}
		seenFields[f.Name] = struct{}{}
		c.fields = append(c.fields, &Field{owner: c, name: f.Name, typeRef: f.TypeRef})
	}

	seenUnits := make(map[string]struct{}, len(in.Methods)+len(in.Constructors)+1)
	addUnit := func(u *CodeUnit) error {
		sig := u.Signature()
		if _, dup := seenUnits[sig]; dup {
			return fmt.Errorf("build class %q: code unit %q: %w", in.Name, sig, ErrDuplicateMember)
		}
		seenUnits[sig] = struct{}{}
		c.codeUnits = append(c.codeUnits, u)
		return nil
	}

	for _, m := range in.Methods {
		unit := &CodeUnit{
			owner:       c,
			name:        m.Name,
			kind:        KindMethod,
			parameters:  m.Parameters,
			returnType:  m.ReturnType,
			rawAccesses: m.Accesses,
		}
		if err := addUnit(unit); err != nil {
			return nil, err
		}
		c.methods = append(c.methods, unit)
		listener.OnMethodFound(c, unit)
	}

	for _, ctor := range in.Constructors {
		unit := &CodeUnit{
			owner:       c,
			name:        ConstructorName,
			kind:        KindConstructor,
			parameters:  ctor.Parameters,
			rawAccesses: ctor.Accesses,
		}
		if err := addUnit(unit); err != nil {
			return nil, err
		}
		c.constructors = append(c.constructors, unit)
		listener.OnConstructorFound(c, unit)
	}

	c.staticInitializer = &CodeUnit{
		owner:       c,
		name:        StaticInitializerName,
		kind:        KindStaticInitializer,
		rawAccesses: in.StaticInitializerAccesses,
	}
	if err := addUnit(c.staticInitializer); err != nil {
		return nil, err
	}

	return c, nil
}

// ID returns the opaque identity handle.
func (c *Class) ID() ClassID {
	return c.id
}

// Name returns the fully qualified class name.
func (c *Class) Name() string {
	return c.name
}

// SimpleName returns the class name without package qualification.
func (c *Class) SimpleName() string {
	return c.simpleName
}

// Package returns the declaring package. Empty if none.
func (c *Class) Package() string {
	return c.pkg
}

// Equals reports whether two classes wrap the same raw identity. Derived
// data never participates: two classes with identical names but distinct
// identities are not equal.
func (c *Class) Equals(other *Class) bool {
	return other != nil && c.id == other.id
}

// SuperClass returns the resolved superclass. The second return is false
// when the class has no superclass or the superclass lies outside the
// analyzed universe; either way the class acts as a hierarchy root.
func (c *Class) SuperClass() (*Class, bool) {
	return c.superClass, c.superClass != nil
}

// SuperClassRef returns the raw superclass reference from the descriptor.
// Empty if the class declared none.
func (c *Class) SuperClassRef() string {
	return c.superRef
}

// EnclosingClass returns the resolved enclosing class. The second return is
// false for top-level classes and unresolvable enclosing references.
func (c *Class) EnclosingClass() (*Class, bool) {
	return c.enclosingClass, c.enclosingClass != nil
}

// EnclosingClassRef returns the raw enclosing-class reference from the
// descriptor. Empty for top-level classes.
func (c *Class) EnclosingClassRef() string {
	return c.enclosingRef
}

// SubClasses returns the direct subclasses, sorted by name.
// Populated during completion by each subclass's own completion step.
func (c *Class) SubClasses() []*Class {
	c.subMu.Lock()
	out := make([]*Class, 0, len(c.subClasses))
	for _, sub := range c.subClasses {
		out = append(out, sub)
	}
	c.subMu.Unlock()
	sortClasses(out)
	return out
}

// AllSubClasses returns every transitive descendant, sorted by name.
//
// Each class has at most one superclass, so the descendant structure is a
// tree; the accumulating set only protects against pathological revisits.
func (c *Class) AllSubClasses() []*Class {
	seen := make(map[ClassID]*Class)
	c.collectSubClasses(seen)
	out := make([]*Class, 0, len(seen))
	for _, sub := range seen {
		out = append(out, sub)
	}
	sortClasses(out)
	return out
}

func (c *Class) collectSubClasses(seen map[ClassID]*Class) {
	for _, sub := range c.SubClasses() {
		if _, ok := seen[sub.id]; ok {
			continue
		}
		seen[sub.id] = sub
		sub.collectSubClasses(seen)
	}
}

// ClassHierarchy returns the class itself followed by its superclasses in
// ascending order, ending at the highest resolvable ancestor.
func (c *Class) ClassHierarchy() []*Class {
	return append([]*Class{c}, c.AllSuperClasses()...)
}

// AllSuperClasses returns the superclasses in ascending order, nearest
// first, without the class itself. Empty for hierarchy roots.
//
// The walk never revisits a class, so it terminates even when a front-end
// bug produced a cyclic chain; Classes.VerifyHierarchy detects and rejects
// such universes at import time.
func (c *Class) AllSuperClasses() []*Class {
	var out []*Class
	seen := map[ClassID]struct{}{c.id: {}}
	for current := c.superClass; current != nil; current = current.superClass {
		if _, revisit := seen[current.id]; revisit {
			break
		}
		seen[current.id] = struct{}{}
		out = append(out, current)
	}
	return out
}

// Fields returns the declared fields, sorted by name.
func (c *Class) Fields() []*Field {
	out := make([]*Field, len(c.fields))
	copy(out, c.fields)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Methods returns the declared methods in declaration order.
func (c *Class) Methods() []*CodeUnit {
	return c.methods
}

// Constructors returns the declared constructors in declaration order.
func (c *Class) Constructors() []*CodeUnit {
	return c.constructors
}

// StaticInitializer returns the synthetic static initializer. Never nil,
// even when the class has no static initialization code.
func (c *Class) StaticInitializer() *CodeUnit {
	return c.staticInitializer
}

// CodeUnits returns all executable members: the disjoint union of methods,
// constructors and the static initializer.
func (c *Class) CodeUnits() []*CodeUnit {
	return c.codeUnits
}

// Field returns the declared field with the given name.
//
// Outputs:
//
//	*Field - The unique matching field.
//	error - A NotFoundError carrying the query and the searched field
//	        names when no field matches.
func (c *Class) Field(name string) (*Field, error) {
	if f, ok := c.TryField(name); ok {
		return f, nil
	}
	searched := make([]string, 0, len(c.fields))
	for _, f := range c.fields {
		searched = append(searched, f.name)
	}
	return nil, fmt.Errorf("class %s: %w", c.name, newNotFound("field", name, searched))
}

// TryField returns the declared field with the given name, if any.
func (c *Class) TryField(name string) (*Field, bool) {
	for _, f := range c.fields {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// Method returns the declared method with the given name and parameter
// signature, failing with a NotFoundError otherwise.
func (c *Class) Method(name string, parameters ...string) (*CodeUnit, error) {
	return c.findCodeUnit("method", c.methods, name, parameters)
}

// TryMethod returns the declared method with the given signature, if any.
func (c *Class) TryMethod(name string, parameters ...string) (*CodeUnit, bool) {
	return tryFindCodeUnit(c.methods, name, parameters)
}

// Constructor returns the declared constructor with the given parameter
// signature, failing with a NotFoundError otherwise.
func (c *Class) Constructor(parameters ...string) (*CodeUnit, error) {
	return c.findCodeUnit("constructor", c.constructors, ConstructorName, parameters)
}

// TryConstructor returns the declared constructor with the given parameter
// signature, if any.
func (c *Class) TryConstructor(parameters ...string) (*CodeUnit, bool) {
	return tryFindCodeUnit(c.constructors, ConstructorName, parameters)
}

// CodeUnit looks up across methods, constructors and the static initializer
// uniformly. Use ConstructorName or StaticInitializerName to address the
// synthetic members.
func (c *Class) CodeUnit(name string, parameters ...string) (*CodeUnit, error) {
	return c.findCodeUnit("code unit", c.codeUnits, name, parameters)
}

// TryCodeUnit returns the code unit with the given signature, if any.
func (c *Class) TryCodeUnit(name string, parameters ...string) (*CodeUnit, bool) {
	return tryFindCodeUnit(c.codeUnits, name, parameters)
}

func (c *Class) findCodeUnit(kind string, units []*CodeUnit, name string, parameters []string) (*CodeUnit, error) {
	if u, ok := tryFindCodeUnit(units, name, parameters); ok {
		return u, nil
	}
	searched := make([]string, 0, len(units))
	for _, u := range units {
		searched = append(searched, u.Signature())
	}
	query := renderSignature(name, parameters)
	return nil, fmt.Errorf("class %s: %w", c.name, newNotFound(kind, query, searched))
}

func tryFindCodeUnit(units []*CodeUnit, name string, parameters []string) (*CodeUnit, bool) {
	for _, u := range units {
		if u.name == name && parametersEqual(u.parameters, parameters) {
			return u, true
		}
	}
	return nil, false
}

// Accesses returns every access performed by this class's own code units.
// Empty before completion.
func (c *Class) Accesses() []*Access {
	var out []*Access
	for _, u := range c.codeUnits {
		out = append(out, u.accesses...)
	}
	return out
}

// FieldAccesses returns the field reads and writes performed by this class's
// own code units.
func (c *Class) FieldAccesses() []*Access {
	return filterAccesses(c.Accesses(), func(a *Access) bool { return a.kind.IsFieldAccess() })
}

// Calls returns the method and constructor calls performed by this class's
// own code units.
func (c *Class) Calls() []*Access {
	return filterAccesses(c.Accesses(), func(a *Access) bool { return a.kind.IsCall() })
}

// MethodCalls returns the method calls performed by this class's own code
// units.
func (c *Class) MethodCalls() []*Access {
	return filterAccesses(c.Accesses(), func(a *Access) bool { return a.kind == AccessMethodCall })
}

// ConstructorCalls returns the constructor calls performed by this class's
// own code units.
func (c *Class) ConstructorCalls() []*Access {
	return filterAccesses(c.Accesses(), func(a *Access) bool { return a.kind == AccessConstructorCall })
}

// AllAccesses returns the accesses aggregated across the full ascending
// hierarchy, for consumers that count inherited members' accesses toward the
// subtype.
func (c *Class) AllAccesses() []*Access {
	var out []*Access
	for _, clazz := range c.ClassHierarchy() {
		out = append(out, clazz.Accesses()...)
	}
	return out
}

// ExternalReferences returns the unresolved access boundaries of this
// class's own code units.
func (c *Class) ExternalReferences() []ExternalReference {
	var out []ExternalReference
	for _, u := range c.codeUnits {
		out = append(out, u.externals...)
	}
	return out
}

// DirectDependencies derives the directed dependency edges from this class's
// own accesses. Self-accesses are filtered; see DependenciesFrom.
func (c *Class) DirectDependencies() []Dependency {
	return DependenciesFrom(c.Accesses())
}

// CompleteFrom resolves this class's cross-references (phase 2).
//
// Description:
//
//	Resolves the superclass and enclosing-class references through the
//	given context, registers this class in the resolved superclass's
//	subclass set, then drives completion of every owned code unit so their
//	access targets resolve through the same context. Unresolvable
//	references are valid absence, never errors. Idempotent: re-running
//	with the same context yields an identical graph.
//
// Inputs:
//
//	rc - The resolution context over the fully built universe.
//
// Thread Safety:
//
//	May run concurrently across classes of one universe. The only shared
//	write, the superclass's subclass set, is mutex-guarded.
func (c *Class) CompleteFrom(rc ResolutionContext) {
	c.completeHierarchyFrom(rc)
	c.completeCodeUnitsFrom(rc)
}

// completeHierarchyFrom resolves the superclass and enclosing-class links.
// Independent of member completion and callable in any order relative to it.
func (c *Class) completeHierarchyFrom(rc ResolutionContext) {
	if super, ok := resolveRef(rc, c.superRef); ok {
		c.superClass = super
		super.registerSubClass(c)
	}
	if enclosing, ok := resolveRef(rc, c.enclosingRef); ok {
		c.enclosingClass = enclosing
	}
}

// completeCodeUnitsFrom resolves every owned code unit's access targets.
func (c *Class) completeCodeUnitsFrom(rc ResolutionContext) {
	for _, u := range c.codeUnits {
		u.completeFrom(rc)
	}
}

// registerSubClass records a direct subclass back-link. Duplicate-safe so
// completion stays idempotent.
func (c *Class) registerSubClass(sub *Class) {
	c.subMu.Lock()
	c.subClasses[sub.id] = sub
	c.subMu.Unlock()
}

// resolveRef resolves a raw reference through the context. An empty
// reference resolves to absent without consulting the context.
func resolveRef(rc ResolutionContext, ref string) (*Class, bool) {
	if ref == "" {
		return nil, false
	}
	return rc.Resolve(ref)
}

// String implements fmt.Stringer.
func (c *Class) String() string {
	return fmt.Sprintf("Class{name='%s'}", c.name)
}

// sortClasses sorts classes by fully qualified name, breaking ties by ID so
// the order is total even across same-named classes from different builds.
func sortClasses(classes []*Class) {
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].name != classes[j].name {
			return classes[i].name < classes[j].name
		}
		return classes[i].id < classes[j].id
	})
}

// AnalysisListener observes phase-1 construction. It is a lightweight
// extension point for external bookkeeping and has no effect on the built
// graph. Invoked synchronously, once per discovered method and once per
// discovered constructor.
type AnalysisListener interface {
	// OnMethodFound is invoked for every declared method during build.
	OnMethodFound(class *Class, method *CodeUnit)

	// OnConstructorFound is invoked for every declared constructor during
	// build.
	OnConstructorFound(class *Class, constructor *CodeUnit)
}

// NoopAnalysisListener is the inert default AnalysisListener.
type NoopAnalysisListener struct{}

// OnMethodFound implements AnalysisListener.
func (NoopAnalysisListener) OnMethodFound(*Class, *CodeUnit) {}

// OnConstructorFound implements AnalysisListener.
func (NoopAnalysisListener) OnConstructorFound(*Class, *CodeUnit) {}

// ResolutionContext maps a raw type reference to the already-built Class for
// it, or reports it as external/unresolved. A context must be deterministic:
// the same reference always resolves to the same Class instance or
// consistently to absent.
type ResolutionContext interface {
	// Resolve returns the built class for the given raw reference.
	// The second return is false for references outside the analyzed
	// universe.
	Resolve(ref string) (*Class, bool)
}
