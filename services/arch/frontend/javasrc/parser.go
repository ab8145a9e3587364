// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package javasrc is a source-level introspection front-end for Java. It
// parses Java files with tree-sitter and produces the raw class descriptors
// the importer consumes.
//
// Reference resolution at this level is purely lexical: simple type names
// resolve through the file's imports, the classes declared in the file and
// the file's own package, in that order. Receivers that cannot be attributed
// to a type (chained calls, unknown variables) produce no access record;
// whether an attributed reference is internal or external is decided later
// by the importer, not here.
package javasrc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/AleutianAI/archgraph/services/arch/model"
)

// Default parser limits.
const (
	// DefaultMaxFileSize is the maximum file size the parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// Sentinel parse errors.
var (
	// ErrFileTooLarge indicates the content exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// javaLangClasses are the java.lang types referenced without an import.
// Unqualified names in this set resolve to "java.lang.<name>".
var javaLangClasses = map[string]struct{}{
	"Object": {}, "String": {}, "System": {}, "Math": {}, "Thread": {},
	"Integer": {}, "Long": {}, "Double": {}, "Float": {}, "Short": {},
	"Byte": {}, "Boolean": {}, "Character": {}, "Number": {}, "Void": {},
	"StringBuilder": {}, "StringBuffer": {}, "Iterable": {}, "Runnable": {},
	"Exception": {}, "RuntimeException": {}, "Error": {}, "Throwable": {},
	"IllegalArgumentException": {}, "IllegalStateException": {},
	"NullPointerException": {}, "UnsupportedOperationException": {},
	"Class": {}, "Enum": {}, "Comparable": {}, "CharSequence": {},
}

// ParseResult contains the descriptors extracted from one Java file.
type ParseResult struct {
	// FilePath is the parsed file, relative to the project root.
	FilePath string

	// Package is the declared package. Empty for the default package.
	Package string

	// Hash is the SHA256 hex digest of the file content.
	Hash string

	// Classes are the raw descriptors of every class, interface and enum
	// declared in the file, including nested ones.
	Classes []model.ClassInput

	// Errors contains non-fatal extraction problems, e.g. syntax errors
	// tree-sitter recovered from.
	Errors []string
}

// Option configures a Parser instance.
type Option func(*Parser)

// WithMaxFileSize sets the maximum file size the parser will accept.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// Parser extracts raw class descriptors from Java source code.
//
// Thread Safety:
//
//	Parser instances are safe for concurrent use. Each Parse call creates
//	its own tree-sitter parser internally.
type Parser struct {
	maxFileSize int64
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts class descriptors from Java source code.
//
// Description:
//
//	Parses the content with tree-sitter and extracts one descriptor per
//	declared class, interface or enum, including nested declarations.
//	The parser is error-tolerant: syntactically invalid code yields
//	partial results with entries in ParseResult.Errors.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked before and after parsing;
//	      tree-sitter itself cannot be interrupted mid-parse.
//	content - Raw Java source bytes. Must be valid UTF-8.
//	filePath - Path of the file, used for descriptor identities.
//
// Outputs:
//
//	*ParseResult - Extracted descriptors. Never nil on success.
//	error - ErrFileTooLarge, ErrInvalidContent, or a context error.
//
// Thread Safety: Safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParse(time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParse(time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if !utf8.Valid(content) {
		recordParse(time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParse(time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParse(time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath: filePath,
		Hash:     hex.EncodeToString(hash[:]),
	}

	root := tree.RootNode()
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	ext := &extraction{
		content:  content,
		filePath: filePath,
		imports:  make(map[string]string),
		declared: make(map[string]string),
	}
	ext.pkg = extractPackage(root, content)
	result.Package = ext.pkg

	extractImports(root, content, ext.imports)

	// First pass: register every declared type so same-file references
	// resolve regardless of declaration order.
	registerDeclarations(root, content, ext.pkg, "", ext.declared)

	// Second pass: extract descriptors.
	ext.extractClasses(root, "", "")
	result.Classes = ext.classes

	setParseSpanResult(span, len(result.Classes), len(result.Errors))
	recordParse(time.Since(start), len(result.Classes), true)
	return result, nil
}

// Language returns the canonical language name for this parser.
func (p *Parser) Language() string {
	return "java"
}

// Extensions returns the file extensions this parser handles.
func (p *Parser) Extensions() []string {
	return []string{".java"}
}

// classDeclTypes are the node types that declare a class-like unit.
var classDeclTypes = map[string]struct{}{
	"class_declaration":     {},
	"interface_declaration": {},
	"enum_declaration":      {},
}

// extractPackage returns the declared package name, empty if absent.
func extractPackage(root *sitter.Node, content []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "package_declaration" {
			for j := 0; j < int(child.NamedChildCount()); j++ {
				sub := child.NamedChild(j)
				if sub.Type() == "scoped_identifier" || sub.Type() == "identifier" {
					return sub.Content(content)
				}
			}
		}
	}
	return ""
}

// extractImports fills simple-name → fully-qualified-name mappings from
// single-type import declarations. Wildcard and static imports carry no
// per-type mapping and are skipped.
func extractImports(root *sitter.Node, content []byte, imports map[string]string) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "import_declaration" {
			continue
		}
		static := false
		wildcard := false
		var path string
		for j := 0; j < int(child.ChildCount()); j++ {
			sub := child.Child(j)
			switch sub.Type() {
			case "static":
				static = true
			case "asterisk":
				wildcard = true
			case "scoped_identifier", "identifier":
				path = sub.Content(content)
			}
		}
		if static || wildcard || path == "" {
			continue
		}
		if dot := strings.LastIndexByte(path, '.'); dot > 0 {
			imports[path[dot+1:]] = path
		}
	}
}

// registerDeclarations records the binary name of every class-like
// declaration under node, keyed by simple name. Nested classes use the
// "Outer$Inner" form.
func registerDeclarations(node *sitter.Node, content []byte, pkg, enclosing string, declared map[string]string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if _, ok := classDeclTypes[child.Type()]; ok {
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			simple := nameNode.Content(content)
			binary := simple
			if enclosing != "" {
				binary = enclosing + "$" + simple
			}
			declared[simple] = qualify(pkg, binary)
			if body := child.ChildByFieldName("body"); body != nil {
				registerDeclarations(body, content, pkg, binary, declared)
			}
			continue
		}
		registerDeclarations(child, content, pkg, enclosing, declared)
	}
}

// qualify joins a package and a binary class name.
func qualify(pkg, binary string) string {
	if pkg == "" {
		return binary
	}
	return pkg + "." + binary
}

// extraction holds per-file state during descriptor extraction.
type extraction struct {
	content  []byte
	filePath string
	pkg      string

	// imports maps simple names to fully qualified names.
	imports map[string]string

	// declared maps simple names of same-file declarations to their
	// fully qualified binary names.
	declared map[string]string

	classes []model.ClassInput
}

// extractClasses walks the tree extracting one descriptor per declaration.
// enclosingBinary is the binary name of the enclosing class ("" for
// top-level), enclosingFQN its qualified form.
func (e *extraction) extractClasses(node *sitter.Node, enclosingBinary, enclosingFQN string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if _, ok := classDeclTypes[child.Type()]; ok {
			e.extractClass(child, enclosingBinary, enclosingFQN)
			continue
		}
		e.extractClasses(child, enclosingBinary, enclosingFQN)
	}
}

func (e *extraction) extractClass(decl *sitter.Node, enclosingBinary, enclosingFQN string) {
	nameNode := decl.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	simple := nameNode.Content(e.content)
	binary := simple
	if enclosingBinary != "" {
		binary = enclosingBinary + "$" + simple
	}
	fqn := qualify(e.pkg, binary)

	in := model.ClassInput{
		ID:                model.ClassID(e.filePath + ":" + fqn),
		Name:              fqn,
		SimpleName:        simple,
		Package:           e.pkg,
		EnclosingClassRef: enclosingFQN,
	}
	if super := decl.ChildByFieldName("superclass"); super != nil {
		if ref := e.resolveType(typeName(super, e.content)); ref != "" {
			in.SuperClassRef = ref
		}
	}

	body := decl.ChildByFieldName("body")
	if body == nil {
		e.classes = append(e.classes, in)
		return
	}

	scope := &classScope{fqn: fqn, fields: make(map[string]string)}

	// Field declarations first so method bodies can resolve field
	// receivers regardless of member order.
	forEachMember(body, func(member *sitter.Node) {
		if member.Type() == "field_declaration" {
			e.extractFields(member, &in, scope)
		}
	})

	forEachMember(body, func(member *sitter.Node) {
		switch member.Type() {
		case "method_declaration":
			e.extractMethod(member, &in, scope)
		case "constructor_declaration":
			e.extractConstructor(member, &in, scope)
		case "static_initializer":
			accesses := e.extractAccesses(member, scope, newLocalScope())
			in.StaticInitializerAccesses = append(in.StaticInitializerAccesses, accesses...)
		}
	})

	e.classes = append(e.classes, in)

	// Nested declarations become their own descriptors.
	e.extractClasses(body, binary, fqn)
}

func (e *extraction) extractFields(decl *sitter.Node, in *model.ClassInput, scope *classScope) {
	declaredType := ""
	if typeNode := decl.ChildByFieldName("type"); typeNode != nil {
		declaredType = typeName(typeNode, e.content)
	}
	forEachNamedChild(decl, func(child *sitter.Node) {
		if child.Type() != "variable_declarator" {
			return
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nameNode.Content(e.content)
		in.Fields = append(in.Fields, model.FieldInput{
			Name:    name,
			TypeRef: e.resolveType(declaredType),
		})
		scope.fields[name] = declaredType
	})
}

func (e *extraction) extractMethod(decl *sitter.Node, in *model.ClassInput, scope *classScope) {
	nameNode := decl.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	unit := model.CodeUnitInput{Name: nameNode.Content(e.content)}
	if ret := decl.ChildByFieldName("type"); ret != nil {
		unit.ReturnType = e.resolveType(typeName(ret, e.content))
	}

	locals := newLocalScope()
	unit.Parameters = e.extractParameters(decl.ChildByFieldName("parameters"), locals)
	if body := decl.ChildByFieldName("body"); body != nil {
		unit.Accesses = e.extractAccesses(body, scope, locals)
	}
	in.Methods = append(in.Methods, unit)
}

func (e *extraction) extractConstructor(decl *sitter.Node, in *model.ClassInput, scope *classScope) {
	unit := model.CodeUnitInput{}
	locals := newLocalScope()
	unit.Parameters = e.extractParameters(decl.ChildByFieldName("parameters"), locals)
	if body := decl.ChildByFieldName("body"); body != nil {
		unit.Accesses = e.extractAccesses(body, scope, locals)
	}
	in.Constructors = append(in.Constructors, unit)
}

// extractParameters resolves the ordered parameter type references and
// registers each parameter in the local scope.
func (e *extraction) extractParameters(params *sitter.Node, locals localScope) []string {
	if params == nil {
		return nil
	}
	var out []string
	forEachNamedChild(params, func(param *sitter.Node) {
		if param.Type() != "formal_parameter" && param.Type() != "spread_parameter" {
			return
		}
		declaredType := ""
		if typeNode := param.ChildByFieldName("type"); typeNode != nil {
			declaredType = typeName(typeNode, e.content)
		}
		out = append(out, e.resolveType(declaredType))
		if nameNode := param.ChildByFieldName("name"); nameNode != nil {
			locals[nameNode.Content(e.content)] = declaredType
		}
	})
	return out
}

// classScope is the resolution scope of one class declaration.
type classScope struct {
	fqn    string
	fields map[string]string // field name → declared type name
}

// localScope maps local variable and parameter names to declared type names.
type localScope map[string]string

func newLocalScope() localScope {
	return make(localScope)
}

// extractAccesses walks an executable body collecting access records.
func (e *extraction) extractAccesses(node *sitter.Node, scope *classScope, locals localScope) []model.AccessRecord {
	var out []model.AccessRecord
	e.walkAccesses(node, scope, locals, &out)
	return out
}

func (e *extraction) walkAccesses(node *sitter.Node, scope *classScope, locals localScope, out *[]model.AccessRecord) {
	switch node.Type() {
	case "local_variable_declaration":
		declaredType := ""
		if typeNode := node.ChildByFieldName("type"); typeNode != nil {
			declaredType = typeName(typeNode, e.content)
		}
		forEachNamedChild(node, func(child *sitter.Node) {
			if child.Type() != "variable_declarator" {
				return
			}
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				locals[nameNode.Content(e.content)] = declaredType
			}
		})

	case "method_invocation":
		if owner, ok := e.resolveReceiver(node.ChildByFieldName("object"), scope, locals); ok {
			if nameNode := node.ChildByFieldName("name"); nameNode != nil {
				*out = append(*out, model.AccessRecord{
					Kind:        model.AccessMethodCall,
					TargetOwner: owner,
					TargetName:  nameNode.Content(e.content),
					Line:        int(node.StartPoint().Row) + 1,
				})
			}
		}

	case "object_creation_expression":
		if typeNode := node.ChildByFieldName("type"); typeNode != nil {
			if owner := e.resolveType(typeName(typeNode, e.content)); owner != "" {
				*out = append(*out, model.AccessRecord{
					Kind:        model.AccessConstructorCall,
					TargetOwner: owner,
					TargetName:  model.ConstructorName,
					Line:        int(node.StartPoint().Row) + 1,
				})
			}
		}

	case "field_access":
		if owner, ok := e.resolveReceiver(node.ChildByFieldName("object"), scope, locals); ok {
			if fieldNode := node.ChildByFieldName("field"); fieldNode != nil {
				*out = append(*out, model.AccessRecord{
					Kind:        fieldAccessKind(node),
					TargetOwner: owner,
					TargetName:  fieldNode.Content(e.content),
					Line:        int(node.StartPoint().Row) + 1,
				})
			}
		}

	case "assignment_expression":
		// Bare "x = ..." where x is a declared field of this class.
		if left := node.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
			name := left.Content(e.content)
			if _, isLocal := locals[name]; !isLocal {
				if _, isField := scope.fields[name]; isField {
					*out = append(*out, model.AccessRecord{
						Kind:        model.AccessFieldWrite,
						TargetOwner: scope.fqn,
						TargetName:  name,
						Line:        int(left.StartPoint().Row) + 1,
					})
				}
			}
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		e.walkAccesses(node.NamedChild(i), scope, locals, out)
	}
}

// resolveReceiver attributes a receiver expression to a type reference.
// The second return is false when the receiver cannot be attributed
// lexically (chained expressions, unknown variables); such occurrences
// produce no access record.
func (e *extraction) resolveReceiver(object *sitter.Node, scope *classScope, locals localScope) (string, bool) {
	if object == nil || object.Type() == "this" {
		return scope.fqn, true
	}
	if object.Type() != "identifier" {
		return "", false
	}
	name := object.Content(e.content)
	if declaredType, ok := locals[name]; ok {
		return e.resolveType(declaredType), true
	}
	if declaredType, ok := scope.fields[name]; ok {
		return e.resolveType(declaredType), true
	}
	// Uppercase-initial bare identifier: a static reference to a type.
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsUpper(r) {
		return e.resolveType(name), true
	}
	return "", false
}

// resolveType maps a lexical type name to a fully qualified reference, via
// imports, same-file declarations, java.lang, then the file's own package.
// Primitive and void types resolve to themselves.
func (e *extraction) resolveType(name string) string {
	if name == "" {
		return ""
	}
	if strings.ContainsRune(name, '.') {
		return name
	}
	if isPrimitive(name) {
		return name
	}
	if fqn, ok := e.imports[name]; ok {
		return fqn
	}
	if fqn, ok := e.declared[name]; ok {
		return fqn
	}
	if _, ok := javaLangClasses[name]; ok {
		return "java.lang." + name
	}
	return qualify(e.pkg, name)
}

// primitiveTypes are resolved to themselves, never package-qualified.
var primitiveTypes = map[string]struct{}{
	"void": {}, "boolean": {}, "byte": {}, "short": {}, "int": {},
	"long": {}, "char": {}, "float": {}, "double": {}, "var": {},
}

func isPrimitive(name string) bool {
	_, ok := primitiveTypes[name]
	return ok
}

// typeName extracts the base type name from a type node, stripping generic
// arguments, array brackets and annotations. For "superclass" wrapper nodes
// it descends into the wrapped type.
func typeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "superclass":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			return typeName(node.NamedChild(i), content)
		}
		return ""
	case "generic_type", "array_type":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "type_identifier" || child.Type() == "scoped_type_identifier" || child.Type() == "generic_type" {
				return typeName(child, content)
			}
		}
		return ""
	default:
		return node.Content(content)
	}
}

// fieldAccessKind reports whether a field_access node is written or read,
// by checking whether it is the left side of an enclosing assignment.
func fieldAccessKind(node *sitter.Node) model.AccessKind {
	parent := node.Parent()
	if parent != nil && parent.Type() == "assignment_expression" {
		if left := parent.ChildByFieldName("left"); left != nil &&
			left.StartByte() == node.StartByte() && left.EndByte() == node.EndByte() {
			return model.AccessFieldWrite
		}
	}
	return model.AccessFieldRead
}

// forEachNamedChild invokes fn for every named child of node.
func forEachNamedChild(node *sitter.Node, fn func(*sitter.Node)) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		fn(node.NamedChild(i))
	}
}

// forEachMember invokes fn for every direct member of a class-like body.
// Enum bodies nest members under enum_body_declarations, which is
// flattened here.
func forEachMember(body *sitter.Node, fn func(*sitter.Node)) {
	forEachNamedChild(body, func(child *sitter.Node) {
		if child.Type() == "enum_body_declarations" {
			forEachNamedChild(child, fn)
			return
		}
		fn(child)
	})
}
