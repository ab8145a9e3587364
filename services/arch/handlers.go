// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package arch

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/archgraph/services/arch/config"
	"github.com/AleutianAI/archgraph/services/arch/model"
	"github.com/AleutianAI/archgraph/services/arch/snapshot"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// InitRequest is the body of POST /v1/arch/init.
type InitRequest struct {
	ProjectRoot string `json:"project_root" binding:"required"`
}

// InitResponse reports the outcome of a project import.
type InitResponse struct {
	UniverseID         string            `json:"universe_id"`
	ProjectRoot        string            `json:"project_root"`
	Classes            int               `json:"classes"`
	CodeUnits          int               `json:"code_units"`
	AccessesResolved   int               `json:"accesses_resolved"`
	ExternalReferences int               `json:"external_references"`
	DurationMilli      int64             `json:"duration_ms"`
	FileErrors         map[string]string `json:"file_errors,omitempty"`
}

// FieldInfo describes one declared field.
type FieldInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CodeUnitInfo describes one method, constructor or static initializer.
type CodeUnitInfo struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Parameters []string `json:"parameters"`
	ReturnType string   `json:"return_type,omitempty"`
	Signature  string   `json:"signature"`
}

// AccessInfo describes one resolved access.
type AccessInfo struct {
	Kind   string `json:"kind"`
	Origin string `json:"origin"`
	Target string `json:"target"`
	Line   int    `json:"line,omitempty"`
}

// ExternalRefInfo describes one reference leaving the universe. Platform
// marks targets in well-known platform packages (java.*, javax.*, ...) as
// opposed to unresolved project code.
type ExternalRefInfo struct {
	Origin   string `json:"origin"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Line     int    `json:"line,omitempty"`
	Platform bool   `json:"platform"`
}

// ClassResponse is the full view of one class.
type ClassResponse struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	SimpleName         string            `json:"simple_name"`
	Package            string            `json:"package"`
	SuperClass         string            `json:"super_class,omitempty"`
	SuperClassRef      string            `json:"super_class_ref,omitempty"`
	EnclosingClass     string            `json:"enclosing_class,omitempty"`
	SubClasses         []string          `json:"sub_classes"`
	Fields             []FieldInfo       `json:"fields"`
	Methods            []CodeUnitInfo    `json:"methods"`
	Constructors       []CodeUnitInfo    `json:"constructors"`
	Accesses           []AccessInfo      `json:"accesses"`
	ExternalReferences []ExternalRefInfo `json:"external_references"`
}

// HierarchyResponse is the hierarchy view of one class.
type HierarchyResponse struct {
	Class           string   `json:"class"`
	Hierarchy       []string `json:"hierarchy"`
	SuperClasses    []string `json:"super_classes"`
	SubClasses      []string `json:"sub_classes"`
	AllSubClasses   []string `json:"all_sub_classes"`
	HierarchyRooted bool     `json:"hierarchy_rooted"`
}

// DependencyInfo is one class-level dependency edge.
type DependencyInfo struct {
	Origin string `json:"origin"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Member string `json:"member"`
	Line   int    `json:"line,omitempty"`
}

// DependenciesResponse lists dependency edges.
type DependenciesResponse struct {
	UniverseID   string           `json:"universe_id"`
	Count        int              `json:"count"`
	Dependencies []DependencyInfo `json:"dependencies"`
}

// ListClassesResponse lists class names matching a query.
type ListClassesResponse struct {
	UniverseID string   `json:"universe_id"`
	Count      int      `json:"count"`
	Classes    []string `json:"classes"`
}

// SaveSnapshotRequest is the body of POST /v1/arch/snapshot.
type SaveSnapshotRequest struct {
	UniverseID string `json:"universe_id,omitempty"`
	Label      string `json:"label,omitempty"`
}

// SaveSnapshotResponse reports a persisted snapshot.
type SaveSnapshotResponse struct {
	SnapshotID     string `json:"snapshot_id"`
	UniverseHash   string `json:"universe_hash"`
	ClassCount     int    `json:"class_count"`
	CompressedSize int64  `json:"compressed_size"`
}

// ListSnapshotsResponse lists snapshot metadata.
type ListSnapshotsResponse struct {
	Snapshots []*snapshot.Metadata `json:"snapshots"`
}

// LoadSnapshotResponse reports a snapshot restored into the cache.
type LoadSnapshotResponse struct {
	UniverseID string             `json:"universe_id"`
	Metadata   *snapshot.Metadata `json:"metadata"`
	ClassCount int                `json:"class_count"`
}

// Handlers serves the arch HTTP API.
type Handlers struct {
	svc *Service
}

// NewHandlers creates Handlers backed by the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the inbound X-Request-ID, generating one
// when absent.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleInit handles POST /v1/arch/init.
//
// Description:
//
//	Scans the given project root for Java sources, runs the two-phase
//	import and caches the resulting universe. Re-initializing the same
//	root replaces the cached universe.
//
// Request Body:
//
//	InitRequest (project_root required)
//
// Response:
//
//	200 OK: InitResponse
//	400 Bad Request: Missing project_root
//	422 Unprocessable Entity: Import failed (malformed descriptors)
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleInit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleInit")

	var req InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "project_root is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	id, cached, err := h.svc.ImportProject(c.Request.Context(), req.ProjectRoot)
	if err != nil {
		logger.Error("import failed", slog.String("project_root", req.ProjectRoot), slog.Any("error", err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: "import failed: " + err.Error(),
			Code:  "IMPORT_FAILED",
		})
		return
	}

	logger.Info("universe initialized",
		slog.String("universe_id", id),
		slog.Int("classes", cached.Stats.ClassesBuilt),
	)

	c.JSON(http.StatusOK, InitResponse{
		UniverseID:         id,
		ProjectRoot:        cached.ProjectRoot,
		Classes:            cached.Stats.ClassesBuilt,
		CodeUnits:          cached.Stats.CodeUnits,
		AccessesResolved:   cached.Stats.AccessesResolved,
		ExternalReferences: cached.Stats.ExternalReferences,
		DurationMilli:      cached.Stats.DurationMilli,
		FileErrors:         cached.FileErrors,
	})
}

// HandleClass handles GET /v1/arch/class.
//
// Description:
//
//	Looks a class up by fully qualified name and returns its full view:
//	members, hierarchy links, resolved accesses and external references.
//
// Query Parameters:
//
//	name: Fully qualified class name (required)
//	universe_id: Universe to query (optional, uses first cached)
//
// Response:
//
//	200 OK: ClassResponse
//	400 Bad Request: Missing name
//	404 Not Found: Universe or class not found
//
// Thread Safety: This method is safe for concurrent use. Read-only.
func (h *Handlers) HandleClass(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleClass")

	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "name parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	cached, _, err := h.resolveUniverse(c)
	if err != nil {
		return
	}

	class, err := cached.Universe.Get(name)
	if err != nil {
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "class not found: " + name,
				Code:  "CLASS_NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LOOKUP_FAILED",
		})
		return
	}

	logger.Info("class lookup", slog.String("name", name))
	c.JSON(http.StatusOK, classResponse(class))
}

// HandleHierarchy handles GET /v1/arch/class/hierarchy.
//
// Description:
//
//	Returns the hierarchy view of a class: the ascending chain starting
//	at the class itself, its direct and transitive subclasses.
//
// Query Parameters:
//
//	name: Fully qualified class name (required)
//	universe_id: Universe to query (optional, uses first cached)
//
// Response:
//
//	200 OK: HierarchyResponse
//	400 Bad Request: Missing name
//	404 Not Found: Universe or class not found
//
// Thread Safety: This method is safe for concurrent use. Read-only.
func (h *Handlers) HandleHierarchy(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "name parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	cached, _, err := h.resolveUniverse(c)
	if err != nil {
		return
	}

	class, ok := cached.Universe.TryGet(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "class not found: " + name,
			Code:  "CLASS_NOT_FOUND",
		})
		return
	}

	_, rooted := class.SuperClass()
	c.JSON(http.StatusOK, HierarchyResponse{
		Class:           class.Name(),
		Hierarchy:       classNames(class.ClassHierarchy()),
		SuperClasses:    classNames(class.AllSuperClasses()),
		SubClasses:      classNames(class.SubClasses()),
		AllSubClasses:   classNames(class.AllSubClasses()),
		HierarchyRooted: rooted,
	})
}

// HandleDependencies handles GET /v1/arch/dependencies.
//
// Description:
//
//	Returns class-level dependency edges. With an origin parameter only
//	that class's direct dependencies are returned, otherwise every edge
//	in the universe.
//
// Query Parameters:
//
//	origin: Fully qualified origin class name (optional)
//	universe_id: Universe to query (optional, uses first cached)
//
// Response:
//
//	200 OK: DependenciesResponse
//	404 Not Found: Universe or origin class not found
//
// Thread Safety: This method is safe for concurrent use. Read-only.
func (h *Handlers) HandleDependencies(c *gin.Context) {
	cached, universeID, err := h.resolveUniverse(c)
	if err != nil {
		return
	}

	var deps []model.Dependency
	if origin := c.Query("origin"); origin != "" {
		class, ok := cached.Universe.TryGet(origin)
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "class not found: " + origin,
				Code:  "CLASS_NOT_FOUND",
			})
			return
		}
		deps = class.DirectDependencies()
	} else {
		deps = cached.Universe.AllDependencies()
	}

	out := make([]DependencyInfo, 0, len(deps))
	for _, d := range deps {
		out = append(out, DependencyInfo{
			Origin: d.Origin.Name(),
			Target: d.Target.Name(),
			Kind:   d.Access.Kind().String(),
			Member: d.Access.Target().String(),
			Line:   d.Access.Line(),
		})
	}

	c.JSON(http.StatusOK, DependenciesResponse{
		UniverseID:   universeID,
		Count:        len(out),
		Dependencies: out,
	})
}

// HandleListClasses handles GET /v1/arch/classes.
//
// Description:
//
//	Lists class names in the universe, optionally filtered by exact
//	package, package subtree or simple name.
//
// Query Parameters:
//
//	package: Exact package filter (optional)
//	under: Package subtree filter (optional)
//	simple_name: Simple name filter (optional)
//	universe_id: Universe to query (optional, uses first cached)
//
// Response:
//
//	200 OK: ListClassesResponse
//	404 Not Found: Universe not found
//
// Thread Safety: This method is safe for concurrent use. Read-only.
func (h *Handlers) HandleListClasses(c *gin.Context) {
	cached, universeID, err := h.resolveUniverse(c)
	if err != nil {
		return
	}

	var preds []model.Predicate
	if pkg := c.Query("package"); pkg != "" {
		preds = append(preds, model.ResideInPackage(pkg))
	}
	if under := c.Query("under"); under != "" {
		preds = append(preds, model.ResideUnderPackage(under))
	}
	if simple := c.Query("simple_name"); simple != "" {
		preds = append(preds, model.HaveSimpleName(simple))
	}

	matched := cached.Universe.Filter(model.And(preds...))
	c.JSON(http.StatusOK, ListClassesResponse{
		UniverseID: universeID,
		Count:      len(matched),
		Classes:    classNames(matched),
	})
}

// HandleSaveSnapshot handles POST /v1/arch/snapshot.
//
// Description:
//
//	Persists a cached universe as a compressed snapshot in BadgerDB.
//
// Request Body:
//
//	SaveSnapshotRequest (universe_id optional, label optional)
//
// Response:
//
//	200 OK: SaveSnapshotResponse
//	404 Not Found: Universe not found
//	500 Internal Server Error: Snapshot save failed
//	503 Service Unavailable: Snapshot persistence not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSaveSnapshot")

	store := h.svc.SnapshotStore()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	var req SaveSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// All fields are optional, an empty body is fine.
		req = SaveSnapshotRequest{}
	}

	var cached *CachedUniverse
	if req.UniverseID != "" {
		var err error
		cached, err = h.svc.GetUniverse(req.UniverseID)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "universe not found",
				Code:  "UNIVERSE_NOT_FOUND",
			})
			return
		}
	} else {
		cached = h.svc.getFirstUniverse()
		if cached == nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "no universes cached",
				Code:  "NO_UNIVERSES",
			})
			return
		}
	}

	meta, err := store.Save(c.Request.Context(), cached.Universe, cached.ProjectRoot, req.Label)
	if err != nil {
		logger.Error("snapshot save failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to save snapshot: " + err.Error(),
			Code:  "SNAPSHOT_SAVE_FAILED",
		})
		return
	}

	logger.Info("snapshot saved",
		slog.String("snapshot_id", meta.SnapshotID),
		slog.Int("class_count", meta.ClassCount),
	)

	c.JSON(http.StatusOK, SaveSnapshotResponse{
		SnapshotID:     meta.SnapshotID,
		UniverseHash:   meta.UniverseHash,
		ClassCount:     meta.ClassCount,
		CompressedSize: meta.CompressedSize,
	})
}

// HandleListSnapshots handles GET /v1/arch/snapshots.
//
// Description:
//
//	Lists saved snapshots, optionally filtered by project root.
//
// Query Parameters:
//
//	project_root: Optional filter by project root path
//
// Response:
//
//	200 OK: ListSnapshotsResponse
//	503 Service Unavailable: Snapshot persistence not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	store := h.svc.SnapshotStore()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	snapshots, err := store.List(c.Request.Context(), c.Query("project_root"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list snapshots: " + err.Error(),
			Code:  "SNAPSHOT_LIST_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, ListSnapshotsResponse{Snapshots: snapshots})
}

// HandleLoadSnapshot handles POST /v1/arch/snapshot/:id/restore.
//
// Description:
//
//	Loads a snapshot, re-runs the two-phase import over its descriptors
//	and caches the reconstructed universe under the project's universe ID.
//
// Path Parameters:
//
//	id: Snapshot ID (required)
//
// Response:
//
//	200 OK: LoadSnapshotResponse
//	404 Not Found: Snapshot not found
//	503 Service Unavailable: Snapshot persistence not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleLoadSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLoadSnapshot")

	store := h.svc.SnapshotStore()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	snapshotID := c.Param("id")
	universe, meta, err := store.Load(c.Request.Context(), snapshotID)
	if err != nil {
		logger.Warn("snapshot not found", slog.String("snapshot_id", snapshotID), slog.Any("error", err))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "snapshot not found: " + err.Error(),
			Code:  "SNAPSHOT_NOT_FOUND",
		})
		return
	}

	id := h.svc.cacheUniverse(meta.ProjectRoot, universe)
	logger.Info("snapshot restored",
		slog.String("snapshot_id", snapshotID),
		slog.String("universe_id", id),
	)

	c.JSON(http.StatusOK, LoadSnapshotResponse{
		UniverseID: id,
		Metadata:   meta,
		ClassCount: universe.Len(),
	})
}

// HandleDeleteSnapshot handles DELETE /v1/arch/snapshot/:id.
//
// Response:
//
//	200 OK: {"deleted": true}
//	404 Not Found: Snapshot not found
//	503 Service Unavailable: Snapshot persistence not configured
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleDeleteSnapshot(c *gin.Context) {
	store := h.svc.SnapshotStore()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	snapshotID := c.Param("id")
	if err := store.Delete(c.Request.Context(), snapshotID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "snapshot not found or delete failed: " + err.Error(),
			Code:  "SNAPSHOT_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// HandleHealth handles GET /v1/arch/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/arch/ready. Ready means at least one universe
// is cached.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.svc.UniverseCount() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"universes": 0,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"universes": h.svc.UniverseCount(),
	})
}

// resolveUniverse resolves a cached universe from query parameters
// (universe_id or project_root), falling back to the first cached one.
// Writes the error response on failure.
func (h *Handlers) resolveUniverse(c *gin.Context) (*CachedUniverse, string, error) {
	universeID := c.Query("universe_id")
	if universeID == "" {
		if projectRoot := c.Query("project_root"); projectRoot != "" {
			universeID = h.svc.UniverseID(projectRoot)
		}
	}

	if universeID != "" {
		cached, err := h.svc.GetUniverse(universeID)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "universe not found",
				Code:  "UNIVERSE_NOT_FOUND",
			})
			return nil, "", err
		}
		return cached, universeID, nil
	}

	cached := h.svc.getFirstUniverse()
	if cached == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no universes cached",
			Code:  "NO_UNIVERSES",
		})
		return nil, "", ErrUniverseNotInitialized
	}
	return cached, h.svc.UniverseID(cached.ProjectRoot), nil
}

// classResponse builds the full view of one class.
func classResponse(class *model.Class) ClassResponse {
	resp := ClassResponse{
		ID:                 string(class.ID()),
		Name:               class.Name(),
		SimpleName:         class.SimpleName(),
		Package:            class.Package(),
		SuperClassRef:      class.SuperClassRef(),
		SubClasses:         classNames(class.SubClasses()),
		Fields:             make([]FieldInfo, 0),
		Methods:            make([]CodeUnitInfo, 0),
		Constructors:       make([]CodeUnitInfo, 0),
		Accesses:           make([]AccessInfo, 0),
		ExternalReferences: make([]ExternalRefInfo, 0),
	}
	if super, ok := class.SuperClass(); ok {
		resp.SuperClass = super.Name()
	}
	if enclosing, ok := class.EnclosingClass(); ok {
		resp.EnclosingClass = enclosing.Name()
	}
	for _, f := range class.Fields() {
		resp.Fields = append(resp.Fields, FieldInfo{Name: f.Name(), Type: f.TypeRef()})
	}
	for _, m := range class.Methods() {
		resp.Methods = append(resp.Methods, codeUnitInfo(m))
	}
	for _, ctor := range class.Constructors() {
		resp.Constructors = append(resp.Constructors, codeUnitInfo(ctor))
	}
	for _, a := range class.Accesses() {
		resp.Accesses = append(resp.Accesses, AccessInfo{
			Kind:   a.Kind().String(),
			Origin: a.Origin().FullName(),
			Target: a.Target().String(),
			Line:   a.Line(),
		})
	}
	wk, wkErr := config.LoadWellKnown()
	for _, ext := range class.ExternalReferences() {
		info := ExternalRefInfo{
			Origin: ext.Origin.FullName(),
			Owner:  ext.OwnerRef,
			Name:   ext.Name,
			Kind:   ext.Kind.String(),
			Line:   ext.Line,
		}
		if wkErr == nil {
			info.Platform = wk.IsPlatformRef(ext.OwnerRef)
		}
		resp.ExternalReferences = append(resp.ExternalReferences, info)
	}
	return resp
}

func codeUnitInfo(u *model.CodeUnit) CodeUnitInfo {
	return CodeUnitInfo{
		Name:       u.Name(),
		Kind:       u.Kind().String(),
		Parameters: u.Parameters(),
		ReturnType: u.ReturnType(),
		Signature:  u.Signature(),
	}
}

func classNames(classes []*model.Class) []string {
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.Name())
	}
	return out
}
