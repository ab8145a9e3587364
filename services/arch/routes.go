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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all arch routes with the router.
//
// Description:
//
//	Registers all /v1/arch/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Core Endpoints:
//
//	POST /v1/arch/init - Scan and import a project into a universe
//	GET  /v1/arch/class - Full view of one class
//	GET  /v1/arch/class/hierarchy - Hierarchy view of one class
//	GET  /v1/arch/classes - List classes by package/simple name filters
//	GET  /v1/arch/dependencies - Class-level dependency edges
//
// Snapshot Endpoints:
//
//	POST   /v1/arch/snapshot - Save the current universe
//	GET    /v1/arch/snapshots - List saved snapshots
//	POST   /v1/arch/snapshot/:id/restore - Restore a snapshot into the cache
//	DELETE /v1/arch/snapshot/:id - Delete a snapshot
//
// Health Endpoints:
//
//	GET /v1/arch/health - Health check
//	GET /v1/arch/ready - Readiness check (a universe is cached)
//
// Example:
//
//	service := arch.NewService(arch.DefaultServiceConfig())
//	handlers := arch.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	arch.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	group := rg.Group("/arch")
	{
		// Universe lifecycle
		group.POST("/init", handlers.HandleInit)

		// Class queries
		group.GET("/class", handlers.HandleClass)
		group.GET("/class/hierarchy", handlers.HandleHierarchy)
		group.GET("/classes", handlers.HandleListClasses)
		group.GET("/dependencies", handlers.HandleDependencies)

		// Snapshot persistence
		group.POST("/snapshot", handlers.HandleSaveSnapshot)
		group.GET("/snapshots", handlers.HandleListSnapshots)
		group.POST("/snapshot/:id/restore", handlers.HandleLoadSnapshot)
		group.DELETE("/snapshot/:id", handlers.HandleDeleteSnapshot)

		// Health checks
		group.GET("/health", handlers.HandleHealth)
		group.GET("/ready", handlers.HandleReady)
	}
}
