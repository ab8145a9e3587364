// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds embedded configuration for the arch service.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed wellknown.yaml
var defaultWellKnownYAML []byte

// WellKnown classifies references against the platform the analyzed code
// runs on: the universal hierarchy root and the package prefixes that are
// never part of an analyzed codebase.
//
// Loaded once from wellknown.yaml and cached.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type WellKnown struct {
	// UniversalRoot is the fully qualified name of the universal root
	// class, e.g. "java.lang.Object".
	UniversalRoot string `yaml:"universal_root"`

	// PlatformPackages are package prefixes classified as external
	// platform code.
	PlatformPackages []string `yaml:"platform_packages"`
}

var (
	cachedWellKnown *WellKnown
	wellKnownOnce   sync.Once
	wellKnownErr    error
)

// LoadWellKnown loads and caches the embedded well-known classification.
// Returns the cached result on subsequent calls.
func LoadWellKnown() (*WellKnown, error) {
	wellKnownOnce.Do(func() {
		var wk WellKnown
		if err := yaml.Unmarshal(defaultWellKnownYAML, &wk); err != nil {
			wellKnownErr = fmt.Errorf("parse wellknown.yaml: %w", err)
			return
		}
		if wk.UniversalRoot == "" {
			wellKnownErr = fmt.Errorf("wellknown.yaml: universal_root must not be empty")
			return
		}
		cachedWellKnown = &wk
		slog.Debug("loaded well-known classification",
			"universal_root", wk.UniversalRoot,
			"platform_packages", len(wk.PlatformPackages),
		)
	})
	return cachedWellKnown, wellKnownErr
}

// IsPlatformRef reports whether a raw fully qualified reference points into
// a platform package.
func (wk *WellKnown) IsPlatformRef(ref string) bool {
	if ref == wk.UniversalRoot {
		return true
	}
	for _, prefix := range wk.PlatformPackages {
		if ref == prefix || strings.HasPrefix(ref, prefix+".") {
			return true
		}
	}
	return false
}
