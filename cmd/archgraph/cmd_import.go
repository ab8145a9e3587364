// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/archgraph/services/arch"
	"github.com/AleutianAI/archgraph/services/arch/model"
)

// importVerbose enables per-file scan diagnostics.
var importVerbose bool

// deps and classes flags.
var (
	depsOrigin     string
	classesPackage string
	classesUnder   string
	classesSimple  string
)

// importUniverse runs the scan-and-import pipeline for a CLI command.
func importUniverse(cmd *cobra.Command, root string) (*arch.CachedUniverse, error) {
	svc := arch.NewService(arch.DefaultServiceConfig())
	_, cached, err := svc.ImportProject(cmd.Context(), root)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <project-root>",
		Short: "Scan a Java project and report import statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(importVerbose)
			cached, err := importUniverse(cmd, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Project:             %s\n", cached.ProjectRoot)
			fmt.Printf("Classes:             %d\n", cached.Stats.ClassesBuilt)
			fmt.Printf("Code units:          %d\n", cached.Stats.CodeUnits)
			fmt.Printf("Accesses resolved:   %d\n", cached.Stats.AccessesResolved)
			fmt.Printf("External references: %d\n", cached.Stats.ExternalReferences)
			fmt.Printf("Duration:            %dms\n", cached.Stats.DurationMilli)
			if len(cached.FileErrors) > 0 {
				fmt.Printf("\nFiles skipped (%d):\n", len(cached.FileErrors))
				files := make([]string, 0, len(cached.FileErrors))
				for f := range cached.FileErrors {
					files = append(files, f)
				}
				sort.Strings(files)
				for _, f := range files {
					fmt.Printf("  %s: %s\n", f, cached.FileErrors[f])
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&importVerbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func newDepsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps <project-root>",
		Short: "Print class-level dependency edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(false)
			cached, err := importUniverse(cmd, args[0])
			if err != nil {
				return err
			}

			var deps []model.Dependency
			if depsOrigin != "" {
				class, getErr := cached.Universe.Get(depsOrigin)
				if getErr != nil {
					return getErr
				}
				deps = class.DirectDependencies()
			} else {
				deps = cached.Universe.AllDependencies()
			}

			for _, d := range deps {
				fmt.Printf("%s -> %s (%s %s", d.Origin.Name(), d.Target.Name(),
					d.Access.Kind(), d.Access.Target().String())
				if line := d.Access.Line(); line > 0 {
					fmt.Printf(", line %d", line)
				}
				fmt.Println(")")
			}
			fmt.Printf("\n%d dependencies\n", len(deps))
			return nil
		},
	}
	cmd.Flags().StringVar(&depsOrigin, "origin", "", "Only edges from this fully qualified class")
	return cmd
}

func newClassesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes <project-root>",
		Short: "List classes in the universe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(false)
			cached, err := importUniverse(cmd, args[0])
			if err != nil {
				return err
			}

			var preds []model.Predicate
			if classesPackage != "" {
				preds = append(preds, model.ResideInPackage(classesPackage))
			}
			if classesUnder != "" {
				preds = append(preds, model.ResideUnderPackage(classesUnder))
			}
			if classesSimple != "" {
				preds = append(preds, model.HaveSimpleName(classesSimple))
			}

			matched := cached.Universe.Filter(model.And(preds...))
			for _, c := range matched {
				fmt.Println(c.Name())
			}
			fmt.Printf("\n%d classes\n", len(matched))
			return nil
		},
	}
	cmd.Flags().StringVar(&classesPackage, "package", "", "Exact package filter")
	cmd.Flags().StringVar(&classesUnder, "under", "", "Package subtree filter")
	cmd.Flags().StringVar(&classesSimple, "simple-name", "", "Simple name filter")
	return cmd
}
