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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/archgraph/services/arch"
	"github.com/AleutianAI/archgraph/services/arch/snapshot"
)

// snapshots flags.
var (
	snapshotsDataDir string
	snapshotsProject string
	snapshotsLabel   string
)

func newSnapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Manage persisted universe snapshots",
	}
	cmd.PersistentFlags().StringVar(&snapshotsDataDir, "data-dir", defaultDataDir(), "Snapshot database directory")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(false)
			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			snapshots, err := store.List(cmd.Context(), snapshotsProject)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Println("no snapshots")
				return nil
			}
			for _, meta := range snapshots {
				created := time.UnixMilli(meta.CreatedAtMilli).UTC().Format(time.RFC3339)
				label := meta.Label
				if label == "" {
					label = "-"
				}
				fmt.Printf("%s  %s  classes=%d  label=%s  %s\n",
					meta.SnapshotID, created, meta.ClassCount, label, meta.ProjectRoot)
			}
			return nil
		},
	}
	list.Flags().StringVar(&snapshotsProject, "project-root", "", "Filter by project root")

	save := &cobra.Command{
		Use:   "save <project-root>",
		Short: "Import a project and persist it as a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(false)
			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			svc := arch.NewService(arch.DefaultServiceConfig())
			_, cached, err := svc.ImportProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			meta, err := store.Save(cmd.Context(), cached.Universe, cached.ProjectRoot, snapshotsLabel)
			if err != nil {
				return err
			}
			fmt.Printf("saved snapshot %s (%d classes, %d bytes compressed)\n",
				meta.SnapshotID, meta.ClassCount, meta.CompressedSize)
			return nil
		},
	}
	save.Flags().StringVar(&snapshotsLabel, "label", "", "Optional snapshot label")

	del := &cobra.Command{
		Use:   "delete <snapshot-id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(false)
			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted snapshot %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, save, del)
	return cmd
}

// openStore opens the snapshot store over the configured data dir. The
// returned func closes the underlying database.
func openStore() (*snapshot.Store, func(), error) {
	db, err := openSnapshotDB(snapshotsDataDir)
	if err != nil {
		return nil, nil, err
	}
	store, err := snapshot.NewStore(db, nil)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}
