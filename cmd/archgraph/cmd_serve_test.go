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
	"context"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
)

func TestShutdown(t *testing.T) {
	t.Run("closes the snapshot database", func(t *testing.T) {
		db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
		if err != nil {
			t.Fatalf("failed to open badger: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		shutdown(cancel, db)

		if ctx.Err() == nil {
			t.Error("shutdown did not cancel the server context")
		}
		if !db.IsClosed() {
			t.Error("shutdown did not close the snapshot database")
		}
	})

	t.Run("tolerates a missing database", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		shutdown(cancel, nil)
		if ctx.Err() == nil {
			t.Error("shutdown did not cancel the server context")
		}
	})
}
