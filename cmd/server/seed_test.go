package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-realtime/internal/store/sqlite"
)

func newSeedStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSeedIsIdempotent(t *testing.T) {
	st := newSeedStore(t)
	ctx := context.Background()

	alice, err := ensureUser(ctx, st, "alice", "5550001")
	require.NoError(t, err)
	again, err := ensureUser(ctx, st, "alice", "5550001")
	require.NoError(t, err)
	require.Equal(t, alice.ID, again.ID)

	first, err := ensureDemoGroup(ctx, st, alice.ID, "bob", "carol")
	require.NoError(t, err)
	require.Equal(t, demoGroupID, first.ID)
	require.Len(t, first.Members, 3)

	// Membership edited between runs is left alone.
	first.Members = first.Members[:2]
	require.NoError(t, st.SaveGroup(ctx, first))

	second, err := ensureDemoGroup(ctx, st, alice.ID, "bob", "carol")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, second.Members, 2)
	require.False(t, second.IsMember("carol"))
}
