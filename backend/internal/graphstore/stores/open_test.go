package stores

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/backend/internal/graphstore"
	"socialgraph/backend/pkg/config"
)

func TestOpen_Badger(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "graph")

	store, err := Open(ctx, &config.Config{StoreBackend: config.BackendBadger, BadgerDir: dir}, nil)
	require.NoError(t, err)
	defer store.Close(ctx)

	tx, err := store.NewTxn(ctx, false)
	require.NoError(t, err)
	_, err = tx.CreateNode(ctx, graphstore.KindProfile, "alice", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.DirExists(t, dir)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreBackend: "cassandra"}, nil)
	assert.Error(t, err)
}
