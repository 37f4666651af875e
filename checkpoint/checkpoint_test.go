package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suviet/agent/types"
)

// storeContract exercises the Store interface behaviors every backend
// must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	snap := &Snapshot{
		ThreadID: "t1",
		Messages: []types.Message{
			types.NewUserMessage("Hồ Quý Ly sinh năm bao nhiêu?"),
			types.NewAssistantMessage("Hồ Quý Ly sinh năm 1336."),
		},
	}
	require.NoError(t, store.Save(ctx, "t1", snap))

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, types.RoleUser, loaded.Messages[0].Role)
	assert.Equal(t, "Hồ Quý Ly sinh năm 1336.", loaded.Messages[1].Content)

	// Save replaces, never appends.
	snap.Messages = append(snap.Messages, types.NewUserMessage("Cảm ơn"))
	require.NoError(t, store.Save(ctx, "t1", snap))
	loaded, err = store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 3)

	require.NoError(t, store.Save(ctx, "t2", &Snapshot{
		ThreadID: "t2",
		Messages: []types.Message{types.NewUserMessage("xin chào")},
	}))
	threads, err := store.ListThreads(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, threads)

	require.NoError(t, store.Delete(ctx, "t1"))
	_, err = store.Load(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an unknown thread is not an error.
	assert.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	defer store.Close()
	storeContract(t, store)
}

func TestMemoryStoreIsolatesSnapshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	snap := &Snapshot{ThreadID: "t1", Messages: []types.Message{types.NewUserMessage("gốc")}}
	require.NoError(t, store.Save(ctx, "t1", snap))

	// Mutating the caller's snapshot must not leak into the store.
	snap.Messages[0].Content = "đã sửa"
	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "gốc", loaded.Messages[0].Content)

	// Mutating a loaded snapshot must not leak either.
	loaded.Messages[0].Content = "sửa lần nữa"
	again, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "gốc", again.Messages[0].Content)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"), nil)
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "suviet-test:",
	}, nil)
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestFactorySelectsBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem, err := NewStore(ctx, Config{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	def, err := NewStore(ctx, Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, def)

	sqlite, err := NewStore(ctx, Config{
		Backend: "sqlite",
		DSN:     filepath.Join(t.TempDir(), "cp.db"),
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &GormStore{}, sqlite)
	sqlite.Close()

	_, err = NewStore(ctx, Config{Backend: "cassandra"}, nil)
	assert.Error(t, err)
}
