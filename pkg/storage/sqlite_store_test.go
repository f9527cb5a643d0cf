package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmward/agentgov/pkg/model"
)

func newTestStore(t *testing.T) *SQLiteAgentStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteAgentStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLiteAgentStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	agent := model.Agent{AgentID: "agent-1", Name: "courier", OwnerID: "owner-1", Capabilities: []string{"fetch"}}
	require.NoError(t, store.CreateAgent(ctx, agent))

	got, exists, err := store.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "courier", got.Name)
	assert.Equal(t, model.StageDraft, got.PipelineStage)
	assert.Equal(t, int64(0), got.Version)
	assert.Equal(t, []string{"fetch"}, got.Capabilities)
}

func TestSQLiteAgentStore_CompareAndSwapAdvancesVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAgent(ctx, model.Agent{AgentID: "agent-1", Name: "x", OwnerID: "o"}))

	profile, exists, err := store.Load("agent-1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, int64(0), profile.Version)

	next := profile
	next.Score = 5
	next.Version = profile.Version + 1
	next.LastUpdate = time.Now()

	ok, err := store.CompareAndSwap(next)
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, _, err := store.Load("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Score)
	assert.Equal(t, int64(1), reloaded.Version)
}

func TestSQLiteAgentStore_CompareAndSwapFailsOnStaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAgent(ctx, model.Agent{AgentID: "agent-1", Name: "x", OwnerID: "o"}))

	stale := model.TrustProfile{AgentID: "agent-1", Score: 5, Version: 5}
	ok, err := store.CompareAndSwap(stale)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteAgentStore_StageTransitionCAS(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAgent(ctx, model.Agent{AgentID: "agent-1", Name: "x", OwnerID: "o"}))

	stage, version, exists, err := store.LoadStage("agent-1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, model.StageDraft, stage)

	ok, err := store.CompareAndSwapStage("agent-1", model.StageTraining, version)
	require.NoError(t, err)
	assert.True(t, ok)

	stage, _, _, err = store.LoadStage("agent-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageTraining, stage)
}

func TestSQLiteAgentStore_RecordTrustEventRejectsDuplicateHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAgent(ctx, model.Agent{AgentID: "agent-1", Name: "x", OwnerID: "o"}))

	require.NoError(t, store.RecordTrustEvent(ctx, "evt-1", "agent-1", "success", "hash-1", 5, nil))
	err := store.RecordTrustEvent(ctx, "evt-2", "agent-1", "success", "hash-1", 5, nil)
	assert.Error(t, err)
}
