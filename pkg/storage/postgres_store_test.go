package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmward/agentgov/pkg/model"
)

func TestPostgresAgentStore_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresAgentStore(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"trust_score", "adjusted_score", "recent_violations", "updated_at", "version"}).
		AddRow(450, 450, 1, time.Now(), int64(3))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT trust_score, adjusted_score, recent_violations, updated_at, version")).
		WithArgs("agent-1").
		WillReturnRows(rows)

	profile, exists, err := store.Load("agent-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 450, profile.Score)
	assert.Equal(t, int64(3), profile.Version)
	_ = ctx
}

func TestPostgresAgentStore_CompareAndSwap_SucceedsOnOneRowAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresAgentStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE agents SET trust_score")).
		WithArgs(500, 500, 0, sqlmock.AnyArg(), int64(4), "agent-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	next := model.TrustProfile{AgentID: "agent-1", Score: 500, AdjustedScore: 500, Version: 4, LastUpdate: time.Now()}
	ok, err := store.CompareAndSwap(next)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostgresAgentStore_CompareAndSwap_FailsOnZeroRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresAgentStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE agents SET trust_score")).
		WithArgs(500, 500, 0, sqlmock.AnyArg(), int64(4), "agent-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	next := model.TrustProfile{AgentID: "agent-1", Score: 500, AdjustedScore: 500, Version: 4, LastUpdate: time.Now()}
	ok, err := store.CompareAndSwap(next)
	require.NoError(t, err)
	assert.False(t, ok, "a version mismatch must report false, not an error, so the caller's CAS loop retries")
}
