package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/storage"
)

func TestPostgres_SaveAndGetProject(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS projects")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	backend := NewWithPool(mock)
	require.NoError(t, backend.Initialize(context.Background()))

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WithArgs("proj-1", "demo", []byte(`{}`), now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = backend.SaveProject(context.Background(), storage.Project{
		ID: "proj-1", Name: "demo", Data: []byte(`{}`), CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "name", "data", "created_at", "updated_at"}).
		AddRow("proj-1", "demo", []byte(`{}`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, data, created_at, updated_at FROM projects WHERE id = $1")).
		WithArgs("proj-1").
		WillReturnRows(rows)

	got, err := backend.GetProject(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetProjectNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, data, created_at, updated_at FROM projects WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	backend := NewWithPool(mock)
	_, err = backend.GetProject(context.Background(), "missing")
	assert.Error(t, err)
	assert.ErrorContains(t, err, "entity_not_found")
}

func TestPostgres_KGEnsurePropagatesLookupError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM knowledge_graphs WHERE project_id = $1 AND node_id = $2")).
		WithArgs("proj-1", "kg-node").
		WillReturnError(errors.New("connection reset"))

	backend := NewWithPool(mock)
	_, err = backend.KGEnsure(context.Background(), "proj-1", "kg-node")
	assert.Error(t, err)
}
