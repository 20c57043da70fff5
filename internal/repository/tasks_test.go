package repository_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/qwestard/orders/internal/db"
	"gitlab.ozon.dev/qwestard/orders/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DSN")
	if dsn == "" {
		t.Skip("TEST_DSN is not set")
	}
	database, err := db.NewDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		database.Exec("DELETE FROM tasks")
		database.Close()
	})
	_, err = database.Exec("DELETE FROM tasks")
	require.NoError(t, err)
	return database
}

func TestTaskLifecycle(t *testing.T) {
	database := openTestDB(t)
	repo := repository.NewPostgresTaskRepository(database)
	ctx := context.Background()

	require.NoError(t, repo.CreateTask(ctx, []byte(`{"method":"/orders.Orders/RegisterOrder"}`)))

	tasks, err := repo.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, repository.TaskStatusCreated, tasks[0].Status)

	require.NoError(t, repo.MarkTaskProcessing(ctx, tasks[0].ID))
	tasks2, err := repo.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, tasks2)

	require.NoError(t, repo.UpdateTaskFailure(ctx, tasks[0].ID, 1, repository.TaskStatusFailed, time.Now().Add(-time.Second)))
	tasks3, err := repo.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, tasks3, 1)
	assert.Equal(t, 1, tasks3[0].AttemptCount)

	require.NoError(t, repo.DeleteTask(ctx, tasks[0].ID))
	tasks4, err := repo.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, tasks4)
}

func TestGetPendingTasksSkipsExhausted(t *testing.T) {
	database := openTestDB(t)
	repo := repository.NewPostgresTaskRepository(database)
	ctx := context.Background()

	require.NoError(t, repo.CreateTask(ctx, []byte(`{}`)))
	tasks, err := repo.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, repo.UpdateTaskFailure(ctx, tasks[0].ID, 3, repository.TaskStatusNoAttemptsLeft, time.Now().Add(-time.Second)))
	tasks, err = repo.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
