package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/taskorch/internal/orchestrator"
	"github.com/ShayCichocki/taskorch/pkg/models"
)

// TaskRecorder persists terminal task records.
type TaskRecorder interface {
	RecordTask(ctx context.Context, task models.Task) error
}

// TaskReader queries archived task records.
type TaskReader interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
	CountByAgent(ctx context.Context) (map[models.Agent]int, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// TaskArchive is the full archive surface used by the CLI.
type TaskArchive interface {
	io.Closer
	Migrator
	TaskRecorder
	TaskReader
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ TaskArchive          = (*DB)(nil)
	_ TaskRecorder         = (*DB)(nil)
	_ TaskReader           = (*DB)(nil)
	_ orchestrator.Archive = (*DB)(nil)
)
