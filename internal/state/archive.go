package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

const taskColumns = `id, seq, type, priority, agent, action, payload, status, model_version,
	result, error, error_kind, created_at, started_at, completed_at`

// RecordTask upserts a terminal task record. Non-terminal records are
// rejected so the archive only ever holds finished work.
func (db *DB) RecordTask(ctx context.Context, task models.Task) error {
	if !task.Status.Terminal() {
		return fmt.Errorf("record task %s: status %s is not terminal", task.ID, task.Status)
	}

	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("encode payload for task %s: %w", task.ID, err)
	}

	var result sql.NullString
	if len(task.Result) > 0 {
		result = sql.NullString{String: string(task.Result), Valid: true}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			error_kind = excluded.error_kind,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`,
		task.ID, int64(task.Seq), task.Type, task.Priority, task.AssignedAgent,
		task.Payload.Action, string(payload), task.Status, nullString(task.ModelVersion),
		result, nullString(task.Error), nullString(string(task.ErrorKind)),
		formatTime(task.CreatedAt), formatNullableTime(task.StartedAt), formatNullableTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("record task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask retrieves an archived task by ID. Returns nil, nil if not found.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	// Status limits results to one terminal status when set.
	Status models.TaskStatus
	// Agent limits results to one agent when set.
	Agent models.Agent
	// Limit caps the number of rows; zero means no cap.
	Limit int
}

// ListTasks returns archived tasks, most recently finished first.
func (db *DB) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Agent != "" {
		where = append(where, "agent = ?")
		args = append(args, filter.Agent)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY completed_at DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// StatusCounts holds archived totals per terminal status.
type StatusCounts struct {
	Completed int
	Failed    int
}

// Total returns the number of archived tasks.
func (c StatusCounts) Total() int {
	return c.Completed + c.Failed
}

// CountByStatus returns how many archived tasks completed and failed.
func (db *DB) CountByStatus(ctx context.Context) (StatusCounts, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, fmt.Errorf("scan status count: %w", err)
		}
		switch models.TaskStatus(status) {
		case models.TaskStatusCompleted:
			counts.Completed = n
		case models.TaskStatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// CountByAgent returns the number of archived tasks per agent.
func (db *DB) CountByAgent(ctx context.Context) (map[models.Agent]int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `SELECT agent, COUNT(*) FROM tasks GROUP BY agent`)
	if err != nil {
		return nil, fmt.Errorf("count tasks by agent: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Agent]int)
	for rows.Next() {
		var (
			agent string
			n     int
		)
		if err := rows.Scan(&agent, &n); err != nil {
			return nil, fmt.Errorf("scan agent count: %w", err)
		}
		counts[models.Agent(agent)] = n
	}
	return counts, rows.Err()
}

// PurgeOlderThan deletes tasks that finished before cutoff and returns the
// number of rows removed.
func (db *DB) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE completed_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task                         models.Task
		seq                          int64
		typ, priority, agent, status string
		action, payload              string
		modelVersion, result         sql.NullString
		errMsg, errKind              sql.NullString
		createdAt                    string
		startedAt, completedAt       sql.NullString
	)
	err := row.Scan(&task.ID, &seq, &typ, &priority, &agent, &action, &payload, &status,
		&modelVersion, &result, &errMsg, &errKind, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &task.Payload); err != nil {
		return nil, fmt.Errorf("decode payload for task %s: %w", task.ID, err)
	}
	if task.Payload.Action == "" {
		task.Payload.Action = models.Action(action)
	}
	if result.Valid {
		task.Result = jsontext.Value(result.String)
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for task %s: %w", task.ID, err)
	}

	task.Seq = uint64(seq)
	task.Type = models.TaskType(typ)
	task.Priority = models.Priority(priority)
	task.AssignedAgent = models.Agent(agent)
	task.Status = models.TaskStatus(status)
	task.ModelVersion = modelVersion.String
	task.Error = errMsg.String
	task.ErrorKind = models.ErrorKind(errKind.String)
	task.CreatedAt = created
	task.StartedAt = parseNullableTime(startedAt)
	task.CompletedAt = parseNullableTime(completedAt)
	return &task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
