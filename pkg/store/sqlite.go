package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/computefleet/fleetd/pkg/models"
)

// SQLiteStore checkpoints scheduler state to a SQLite database
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the checkpoint database at dbPath.
// WAL mode plus a busy timeout keeps the periodic writer from tripping
// over concurrent readers.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	// Single writer; the checkpoint loop is the only client.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoint_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		taken_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		capabilities TEXT NOT NULL,
		performance TEXT NOT NULL,
		location TEXT,
		last_seen DATETIME NOT NULL,
		registered_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		node_id TEXT,
		requirements TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		result TEXT,
		error TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSnapshot replaces the stored checkpoint wholesale in one transaction
func (s *SQLiteStore) SaveSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM nodes`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return err
	}

	for _, node := range snap.Nodes {
		caps, err := json.Marshal(node.Capabilities)
		if err != nil {
			return fmt.Errorf("failed to marshal capabilities for node %s: %w", node.ID, err)
		}
		perf, err := json.Marshal(node.Performance)
		if err != nil {
			return fmt.Errorf("failed to marshal performance for node %s: %w", node.ID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO nodes (id, name, kind, status, capabilities, performance, location, last_seen, registered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			node.ID, node.Name, string(node.Kind), string(node.Status),
			string(caps), string(perf), node.Location, node.LastSeen, node.RegisteredAt)
		if err != nil {
			return fmt.Errorf("failed to checkpoint node %s: %w", node.ID, err)
		}
	}

	for _, task := range snap.Tasks {
		var reqs []byte
		if task.Requirements != nil {
			reqs, err = json.Marshal(task.Requirements)
			if err != nil {
				return fmt.Errorf("failed to marshal requirements for task %s: %w", task.ID, err)
			}
		}
		_, err = tx.Exec(`
			INSERT INTO tasks (id, name, kind, status, priority, progress, node_id, requirements,
				attempts, created_at, started_at, completed_at, result, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.Name, string(task.Kind), string(task.Status), string(task.Priority),
			task.Progress, task.NodeID, nullableString(reqs),
			task.Attempts, task.CreatedAt, task.StartedAt, task.CompletedAt, task.Result, task.Error)
		if err != nil {
			return fmt.Errorf("failed to checkpoint task %s: %w", task.ID, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO checkpoint_meta (id, taken_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET taken_at = excluded.taken_at`,
		snap.TakenAt); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadSnapshot reads the stored checkpoint, or ErrNoSnapshot
func (s *SQLiteStore) LoadSnapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{}
	err := s.db.QueryRow(`SELECT taken_at FROM checkpoint_meta WHERE id = 1`).Scan(&snap.TakenAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint metadata: %w", err)
	}

	nodeRows, err := s.db.Query(`
		SELECT id, name, kind, status, capabilities, performance, location, last_seen, registered_at
		FROM nodes ORDER BY registered_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpointed nodes: %w", err)
	}
	defer nodeRows.Close()

	for nodeRows.Next() {
		var node models.ComputeNode
		var kind, status, caps, perf string
		var location sql.NullString
		if err := nodeRows.Scan(&node.ID, &node.Name, &kind, &status, &caps, &perf,
			&location, &node.LastSeen, &node.RegisteredAt); err != nil {
			return nil, err
		}
		node.Kind = models.NodeKind(kind)
		node.Status = models.NodeStatus(status)
		node.Location = location.String
		if err := json.Unmarshal([]byte(caps), &node.Capabilities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal capabilities for node %s: %w", node.ID, err)
		}
		if err := json.Unmarshal([]byte(perf), &node.Performance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal performance for node %s: %w", node.ID, err)
		}
		snap.Nodes = append(snap.Nodes, &node)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, err
	}

	taskRows, err := s.db.Query(`
		SELECT id, name, kind, status, priority, progress, node_id, requirements,
			attempts, created_at, started_at, completed_at, result, error
		FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpointed tasks: %w", err)
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var task models.ComputeTask
		var kind, status, priority string
		var nodeID, reqs, result, errMsg sql.NullString
		var started, completed sql.NullTime
		if err := taskRows.Scan(&task.ID, &task.Name, &kind, &status, &priority, &task.Progress,
			&nodeID, &reqs, &task.Attempts, &task.CreatedAt, &started, &completed,
			&result, &errMsg); err != nil {
			return nil, err
		}
		task.Kind = models.TaskKind(kind)
		task.Status = models.TaskStatus(status)
		task.Priority = models.TaskPriority(priority)
		task.NodeID = nodeID.String
		task.Result = result.String
		task.Error = errMsg.String
		if started.Valid {
			t := started.Time
			task.StartedAt = &t
		}
		if completed.Valid {
			t := completed.Time
			task.CompletedAt = &t
		}
		if reqs.Valid && reqs.String != "" {
			task.Requirements = &models.TaskRequirements{}
			if err := json.Unmarshal([]byte(reqs.String), task.Requirements); err != nil {
				return nil, fmt.Errorf("failed to unmarshal requirements for task %s: %w", task.ID, err)
			}
		}
		snap.Tasks = append(snap.Tasks, &task)
	}
	if err := taskRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
