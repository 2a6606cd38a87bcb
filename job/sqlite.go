// gen3dapi/job/sqlite.go
package job

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	progress     INTEGER NOT NULL DEFAULT 0,
	estimated    INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	download_url TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	source_path  TEXT NOT NULL DEFAULT ''
)`

// SQLiteRegistry persists records in a local sqlite database so job
// history survives a process restart. It satisfies the same Registry
// contract as the in-memory store; the executor does not know the
// difference.
type SQLiteRegistry struct {
	mu sync.Mutex // serializes Update's read-modify-write
	db *sql.DB
}

func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func (r *SQLiteRegistry) Close() error { return r.db.Close() }

func (r *SQLiteRegistry) Create(j Job) error {
	_, err := r.db.Exec(
		`INSERT INTO jobs (id, status, message, progress, estimated, created_at, download_url, error, source_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, string(j.Status), j.Message, j.Progress, boolToInt(j.Estimated),
		j.CreatedAt.UTC().Format(time.RFC3339Nano), j.DownloadURL, j.Error, j.SourcePath,
	)
	if err != nil {
		// PRIMARY KEY violation is the only constraint on this table.
		if existing, gerr := r.Get(j.ID); gerr == nil && existing.ID == j.ID {
			return ErrExists
		}
		return err
	}
	return nil
}

func (r *SQLiteRegistry) Get(id string) (Job, error) {
	row := r.db.QueryRow(
		`SELECT id, status, message, progress, estimated, created_at, download_url, error, source_path
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (r *SQLiteRegistry) Update(id string, mutate func(*Job)) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, err := r.Get(id)
	if err != nil {
		return Job{}, err
	}
	mutate(&j)

	_, err = r.db.Exec(
		`UPDATE jobs SET status = ?, message = ?, progress = ?, estimated = ?, download_url = ?, error = ?, source_path = ?
		 WHERE id = ?`,
		string(j.Status), j.Message, j.Progress, boolToInt(j.Estimated),
		j.DownloadURL, j.Error, j.SourcePath, id,
	)
	if err != nil {
		return Job{}, err
	}
	return j, nil
}

func (r *SQLiteRegistry) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRegistry) List() []Job {
	rows, err := r.db.Query(
		`SELECT id, status, message, progress, estimated, created_at, download_url, error, source_path FROM jobs`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			continue
		}
		out = append(out, j)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var status, createdAt string
	var estimated int
	err := row.Scan(&j.ID, &status, &j.Message, &j.Progress, &estimated,
		&createdAt, &j.DownloadURL, &j.Error, &j.SourcePath)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	j.Status = Status(status)
	j.Estimated = estimated != 0
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return j, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
