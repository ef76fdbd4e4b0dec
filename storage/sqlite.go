package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"har_importer/models"
)

// SQLiteStore is the local operational database: run history and run
// logs. It is deliberately separate from the listings database so an
// import host keeps its own audit trail even when Postgres is remote.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS import_runs (
		id INTEGER PRIMARY KEY,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		triggered_by TEXT,
		imported INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		errored INTEGER DEFAULT 0,
		batches INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS import_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON import_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON import_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ImportRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO import_runs (started_at, status, triggered_by, imported, skipped, errored, batches)
		VALUES (?, ?, ?, 0, 0, 0, 0)`,
		run.StartedAt, run.Status, run.Trigger)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ImportRun) error {
	_, err := s.db.Exec(`
		UPDATE import_runs SET finished_at = ?, status = ?, imported = ?,
			skipped = ?, errored = ?, batches = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.Imported, run.Skipped,
		run.Errored, run.Batches, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO import_logs (run_id, timestamp, level, message)
		VALUES (?, ?, ?, ?)`,
		runID, time.Now(), level, message)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ImportRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, status, triggered_by, imported, skipped, errored, batches, error_message
		FROM import_runs WHERE id = ?`, id)

	var run models.ImportRun
	var finished sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.Trigger,
		&run.Imported, &run.Skipped, &run.Errored, &run.Batches, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	run.ErrorMessage = errMsg.String
	return &run, nil
}

func (s *SQLiteStore) GetRecentRuns(limit int) ([]models.ImportRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, status, triggered_by, imported, skipped, errored, batches, error_message
		FROM import_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ImportRun
	for rows.Next() {
		var run models.ImportRun
		var finished sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.Trigger,
			&run.Imported, &run.Skipped, &run.Errored, &run.Batches, &errMsg); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		run.ErrorMessage = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.ImportLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message
		FROM import_logs WHERE run_id = ? ORDER BY timestamp`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ImportLog
	for rows.Next() {
		var entry models.ImportLog
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Timestamp, &entry.Level, &entry.Message); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) GetLastCompletedRunTime() (time.Time, error) {
	var last time.Time
	err := s.db.QueryRow(`
		SELECT started_at FROM import_runs
		WHERE status = 'completed' ORDER BY started_at DESC LIMIT 1`).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return last, err
}
