package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	fieldStatus   = "status"
	fieldProgress = "progress"
	fieldHeader   = "header"
)

// Row styles applied by TagRange, keyed by category
var categoryStyles = map[Category]string{
	CategoryFolder: "bold;background:#ACBCFF",
	CategoryFile:   "background:#AEE2FF",
	CategoryTab:    "background:#E6FFFD",
}

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoint_kv (
		job TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (job, key)
	);

	CREATE TABLE IF NOT EXISTS report_rows (
		job TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		type_label TEXT NOT NULL DEFAULT '',
		modified_at INTEGER NOT NULL DEFAULT 0,
		modified_by TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		link_label TEXT NOT NULL DEFAULT '',
		parent TEXT NOT NULL DEFAULT '',
		depth INTEGER NOT NULL DEFAULT 0,
		style TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (job, row_index)
	);

	CREATE TABLE IF NOT EXISTS report_fields (
		job TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (job, field)
	);

	CREATE TABLE IF NOT EXISTS report_summary (
		job TEXT NOT NULL,
		position INTEGER NOT NULL,
		label TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (job, position)
	);

	CREATE INDEX IF NOT EXISTS idx_report_rows_category ON report_rows(job, category);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// StateTable is the checkpoint key/value view of a single job
type StateTable struct {
	db  *sql.DB
	job string
}

// States returns the checkpoint store scoped to job
func (s *Storage) States(job string) *StateTable {
	return &StateTable{db: s.db, job: job}
}

// Get returns the value stored under key, reporting false when absent
func (t *StateTable) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := t.db.QueryRowContext(ctx,
		"SELECT value FROM checkpoint_kv WHERE job = ? AND key = ?", t.job, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s/%s: %w", t.job, key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value
func (t *StateTable) Set(ctx context.Context, key, value string) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO checkpoint_kv (job, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(job, key) DO UPDATE SET value = EXCLUDED.value
	`, t.job, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", t.job, key, err)
	}
	return nil
}

// ClearAll removes every key of the job
func (t *StateTable) ClearAll(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM checkpoint_kv WHERE job = ?", t.job); err != nil {
		return fmt.Errorf("failed to clear checkpoint of %s: %w", t.job, err)
	}
	return nil
}

// Report is the row sink of a single job
type Report struct {
	db  *sql.DB
	job string
}

// Report returns the report sink scoped to job
func (s *Storage) Report(job string) *Report {
	return &Report{db: s.db, job: job}
}

// Reset drops previous rows, fields and summary of the job and writes the header
func (r *Report) Reset(ctx context.Context, header []string) error {
	encoded, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"report_rows", "report_fields", "report_summary"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE job = ?", r.job); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := setField(ctx, tx, r.job, fieldHeader, string(encoded)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

// Header returns the column names written by Reset
func (r *Report) Header(ctx context.Context) ([]string, error) {
	raw, err := r.field(ctx, fieldHeader)
	if err != nil || raw == "" {
		return nil, err
	}
	var header []string
	if err := json.Unmarshal([]byte(raw), &header); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	return header, nil
}

// AppendRows writes rows at consecutive positions starting at start in one transaction.
// Writing the same position twice overwrites it.
func (r *Report) AppendRows(ctx context.Context, start int, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_rows (job, row_index, category, name, type_label, modified_at,
			modified_by, link, link_label, parent, depth, style)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')
		ON CONFLICT(job, row_index) DO UPDATE SET
			category = EXCLUDED.category,
			name = EXCLUDED.name,
			type_label = EXCLUDED.type_label,
			modified_at = EXCLUDED.modified_at,
			modified_by = EXCLUDED.modified_by,
			link = EXCLUDED.link,
			link_label = EXCLUDED.link_label,
			parent = EXCLUDED.parent,
			depth = EXCLUDED.depth,
			style = ''
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		var modified int64
		if !row.ModifiedAt.IsZero() {
			modified = row.ModifiedAt.UnixNano()
		}
		if _, err := stmt.ExecContext(ctx, r.job, start+i, string(row.Category), row.Name, row.TypeLabel,
			modified, row.ModifiedBy, row.Link, row.LinkLabel, row.Parent, row.Depth); err != nil {
			return fmt.Errorf("failed to append row %d: %w", start+i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	return nil
}

// TagRange applies the category style to count rows starting at start
func (r *Report) TagRange(ctx context.Context, start, count int, category Category) error {
	if count <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE report_rows SET style = ?
		WHERE job = ? AND row_index >= ? AND row_index < ?
	`, categoryStyles[category], r.job, start, start+count)
	if err != nil {
		return fmt.Errorf("failed to tag rows %d..%d: %w", start, start+count-1, err)
	}
	return nil
}

// Style returns the style applied to the row at index
func (r *Report) Style(ctx context.Context, index int) (string, error) {
	var style string
	err := r.db.QueryRowContext(ctx,
		"SELECT style FROM report_rows WHERE job = ? AND row_index = ?", r.job, index).Scan(&style)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read style of row %d: %w", index, err)
	}
	return style, nil
}

// SetStatusField records the human readable job status
func (r *Report) SetStatusField(ctx context.Context, value string) error {
	return setField(ctx, r.db, r.job, fieldStatus, value)
}

// SetProgressField records the human readable progress line
func (r *Report) SetProgressField(ctx context.Context, value string) error {
	return setField(ctx, r.db, r.job, fieldProgress, value)
}

// StatusField returns the last status written, or "" if none
func (r *Report) StatusField(ctx context.Context) (string, error) {
	return r.field(ctx, fieldStatus)
}

// ProgressField returns the last progress line written, or "" if none
func (r *Report) ProgressField(ctx context.Context) (string, error) {
	return r.field(ctx, fieldProgress)
}

// ReadAll returns every data row of the job ordered by position
func (r *Report) ReadAll(ctx context.Context) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT row_index, category, name, type_label, modified_at, modified_by, link, link_label, parent, depth
		FROM report_rows
		WHERE job = ?
		ORDER BY row_index ASC
	`, r.job)
	if err != nil {
		return nil, fmt.Errorf("failed to load rows: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var (
			row      Row
			category string
			modified int64
		)
		if err := rows.Scan(&row.Index, &category, &row.Name, &row.TypeLabel, &modified,
			&row.ModifiedBy, &row.Link, &row.LinkLabel, &row.Parent, &row.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row.Category = Category(category)
		if modified != 0 {
			row.ModifiedAt = time.Unix(0, modified)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// WriteSummary replaces the summary report of the job
func (r *Report) WriteSummary(ctx context.Context, lines []SummaryLine) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin summary: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM report_summary WHERE job = ?", r.job); err != nil {
		return fmt.Errorf("failed to clear summary: %w", err)
	}
	for i, line := range lines {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO report_summary (job, position, label, count) VALUES (?, ?, ?, ?)",
			r.job, i, line.Label, line.Count); err != nil {
			return fmt.Errorf("failed to write summary line %q: %w", line.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit summary: %w", err)
	}
	return nil
}

// ReadSummary returns the summary report of the job in written order
func (r *Report) ReadSummary(ctx context.Context) ([]SummaryLine, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT label, count FROM report_summary WHERE job = ? ORDER BY position ASC", r.job)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	defer rows.Close()

	var lines []SummaryLine
	for rows.Next() {
		var line SummaryLine
		if err := rows.Scan(&line.Label, &line.Count); err != nil {
			return nil, fmt.Errorf("failed to scan summary line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary: %w", err)
	}
	return lines, nil
}

func (r *Report) field(ctx context.Context, name string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM report_fields WHERE job = ? AND field = ?", r.job, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read field %s: %w", name, err)
	}
	return value, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setField(ctx context.Context, db execer, job, name, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO report_fields (job, field, value)
		VALUES (?, ?, ?)
		ON CONFLICT(job, field) DO UPDATE SET value = EXCLUDED.value
	`, job, name, value)
	if err != nil {
		return fmt.Errorf("failed to write field %s: %w", name, err)
	}
	return nil
}
