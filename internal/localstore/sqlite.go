// Package localstore is a SQLite-backed tabular.Provider for local
// development and tests, mirroring the column layout of the production
// spreadsheet.
package localstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/halroad/progressbot/internal/tabular"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding clients, jobs, and invoices.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "progressbot.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that
// haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

const clientColumns = "id, code, name, contact, email, phone, notes, channel_id, created_at, archived, auth_code"

func scanClient(row interface{ Scan(...any) error }) (tabular.Client, error) {
	var c tabular.Client
	var archived int
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Contact, &c.Email, &c.Phone,
		&c.Notes, &c.ChannelID, &c.CreatedAt, &archived, &c.AuthCode)
	if err != nil {
		return tabular.Client{}, err
	}
	c.Archived = archived != 0
	return c, nil
}

// Clients returns every client row.
func (s *Store) Clients(ctx context.Context) ([]tabular.Client, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY CAST(id AS INTEGER)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer rows.Close()

	var clients []tabular.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

const jobColumns = "id, code, client_id, title, status, priority, deadline, budget, description, notes, created_at, closed_at, updated_at"

func scanJob(row interface{ Scan(...any) error }) (tabular.Job, error) {
	var j tabular.Job
	err := row.Scan(&j.ID, &j.Code, &j.ClientID, &j.Title, &j.Status, &j.Priority,
		&j.Deadline, &j.Budget, &j.Description, &j.Notes, &j.CreatedAt, &j.ClosedAt, &j.UpdatedAt)
	return j, err
}

// Jobs returns every job row.
func (s *Store) Jobs(ctx context.Context) ([]tabular.Job, error) {
	return s.queryJobs(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY CAST(id AS INTEGER)")
}

// ClientJobs returns the jobs owned by clientID.
func (s *Store) ClientJobs(ctx context.Context, clientID string) ([]tabular.Job, error) {
	return s.queryJobs(ctx, "SELECT "+jobColumns+" FROM jobs WHERE client_id = ? ORDER BY CAST(id AS INTEGER)", clientID)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]tabular.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer rows.Close()

	var jobs []tabular.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

const invoiceColumns = "id, client_id, job_id, status, total, due_at, created_at, line_items, notes, terms"

func scanInvoice(row interface{ Scan(...any) error }) (tabular.Invoice, error) {
	var inv tabular.Invoice
	err := row.Scan(&inv.ID, &inv.ClientID, &inv.JobID, &inv.Status, &inv.Total,
		&inv.DueAt, &inv.CreatedAt, &inv.LineItems, &inv.Notes, &inv.Terms)
	return inv, err
}

// Invoices returns every invoice row.
func (s *Store) Invoices(ctx context.Context) ([]tabular.Invoice, error) {
	return s.queryInvoices(ctx, "SELECT "+invoiceColumns+" FROM invoices ORDER BY CAST(id AS INTEGER)")
}

// ClientInvoices returns the invoices owned by clientID.
func (s *Store) ClientInvoices(ctx context.Context, clientID string) ([]tabular.Invoice, error) {
	return s.queryInvoices(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE client_id = ? ORDER BY CAST(id AS INTEGER)", clientID)
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]tabular.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer rows.Close()

	var invoices []tabular.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// FindClientByAuthCode looks up the client holding the given auth code.
func (s *Store) FindClientByAuthCode(ctx context.Context, code string) (tabular.Client, error) {
	if code == "" {
		return tabular.Client{}, tabular.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clients WHERE auth_code = ?", code)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tabular.Client{}, tabular.ErrNotFound
	}
	if err != nil {
		return tabular.Client{}, err
	}
	return c, nil
}

// AppendClient inserts a client row, allocating the next numeric ID.
func (s *Store) AppendClient(ctx context.Context, nc tabular.NewClient) (tabular.ClientRef, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tabular.ClientRef{}, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer tx.Rollback()

	var maxID sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT MAX(CAST(id AS INTEGER)) FROM clients").Scan(&maxID); err != nil {
		return tabular.ClientRef{}, err
	}
	nextID := strconv.FormatInt(maxID.Int64+1, 10)

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, 0, ?)`,
		nextID, nc.Code, nc.Name, nc.Email, nc.Email, nc.Phone, nc.Notes, now, nc.AuthCode,
	)
	if err != nil {
		return tabular.ClientRef{}, err
	}
	if err := tx.Commit(); err != nil {
		return tabular.ClientRef{}, err
	}
	return tabular.ClientRef{ID: nextID, Code: nc.Code, AuthCode: nc.AuthCode}, nil
}

// SeedClient inserts a fully specified client row (dev fixtures and tests).
func (s *Store) SeedClient(ctx context.Context, c tabular.Client) error {
	archived := 0
	if c.Archived {
		archived = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Code, c.Name, c.Contact, c.Email, c.Phone, c.Notes,
		c.ChannelID, c.CreatedAt, archived, c.AuthCode,
	)
	return err
}

// SeedJob inserts or replaces a job row (dev fixtures and tests).
func (s *Store) SeedJob(ctx context.Context, j tabular.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Code, j.ClientID, j.Title, j.Status, j.Priority, j.Deadline,
		j.Budget, j.Description, j.Notes, j.CreatedAt, j.ClosedAt, j.UpdatedAt,
	)
	return err
}

// SeedInvoice inserts an invoice row (dev fixtures and tests).
func (s *Store) SeedInvoice(ctx context.Context, inv tabular.Invoice) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.ClientID, inv.JobID, inv.Status, inv.Total, inv.DueAt,
		inv.CreatedAt, inv.LineItems, inv.Notes, inv.Terms,
	)
	return err
}

// UpdateJobStatus changes a job's status in place.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), jobID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tabular.ErrNotFound
	}
	return nil
}
