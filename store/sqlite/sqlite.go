/*
Package sqlite provides a SQLite-backed implementation of policy.Store.

PURPOSE:
  Production persistence adapter for insurance policies. Holds no business
  rules: it assigns ids and timestamps and nothing else.

KEY TABLE:
  insurance_policies: one row per policy. id is AUTOINCREMENT so ids are
  monotonic and never reused after a delete.

TIMESTAMPS:
  Stored as fixed-width UTC text (microsecond precision) so that ORDER BY
  on the text column matches chronological order.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and every Save runs in a single SQL
  transaction, so a concurrent reader sees either the old row or the new
  one.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

MIGRATION:
  Schema is applied on New() by a goose Provider reading the embedded
  migrations/ directory.

USAGE:
  store, err := sqlite.New(ctx, "./data/policies.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - policy/store.go: Interface definition
  - policy/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/warp/insurance-policy/policy"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	table      = "insurance_policies"
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"
)

var columns = []string{
	"id", "policy_name", "status",
	"coverage_start_date", "coverage_end_date",
	"creation_date", "update_date",
}

// sortColumns maps client sort fields to columns.
var sortColumns = map[string]string{
	policy.SortByID:                "id",
	policy.SortByPolicyName:        "policy_name",
	policy.SortByStatus:            "status",
	policy.SortByCoverageStartDate: "coverage_start_date",
	policy.SortByCoverageEndDate:   "coverage_end_date",
	policy.SortByCreationDate:      "creation_date",
	policy.SortByUpdateDate:        "update_date",
}

// Store implements policy.Store using SQLite.
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	mu  sync.RWMutex
	now func() time.Time
}

var _ policy.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path and applies
// pending migrations. Use ":memory:" for an in-memory database.
func New(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: time.Now,
	}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded goose migrations through a provider bound
// to this store's connection pool.
func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Ping verifies that the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return policy.Unavailable("ping", err)
	}
	return nil
}

// =============================================================================
// POLICY STORE
// =============================================================================

// Exists reports whether a row with id exists.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := s.sb.Select("1").From(table).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("building exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, policy.Unavailable("exists", err)
	}
	return true, nil
}

// Save inserts p when it has no id, otherwise updates the matching row.
func (s *Store) Save(ctx context.Context, p policy.Policy) (policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = policy.Normalize(p.Clone())
	now := s.now().UTC().Truncate(policy.Precision)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return policy.Policy{}, policy.Unavailable("begin", err)
	}
	defer tx.Rollback()

	if p.ID == nil {
		err = s.insertTx(ctx, tx, &p, now)
	} else {
		err = s.updateTx(ctx, tx, &p, now)
	}
	if err != nil {
		return policy.Policy{}, err
	}

	if err := tx.Commit(); err != nil {
		return policy.Policy{}, policy.Unavailable("commit", err)
	}
	return p, nil
}

func (s *Store) insertTx(ctx context.Context, tx *sql.Tx, p *policy.Policy, now time.Time) error {
	p.CreationDate = now
	p.UpdateDate = now

	query, args, err := s.sb.Insert(table).
		Columns(columns[1:]...).
		Values(
			p.PolicyName, string(p.Status),
			formatTime(p.CoverageStartDate), formatTime(p.CoverageEndDate),
			formatTime(p.CreationDate), formatTime(p.UpdateDate),
		).ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return policy.Unavailable("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return policy.Unavailable("insert", err)
	}
	p.ID = &id
	return nil
}

func (s *Store) updateTx(ctx context.Context, tx *sql.Tx, p *policy.Policy, now time.Time) error {
	query, args, err := s.sb.Select("creation_date", "update_date").
		From(table).Where(sq.Eq{"id": *p.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("building select: %w", err)
	}

	var created, updated string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.ErrNotFound
	}
	if err != nil {
		return policy.Unavailable("load timestamps", err)
	}

	if p.CreationDate, err = parseTime("creation_date", created); err != nil {
		return policy.Unavailable("load timestamps", err)
	}
	prev, err := parseTime("update_date", updated)
	if err != nil {
		return policy.Unavailable("load timestamps", err)
	}
	p.UpdateDate = policy.NextUpdateDate(prev, now)

	query, args, err = s.sb.Update(table).
		Set("policy_name", p.PolicyName).
		Set("status", string(p.Status)).
		Set("coverage_start_date", formatTime(p.CoverageStartDate)).
		Set("coverage_end_date", formatTime(p.CoverageEndDate)).
		Set("update_date", formatTime(p.UpdateDate)).
		Where(sq.Eq{"id": *p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return policy.Unavailable("update", err)
	}
	return nil
}

// FindByID retrieves a policy by id. Returns nil, nil when absent.
func (s *Store) FindByID(ctx context.Context, id int64) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := s.sb.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	p, err := scanPolicy(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, policy.Unavailable("find", err)
	}
	return &p, nil
}

// FindAll returns one page ordered by req.Sort, then by id.
func (s *Store) FindAll(ctx context.Context, req policy.PageRequest) (policy.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page := policy.Page{Content: []policy.Policy{}, Page: req.Page, Size: req.Size}

	countSQL, countArgs, err := s.sb.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return policy.Page{}, fmt.Errorf("building count query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&page.Total); err != nil {
		return policy.Page{}, policy.Unavailable("count", err)
	}
	if page.Total == 0 || req.Size <= 0 {
		return page, nil
	}

	dataQuery := s.sb.Select(columns...).From(table)
	for _, o := range req.Sort {
		col, ok := sortColumns[o.Field]
		if !ok {
			continue
		}
		if o.Desc {
			col += " DESC"
		}
		dataQuery = dataQuery.OrderBy(col)
	}
	dataQuery = dataQuery.OrderBy("id").
		Limit(uint64(req.Size)).
		Offset(uint64(req.Offset()))

	dataSQL, dataArgs, err := dataQuery.ToSql()
	if err != nil {
		return policy.Page{}, fmt.Errorf("building data query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return policy.Page{}, policy.Unavailable("find all", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return policy.Page{}, policy.Unavailable("scan", err)
		}
		page.Content = append(page.Content, p)
	}
	if err := rows.Err(); err != nil {
		return policy.Page{}, policy.Unavailable("iterate", err)
	}
	return page, nil
}

// DeleteByID removes a policy. Missing ids are not an error.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := s.sb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return policy.Unavailable("delete", err)
	}
	return nil
}

// Count returns the number of rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := s.sb.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, policy.Unavailable("count", err)
	}
	return n, nil
}

// Reset deletes every policy. AUTOINCREMENT keeps ids from being reused.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return policy.Unavailable("reset", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (policy.Policy, error) {
	var (
		p                policy.Policy
		id               int64
		status           string
		start, end       string
		created, updated string
	)
	if err := row.Scan(&id, &p.PolicyName, &status, &start, &end, &created, &updated); err != nil {
		return policy.Policy{}, err
	}
	p.ID = &id
	p.Status = policy.Status(status)

	var err error
	if p.CoverageStartDate, err = parseTime("coverage_start_date", start); err != nil {
		return policy.Policy{}, err
	}
	if p.CoverageEndDate, err = parseTime("coverage_end_date", end); err != nil {
		return policy.Policy{}, err
	}
	if p.CreationDate, err = parseTime("creation_date", created); err != nil {
		return policy.Policy{}, err
	}
	if p.UpdateDate, err = parseTime("update_date", updated); err != nil {
		return policy.Policy{}, err
	}
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(column, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", column, err)
	}
	return t, nil
}
