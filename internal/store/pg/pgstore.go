// Package pg is the Postgres implementation of the portal store contracts,
// backed by database/sql over the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"legitheque.org/internal/audit"
	"legitheque.org/internal/identity"
	"legitheque.org/internal/portal"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

var (
	_ portal.SectorStore       = (*Store)(nil)
	_ portal.LegalLevelStore   = (*Store)(nil)
	_ portal.MenuStore         = (*Store)(nil)
	_ portal.DocumentStore     = (*Store)(nil)
	_ portal.UserStore         = (*Store)(nil)
	_ identity.CredentialStore = (*Store)(nil)
	_ audit.Store              = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing connection pool, mainly for tests.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- sectors ---

func (s *Store) CreateSector(ctx context.Context, sector *portal.Sector) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into sectors (id, slug, name, theme_accent)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, sector.ID, sector.Slug, sector.Name, sector.ThemeAccent)
	if err := row.Scan(&sector.CreatedAt, &sector.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: sector slug already exists", portal.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) SectorBySlug(ctx context.Context, slug string) (portal.Sector, error) {
	if s.db == nil {
		return portal.Sector{}, errors.New("database connection unavailable")
	}
	var sector portal.Sector
	err := s.db.QueryRowContext(ctx, `
		select id, slug, name, theme_accent, created_at, updated_at
		from sectors
		where slug = $1
	`, slug).Scan(&sector.ID, &sector.Slug, &sector.Name, &sector.ThemeAccent, &sector.CreatedAt, &sector.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return portal.Sector{}, fmt.Errorf("%w: sector %q", portal.ErrNotFound, slug)
	}
	if err != nil {
		return portal.Sector{}, err
	}
	return sector, nil
}

func (s *Store) SectorsBySlugs(ctx context.Context, slugs []string) ([]portal.Sector, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if len(slugs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		select id, slug, name, theme_accent, created_at, updated_at
		from sectors
		where slug in (%s)
		order by slug
	`, placeholders(1, len(slugs)))
	rows, err := s.db.QueryContext(ctx, query, stringArgs(slugs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []portal.Sector
	for rows.Next() {
		var sector portal.Sector
		if err := rows.Scan(&sector.ID, &sector.Slug, &sector.Name, &sector.ThemeAccent, &sector.CreatedAt, &sector.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, sector)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListSectors(ctx context.Context) ([]portal.Sector, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, slug, name, theme_accent, created_at, updated_at
		from sectors
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []portal.Sector
	for rows.Next() {
		var sector portal.Sector
		if err := rows.Scan(&sector.ID, &sector.Slug, &sector.Name, &sector.ThemeAccent, &sector.CreatedAt, &sector.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, sector)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- legal levels ---

func (s *Store) CreateLegalLevel(ctx context.Context, level *portal.LegalLevel) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into legal_levels (id, slug, name, legal_order)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, level.ID, level.Slug, level.Name, level.LegalOrder)
	if err := row.Scan(&level.CreatedAt, &level.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: legal level slug already exists", portal.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) ListLegalLevels(ctx context.Context) ([]portal.LegalLevel, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, slug, name, legal_order, created_at, updated_at
		from legal_levels
		order by legal_order, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []portal.LegalLevel
	for rows.Next() {
		var level portal.LegalLevel
		if err := rows.Scan(&level.ID, &level.Slug, &level.Name, &level.LegalOrder, &level.CreatedAt, &level.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, level)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) LegalLevelExists(ctx context.Context, id string) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `select exists(select 1 from legal_levels where id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// --- menu ---

func (s *Store) MenuRows(ctx context.Context, sectorID string) ([]portal.MenuRow, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select sll.sector_id, sll.legal_level_id, sll.order_override, sll.label_override, sll.is_visible,
		       ll.id, ll.slug, ll.name, ll.legal_order, ll.created_at, ll.updated_at
		from sector_legal_levels sll
		join legal_levels ll on ll.id = sll.legal_level_id
		where sll.sector_id = $1
	`, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []portal.MenuRow
	for rows.Next() {
		var (
			row   portal.MenuRow
			order sql.NullInt64
			label sql.NullString
		)
		if err := rows.Scan(
			&row.Link.SectorID, &row.Link.LegalLevelID, &order, &label, &row.Link.IsVisible,
			&row.Level.ID, &row.Level.Slug, &row.Level.Name, &row.Level.LegalOrder, &row.Level.CreatedAt, &row.Level.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if order.Valid {
			v := int(order.Int64)
			row.Link.OrderOverride = &v
		}
		if label.Valid {
			v := label.String
			row.Link.LabelOverride = &v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpsertSectorLegalLevel(ctx context.Context, link portal.SectorLegalLevel) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	var (
		order sql.NullInt64
		label sql.NullString
	)
	if link.OrderOverride != nil {
		order = sql.NullInt64{Int64: int64(*link.OrderOverride), Valid: true}
	}
	if link.LabelOverride != nil {
		label = sql.NullString{String: *link.LabelOverride, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into sector_legal_levels (sector_id, legal_level_id, order_override, label_override, is_visible)
		values ($1, $2, $3, $4, $5)
		on conflict (sector_id, legal_level_id) do update
		set order_override = excluded.order_override,
		    label_override = excluded.label_override,
		    is_visible = excluded.is_visible
	`, link.SectorID, link.LegalLevelID, order, label, link.IsVisible)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: sector or legal level", portal.ErrNotFound)
		}
		return err
	}
	return nil
}

// --- helpers ---

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// placeholders renders $start..$start+n-1 for an in clause.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
