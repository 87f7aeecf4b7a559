package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"legitheque.org/internal/audit"
	"legitheque.org/internal/identity"
	"legitheque.org/internal/portal"
)

func (s *Store) CreateUser(ctx context.Context, user *portal.User, sectorIDs []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into users (id, name, email, password_hash, role, is_active)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.IsActive)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: email already registered", portal.ErrConflict)
		}
		return err
	}

	for _, sectorID := range sectorIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_sectors (user_id, sector_id)
			values ($1, $2)
		`, user.ID, sectorID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: sector %s", portal.ErrNotFound, sectorID)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) UserByID(ctx context.Context, id string) (portal.User, error) {
	if s.db == nil {
		return portal.User{}, errors.New("database connection unavailable")
	}
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		select id, name, email, password_hash, role, is_active, created_at, updated_at
		from users
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return portal.User{}, fmt.Errorf("%w: user %q", portal.ErrNotFound, id)
	}
	if err != nil {
		return portal.User{}, err
	}
	if err := s.loadUserSectors(ctx, &user); err != nil {
		return portal.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]portal.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, email, password_hash, role, is_active, created_at, updated_at
		from users
		order by name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectUsers(ctx, rows)
}

func (s *Store) ListUsersByRolesAndSectors(ctx context.Context, roles []identity.Role, sectorSlugs []string) ([]portal.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if len(roles) == 0 || len(sectorSlugs) == 0 {
		return nil, nil
	}
	roleArgs := make([]string, len(roles))
	for i, role := range roles {
		roleArgs[i] = string(role)
	}
	query := fmt.Sprintf(`
		select distinct u.id, u.name, u.email, u.password_hash, u.role, u.is_active, u.created_at, u.updated_at
		from users u
		join user_sectors us on us.user_id = u.id
		join sectors sec on sec.id = us.sector_id
		where u.role in (%s) and sec.slug in (%s)
		order by u.name, u.id
	`, placeholders(1, len(roleArgs)), placeholders(1+len(roleArgs), len(sectorSlugs)))
	args := append(stringArgs(roleArgs), stringArgs(sectorSlugs)...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectUsers(ctx, rows)
}

func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update users set is_active = $2, updated_at = now() where id = $1
	`, id, active)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return fmt.Errorf("%w: user %q", portal.ErrNotFound, id)
	}
	return nil
}

// DeleteUser removes the account in a fixed order: sector memberships, then
// sessions, then the user row.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_sectors where user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from sessions where user_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return fmt.Errorf("%w: user %q", portal.ErrNotFound, id)
	}
	return tx.Commit()
}

func (s *Store) CountDocumentsCreatedBy(ctx context.Context, userID string) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from documents where created_by_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// --- credentials ---

func (s *Store) CredentialByEmail(ctx context.Context, email string) (identity.Credential, error) {
	if s.db == nil {
		return identity.Credential{}, errors.New("database connection unavailable")
	}
	var (
		cred identity.Credential
		role string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, password_hash, role, is_active
		from users
		where email = $1
	`, email).Scan(&cred.UserID, &cred.PasswordHash, &role, &cred.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Credential{}, fmt.Errorf("%w: credential for %q", portal.ErrNotFound, email)
	}
	if err != nil {
		return identity.Credential{}, err
	}
	cred.Role = identity.Role(role)

	rows, err := s.db.QueryContext(ctx, `
		select sec.slug
		from user_sectors us
		join sectors sec on sec.id = us.sector_id
		where us.user_id = $1
		order by sec.slug
	`, cred.UserID)
	if err != nil {
		return identity.Credential{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return identity.Credential{}, err
		}
		cred.SectorSlugs = append(cred.SectorSlugs, slug)
	}
	if err := rows.Err(); err != nil {
		return identity.Credential{}, err
	}
	return cred, nil
}

// --- audit ---

func (s *Store) Append(ctx context.Context, event *audit.Event) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_events (id, actor_user_id, action, entity_type, entity_id, sector_id, reason, occurred_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.ActorUserID, string(event.Action), event.EntityType, event.EntityID,
		nullIfEmpty(event.SectorID), nullIfEmpty(event.Reason), event.OccurredAt)
	return err
}

// --- helpers ---

func scanUser(row rowScanner) (portal.User, error) {
	var (
		user portal.User
		role string
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return portal.User{}, err
	}
	user.Role = identity.Role(role)
	return user, nil
}

func (s *Store) collectUsers(ctx context.Context, rows *sql.Rows) ([]portal.User, error) {
	var result []portal.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		if err := s.loadUserSectors(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) loadUserSectors(ctx context.Context, user *portal.User) error {
	rows, err := s.db.QueryContext(ctx, `
		select sec.id, sec.slug
		from user_sectors us
		join sectors sec on sec.id = us.sector_id
		where us.user_id = $1
		order by sec.slug
	`, user.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, slug string
		if err := rows.Scan(&id, &slug); err != nil {
			return err
		}
		user.SectorIDs = append(user.SectorIDs, id)
		user.SectorSlugs = append(user.SectorSlugs, slug)
	}
	return rows.Err()
}
