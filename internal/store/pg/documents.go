package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"legitheque.org/internal/policy"
	"legitheque.org/internal/portal"
)

func (s *Store) CreateDocument(ctx context.Context, doc *portal.Document, sectorIDs []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into documents (id, title, description, reference_number, year, status, keywords,
			file_path, original_file_name, file_size, file_hash, legal_level_id, created_by_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		returning created_at, updated_at
	`, doc.ID, doc.Title, nullIfEmpty(doc.Description), nullIfEmpty(doc.ReferenceNumber), doc.Year,
		string(doc.Status), nullIfEmpty(doc.Keywords), doc.FilePath, doc.OriginalFileName,
		doc.FileSize, doc.FileHash, doc.LegalLevelID, doc.CreatedByID)
	if err := row.Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: document already exists", portal.ErrConflict)
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: legal level or author", portal.ErrNotFound)
			}
		}
		return err
	}

	for _, sectorID := range sectorIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into document_sectors (document_id, sector_id)
			values ($1, $2)
		`, doc.ID, sectorID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: sector %s", portal.ErrNotFound, sectorID)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) DocumentByID(ctx context.Context, id string) (portal.Document, error) {
	if s.db == nil {
		return portal.Document{}, errors.New("database connection unavailable")
	}
	doc, err := scanDocument(s.db.QueryRowContext(ctx, `
		select id, title, description, reference_number, year, status, keywords,
		       file_path, original_file_name, file_size, file_hash, legal_level_id, created_by_id,
		       created_at, updated_at
		from documents
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return portal.Document{}, fmt.Errorf("%w: document %q", portal.ErrNotFound, id)
	}
	if err != nil {
		return portal.Document{}, err
	}
	if err := s.loadDocumentSectors(ctx, &doc); err != nil {
		return portal.Document{}, err
	}
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, id string, patch portal.DocumentPatch) (portal.Document, error) {
	if s.db == nil {
		return portal.Document{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if patch.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", idx))
		args = append(args, *patch.Title)
		idx++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, nullIfEmpty(*patch.Description))
		idx++
	}
	if patch.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(*patch.Status))
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update documents set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return portal.Document{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return portal.Document{}, err
		}
		if aff == 0 {
			return portal.Document{}, fmt.Errorf("%w: document %q", portal.ErrNotFound, id)
		}
	}
	return s.DocumentByID(ctx, id)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from document_sectors where document_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from documents where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return fmt.Errorf("%w: document %q", portal.ErrNotFound, id)
	}
	return tx.Commit()
}

func (s *Store) ListDocuments(ctx context.Context, sectorSlug string, filter portal.DocumentFilter) ([]portal.Document, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		conds = []string{"sec.slug = $1"}
		args  = []any{sectorSlug}
		idx   = 2
	)
	if filter.Status != nil {
		conds = append(conds, fmt.Sprintf("d.status = $%d", idx))
		args = append(args, string(*filter.Status))
		idx++
	}
	if filter.Year != nil {
		conds = append(conds, fmt.Sprintf("d.year = $%d", idx))
		args = append(args, *filter.Year)
		idx++
	}
	if filter.LegalLevelSlug != "" {
		conds = append(conds, fmt.Sprintf("ll.slug = $%d", idx))
		args = append(args, filter.LegalLevelSlug)
		idx++
	}
	if filter.Query != "" {
		conds = append(conds, fmt.Sprintf("(d.title ilike $%d or d.keywords ilike $%d)", idx, idx))
		args = append(args, "%"+filter.Query+"%")
		idx++
	}

	query := fmt.Sprintf(`
		select distinct d.id, d.title, d.description, d.reference_number, d.year, d.status, d.keywords,
		       d.file_path, d.original_file_name, d.file_size, d.file_hash, d.legal_level_id, d.created_by_id,
		       d.created_at, d.updated_at
		from documents d
		join document_sectors ds on ds.document_id = d.id
		join sectors sec on sec.id = ds.sector_id
		join legal_levels ll on ll.id = d.legal_level_id
		where %s
		order by d.created_at desc, d.id
	`, strings.Join(conds, " and "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []portal.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		if err := s.loadDocumentSectors(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (portal.Document, error) {
	var (
		doc    portal.Document
		desc   sql.NullString
		ref    sql.NullString
		kw     sql.NullString
		status string
	)
	if err := row.Scan(
		&doc.ID, &doc.Title, &desc, &ref, &doc.Year, &status, &kw,
		&doc.FilePath, &doc.OriginalFileName, &doc.FileSize, &doc.FileHash,
		&doc.LegalLevelID, &doc.CreatedByID, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return portal.Document{}, err
	}
	doc.Status = policy.DocumentStatus(status)
	doc.Description = desc.String
	doc.ReferenceNumber = ref.String
	doc.Keywords = kw.String
	return doc, nil
}

func (s *Store) loadDocumentSectors(ctx context.Context, doc *portal.Document) error {
	rows, err := s.db.QueryContext(ctx, `
		select sec.id, sec.slug
		from document_sectors ds
		join sectors sec on sec.id = ds.sector_id
		where ds.document_id = $1
		order by sec.slug
	`, doc.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, slug string
		if err := rows.Scan(&id, &slug); err != nil {
			return err
		}
		doc.SectorIDs = append(doc.SectorIDs, id)
		doc.SectorSlugs = append(doc.SectorSlugs, slug)
	}
	return rows.Err()
}
