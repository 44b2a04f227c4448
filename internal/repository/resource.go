package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

// ResourceRepo is the SQLite implementation of domain.ResourceStore.
// Mutations run on the write pool; lookups go to the read pool.
type ResourceRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewResourceRepo builds a repo over a single pool (tests, CLI tools).
func NewResourceRepo(db *sql.DB) *ResourceRepo {
	return &ResourceRepo{write: db, read: db}
}

// NewResourceRepoPair builds a repo over a write/read pool pair.
func NewResourceRepoPair(writeDB, readDB *sql.DB) *ResourceRepo {
	return &ResourceRepo{write: writeDB, read: readDB}
}

const resourceColumns = `id, tenant_id, resource_type, external_id,
	primary_identifier, primary_identifier_lower, document, created_at, last_modified`

func (r *ResourceRepo) FindByID(ctx context.Context, tenantID, resourceType, id string) (*domain.Resource, error) {
	row := r.read.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources
		 WHERE tenant_id = ? AND resource_type = ? AND id = ?`,
		tenantID, resourceType, id)
	return scanResource(row)
}

func (r *ResourceRepo) FindByIdentifier(ctx context.Context, tenantID, resourceType string, col domain.PredicateColumn, value string) (*domain.Resource, error) {
	column, err := predicateColumn(col)
	if err != nil {
		return nil, err
	}
	row := r.read.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources
		 WHERE tenant_id = ? AND resource_type = ? AND `+column+` = ?`,
		tenantID, resourceType, value)
	return scanResource(row)
}

func (r *ResourceRepo) FindCandidates(ctx context.Context, tenantID, resourceType string, pred *domain.StorePredicate) ([]*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources
		WHERE tenant_id = ? AND resource_type = ?`
	args := []interface{}{tenantID, resourceType}

	if pred != nil {
		column, err := predicateColumn(pred.Column)
		if err != nil {
			return nil, err
		}
		query += ` AND ` + column + ` = ?`
		args = append(args, pred.Value)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Create inserts a resource. The uniqueness pre-check and the insert run
// inside one immediate transaction on the single-connection write pool, so
// no concurrent request can interleave between check and write.
func (r *ResourceRepo) Create(ctx context.Context, res *domain.Resource) (*domain.Resource, error) {
	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := r.assertUnique(ctx, tx, res, ""); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(res.Document)
	if err != nil {
		return nil, fmt.Errorf("marshal resource document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO resources (`+resourceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.TenantID, res.Type, nullString(res.ExternalID),
		res.PrimaryIdentifier, res.NormalizedIdentifier(), string(doc),
		formatTime(res.Meta.Created), formatTime(res.Meta.LastModified))
	if err != nil {
		return nil, mapDBError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// Update overwrites an existing resource, re-checking uniqueness for the
// (possibly changed) identifiers against every other resource in scope.
func (r *ResourceRepo) Update(ctx context.Context, res *domain.Resource) (*domain.Resource, error) {
	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := r.assertUnique(ctx, tx, res, res.ID); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(res.Document)
	if err != nil {
		return nil, fmt.Errorf("marshal resource document: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE resources
		 SET external_id = ?, primary_identifier = ?, primary_identifier_lower = ?,
		     document = ?, last_modified = ?
		 WHERE tenant_id = ? AND resource_type = ? AND id = ?`,
		nullString(res.ExternalID), res.PrimaryIdentifier, res.NormalizedIdentifier(),
		string(doc), formatTime(res.Meta.LastModified),
		res.TenantID, res.Type, res.ID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound("%s %s not found", res.Type, res.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *ResourceRepo) Delete(ctx context.Context, tenantID, resourceType, id string) error {
	result, err := r.write.ExecContext(ctx,
		`DELETE FROM resources WHERE tenant_id = ? AND resource_type = ? AND id = ?`,
		tenantID, resourceType, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound("%s %s not found", resourceType, id)
	}
	return nil
}

// assertUnique checks the primary identifier (on its lower-cased shadow)
// and externalId (verbatim) against other resources in the tenant scope.
// excludeID skips the resource itself on updates.
func (r *ResourceRepo) assertUnique(ctx context.Context, tx *sql.Tx, res *domain.Resource, excludeID string) error {
	var clash int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM resources
		 WHERE tenant_id = ? AND resource_type = ? AND primary_identifier_lower = ? AND id != ?`,
		res.TenantID, res.Type, res.NormalizedIdentifier(), excludeID).Scan(&clash)
	if err != nil {
		return err
	}
	if clash > 0 {
		return domain.ErrUniqueness("%s %q already exists",
			domain.PrimaryIdentifierAttr(res.Type), res.PrimaryIdentifier)
	}

	if res.ExternalID != nil && *res.ExternalID != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM resources
			 WHERE tenant_id = ? AND external_id = ? AND id != ?`,
			res.TenantID, *res.ExternalID, excludeID).Scan(&clash)
		if err != nil {
			return err
		}
		if clash > 0 {
			return domain.ErrUniqueness("externalId %q already exists", *res.ExternalID)
		}
	}
	return nil
}

func predicateColumn(col domain.PredicateColumn) (string, error) {
	switch col {
	case domain.ColumnID:
		return "id", nil
	case domain.ColumnExternalID:
		return "external_id", nil
	case domain.ColumnPrimaryIdentifier:
		return "primary_identifier_lower", nil
	default:
		return "", fmt.Errorf("predicate column %q is not indexed", col)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var (
		res          domain.Resource
		externalID   sql.NullString
		lowered      string
		doc          string
		created      string
		lastModified string
	)
	err := row.Scan(&res.ID, &res.TenantID, &res.Type, &externalID,
		&res.PrimaryIdentifier, &lowered, &doc, &created, &lastModified)
	if err != nil {
		return nil, mapDBError(err)
	}

	if externalID.Valid {
		res.ExternalID = &externalID.String
	}
	if err := json.Unmarshal([]byte(doc), &res.Document); err != nil {
		return nil, fmt.Errorf("unmarshal resource document %s: %w", res.ID, err)
	}
	res.Meta = domain.Meta{
		ResourceType: res.Type,
		Created:      parseTime(created),
		LastModified: parseTime(lastModified),
	}
	return &res, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// timeLayout keeps a fixed-width fraction so lexicographic ordering of the
// stored strings matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

var _ domain.ResourceStore = (*ResourceRepo)(nil)
