package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

// TenantRepo is the SQLite implementation of domain.TenantStore.
type TenantRepo struct {
	db *sql.DB
}

func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

func (r *TenantRepo) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, allow_multi_value_patch, created_at FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

func (r *TenantRepo) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, allow_multi_value_patch, created_at FROM tenants WHERE name = ?`, name)
	return scanTenant(row)
}

func (r *TenantRepo) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, allow_multi_value_patch, created_at FROM tenants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) (*domain.Tenant, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, allow_multi_value_patch, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, boolToInt(t.AllowMultiValuePatch), formatTime(t.CreatedAt))
	if err != nil {
		return nil, mapDBError(err)
	}
	return t, nil
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var (
		t          domain.Tenant
		multiValue int64
		created    string
	)
	if err := row.Scan(&t.ID, &t.Name, &multiValue, &created); err != nil {
		return nil, mapDBError(err)
	}
	t.AllowMultiValuePatch = multiValue != 0
	t.CreatedAt = parseTime(created)
	return &t, nil
}

var _ domain.TenantStore = (*TenantRepo)(nil)
