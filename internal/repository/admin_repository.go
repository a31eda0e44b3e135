package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// AdminDirectory resolves admin users for assignment pickers and token
// verification.
type AdminDirectory interface {
	ListAdmins(ctx context.Context) ([]domain.AdminUser, error)
	GetAdmin(ctx context.Context, adminID string) (*domain.AdminUser, error)
}

type adminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository instantiates repository.
func NewAdminRepository(pool *pgxpool.Pool) AdminDirectory {
	return &adminRepository{pool: pool}
}

func (r *adminRepository) ListAdmins(ctx context.Context) ([]domain.AdminUser, error) {
	const query = `SELECT id, display_name, email FROM admin_users ORDER BY display_name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []domain.AdminUser
	for rows.Next() {
		var admin domain.AdminUser
		if err := rows.Scan(&admin.ID, &admin.DisplayName, &admin.Email); err != nil {
			return nil, err
		}
		admins = append(admins, admin)
	}
	return admins, rows.Err()
}

func (r *adminRepository) GetAdmin(ctx context.Context, adminID string) (*domain.AdminUser, error) {
	const query = `SELECT id, display_name, email FROM admin_users WHERE id=$1`
	var admin domain.AdminUser
	if err := r.pool.QueryRow(ctx, query, adminID).Scan(&admin.ID, &admin.DisplayName, &admin.Email); err != nil {
		return nil, err
	}
	return &admin, nil
}
