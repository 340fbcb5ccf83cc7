package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/karte/internal/model"
)

// PostgresOrgRepo はPostgreSQLを使用した組織リポジトリ。
type PostgresOrgRepo struct {
	db *sql.DB
}

// NewPostgresOrgRepo はPostgresOrgRepoを生成する。
func NewPostgresOrgRepo(db *sql.DB) *PostgresOrgRepo {
	return &PostgresOrgRepo{db: db}
}

const orgColumns = `id, name, website_url, logo_data, logo_mime, created_by, created_at, updated_at`

func scanOrg(row interface{ Scan(...any) error }) (*model.Org, error) {
	org := &model.Org{}
	err := row.Scan(&org.ID, &org.Name, &org.WebsiteURL, &org.LogoData, &org.LogoMime,
		&org.CreatedBy, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return org, nil
}

// FindByID は指定IDの組織を取得する。見つからない場合はnilを返す。
func (r *PostgresOrgRepo) FindByID(ctx context.Context, id string) (*model.Org, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM orgs WHERE id = $1`, id)

	org, err := scanOrg(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find org: %w", err)
	}
	return org, nil
}

// Create は組織を作成する。
func (r *PostgresOrgRepo) Create(ctx context.Context, org *model.Org) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orgs (id, name, website_url, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		org.ID, org.Name, org.WebsiteURL, org.CreatedBy, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create org: %w", err)
	}
	return nil
}

// ListWithWebsite はWebサイトURLを持つ組織の一覧を返す。ロゴ取得ワーカー用。
func (r *PostgresOrgRepo) ListWithWebsite(ctx context.Context) ([]*model.Org, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orgColumns+` FROM orgs WHERE website_url <> '' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs: %w", err)
	}
	defer rows.Close()

	var orgs []*model.Org
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan org: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orgs: %w", err)
	}
	return orgs, nil
}

// UpdateLogo は組織のロゴデータを更新する。
func (r *PostgresOrgRepo) UpdateLogo(ctx context.Context, orgID string, logoData []byte, logoMime string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orgs SET logo_data = $1, logo_mime = $2, updated_at = $3 WHERE id = $4`,
		logoData, logoMime, time.Now(), orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to update org logo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("org not found: %s", orgID)
	}
	return nil
}

// compile-time interface check
var _ OrgRepository = (*PostgresOrgRepo)(nil)
