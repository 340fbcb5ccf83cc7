package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/karte/internal/model"
)

// PostgresClientRepo はPostgreSQLを使用したクライアントリポジトリ。
type PostgresClientRepo struct {
	db *sql.DB
}

// NewPostgresClientRepo はPostgresClientRepoを生成する。
func NewPostgresClientRepo(db *sql.DB) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

const clientColumns = `id, org_id, first_name, last_name, email, phone, notes, created_by, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*model.Client, error) {
	c := &model.Client{}
	err := row.Scan(&c.ID, &c.OrgID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.Notes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID は組織IDとクライアントIDでクライアントを取得する。
// 見つからない場合はnilを返す。org_idの一致を条件に含め、テナント越境を防ぐ。
func (r *PostgresClientRepo) FindByID(ctx context.Context, orgID, clientID string) (*model.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE org_id = $1 AND id = $2`,
		orgID, clientID)

	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return c, nil
}

// Create はクライアントを作成する。
func (r *PostgresClientRepo) Create(ctx context.Context, client *model.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, org_id, first_name, last_name, email, phone, notes, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		client.ID, client.OrgID, client.FirstName, client.LastName,
		client.Email, client.Phone, client.Notes,
		client.CreatedBy, client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// Update はクライアント情報を上書き更新する。
func (r *PostgresClientRepo) Update(ctx context.Context, client *model.Client) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE clients
		 SET first_name = $1, last_name = $2, email = $3, phone = $4, notes = $5, updated_at = $6
		 WHERE org_id = $7 AND id = $8`,
		client.FirstName, client.LastName, client.Email, client.Phone,
		client.Notes, client.UpdatedAt,
		client.OrgID, client.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("client not found: %s/%s", client.OrgID, client.ID)
	}
	return nil
}

// ListByOrg は組織のクライアント一覧を姓名順で返す。
func (r *PostgresClientRepo) ListByOrg(ctx context.Context, orgID string) ([]*model.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE org_id = $1 ORDER BY last_name, first_name`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// Delete はクライアントを削除する。
func (r *PostgresClientRepo) Delete(ctx context.Context, orgID, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM clients WHERE org_id = $1 AND id = $2`,
		orgID, clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ClientRepository = (*PostgresClientRepo)(nil)
