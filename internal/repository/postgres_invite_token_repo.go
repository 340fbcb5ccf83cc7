package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/karte/internal/model"
)

// PostgresInviteTokenRepo はPostgreSQLを使用した招待トークンリポジトリ。
type PostgresInviteTokenRepo struct {
	db *sql.DB
}

// NewPostgresInviteTokenRepo はPostgresInviteTokenRepoを生成する。
func NewPostgresInviteTokenRepo(db *sql.DB) *PostgresInviteTokenRepo {
	return &PostgresInviteTokenRepo{db: db}
}

// Create は招待トークンを作成する。
func (r *PostgresInviteTokenRepo) Create(ctx context.Context, token *model.InviteToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invite_tokens (org_id, token, invite_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.OrgID, token.Token, token.InviteID, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite token: %w", err)
	}
	return nil
}

// FindByOrgAndToken は組織IDとトークン文字列でトークンを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresInviteTokenRepo) FindByOrgAndToken(ctx context.Context, orgID, token string) (*model.InviteToken, error) {
	t := &model.InviteToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT org_id, token, invite_id, created_at
		 FROM invite_tokens
		 WHERE org_id = $1 AND token = $2`,
		orgID, token,
	).Scan(&t.OrgID, &t.Token, &t.InviteID, &t.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invite token: %w", err)
	}
	return t, nil
}

// compile-time interface check
var _ InviteTokenRepository = (*PostgresInviteTokenRepo)(nil)
