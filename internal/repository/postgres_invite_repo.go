package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/karte/internal/model"
)

// PostgresInviteRepo はPostgreSQLを使用した招待リポジトリ。
type PostgresInviteRepo struct {
	db *sql.DB
}

// NewPostgresInviteRepo はPostgresInviteRepoを生成する。
func NewPostgresInviteRepo(db *sql.DB) *PostgresInviteRepo {
	return &PostgresInviteRepo{db: db}
}

const inviteColumns = `org_id, id, status, role, email, email_lc, phone,
	created_by, created_at, expires_at,
	claimed_by, claimed_email, claimed_email_lc, claimed_first_name, claimed_last_name, claimed_at`

func scanInvite(row interface{ Scan(...any) error }) (*model.Invite, error) {
	invite := &model.Invite{}
	var status string
	var expiresAt, claimedAt sql.NullTime
	err := row.Scan(
		&invite.OrgID, &invite.ID, &status, &invite.Role,
		&invite.Email, &invite.EmailLC, &invite.Phone,
		&invite.CreatedBy, &invite.CreatedAt, &expiresAt,
		&invite.ClaimedBy, &invite.ClaimedEmail, &invite.ClaimedEmailLC,
		&invite.ClaimedFirstName, &invite.ClaimedLastName, &claimedAt,
	)
	if err != nil {
		return nil, err
	}
	invite.Status = model.InviteStatus(status)
	if expiresAt.Valid {
		invite.ExpiresAt = expiresAt.Time
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		invite.ClaimedAt = &t
	}
	return invite, nil
}

// nullableTime はゼロ値をNULLとして扱うためのヘルパー。
func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// FindByID は組織IDと招待IDで招待を取得する。見つからない場合はnilを返す。
func (r *PostgresInviteRepo) FindByID(ctx context.Context, orgID, inviteID string) (*model.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE org_id = $1 AND id = $2`,
		orgID, inviteID)

	invite, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invite: %w", err)
	}
	return invite, nil
}

// CreateWithToken は招待レコードとトークンを同一トランザクションで作成する。
// どちらかの挿入が失敗した場合は両方ロールバックされ、
// トークンだけが残る・招待だけが残るといった不整合を防ぐ。
func (r *PostgresInviteRepo) CreateWithToken(ctx context.Context, invite *model.Invite, token *model.InviteToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invites (org_id, id, status, role, email, email_lc, phone, created_by, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		invite.OrgID, invite.ID, string(invite.Status), invite.Role,
		invite.Email, invite.EmailLC, invite.Phone,
		invite.CreatedBy, invite.CreatedAt, nullableTime(invite.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invite_tokens (org_id, token, invite_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.OrgID, token.Token, token.InviteID, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByOrg は組織の招待一覧を作成日時降順で返す。
func (r *PostgresInviteRepo) ListByOrg(ctx context.Context, orgID string) ([]*model.Invite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE org_id = $1 ORDER BY created_at DESC`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []*model.Invite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invites: %w", err)
	}
	return invites, nil
}

// Claim はクレームブロックを招待レコードに記録する。
// statusは更新しない。クレーム関連フィールドとロールのみ書き込む。
func (r *PostgresInviteRepo) Claim(ctx context.Context, invite *model.Invite) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invites
		 SET role = $1,
		     claimed_by = $2, claimed_email = $3, claimed_email_lc = $4,
		     claimed_first_name = $5, claimed_last_name = $6, claimed_at = $7
		 WHERE org_id = $8 AND id = $9`,
		invite.Role,
		invite.ClaimedBy, invite.ClaimedEmail, invite.ClaimedEmailLC,
		invite.ClaimedFirstName, invite.ClaimedLastName, invite.ClaimedAt,
		invite.OrgID, invite.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to claim invite: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("invite not found: %s/%s", invite.OrgID, invite.ID)
	}
	return nil
}

// UpdateStatus は招待の状態を更新する。
func (r *PostgresInviteRepo) UpdateStatus(ctx context.Context, orgID, inviteID string, status model.InviteStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invites SET status = $1 WHERE org_id = $2 AND id = $3`,
		string(status), orgID, inviteID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invite status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("invite not found: %s/%s", orgID, inviteID)
	}
	return nil
}

// Delete は招待レコードを削除する。対象が存在しなくてもエラーにしない。
func (r *PostgresInviteRepo) Delete(ctx context.Context, orgID, inviteID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM invites WHERE org_id = $1 AND id = $2`,
		orgID, inviteID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	return nil
}

// ExpireOverdue はexpires_atを過ぎたpending招待をexpiredへ遷移させ、件数を返す。
func (r *PostgresInviteRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invites
		 SET status = $1
		 WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3`,
		string(model.InviteStatusExpired), string(model.InviteStatusPending), now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invites: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ InviteRepository = (*PostgresInviteRepo)(nil)
