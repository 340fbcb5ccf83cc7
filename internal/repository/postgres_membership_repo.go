package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/karte/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用した逆引きインデックスリポジトリ。
type PostgresMembershipRepo struct {
	db *sql.DB
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db *sql.DB) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// Upsert はエントリを(user_id, org_id)キーでマージUPSERTする。
// 破壊的上書きではなく、指定フィールドのみ更新する。joined_atは初回の値を保持する。
func (r *PostgresMembershipRepo) Upsert(ctx context.Context, m *model.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, org_id, org_name, role, joined_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, org_id) DO UPDATE
		 SET org_name = EXCLUDED.org_name,
		     role = EXCLUDED.role`,
		m.UserID, m.OrgID, m.OrgName, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}
	return nil
}

// FindByUserAndOrg はユーザーIDと組織IDでエントリを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresMembershipRepo) FindByUserAndOrg(ctx context.Context, userID, orgID string) (*model.Membership, error) {
	m := &model.Membership{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, org_id, org_name, role, joined_at
		 FROM memberships
		 WHERE user_id = $1 AND org_id = $2`,
		userID, orgID,
	).Scan(&m.UserID, &m.OrgID, &m.OrgName, &m.Role, &m.JoinedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return m, nil
}

// ListByUser はユーザーの所属組織一覧を参加日時順で返す。
func (r *PostgresMembershipRepo) ListByUser(ctx context.Context, userID string) ([]*model.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, org_id, org_name, role, joined_at
		 FROM memberships
		 WHERE user_id = $1
		 ORDER BY joined_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*model.Membership
	for rows.Next() {
		m := &model.Membership{}
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.OrgName, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return memberships, nil
}

// compile-time interface check
var _ MembershipRepository = (*PostgresMembershipRepo)(nil)
