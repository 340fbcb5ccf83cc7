package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/karte/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用したメンバー名簿リポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

const memberColumns = `org_id, user_id, email, first_name, last_name, role, added_at, from_invite_id`

func scanMember(row interface{ Scan(...any) error }) (*model.Member, error) {
	m := &model.Member{}
	err := row.Scan(&m.OrgID, &m.UserID, &m.Email, &m.FirstName, &m.LastName,
		&m.Role, &m.AddedAt, &m.FromInviteID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FindByOrgAndUser は組織IDとユーザーIDでメンバーを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByOrgAndUser(ctx context.Context, orgID, userID string) (*model.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE org_id = $1 AND user_id = $2`,
		orgID, userID)

	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

// Upsert はメンバーを(org_id, user_id)キーで冪等に作成する。
// 同一キーへの再実行は同等データでの上書きとなり、重複を生まない。
func (r *PostgresMemberRepo) Upsert(ctx context.Context, m *model.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (org_id, user_id, email, first_name, last_name, role, added_at, from_invite_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (org_id, user_id) DO UPDATE
		 SET email = EXCLUDED.email,
		     first_name = EXCLUDED.first_name,
		     last_name = EXCLUDED.last_name,
		     role = EXCLUDED.role,
		     from_invite_id = EXCLUDED.from_invite_id`,
		m.OrgID, m.UserID, m.Email, m.FirstName, m.LastName, m.Role, m.AddedAt, m.FromInviteID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

// ListByOrg は組織のメンバー一覧を返す。
func (r *PostgresMemberRepo) ListByOrg(ctx context.Context, orgID string) ([]*model.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE org_id = $1 ORDER BY added_at`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
