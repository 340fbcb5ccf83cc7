package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/karte/internal/model"
)

// PostgresNavIntentRepo はPostgreSQLを使用したナビゲーション意図リポジトリ。
type PostgresNavIntentRepo struct {
	db *sql.DB
}

// NewPostgresNavIntentRepo はPostgresNavIntentRepoを生成する。
func NewPostgresNavIntentRepo(db *sql.DB) *PostgresNavIntentRepo {
	return &PostgresNavIntentRepo{db: db}
}

// Upsert は(owner, kind)キーで意図を作成または上書きする。
func (r *PostgresNavIntentRepo) Upsert(ctx context.Context, intent *model.NavIntent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO nav_intents (owner, kind, path, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner, kind) DO UPDATE
		 SET path = EXCLUDED.path,
		     created_at = EXCLUDED.created_at`,
		intent.Owner, string(intent.Kind), intent.Path, intent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert nav intent: %w", err)
	}
	return nil
}

// Find は(owner, kind)で意図を取得する。見つからない場合はnilを返す。
func (r *PostgresNavIntentRepo) Find(ctx context.Context, owner string, kind model.NavIntentKind) (*model.NavIntent, error) {
	intent := &model.NavIntent{}
	var k string
	err := r.db.QueryRowContext(ctx,
		`SELECT owner, kind, path, created_at
		 FROM nav_intents
		 WHERE owner = $1 AND kind = $2`,
		owner, string(kind),
	).Scan(&intent.Owner, &k, &intent.Path, &intent.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find nav intent: %w", err)
	}
	intent.Kind = model.NavIntentKind(k)
	return intent, nil
}

// Delete は(owner, kind)の意図を削除する。対象が存在しなくてもエラーにしない。
func (r *PostgresNavIntentRepo) Delete(ctx context.Context, owner string, kind model.NavIntentKind) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM nav_intents WHERE owner = $1 AND kind = $2`,
		owner, string(kind),
	)
	if err != nil {
		return fmt.Errorf("failed to delete nav intent: %w", err)
	}
	return nil
}

// DeleteByOwner はownerの全意図を削除する。
func (r *PostgresNavIntentRepo) DeleteByOwner(ctx context.Context, owner string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM nav_intents WHERE owner = $1`, owner)
	if err != nil {
		return fmt.Errorf("failed to delete nav intents by owner: %w", err)
	}
	return nil
}

// DeleteOlderThan は指定時刻より古い意図を一括削除し、件数を返す。
func (r *PostgresNavIntentRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM nav_intents WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale nav intents: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ NavIntentRepository = (*PostgresNavIntentRepo)(nil)
