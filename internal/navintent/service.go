// Package navintent は中断されたフローへ復帰するためのナビゲーション意図を管理する。
//
// 意図は(owner, kind)で一意に永続化される。ownerは認証前はOAuth stateノンス、
// 認証後はユーザーID。認証完了時にAdoptOwnerでノンス側の意図をユーザーへ引き継ぐ。
// 各kindは消費するステージが決まっており、次段を所有しないステージは
// クリアせずに残す（クロスページ・ハンドオフ規約）。
package navintent

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
)

// Service はナビゲーション意図の設定・消費・クリアを提供する。
type Service struct {
	repo repository.NavIntentRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.NavIntentRepository) *Service {
	return &Service{repo: repo}
}

// Set は意図を保存する。同一(owner, kind)の既存意図は上書きされる。
// pathが復帰先として不正な場合はエラーを返す。
func (s *Service) Set(ctx context.Context, owner string, kind model.NavIntentKind, path string) error {
	if owner == "" {
		return fmt.Errorf("owner is required")
	}
	if err := ValidatePath(path); err != nil {
		return model.NewInvalidPathError(path)
	}

	intent := &model.NavIntent{
		Owner:     owner,
		Kind:      kind,
		Path:      path,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Upsert(ctx, intent); err != nil {
		return fmt.Errorf("failed to set nav intent: %w", err)
	}
	return nil
}

// Peek は意図を消費せずに取得する。見つからない場合はnilを返す。
// 次段を所有しないステージはPeekを使い、意図を残したまま引き継ぐ。
func (s *Service) Peek(ctx context.Context, owner string, kind model.NavIntentKind) (*model.NavIntent, error) {
	intent, err := s.repo.Find(ctx, owner, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to find nav intent: %w", err)
	}
	return intent, nil
}

// Consume は意図を取得して削除する。見つからない場合はnilを返す。
// 削除の失敗は取得結果に影響させず、ログに残すのみとする。
func (s *Service) Consume(ctx context.Context, owner string, kind model.NavIntentKind) (*model.NavIntent, error) {
	intent, err := s.repo.Find(ctx, owner, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to find nav intent: %w", err)
	}
	if intent == nil {
		return nil, nil
	}

	if err := s.repo.Delete(ctx, owner, kind); err != nil {
		slog.Warn("failed to delete consumed nav intent",
			slog.String("owner", owner),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
	return intent, nil
}

// Clear は(owner, kind)の意図を削除する。対象が存在しなくてもエラーにしない。
func (s *Service) Clear(ctx context.Context, owner string, kind model.NavIntentKind) error {
	if err := s.repo.Delete(ctx, owner, kind); err != nil {
		return fmt.Errorf("failed to clear nav intent: %w", err)
	}
	return nil
}

// AdoptOwner は認証完了時に、stateノンス宛の意図をユーザーIDへ引き継ぐ。
// ノンス側の意図を読み取ってユーザー側へ上書きし、ノンス側は削除する。
// 引き継ぎはベストエフォートで、失敗してもログイン自体は成立させる。
func (s *Service) AdoptOwner(ctx context.Context, stateNonce, userID string) {
	if stateNonce == "" || userID == "" {
		return
	}

	kinds := []model.NavIntentKind{
		model.NavIntentPostLogin,
		model.NavIntentPendingInvite,
		model.NavIntentAfterOnboarding,
	}
	for _, kind := range kinds {
		intent, err := s.repo.Find(ctx, stateNonce, kind)
		if err != nil {
			slog.Warn("failed to read nav intent during adoption",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if intent == nil {
			continue
		}

		adopted := &model.NavIntent{
			Owner:     userID,
			Kind:      kind,
			Path:      intent.Path,
			CreatedAt: intent.CreatedAt,
		}
		if err := s.repo.Upsert(ctx, adopted); err != nil {
			slog.Warn("failed to adopt nav intent",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
	}

	if err := s.repo.DeleteByOwner(ctx, stateNonce); err != nil {
		slog.Warn("failed to clean up state-owned nav intents",
			slog.String("error", err.Error()),
		)
	}
}

// ValidatePath は復帰先パスがアプリケーションルートからの相対パスであることを検証する。
// 絶対URL、スキーム付き、プロトコル相対（//）のパスはオープンリダイレクト防止のため拒否する。
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with /: %s", path)
	}
	if strings.HasPrefix(path, "//") {
		return fmt.Errorf("protocol-relative path is not allowed: %s", path)
	}
	parsed, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if parsed.Scheme != "" || parsed.Host != "" {
		return fmt.Errorf("absolute URL is not allowed: %s", path)
	}
	return nil
}
