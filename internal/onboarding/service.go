// Package onboarding は初回プロフィール入力フローを提供する。
//
// 招待受諾フローは姓名未解決のユーザーをここへ迂回させる。
// 完了時にafter_onboarding復帰ポインタを消費し、中断されたフローへ戻す。
package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
)

// IntentConsumer はナビゲーション意図の消費の窓口。
type IntentConsumer interface {
	Consume(ctx context.Context, owner string, kind model.NavIntentKind) (*model.NavIntent, error)
}

// Service はオンボーディングのビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	intents  IntentConsumer
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, intents IntentConsumer) *Service {
	return &Service{userRepo: userRepo, intents: intents}
}

// CompleteResult はオンボーディング完了の結果。
type CompleteResult struct {
	// 復帰先パス。中断されたフローがない場合はアプリケーションルート。
	RedirectPath string
}

// Complete は姓名を確定しオンボーディングを完了させる。
// after_onboarding復帰ポインタがあれば消費してそのパスへ戻す。
// このステージはafter_onboardingの次段を所有するため消費してよいが、
// pending_inviteは受諾フローが所有するため触らない。
func (s *Service) Complete(ctx context.Context, userID, firstName, lastName string) (*CompleteResult, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("first name and last name are required")
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, firstName, lastName, true); err != nil {
		return nil, fmt.Errorf("failed to complete onboarding: %w", err)
	}

	slog.Info("onboarding completed", slog.String("user_id", userID))

	redirect := "/"
	intent, err := s.intents.Consume(ctx, userID, model.NavIntentAfterOnboarding)
	if err != nil {
		// 復帰ポインタの読み取り失敗は致命的ではない。ルートへ戻すのみ
		slog.Warn("failed to consume after-onboarding resume pointer",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else if intent != nil {
		redirect = intent.Path
	}

	return &CompleteResult{RedirectPath: redirect}, nil
}
