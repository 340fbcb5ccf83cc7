// Package org は組織（クリニック）の作成・一覧・スコープ選択を提供する。
package org

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/karte/internal/membership"
	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
	"github.com/hitoshi/karte/internal/security"
)

// Granter はメンバーシップ付与の窓口。組織作成時のオーナー登録に使う。
type Granter interface {
	Grant(ctx context.Context, params membership.GrantParams) (*model.Member, error)
}

// Service は組織に関するビジネスロジックを提供する。
type Service struct {
	orgRepo        repository.OrgRepository
	membershipRepo repository.MembershipRepository
	userRepo       repository.UserRepository
	scope          *Scope
	granter        Granter
	ssrfGuard      security.SSRFGuardService
}

// NewService はServiceを生成する。
func NewService(
	orgRepo repository.OrgRepository,
	membershipRepo repository.MembershipRepository,
	userRepo repository.UserRepository,
	scope *Scope,
	granter Granter,
	ssrfGuard security.SSRFGuardService,
) *Service {
	return &Service{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
		scope:          scope,
		granter:        granter,
		ssrfGuard:      ssrfGuard,
	}
}

// CreateParams は組織作成の入力。
type CreateParams struct {
	Name       string
	WebsiteURL string
	CreatorID  string
	Creator    *model.User // 作成者のプロフィール。オーナー登録に使用する
}

// Create は組織を作成し、作成者をオーナーとして名簿に登録する。
// WebサイトURLはロゴ取得に使われるため、SSRF防止の事前検証を通す。
func (s *Service) Create(ctx context.Context, params CreateParams) (*model.Org, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("org name is required")
	}
	if params.WebsiteURL != "" {
		if err := s.ssrfGuard.ValidateURL(params.WebsiteURL); err != nil {
			return nil, &model.APIError{
				Code:     "INVALID_URL",
				Message:  "WebサイトURLが不正です。",
				Category: "validation",
				Action:   "URLを確認して再度お試しください。",
			}
		}
	}

	now := time.Now()
	org := &model.Org{
		ID:         uuid.New().String(),
		Name:       params.Name,
		WebsiteURL: params.WebsiteURL,
		CreatedBy:  params.CreatorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create org: %w", err)
	}

	grant := membership.GrantParams{
		OrgID:  org.ID,
		UserID: params.CreatorID,
		Role:   "owner",
	}
	if params.Creator != nil {
		grant.Email = params.Creator.Email
		grant.FirstName = params.Creator.FirstName
		grant.LastName = params.Creator.LastName
	}
	if _, err := s.granter.Grant(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to grant owner membership: %w", err)
	}

	// 作成した組織をアクティブスコープにする。失敗しても作成自体は成立する
	if err := s.userRepo.UpdateLastOrg(ctx, params.CreatorID, org.ID); err != nil {
		slog.Warn("failed to set active scope after org creation",
			slog.String("user_id", params.CreatorID),
			slog.String("org_id", org.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("org created",
		slog.String("org_id", org.ID),
		slog.String("creator_id", params.CreatorID),
	)
	return org, nil
}

// Get は組織を取得する。閲覧にはメンバーシップが必要。
func (s *Service) Get(ctx context.Context, orgID, callerID string) (*model.Org, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to find org: %w", err)
	}
	if org == nil {
		return nil, model.NewOrgNotFoundError()
	}
	return org, nil
}

// ListMine は呼び出し元の所属組織一覧を逆引きインデックスから返す。
// 一覧表示専用であり、認可判定には使用されない。
func (s *Service) ListMine(ctx context.Context, userID string) ([]*model.Membership, error) {
	memberships, err := s.membershipRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

// Select はアクティブスコープを切り替える。
// 名簿でメンバーシップを確認してから切り替える。
func (s *Service) Select(ctx context.Context, orgID, userID string) error {
	if _, err := s.scope.RequireMember(ctx, orgID, userID); err != nil {
		return err
	}

	if err := s.userRepo.UpdateLastOrg(ctx, userID, orgID); err != nil {
		return fmt.Errorf("failed to update active scope: %w", err)
	}
	return nil
}

// Roster は組織のメンバー名簿を返す。閲覧にはメンバーシップが必要。
func (s *Service) Roster(ctx context.Context, orgID, callerID string) ([]*model.Member, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	members, err := s.scope.memberRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
