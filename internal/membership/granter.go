// Package membership は組織メンバーシップの付与を提供する。
//
// Granterはメンバー名簿と逆引きインデックスへの唯一の書き込み経路であり、
// セルフサービス受諾・マネージャー承認・組織作成時のオーナー登録のすべてが
// この経路を通る。名簿と逆引きインデックスの両方の書き込みが成立して
// はじめて付与は成功とみなす。組織表示名の解決のみベストエフォートで行う。
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
)

// GrantParams はメンバーシップ付与の入力。
type GrantParams struct {
	OrgID        string
	UserID       string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	FromInviteID string // 由来の招待ID。直接追加の場合は空
}

// Granter はメンバー名簿と逆引きインデックスへの書き込みを担う。
type Granter struct {
	memberRepo     repository.MemberRepository
	membershipRepo repository.MembershipRepository
	orgRepo        repository.OrgRepository
}

// NewGranter はGranterを生成する。
func NewGranter(
	memberRepo repository.MemberRepository,
	membershipRepo repository.MembershipRepository,
	orgRepo repository.OrgRepository,
) *Granter {
	return &Granter{
		memberRepo:     memberRepo,
		membershipRepo: membershipRepo,
		orgRepo:        orgRepo,
	}
}

// Grant はメンバーを名簿に登録し、逆引きインデックスを更新する。
// 両方の書き込みは(org_id, user_id)キーで冪等であり、同一ユーザーへの
// 再付与は重複レコードを生まない。いずれかの書き込みが失敗した場合は
// エラーを返し、呼び出し側は再実行で収束させる。
func (g *Granter) Grant(ctx context.Context, params GrantParams) (*model.Member, error) {
	if params.OrgID == "" || params.UserID == "" {
		return nil, fmt.Errorf("org ID and user ID are required")
	}
	role := params.Role
	if role == "" {
		role = model.DefaultInviteRole
	}

	member := &model.Member{
		OrgID:        params.OrgID,
		UserID:       params.UserID,
		Email:        params.Email,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Role:         role,
		AddedAt:      time.Now(),
		FromInviteID: params.FromInviteID,
	}

	if err := g.memberRepo.Upsert(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to upsert member: %w", err)
	}

	if err := g.upsertReverseIndex(ctx, member); err != nil {
		return nil, err
	}

	slog.Info("membership granted",
		slog.String("org_id", member.OrgID),
		slog.String("user_id", member.UserID),
		slog.String("role", member.Role),
		slog.String("from_invite_id", member.FromInviteID),
	)
	return member, nil
}

// upsertReverseIndex は逆引きインデックスをマージUPSERTする。
// 組織表示名の取得に失敗した場合はフォールバック表示名で続行するが、
// インデックス本体の書き込み失敗はそのままエラーとして返す。
func (g *Granter) upsertReverseIndex(ctx context.Context, member *model.Member) error {
	orgName := model.DefaultOrgName
	org, err := g.orgRepo.FindByID(ctx, member.OrgID)
	if err != nil {
		slog.Warn("failed to resolve org name for reverse index",
			slog.String("org_id", member.OrgID),
			slog.String("error", err.Error()),
		)
	} else {
		orgName = org.DisplayName()
	}

	entry := &model.Membership{
		UserID:   member.UserID,
		OrgID:    member.OrgID,
		OrgName:  orgName,
		Role:     member.Role,
		JoinedAt: member.AddedAt,
	}
	if err := g.membershipRepo.Upsert(ctx, entry); err != nil {
		// 名簿にだけ載りインデックスに載らない不整合は自己修復しないため、
		// ここで中断して呼び出し側の再実行に委ねる
		return fmt.Errorf("failed to upsert membership reverse index: %w", err)
	}
	return nil
}
