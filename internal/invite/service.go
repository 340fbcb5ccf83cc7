package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/karte/internal/membership"
	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
)

// ServiceConfig は招待管理サービスの設定。
type ServiceConfig struct {
	InviteTTL time.Duration // 招待の有効期間。0の場合は無期限
	BaseURL   string        // 招待リンクの組み立てに使用する
}

// Service は招待の発行・一覧・取り消し・マネージャー承認を提供する。
//
// 承認パスはセルフサービス受諾がCLAIMINGで残したクレームブロックを使って
// メンバーを作成する。名簿への書き込みは受諾フローと同じGranterを通るため、
// どちらの経路でも同じ形のレコードに収束する。
type Service struct {
	invRepo    repository.InviteRepository
	memberRepo repository.MemberRepository
	userRepo   repository.UserRepository
	granter    MembershipGranter
	config     ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	invRepo repository.InviteRepository,
	memberRepo repository.MemberRepository,
	userRepo repository.UserRepository,
	granter MembershipGranter,
	config ServiceConfig,
) *Service {
	return &Service{
		invRepo:    invRepo,
		memberRepo: memberRepo,
		userRepo:   userRepo,
		granter:    granter,
		config:     config,
	}
}

// privilegedRoles は招待の発行・取り消し・承認を行えるロール。
var privilegedRoles = map[string]bool{
	"owner":   true,
	"manager": true,
}

// requireManager は操作者が組織の管理権限を持つメンバーであることを確認する。
// 名簿が認可判定の唯一の正であり、逆引きインデックスは参照しない。
func (s *Service) requireManager(ctx context.Context, orgID, userID string) error {
	member, err := s.memberRepo.FindByOrgAndUser(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if member == nil {
		return model.NewNotAMemberError()
	}
	if !privilegedRoles[member.Role] {
		return model.NewForbiddenError()
	}
	return nil
}

// IssueParams は招待発行の入力。
type IssueParams struct {
	OrgID    string
	IssuerID string
	Email    string // 招待先メール。電話招待・オープン招待の場合は空
	Phone    string
	Role     string
}

// IssueResult は発行された招待とそのリンク。
type IssueResult struct {
	Invite *model.Invite
	Token  string
	Link   string // アプリケーションルートからの相対パス
}

// Issue は招待レコードと不透明トークンを発行する。
// トークンは暗号的に安全な乱数から生成され、レコードと同一トランザクションで
// 書き込まれる。発行には管理権限が必要。
func (s *Service) Issue(ctx context.Context, params IssueParams) (*IssueResult, error) {
	if params.OrgID == "" {
		return nil, model.NewOrgNotFoundError()
	}
	if err := s.requireManager(ctx, params.OrgID, params.IssuerID); err != nil {
		return nil, err
	}

	role := params.Role
	if role == "" {
		role = model.DefaultInviteRole
	}

	if params.Email != "" {
		s.warnIfAlreadyMember(ctx, params.OrgID, params.Email)
	}

	token, err := generateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite token: %w", err)
	}

	now := time.Now()
	inv := &model.Invite{
		ID:        uuid.New().String(),
		OrgID:     params.OrgID,
		Status:    model.InviteStatusPending,
		Role:      role,
		Email:     params.Email,
		EmailLC:   strings.ToLower(params.Email),
		Phone:     params.Phone,
		CreatedBy: params.IssuerID,
		CreatedAt: now,
	}
	if s.config.InviteTTL > 0 {
		inv.ExpiresAt = now.Add(s.config.InviteTTL)
	}

	tokenRecord := &model.InviteToken{
		OrgID:     params.OrgID,
		Token:     token,
		InviteID:  inv.ID,
		CreatedAt: now,
	}

	if err := s.invRepo.CreateWithToken(ctx, inv, tokenRecord); err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	slog.Info("invite issued",
		slog.String("org_id", params.OrgID),
		slog.String("invite_id", inv.ID),
		slog.String("issuer_id", params.IssuerID),
		slog.String("role", role),
	)

	return &IssueResult{
		Invite: inv,
		Token:  token,
		Link:   InviteLinkPath(params.OrgID, token),
	}, nil
}

// warnIfAlreadyMember は招待先メールが既にその組織のメンバーに属する場合に
// 警告ログを残す。受諾時にクレーマーのメール照合が行われるため、発行自体は
// 妨げず、取得失敗もベストエフォートとして無視する。
func (s *Service) warnIfAlreadyMember(ctx context.Context, orgID, email string) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		slog.Warn("failed to look up invited email",
			slog.String("org_id", orgID),
			slog.String("error", err.Error()),
		)
		return
	}
	if user == nil {
		return
	}

	member, err := s.memberRepo.FindByOrgAndUser(ctx, orgID, user.ID)
	if err != nil {
		slog.Warn("failed to check invited user membership",
			slog.String("org_id", orgID),
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if member != nil {
		slog.Warn("invited email already belongs to an org member",
			slog.String("org_id", orgID),
			slog.String("user_id", user.ID),
			slog.String("role", member.Role),
		)
	}
}

// List は組織の招待一覧を返す。閲覧には管理権限が必要。
func (s *Service) List(ctx context.Context, orgID, callerID string) ([]*model.Invite, error) {
	if err := s.requireManager(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	invites, err := s.invRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return invites, nil
}

// Revoke はpendingの招待を取り消す。
// 状態遷移は前方のみであり、pending以外の招待は取り消せない。
func (s *Service) Revoke(ctx context.Context, orgID, inviteID, callerID string) error {
	if err := s.requireManager(ctx, orgID, callerID); err != nil {
		return err
	}

	inv, err := s.invRepo.FindByID(ctx, orgID, inviteID)
	if err != nil {
		return fmt.Errorf("failed to find invite: %w", err)
	}
	if inv == nil {
		return model.NewInviteNotFoundError()
	}
	if !inv.IsPending() {
		return model.NewInviteNotPendingError(inv.Status)
	}

	if err := s.invRepo.UpdateStatus(ctx, orgID, inviteID, model.InviteStatusRevoked); err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}

	slog.Info("invite revoked",
		slog.String("org_id", orgID),
		slog.String("invite_id", inviteID),
		slog.String("caller_id", callerID),
	)
	return nil
}

// Approve はクレーム済みの招待をマネージャーが承認し、メンバーを作成する。
//
// セルフサービス受諾がメンバー作成前に中断した場合、招待はクレーム済みの
// 回復可能な状態で残る。このパスはそのクレームブロックからメンバーを作成し、
// 招待をacceptedへ遷移させる。名簿書き込みはGranter経由で冪等。
func (s *Service) Approve(ctx context.Context, orgID, inviteID, callerID string) (*model.Member, error) {
	if err := s.requireManager(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	inv, err := s.invRepo.FindByID(ctx, orgID, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find invite: %w", err)
	}
	if inv == nil {
		return nil, model.NewInviteNotFoundError()
	}
	if !inv.IsClaimed() {
		return nil, model.NewInviteNotClaimedError()
	}

	member, err := s.granter.Grant(ctx, membership.GrantParams{
		OrgID:        orgID,
		UserID:       inv.ClaimedBy,
		Email:        inv.ClaimedEmail,
		FirstName:    inv.ClaimedFirstName,
		LastName:     inv.ClaimedLastName,
		Role:         inv.Role,
		FromInviteID: inv.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create member from claim: %w", err)
	}

	if err := s.invRepo.UpdateStatus(ctx, orgID, inviteID, model.InviteStatusAccepted); err != nil {
		// メンバーは既に作成済みのため、状態更新の失敗は警告に留める
		slog.Warn("failed to mark invite as accepted",
			slog.String("org_id", orgID),
			slog.String("invite_id", inviteID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("claimed invite approved",
		slog.String("org_id", orgID),
		slog.String("invite_id", inviteID),
		slog.String("approver_id", callerID),
		slog.String("user_id", inv.ClaimedBy),
	)
	return member, nil
}

// generateInviteToken はURL-safeな不透明トークンを生成する。
func generateInviteToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
