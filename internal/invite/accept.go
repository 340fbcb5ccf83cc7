package invite

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/karte/internal/membership"
	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
)

// MembershipGranter はメンバーシップ付与の窓口。
// セルフサービス受諾とマネージャー承認の両方が同じ経路を使う。
type MembershipGranter interface {
	Grant(ctx context.Context, params membership.GrantParams) (*model.Member, error)
}

// IntentStore はナビゲーション意図の設定・クリアの窓口。
type IntentStore interface {
	Set(ctx context.Context, owner string, kind model.NavIntentKind, path string) error
	Clear(ctx context.Context, owner string, kind model.NavIntentKind) error
}

// AcceptResult は受諾フローの成功または迂回の結果を表す。
type AcceptResult struct {
	// Detour がtrueの場合、このrunは継続せずオンボーディングへ迂回した。
	Detour bool
	// Detour時の迂回先パス。
	DetourPath string
	// 成功時のリダイレクト先パス。
	RedirectPath string
	// 成功通知に表示する組織表示名。
	OrgName string
	// 作成されたメンバーレコード。Detour時はnil。
	Member *model.Member
}

// AcceptService は招待受諾プロトコルを編成する。
//
// 状態機械の遷移判定はmachine.goの純粋関数に委ね、このサービスは
// 状態ごとの副作用（読み取り・書き込み）の実行のみを担う。
// 書き込みはCLAIMING→CREATING_MEMBER→INDEXING→CLEANUPの順で行われ、
// トランザクション的な原子性はなく、順序のみが保証される。
// どの接頭辞で中断しても系は正当な（不完全かもしれない）状態に残る。
type AcceptService struct {
	tokenRepo repository.InviteTokenRepository
	invRepo   repository.InviteRepository
	userRepo  repository.UserRepository
	orgRepo   repository.OrgRepository
	granter   MembershipGranter
	intents   IntentStore
}

// NewAcceptService はAcceptServiceを生成する。
func NewAcceptService(
	tokenRepo repository.InviteTokenRepository,
	invRepo repository.InviteRepository,
	userRepo repository.UserRepository,
	orgRepo repository.OrgRepository,
	granter MembershipGranter,
	intents IntentStore,
) *AcceptService {
	return &AcceptService{
		tokenRepo: tokenRepo,
		invRepo:   invRepo,
		userRepo:  userRepo,
		orgRepo:   orgRepo,
		granter:   granter,
		intents:   intents,
	}
}

// InviteLinkPath は招待リンクの相対パスを構築する。
// 復帰ポインタおよび招待メールの両方がこの形式を使う。
func InviteLinkPath(orgID, token string) string {
	return "/invite/" + url.PathEscape(token) + "?org=" + url.QueryEscape(orgID)
}

// Preview は認証前の読み取り専用検証を行う。
// トークンの解決と状態確認のみを行い、書き込みは一切発生しない。
// 不正なリンクに対してはAPIErrorを返す。
func (s *AcceptService) Preview(ctx context.Context, orgID, token string) (*model.Invite, error) {
	facts := Facts{OrgID: orgID, Token: token}

	if res := Transition(StateStart, facts); res.Next == StateFailed {
		return nil, failReasonToError(res.Reason, nil)
	}

	tokenRecord, err := s.tokenRepo.FindByOrgAndToken(ctx, orgID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invite token: %w", err)
	}
	facts.TokenRecord = tokenRecord
	if res := Transition(StateValidatingToken, facts); res.Next == StateFailed {
		return nil, failReasonToError(res.Reason, nil)
	}

	inv, err := s.invRepo.FindByID(ctx, orgID, tokenRecord.InviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invite: %w", err)
	}
	facts.Invite = inv
	if res := Transition(StateResolvingInvite, facts); res.Next == StateFailed {
		return nil, failReasonToError(res.Reason, inv)
	}
	if res := Transition(StateCheckingStatus, facts); res.Next == StateFailed {
		return nil, failReasonToError(res.Reason, inv)
	}

	return inv, nil
}

// Accept は認証済みユーザーとして受諾フローを最後まで実行する。
//
// ページ再読み込みによる再実行は安全である。前半は冪等な読み取りであり、
// 後半の書き込みはキーによる冪等性を持つ（同一キーへの再書き込みは
// 同等データでの上書きとなる）。同一ユーザーの2端末による同時実行は
// ガードしない（受容済みの競合）。
func (s *AcceptService) Accept(ctx context.Context, orgID, token string, user *model.User) (*AcceptResult, error) {
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	facts := Facts{
		OrgID:           orgID,
		Token:           token,
		CallerEmail:     user.Email,
		ProfileResolved: user.HasResolvedName(),
	}

	state := StateStart
	for {
		switch state {
		case StateStart:
			res := Transition(state, facts)
			if res.Next == StateFailed {
				// 不正リンク: ネットワークアクセス前に失敗し、復帰ポインタをクリアする
				s.clearResumePointers(ctx, user.ID)
				return nil, failReasonToError(res.Reason, nil)
			}
			state = res.Next

		case StateValidatingToken:
			tokenRecord, err := s.tokenRepo.FindByOrgAndToken(ctx, orgID, token)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve invite token: %w", err)
			}
			facts.TokenRecord = tokenRecord
			res := Transition(state, facts)
			if res.Next == StateFailed {
				s.clearResumePointers(ctx, user.ID)
				return nil, failReasonToError(res.Reason, nil)
			}
			state = res.Next

		case StateResolvingInvite:
			inv, err := s.invRepo.FindByID(ctx, orgID, facts.TokenRecord.InviteID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve invite: %w", err)
			}
			facts.Invite = inv
			res := Transition(state, facts)
			if res.Next == StateFailed {
				s.clearResumePointers(ctx, user.ID)
				return nil, failReasonToError(res.Reason, inv)
			}
			state = res.Next

		case StateCheckingStatus, StateCheckingEmail:
			res := Transition(state, facts)
			if res.Next == StateFailed {
				// ブロックされたリンクは自己回復しないため、
				// 状態エラーでも復帰ポインタは常にクリアする
				s.clearResumePointers(ctx, user.ID)
				return nil, failReasonToError(res.Reason, facts.Invite)
			}
			state = res.Next

		case StateCheckingProfile:
			res := Transition(state, facts)
			if res.Next == StateDetourOnboarding {
				return s.detourToOnboarding(ctx, orgID, token, user)
			}
			state = res.Next

		case StateClaiming:
			if err := s.claim(ctx, facts.Invite, user); err != nil {
				return nil, err
			}
			state = Transition(state, facts).Next

		case StateCreatingMember, StateIndexing:
			// 名簿・逆引きのいずれの書き込み失敗もここで中断し、CLEANUPには進まない
			member, err := s.granter.Grant(ctx, membership.GrantParams{
				OrgID:        orgID,
				UserID:       user.ID,
				Email:        user.Email,
				FirstName:    user.FirstName,
				LastName:     user.LastName,
				Role:         facts.Invite.Role,
				FromInviteID: facts.Invite.ID,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to grant membership: %w", err)
			}
			return s.finish(ctx, orgID, user, member, facts.Invite)

		default:
			return nil, fmt.Errorf("unexpected accept state: %s", state)
		}
	}
}

// claim はクレームブロックを招待レコードへ書き込む。
// statusは保持し、ロールは未指定の場合デフォルトに落とす。
func (s *AcceptService) claim(ctx context.Context, inv *model.Invite, user *model.User) error {
	now := time.Now()
	if inv.Role == "" {
		inv.Role = model.DefaultInviteRole
	}
	inv.ClaimedBy = user.ID
	inv.ClaimedEmail = user.Email
	inv.ClaimedEmailLC = strings.ToLower(user.Email)
	inv.ClaimedFirstName = user.FirstName
	inv.ClaimedLastName = user.LastName
	inv.ClaimedAt = &now

	if err := s.invRepo.Claim(ctx, inv); err != nil {
		return fmt.Errorf("failed to claim invite: %w", err)
	}
	return nil
}

// finish はCLEANUPとFINALIZINGを実行し、成功結果を組み立てる。
func (s *AcceptService) finish(ctx context.Context, orgID string, user *model.User, member *model.Member, inv *model.Invite) (*AcceptResult, error) {
	// CLEANUP: 消費済み招待のベストエフォート削除。
	// クレーム済みのまま残った招待は後からマネージャーが整理できるため害はない。
	if err := s.invRepo.Delete(ctx, orgID, inv.ID); err != nil {
		slog.Warn("failed to delete consumed invite",
			slog.String("org_id", orgID),
			slog.String("invite_id", inv.ID),
			slog.String("error", err.Error()),
		)
	}

	// FINALIZING: 復帰ポインタのクリアとアクティブスコープの更新。
	// メンバーシップは既に成立しているため、いずれの失敗もrunを中断しない。
	s.clearResumePointers(ctx, user.ID)

	if err := s.userRepo.UpdateLastOrg(ctx, user.ID, orgID); err != nil {
		slog.Warn("failed to update active scope",
			slog.String("user_id", user.ID),
			slog.String("org_id", orgID),
			slog.String("error", err.Error()),
		)
	}

	orgName := model.DefaultOrgName
	if org, err := s.orgRepo.FindByID(ctx, orgID); err != nil {
		slog.Warn("failed to resolve org name for success notice",
			slog.String("org_id", orgID),
			slog.String("error", err.Error()),
		)
	} else {
		orgName = org.DisplayName()
	}

	slog.Info("invite accepted",
		slog.String("org_id", orgID),
		slog.String("user_id", user.ID),
		slog.String("invite_id", inv.ID),
		slog.String("role", member.Role),
	)

	return &AcceptResult{
		RedirectPath: "/",
		OrgName:      orgName,
		Member:       member,
	}, nil
}

// detourToOnboarding は姓名未解決のユーザーをオンボーディングへ迂回させる。
// 元の招待リンクをafter_onboarding復帰ポインタとして永続化し、このrunは停止する。
func (s *AcceptService) detourToOnboarding(ctx context.Context, orgID, token string, user *model.User) (*AcceptResult, error) {
	link := InviteLinkPath(orgID, token)
	if err := s.intents.Set(ctx, user.ID, model.NavIntentAfterOnboarding, link); err != nil {
		// 復帰ポインタの永続化失敗は致命的ではないが、復帰できなくなるため警告を残す
		slog.Warn("failed to persist after-onboarding resume pointer",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("invite acceptance detoured to onboarding",
		slog.String("org_id", orgID),
		slog.String("user_id", user.ID),
	)

	return &AcceptResult{
		Detour:     true,
		DetourPath: "/onboarding",
	}, nil
}

// clearResumePointers は受諾フローが所有する復帰ポインタをクリアする。
// 終了（成功・失敗とも）時に呼ばれ、古い復帰先による誤誘導を防ぐ。
// クリアの失敗はベストエフォートとしてログに残すのみ。
func (s *AcceptService) clearResumePointers(ctx context.Context, userID string) {
	for _, kind := range []model.NavIntentKind{model.NavIntentPendingInvite, model.NavIntentAfterOnboarding} {
		if err := s.intents.Clear(ctx, userID, kind); err != nil {
			slog.Warn("failed to clear resume pointer",
				slog.String("user_id", userID),
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}
