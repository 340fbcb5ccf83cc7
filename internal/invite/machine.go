// Package invite は招待の発行・受諾・管理を提供する。
//
// 受諾フローは明示的な状態機械として実装される。状態遷移の判定は
// 純粋関数Transitionに集約されており、ネットワーク層をモックせずに
// 各遷移を直接テストできる。副作用（読み取り・書き込み）はAcceptServiceが
// 状態ごとに実行し、観測結果をFactsとして遷移関数へ渡す。
package invite

import (
	"github.com/hitoshi/karte/internal/model"
)

// State は受諾フローの状態を表す。
type State int

const (
	// StateStart は初期状態。リンクパラメータの検証前。
	StateStart State = iota
	// StateValidatingToken はトークンの存在確認中。
	StateValidatingToken
	// StateResolvingInvite はトークンが指す招待レコードの解決中。
	StateResolvingInvite
	// StateCheckingStatus は招待状態の確認中。
	StateCheckingStatus
	// StateCheckingEmail は招待先メールと呼び出し元メールの照合中。
	StateCheckingEmail
	// StateCheckingProfile は呼び出し元の姓名解決の確認中。
	StateCheckingProfile
	// StateClaiming はクレームブロックの書き込み段階。
	StateClaiming
	// StateCreatingMember はメンバー名簿への書き込み段階。
	StateCreatingMember
	// StateIndexing は逆引きインデックスの更新段階。
	StateIndexing
	// StateCleanup は消費済み招待のベストエフォート削除段階。
	StateCleanup
	// StateFinalizing は復帰ポインタのクリアとアクティブスコープ更新段階。
	StateFinalizing
	// StateDone は成功の終端状態。
	StateDone
	// StateDetourOnboarding はオンボーディングへの迂回。このrunは継続しない。
	StateDetourOnboarding
	// StateFailed は失敗の終端状態。FailReasonが理由を保持する。
	StateFailed
)

// String は状態名を返す。ログ出力用。
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateValidatingToken:
		return "validating_token"
	case StateResolvingInvite:
		return "resolving_invite"
	case StateCheckingStatus:
		return "checking_status"
	case StateCheckingEmail:
		return "checking_email"
	case StateCheckingProfile:
		return "checking_profile"
	case StateClaiming:
		return "claiming"
	case StateCreatingMember:
		return "creating_member"
	case StateIndexing:
		return "indexing"
	case StateCleanup:
		return "cleanup"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateDetourOnboarding:
		return "detour_onboarding"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailReason は失敗の理由を表す。
type FailReason string

const (
	// FailInvalidLink はリンクパラメータの欠落を示す。ネットワーク呼び出し前に検出される。
	FailInvalidLink FailReason = "invalid_link"
	// FailNotFound はトークンまたは招待レコードの不在を示す。
	// どちらが欠けたかは漏らさず、同一の理由として扱う。
	FailNotFound FailReason = "not_found"
	// FailMalformedToken はトークンが招待参照を持たないことを示す。
	FailMalformedToken FailReason = "malformed_token"
	// FailNotPending は招待がpending以外の状態であることを示す。
	FailNotPending FailReason = "not_pending"
	// FailEmailMismatch は招待先メールと呼び出し元メールの不一致を示す。
	FailEmailMismatch FailReason = "email_mismatch"
)

// Facts は副作用層が各状態で観測した事実。遷移判定への入力となる。
// 遷移関数は必要なフィールドのみ参照する。
type Facts struct {
	OrgID string
	Token string

	// StateValidatingTokenで観測。未解決ならnil。
	TokenRecord *model.InviteToken

	// StateResolvingInviteで観測。未解決ならnil。
	Invite *model.Invite

	// StateCheckingEmailで使用。検証済みの呼び出し元メール。
	CallerEmail string

	// StateCheckingProfileで使用。姓名が解決済みか。
	ProfileResolved bool
}

// Result は遷移の結果。
type Result struct {
	Next   State
	Reason FailReason // Next == StateFailed のときのみ設定される
}

// Transition は現在状態と観測された事実から次状態を決定する純粋関数。
// 書き込み段階（StateClaiming以降）は副作用の成否で分岐するため
// この関数の対象外であり、成功時の次状態のみを返す。
func Transition(state State, facts Facts) Result {
	switch state {
	case StateStart:
		if facts.OrgID == "" || facts.Token == "" {
			return Result{Next: StateFailed, Reason: FailInvalidLink}
		}
		return Result{Next: StateValidatingToken}

	case StateValidatingToken:
		if facts.TokenRecord == nil {
			return Result{Next: StateFailed, Reason: FailNotFound}
		}
		if facts.TokenRecord.InviteID == "" {
			return Result{Next: StateFailed, Reason: FailMalformedToken}
		}
		return Result{Next: StateResolvingInvite}

	case StateResolvingInvite:
		if facts.Invite == nil {
			return Result{Next: StateFailed, Reason: FailNotFound}
		}
		return Result{Next: StateCheckingStatus}

	case StateCheckingStatus:
		if facts.Invite == nil || !facts.Invite.IsPending() {
			return Result{Next: StateFailed, Reason: FailNotPending}
		}
		return Result{Next: StateCheckingEmail}

	case StateCheckingEmail:
		// ソフトガード: どちらかのメールが空の場合は不一致としない
		if facts.Invite != nil && !facts.Invite.EmailMatches(facts.CallerEmail) {
			return Result{Next: StateFailed, Reason: FailEmailMismatch}
		}
		return Result{Next: StateCheckingProfile}

	case StateCheckingProfile:
		if !facts.ProfileResolved {
			return Result{Next: StateDetourOnboarding}
		}
		return Result{Next: StateClaiming}

	case StateClaiming:
		return Result{Next: StateCreatingMember}

	case StateCreatingMember:
		return Result{Next: StateIndexing}

	case StateIndexing:
		return Result{Next: StateCleanup}

	case StateCleanup:
		return Result{Next: StateFinalizing}

	case StateFinalizing:
		return Result{Next: StateDone}

	default:
		// 終端状態からの遷移はない
		return Result{Next: state}
	}
}

// failReasonToError は失敗理由をユーザー向けAPIErrorへ変換する。
func failReasonToError(reason FailReason, invite *model.Invite) *model.APIError {
	switch reason {
	case FailInvalidLink:
		return model.NewInvalidLinkError()
	case FailNotFound:
		return model.NewInviteNotFoundError()
	case FailMalformedToken:
		return model.NewMalformedTokenError()
	case FailNotPending:
		status := model.InviteStatus("")
		if invite != nil {
			status = invite.Status
		}
		return model.NewInviteNotPendingError(status)
	case FailEmailMismatch:
		return model.NewEmailMismatchError()
	default:
		return model.NewInviteNotFoundError()
	}
}
