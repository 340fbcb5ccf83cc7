package model

import (
	"strings"
	"time"
)

// InviteStatus は招待レコードのライフサイクル状態を表す。
// 状態遷移は前方のみ: pending → accepted / revoked / expired。
type InviteStatus string

const (
	// InviteStatusPending は受諾可能な招待を示す。
	InviteStatusPending InviteStatus = "pending"
	// InviteStatusAccepted は受諾済みの招待を示す。
	InviteStatusAccepted InviteStatus = "accepted"
	// InviteStatusRevoked は取り消された招待を示す。
	InviteStatusRevoked InviteStatus = "revoked"
	// InviteStatusExpired は期限切れの招待を示す。
	InviteStatusExpired InviteStatus = "expired"
)

// ParseInviteStatus は文字列をInviteStatusに変換する。
// 未知の値は空文字列を返す。
func ParseInviteStatus(s string) InviteStatus {
	switch InviteStatus(strings.ToLower(strings.TrimSpace(s))) {
	case InviteStatusPending:
		return InviteStatusPending
	case InviteStatusAccepted:
		return InviteStatusAccepted
	case InviteStatusRevoked:
		return InviteStatusRevoked
	case InviteStatusExpired:
		return InviteStatusExpired
	default:
		return ""
	}
}

// DefaultInviteRole はロール未指定の招待に付与するデフォルトロール。
const DefaultInviteRole = "member"

// Invite は招待レコードを表す。(org_id, id) で一意。
// 受諾フローはライフサイクル中にちょうど2回だけレコードを変更する:
// クレームブロックの記録と、メンバー作成後のベストエフォート削除。
type Invite struct {
	ID      string
	OrgID   string
	Status  InviteStatus
	Role    string
	Email   string // 招待先メールアドレス。電話招待・オープン招待の場合は空
	EmailLC string // 照合用の小文字コピー
	Phone   string

	CreatedBy string
	CreatedAt time.Time
	ExpiresAt time.Time // ゼロ値の場合は無期限

	// クレームブロック。セルフサービス受諾でのみ記録される。
	ClaimedBy        string
	ClaimedEmail     string
	ClaimedEmailLC   string
	ClaimedFirstName string
	ClaimedLastName  string
	ClaimedAt        *time.Time
}

// IsPending は招待が受諾可能かどうかを返す。
func (i *Invite) IsPending() bool {
	return i.Status == InviteStatusPending
}

// IsClaimed はクレームブロックが記録済みかどうかを返す。
// マネージャー承認パスはこのブロックを使ってメンバーを作成する。
func (i *Invite) IsClaimed() bool {
	return i.ClaimedBy != ""
}

// EmailMatches は招待先メールと呼び出し元メールを大文字小文字を無視して照合する。
// どちらかが空の場合は不一致としない（ソフトガード）。
func (i *Invite) EmailMatches(callerEmail string) bool {
	if i.Email == "" || callerEmail == "" {
		return true
	}
	return strings.EqualFold(i.Email, callerEmail)
}

// InviteToken は不透明トークンと招待レコードの対応を表す。(org_id, token) で一意。
// 発行時に一度だけ書き込まれ、受諾フローでは読み取り専用。
// 招待レコード削除後に残ったトークンは以後の解決に失敗するだけで害はない。
type InviteToken struct {
	OrgID     string
	Token     string
	InviteID  string
	CreatedAt time.Time
}
