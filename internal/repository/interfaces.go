// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/karte/internal/model"
)

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を無視）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile は姓名とオンボーディング完了フラグを更新する。
	UpdateProfile(ctx context.Context, id, firstName, lastName string, onboardingComplete bool) error

	// UpdateLastOrg はアクティブスコープ（最終選択組織）を更新する。
	UpdateLastOrg(ctx context.Context, id, orgID string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// OrgRepository は組織データの永続化インターフェース。
type OrgRepository interface {
	// FindByID は指定IDの組織を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Org, error)

	// Create は組織を作成する。
	Create(ctx context.Context, org *model.Org) error

	// ListWithWebsite はWebサイトURLを持つ組織の一覧を返す。ロゴ取得ワーカー用。
	ListWithWebsite(ctx context.Context) ([]*model.Org, error)

	// UpdateLogo は組織のロゴデータを更新する。
	UpdateLogo(ctx context.Context, orgID string, logoData []byte, logoMime string) error
}

// InviteTokenRepository は招待トークンの永続化インターフェース。
// トークンは発行時に一度だけ書き込まれ、以後は読み取り専用。
type InviteTokenRepository interface {
	// Create は招待トークンを作成する。
	Create(ctx context.Context, token *model.InviteToken) error

	// FindByOrgAndToken は組織IDとトークン文字列でトークンを検索する。
	// 見つからない場合はnilを返す。
	FindByOrgAndToken(ctx context.Context, orgID, token string) (*model.InviteToken, error)
}

// InviteRepository は招待レコードの永続化インターフェース。
type InviteRepository interface {
	// FindByID は組織IDと招待IDで招待を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, orgID, inviteID string) (*model.Invite, error)

	// CreateWithToken は招待レコードとトークンを同一トランザクションで作成する。
	CreateWithToken(ctx context.Context, invite *model.Invite, token *model.InviteToken) error

	// ListByOrg は組織の招待一覧を作成日時降順で返す。
	ListByOrg(ctx context.Context, orgID string) ([]*model.Invite, error)

	// Claim はクレームブロックを招待レコードに記録する。
	// statusは保持し、クレーム関連フィールドとロールのみ更新する。
	Claim(ctx context.Context, invite *model.Invite) error

	// UpdateStatus は招待の状態を更新する。状態遷移は前方のみで、
	// pending以外からの遷移は呼び出し側が拒否する。
	UpdateStatus(ctx context.Context, orgID, inviteID string, status model.InviteStatus) error

	// Delete は招待レコードを削除する。対象が存在しなくてもエラーにしない。
	Delete(ctx context.Context, orgID, inviteID string) error

	// ExpireOverdue はexpires_atを過ぎたpending招待をexpiredへ遷移させ、件数を返す。
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// MemberRepository はメンバー名簿の永続化インターフェース。
// 名簿は認可判定の唯一の正である。
type MemberRepository interface {
	// FindByOrgAndUser は組織IDとユーザーIDでメンバーを取得する。
	// 見つからない場合はnilを返す。
	FindByOrgAndUser(ctx context.Context, orgID, userID string) (*model.Member, error)

	// Upsert はメンバーを(org_id, user_id)キーで冪等に作成する。
	// 同一キーへの再実行は同等データでの上書きとなり、重複を生まない。
	Upsert(ctx context.Context, member *model.Member) error

	// ListByOrg は組織のメンバー一覧を返す。
	ListByOrg(ctx context.Context, orgID string) ([]*model.Member, error)
}

// MembershipRepository は所属組織逆引きインデックスの永続化インターフェース。
type MembershipRepository interface {
	// Upsert はエントリを(user_id, org_id)キーでマージUPSERTする。
	// 破壊的上書きではなく、指定フィールドのみ更新する。
	Upsert(ctx context.Context, m *model.Membership) error

	// FindByUserAndOrg はユーザーIDと組織IDでエントリを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndOrg(ctx context.Context, userID, orgID string) (*model.Membership, error)

	// ListByUser はユーザーの所属組織一覧を返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Membership, error)
}

// NavIntentRepository はナビゲーション意図の永続化インターフェース。
type NavIntentRepository interface {
	// Upsert は(owner, kind)キーで意図を作成または上書きする。
	Upsert(ctx context.Context, intent *model.NavIntent) error

	// Find は(owner, kind)で意図を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, owner string, kind model.NavIntentKind) (*model.NavIntent, error)

	// Delete は(owner, kind)の意図を削除する。対象が存在しなくてもエラーにしない。
	Delete(ctx context.Context, owner string, kind model.NavIntentKind) error

	// DeleteByOwner はownerの全意図を削除する。
	DeleteByOwner(ctx context.Context, owner string) error

	// DeleteOlderThan は指定時刻より古い意図を一括削除し、件数を返す。
	// 放置された意図の滞留を防ぐメンテナンス用。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ClientRepository はクライアントレコードの永続化インターフェース。
type ClientRepository interface {
	// FindByID は組織IDとクライアントIDでクライアントを取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, orgID, clientID string) (*model.Client, error)

	// Create はクライアントを作成する。
	Create(ctx context.Context, client *model.Client) error

	// Update はクライアント情報を上書き更新する。
	Update(ctx context.Context, client *model.Client) error

	// ListByOrg は組織のクライアント一覧を姓名順で返す。
	ListByOrg(ctx context.Context, orgID string) ([]*model.Client, error)

	// Delete はクライアントを削除する。
	Delete(ctx context.Context, orgID, clientID string) error
}

// AppointmentRepository は予約データの永続化インターフェース。
type AppointmentRepository interface {
	// FindByID は組織IDと予約IDで予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, orgID, apptID string) (*model.Appointment, error)

	// Create は予約を作成する。
	Create(ctx context.Context, appt *model.Appointment) error

	// Update は予約情報を上書き更新する。
	Update(ctx context.Context, appt *model.Appointment) error

	// ListByOrgAndRange は組織の予約を期間指定で開始時刻昇順に返す。
	ListByOrgAndRange(ctx context.Context, orgID string, from, to time.Time) ([]*model.Appointment, error)

	// Delete は予約を削除する。
	Delete(ctx context.Context, orgID, apptID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
