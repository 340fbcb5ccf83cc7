// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーのプロフィールを表す。
// 初回認証時に作成され、オンボーディング完了フラグと
// 最後に選択した組織（アクティブスコープ）を保持する。
type User struct {
	ID                 string
	Email              string
	FirstName          string
	LastName           string
	OnboardingComplete bool
	LastOrgID          string // アクティブスコープ。未選択の場合は空文字列
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasResolvedName は姓名が両方解決済みかどうかを返す。
// 未解決の場合、招待受諾フローはオンボーディングへ迂回する。
func (u *User) HasResolvedName() bool {
	return u.FirstName != "" && u.LastName != ""
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
