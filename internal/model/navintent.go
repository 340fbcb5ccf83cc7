package model

import "time"

// NavIntentKind はナビゲーション意図の種別を表す。
// 種別ごとに消費するステージが決まっており、次段を所有しないステージは
// クリアせずに残す（クロスページ・ハンドオフ規約）。
type NavIntentKind string

const (
	// NavIntentPostLogin はログイン完了後の汎用リダイレクト先を示す。
	NavIntentPostLogin NavIntentKind = "post_login"
	// NavIntentPendingInvite は処理中の招待リンクを示す。
	NavIntentPendingInvite NavIntentKind = "pending_invite"
	// NavIntentAfterOnboarding はオンボーディング完了後の復帰先を示す。
	NavIntentAfterOnboarding NavIntentKind = "after_onboarding"
)

// NavIntent は中断されたフローへ復帰するためのナビゲーション意図を表す。
// (owner, kind) で一意。ownerは認証前はOAuth stateノンス、認証後はユーザーID。
// pathはアプリケーションルートからの相対パス文字列。
type NavIntent struct {
	Owner     string
	Kind      NavIntentKind
	Path      string
	CreatedAt time.Time
}
