package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, invite, org, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidLink      = "INVALID_LINK"
	ErrCodeInviteNotFound   = "INVITE_NOT_FOUND"
	ErrCodeInviteNotPending = "INVITE_NOT_PENDING"
	ErrCodeEmailMismatch    = "EMAIL_MISMATCH"
	ErrCodeMalformedToken   = "MALFORMED_TOKEN"
	ErrCodeInviteNotClaimed = "INVITE_NOT_CLAIMED"
	ErrCodeOrgNotFound      = "ORG_NOT_FOUND"
	ErrCodeNotAMember       = "NOT_A_MEMBER"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeClientNotFound   = "CLIENT_NOT_FOUND"
	ErrCodeApptNotFound     = "APPOINTMENT_NOT_FOUND"
	ErrCodeInvalidPath      = "INVALID_PATH"
	ErrCodeInvalidTimeRange = "INVALID_TIME_RANGE"
)

// NewInvalidLinkError は招待リンクの形式不正エラーを生成する。
// トークンまたは組織IDが欠けている場合、ネットワークアクセス前に失敗する。
func NewInvalidLinkError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLink,
		Message:  "招待リンクの形式が正しくありません。",
		Category: "invite",
		Action:   "招待メールに記載されたリンクをそのまま開いてください。",
	}
}

// NewInviteNotFoundError は招待未検出エラーを生成する。
// トークン不在と招待レコード不在は区別せず同一のエラーとして扱う。
func NewInviteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeInviteNotFound,
		Message:  "招待が見つかりません。",
		Category: "invite",
		Action:   "リンクが古い可能性があります。招待者に再送を依頼してください。",
	}
}

// NewInviteNotPendingError は受諾不可能な状態の招待に対するエラーを生成する。
func NewInviteNotPendingError(status InviteStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInviteNotPending,
		Message:  fmt.Sprintf("この招待は既に処理されています（状態: %s）。", status),
		Category: "invite",
		Action:   "既にメンバーの場合はホームに戻ってください。心当たりがない場合は招待者に確認してください。",
	}
}

// NewEmailMismatchError はメールアドレス不一致エラーを生成する。
func NewEmailMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailMismatch,
		Message:  "ログイン中のメールアドレスが招待先と一致しません。",
		Category: "invite",
		Action:   "招待メールを受信したアカウントでログインし直してください。",
	}
}

// NewMalformedTokenError は招待参照を持たないトークンに対するエラーを生成する。
func NewMalformedTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedToken,
		Message:  "招待トークンが破損しています。",
		Category: "invite",
		Action:   "招待者に新しい招待の発行を依頼してください。",
	}
}

// NewInviteNotClaimedError は未クレーム招待の承認に対するエラーを生成する。
func NewInviteNotClaimedError() *APIError {
	return &APIError{
		Code:     ErrCodeInviteNotClaimed,
		Message:  "この招待はまだクレームされていません。",
		Category: "invite",
		Action:   "招待されたユーザーがリンクを開くまで承認はできません。",
	}
}

// NewOrgNotFoundError は組織未検出エラーを生成する。
func NewOrgNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeOrgNotFound,
		Message:  "組織が見つかりません。",
		Category: "org",
		Action:   "組織IDを確認してください。",
	}
}

// NewNotAMemberError は非メンバーによる組織アクセスのエラーを生成する。
func NewNotAMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAMember,
		Message:  "この組織のメンバーではありません。",
		Category: "org",
		Action:   "組織の管理者に招待を依頼してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "組織の管理者に操作を依頼してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewClientNotFoundError はクライアント未検出エラーを生成する。
func NewClientNotFoundError(clientID string) *APIError {
	return &APIError{
		Code:     ErrCodeClientNotFound,
		Message:  fmt.Sprintf("指定されたクライアントが見つかりません: %s", clientID),
		Category: "org",
		Action:   "クライアントIDを確認してください。",
	}
}

// NewAppointmentNotFoundError は予約未検出エラーを生成する。
func NewAppointmentNotFoundError(apptID string) *APIError {
	return &APIError{
		Code:     ErrCodeApptNotFound,
		Message:  fmt.Sprintf("指定された予約が見つかりません: %s", apptID),
		Category: "org",
		Action:   "予約IDを確認してください。",
	}
}

// NewInvalidPathError は復帰先パスの形式不正エラーを生成する。
func NewInvalidPathError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPath,
		Message:  fmt.Sprintf("復帰先パスの形式が正しくありません: %s", path),
		Category: "validation",
		Action:   "アプリケーションルートからの相対パス（/で始まるパス）を指定してください。",
	}
}

// NewInvalidTimeRangeError は予約時間範囲の不正エラーを生成する。
func NewInvalidTimeRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeRange,
		Message:  "予約の終了時刻は開始時刻より後である必要があります。",
		Category: "validation",
		Action:   "開始時刻と終了時刻を確認してください。",
	}
}
