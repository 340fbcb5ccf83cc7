package model

import "time"

// DefaultOrgName は表示名の取得に失敗した場合のフォールバック表示名。
// 組織表示名の解決はベストエフォートであり、取得失敗でフローを中断しない。
const DefaultOrgName = "Clinic"

// Org はテナント（クリニック）を表す。データ分離とアクセス制御の単位。
type Org struct {
	ID         string
	Name       string
	WebsiteURL string // ロゴ取得に使用する。空文字列の場合は取得しない
	LogoData   []byte
	LogoMime   string
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName は表示名を返す。未設定の場合はデフォルト表示名を返す。
func (o *Org) DisplayName() string {
	if o == nil || o.Name == "" {
		return DefaultOrgName
	}
	return o.Name
}
