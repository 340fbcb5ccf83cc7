package model

import "time"

// Client は組織に帰属するクライアント（患者）レコードを表す。
type Client struct {
	ID        string
	OrgID     string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Notes     string // 保存前にサニタイズ済みのHTML
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment はクライアントとのセッション予約を表す。
type Appointment struct {
	ID          string
	OrgID       string
	ClientID    string
	ClinicianID string // 担当メンバーのユーザーID
	Title       string
	StartsAt    time.Time
	EndsAt      time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
