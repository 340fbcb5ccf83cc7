package model

import "time"

// Member は組織のメンバー名簿レコードを表す。(org_id, user_id) で一意。
// 認可判定の唯一の正とする。逆引きインデックスを認可に使ってはならない。
type Member struct {
	OrgID        string
	UserID       string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	AddedAt      time.Time
	FromInviteID string // 由来の招待ID。直接追加の場合は空
}

// Membership はユーザー視点の所属組織の逆引きインデックスエントリを表す。
// (user_id, org_id) で一意。「自分の組織一覧」の読み取り最適化専用であり、
// 名簿と結果整合するが権威ではない。
type Membership struct {
	UserID   string
	OrgID    string
	OrgName  string // 非正規化した組織表示名
	Role     string
	JoinedAt time.Time
}
