package org

import (
	"context"
	"fmt"

	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
)

// Scope は組織スコープの認可判定を提供する。
// 判定はメンバー名簿のみを参照する。逆引きインデックスは
// 読み取り最適化専用であり、認可に使ってはならない。
type Scope struct {
	memberRepo repository.MemberRepository
}

// NewScope はScopeを生成する。
func NewScope(memberRepo repository.MemberRepository) *Scope {
	return &Scope{memberRepo: memberRepo}
}

// RequireMember は呼び出し元が組織のメンバーであることを確認し、
// メンバーレコードを返す。非メンバーの場合はNOT_A_MEMBERエラー。
func (s *Scope) RequireMember(ctx context.Context, orgID, userID string) (*model.Member, error) {
	member, err := s.memberRepo.FindByOrgAndUser(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if member == nil {
		return nil, model.NewNotAMemberError()
	}
	return member, nil
}
