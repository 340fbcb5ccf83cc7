package org

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/karte/internal/membership"
	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
	"github.com/hitoshi/karte/internal/security"
)

// --- モック定義 ---

type mockOrgRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Org, error)
	createFn   func(ctx context.Context, org *model.Org) error
}

func (m *mockOrgRepo) FindByID(ctx context.Context, id string) (*model.Org, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockOrgRepo) Create(ctx context.Context, org *model.Org) error {
	if m.createFn != nil {
		return m.createFn(ctx, org)
	}
	return nil
}

func (m *mockOrgRepo) ListWithWebsite(_ context.Context) ([]*model.Org, error) { return nil, nil }

func (m *mockOrgRepo) UpdateLogo(_ context.Context, _ string, _ []byte, _ string) error { return nil }

type mockMemberRepo struct {
	findByOrgAndUserFn func(ctx context.Context, orgID, userID string) (*model.Member, error)
	listByOrgFn        func(ctx context.Context, orgID string) ([]*model.Member, error)
}

func (m *mockMemberRepo) FindByOrgAndUser(ctx context.Context, orgID, userID string) (*model.Member, error) {
	if m.findByOrgAndUserFn != nil {
		return m.findByOrgAndUserFn(ctx, orgID, userID)
	}
	return nil, nil
}

func (m *mockMemberRepo) Upsert(_ context.Context, _ *model.Member) error { return nil }

func (m *mockMemberRepo) ListByOrg(ctx context.Context, orgID string) ([]*model.Member, error) {
	if m.listByOrgFn != nil {
		return m.listByOrgFn(ctx, orgID)
	}
	return nil, nil
}

type mockMembershipRepo struct {
	listByUserFn func(ctx context.Context, userID string) ([]*model.Membership, error)
}

func (m *mockMembershipRepo) Upsert(_ context.Context, _ *model.Membership) error { return nil }

func (m *mockMembershipRepo) FindByUserAndOrg(_ context.Context, _, _ string) (*model.Membership, error) {
	return nil, nil
}

func (m *mockMembershipRepo) ListByUser(ctx context.Context, userID string) ([]*model.Membership, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

type mockUserRepo struct {
	updateLastOrgFn func(ctx context.Context, id, orgID string) error
}

func (m *mockUserRepo) FindByID(_ context.Context, _ string) (*model.User, error) { return nil, nil }

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) CreateWithIdentity(_ context.Context, _ *model.User, _ *model.Identity) error {
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, _, _, _ string, _ bool) error { return nil }

func (m *mockUserRepo) UpdateLastOrg(ctx context.Context, id, orgID string) error {
	if m.updateLastOrgFn != nil {
		return m.updateLastOrgFn(ctx, id, orgID)
	}
	return nil
}

type mockGranter struct {
	grantFn    func(ctx context.Context, params membership.GrantParams) (*model.Member, error)
	grantCalls []membership.GrantParams
}

func (m *mockGranter) Grant(ctx context.Context, params membership.GrantParams) (*model.Member, error) {
	m.grantCalls = append(m.grantCalls, params)
	if m.grantFn != nil {
		return m.grantFn(ctx, params)
	}
	return &model.Member{OrgID: params.OrgID, UserID: params.UserID, Role: params.Role}, nil
}

type mockSSRFGuard struct {
	validateFn func(rawURL string) error
}

func (m *mockSSRFGuard) NewSafeClient(_ time.Duration, _ int64) *http.Client {
	return http.DefaultClient
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

var _ repository.OrgRepository = (*mockOrgRepo)(nil)
var _ repository.MemberRepository = (*mockMemberRepo)(nil)
var _ repository.MembershipRepository = (*mockMembershipRepo)(nil)
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ Granter = (*mockGranter)(nil)
var _ security.SSRFGuardService = (*mockSSRFGuard)(nil)

func newServiceFixture(memberRepo *mockMemberRepo) (*Service, *mockOrgRepo, *mockGranter) {
	orgRepo := &mockOrgRepo{}
	granter := &mockGranter{}
	svc := NewService(orgRepo, &mockMembershipRepo{}, &mockUserRepo{}, NewScope(memberRepo), granter, &mockSSRFGuard{})
	return svc, orgRepo, granter
}

// --- テスト ---

// Createが組織を作成し作成者をオーナーとして登録することを検証
func TestCreate_GrantsOwnerMembership(t *testing.T) {
	svc, orgRepo, granter := newServiceFixture(&mockMemberRepo{})

	var createdOrg *model.Org
	orgRepo.createFn = func(_ context.Context, org *model.Org) error {
		createdOrg = org
		return nil
	}

	creator := &model.User{ID: "user-1", Email: "owner@example.com", FirstName: "太郎", LastName: "山田"}
	org, err := svc.Create(context.Background(), CreateParams{
		Name:      "山田クリニック",
		CreatorID: "user-1",
		Creator:   creator,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if createdOrg == nil || createdOrg.Name != "山田クリニック" {
		t.Fatalf("createdOrg = %+v", createdOrg)
	}
	if len(granter.grantCalls) != 1 {
		t.Fatalf("grant calls = %d, want 1", len(granter.grantCalls))
	}
	grant := granter.grantCalls[0]
	if grant.OrgID != org.ID || grant.UserID != "user-1" || grant.Role != "owner" {
		t.Errorf("grant = %+v", grant)
	}
	if grant.FirstName != "太郎" {
		t.Errorf("grant.FirstName = %q", grant.FirstName)
	}
}

// 危険なWebサイトURLでの作成が拒否されることを検証
func TestCreate_UnsafeWebsiteURL_Rejected(t *testing.T) {
	orgRepo := &mockOrgRepo{}
	guard := &mockSSRFGuard{
		validateFn: func(_ string) error { return errors.New("blocked IP address") },
	}
	svc := NewService(orgRepo, &mockMembershipRepo{}, &mockUserRepo{}, NewScope(&mockMemberRepo{}), &mockGranter{}, guard)

	_, err := svc.Create(context.Background(), CreateParams{
		Name:       "テスト",
		WebsiteURL: "http://169.254.169.254/",
		CreatorID:  "user-1",
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

// 名前なしの作成が拒否されることを検証
func TestCreate_EmptyName_Rejected(t *testing.T) {
	svc, _, _ := newServiceFixture(&mockMemberRepo{})

	if _, err := svc.Create(context.Background(), CreateParams{CreatorID: "user-1"}); err == nil {
		t.Fatal("expected error")
	}
}

// 非メンバーのGetがNOT_A_MEMBERになることを検証
func TestGet_NonMember_Rejected(t *testing.T) {
	svc, _, _ := newServiceFixture(&mockMemberRepo{})

	_, err := svc.Get(context.Background(), "org-1", "stranger")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotAMember {
		t.Fatalf("err = %v, want NOT_A_MEMBER", err)
	}
}

// Selectが名簿確認後にアクティブスコープを更新することを検証
func TestSelect_Member_UpdatesActiveScope(t *testing.T) {
	memberRepo := &mockMemberRepo{
		findByOrgAndUserFn: func(_ context.Context, orgID, userID string) (*model.Member, error) {
			return &model.Member{OrgID: orgID, UserID: userID, Role: "member"}, nil
		},
	}
	updated := ""
	userRepo := &mockUserRepo{
		updateLastOrgFn: func(_ context.Context, _, orgID string) error {
			updated = orgID
			return nil
		},
	}
	svc := NewService(&mockOrgRepo{}, &mockMembershipRepo{}, userRepo, NewScope(memberRepo), &mockGranter{}, &mockSSRFGuard{})

	if err := svc.Select(context.Background(), "org-1", "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != "org-1" {
		t.Errorf("active scope = %q, want org-1", updated)
	}
}

// ListMineが逆引きインデックスから一覧を返すことを検証
func TestListMine_ReturnsMemberships(t *testing.T) {
	membershipRepo := &mockMembershipRepo{
		listByUserFn: func(_ context.Context, userID string) ([]*model.Membership, error) {
			return []*model.Membership{
				{UserID: userID, OrgID: "org-1", OrgName: "A", Role: "owner"},
				{UserID: userID, OrgID: "org-2", OrgName: "B", Role: "member"},
			}, nil
		},
	}
	svc := NewService(&mockOrgRepo{}, membershipRepo, &mockUserRepo{}, NewScope(&mockMemberRepo{}), &mockGranter{}, &mockSSRFGuard{})

	memberships, err := svc.ListMine(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(memberships) != 2 {
		t.Errorf("len = %d, want 2", len(memberships))
	}
}

// Rosterがメンバーにのみ名簿を返すことを検証
func TestRoster_RequiresMembership(t *testing.T) {
	memberRepo := &mockMemberRepo{
		findByOrgAndUserFn: func(_ context.Context, orgID, userID string) (*model.Member, error) {
			if userID == "member-1" {
				return &model.Member{OrgID: orgID, UserID: userID}, nil
			}
			return nil, nil
		},
		listByOrgFn: func(_ context.Context, orgID string) ([]*model.Member, error) {
			return []*model.Member{{OrgID: orgID, UserID: "member-1"}}, nil
		},
	}
	svc, _, _ := newServiceFixture(memberRepo)

	if _, err := svc.Roster(context.Background(), "org-1", "stranger"); err == nil {
		t.Fatal("non-member should be rejected")
	}
	members, err := svc.Roster(context.Background(), "org-1", "member-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("len = %d, want 1", len(members))
	}
}
