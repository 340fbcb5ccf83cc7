package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/org"
	"github.com/hitoshi/karte/internal/repository"
)

type mockApptRepo struct {
	findByIDFn func(ctx context.Context, orgID, apptID string) (*model.Appointment, error)
	createFn   func(ctx context.Context, appt *model.Appointment) error
	updateFn   func(ctx context.Context, appt *model.Appointment) error
	listFn     func(ctx context.Context, orgID string, from, to time.Time) ([]*model.Appointment, error)
	deleteFn   func(ctx context.Context, orgID, apptID string) error
}

func (m *mockApptRepo) FindByID(ctx context.Context, orgID, apptID string) (*model.Appointment, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, orgID, apptID)
	}
	return nil, nil
}

func (m *mockApptRepo) Create(ctx context.Context, appt *model.Appointment) error {
	if m.createFn != nil {
		return m.createFn(ctx, appt)
	}
	return nil
}

func (m *mockApptRepo) Update(ctx context.Context, appt *model.Appointment) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, appt)
	}
	return nil
}

func (m *mockApptRepo) ListByOrgAndRange(ctx context.Context, orgID string, from, to time.Time) ([]*model.Appointment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, orgID, from, to)
	}
	return nil, nil
}

func (m *mockApptRepo) Delete(ctx context.Context, orgID, apptID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, orgID, apptID)
	}
	return nil
}

type mockClientRepo struct {
	client *model.Client
}

func (m *mockClientRepo) FindByID(_ context.Context, _, clientID string) (*model.Client, error) {
	if m.client != nil && m.client.ID == clientID {
		return m.client, nil
	}
	return nil, nil
}

func (m *mockClientRepo) Create(_ context.Context, _ *model.Client) error { return nil }
func (m *mockClientRepo) Update(_ context.Context, _ *model.Client) error { return nil }
func (m *mockClientRepo) ListByOrg(_ context.Context, _ string) ([]*model.Client, error) {
	return nil, nil
}
func (m *mockClientRepo) Delete(_ context.Context, _, _ string) error { return nil }

type mockMemberRepo struct {
	member *model.Member
}

func (m *mockMemberRepo) FindByOrgAndUser(_ context.Context, _, userID string) (*model.Member, error) {
	if m.member != nil && m.member.UserID == userID {
		return m.member, nil
	}
	return nil, nil
}

func (m *mockMemberRepo) Upsert(_ context.Context, _ *model.Member) error { return nil }

func (m *mockMemberRepo) ListByOrg(_ context.Context, _ string) ([]*model.Member, error) {
	return nil, nil
}

var _ repository.AppointmentRepository = (*mockApptRepo)(nil)
var _ repository.ClientRepository = (*mockClientRepo)(nil)
var _ repository.MemberRepository = (*mockMemberRepo)(nil)

func memberScope() *org.Scope {
	return org.NewScope(&mockMemberRepo{member: &model.Member{OrgID: "org-1", UserID: "user-1", Role: "member"}})
}

func validParams() CreateParams {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return CreateParams{
		ClientID:    "client-1",
		ClinicianID: "user-1",
		Title:       "初回カウンセリング",
		StartsAt:    start,
		EndsAt:      start.Add(50 * time.Minute),
	}
}

// 予約作成が成功し、IDと作成者が設定されることを検証
func TestCreate(t *testing.T) {
	var saved *model.Appointment
	repo := &mockApptRepo{
		createFn: func(_ context.Context, a *model.Appointment) error {
			saved = a
			return nil
		},
	}
	clients := &mockClientRepo{client: &model.Client{ID: "client-1", OrgID: "org-1"}}
	svc := NewService(repo, clients, memberScope())

	appt, err := svc.Create(context.Background(), "org-1", "user-1", validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.ID == "" {
		t.Error("appointment ID should be generated")
	}
	if saved == nil || saved.CreatedBy != "user-1" {
		t.Errorf("created_by should be the caller: %+v", saved)
	}
	if saved.OrgID != "org-1" {
		t.Errorf("org ID mismatch: %q", saved.OrgID)
	}
}

// 終了時刻が開始時刻以前の予約が拒否されることを検証
func TestCreate_InvalidTimeRange(t *testing.T) {
	clients := &mockClientRepo{client: &model.Client{ID: "client-1", OrgID: "org-1"}}
	svc := NewService(&mockApptRepo{}, clients, memberScope())

	params := validParams()
	params.EndsAt = params.StartsAt

	_, err := svc.Create(context.Background(), "org-1", "user-1", params)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeInvalidTimeRange {
		t.Fatalf("expected INVALID_TIME_RANGE, got %v", err)
	}

	params.EndsAt = params.StartsAt.Add(-time.Hour)
	_, err = svc.Create(context.Background(), "org-1", "user-1", params)
	apiErr, ok = err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeInvalidTimeRange {
		t.Fatalf("expected INVALID_TIME_RANGE, got %v", err)
	}
}

// 他組織のクライアントを指す予約が拒否されることを検証
func TestCreate_UnknownClient(t *testing.T) {
	svc := NewService(&mockApptRepo{}, &mockClientRepo{}, memberScope())

	_, err := svc.Create(context.Background(), "org-1", "user-1", validParams())
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeClientNotFound {
		t.Fatalf("expected CLIENT_NOT_FOUND, got %v", err)
	}
}

// 非メンバーの予約操作が拒否されることを検証
func TestService_NonMember_Rejected(t *testing.T) {
	clients := &mockClientRepo{client: &model.Client{ID: "client-1", OrgID: "org-1"}}
	svc := NewService(&mockApptRepo{}, clients, memberScope())

	_, err := svc.Create(context.Background(), "org-1", "outsider", validParams())
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeNotAMember {
		t.Fatalf("expected NOT_A_MEMBER, got %v", err)
	}

	_, err = svc.ListRange(context.Background(), "org-1", "outsider", time.Now(), time.Now().Add(time.Hour))
	apiErr, ok = err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeNotAMember {
		t.Fatalf("expected NOT_A_MEMBER, got %v", err)
	}
}

// 存在しない予約の取得が未検出エラーになることを検証
func TestGet_NotFound(t *testing.T) {
	clients := &mockClientRepo{client: &model.Client{ID: "client-1", OrgID: "org-1"}}
	svc := NewService(&mockApptRepo{}, clients, memberScope())

	_, err := svc.Get(context.Background(), "org-1", "missing", "user-1")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeApptNotFound {
		t.Fatalf("expected APPOINTMENT_NOT_FOUND, got %v", err)
	}
}

// 予約更新が時間範囲を再検証することを検証
func TestUpdate(t *testing.T) {
	existing := &model.Appointment{
		ID:       "appt-1",
		OrgID:    "org-1",
		ClientID: "client-1",
		StartsAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
	}
	var updated *model.Appointment
	repo := &mockApptRepo{
		findByIDFn: func(_ context.Context, _, apptID string) (*model.Appointment, error) {
			if apptID == existing.ID {
				return existing, nil
			}
			return nil, nil
		},
		updateFn: func(_ context.Context, a *model.Appointment) error {
			updated = a
			return nil
		},
	}
	clients := &mockClientRepo{client: &model.Client{ID: "client-1", OrgID: "org-1"}}
	svc := NewService(repo, clients, memberScope())

	params := validParams()
	params.Title = "フォローアップ"
	appt, err := svc.Update(context.Background(), "org-1", "appt-1", "user-1", params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Title != "フォローアップ" || updated == nil {
		t.Errorf("title should be updated: %+v", appt)
	}

	params.EndsAt = params.StartsAt
	_, err = svc.Update(context.Background(), "org-1", "appt-1", "user-1", params)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeInvalidTimeRange {
		t.Fatalf("expected INVALID_TIME_RANGE, got %v", err)
	}
}

// 期間指定一覧が逆転した範囲を拒否することを検証
func TestListRange(t *testing.T) {
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	repo := &mockApptRepo{
		listFn: func(_ context.Context, orgID string, gotFrom, gotTo time.Time) ([]*model.Appointment, error) {
			if orgID != "org-1" || !gotFrom.Equal(from) || !gotTo.Equal(to) {
				t.Errorf("unexpected range query: %s %s %s", orgID, gotFrom, gotTo)
			}
			return []*model.Appointment{{ID: "appt-1"}}, nil
		},
	}
	clients := &mockClientRepo{}
	svc := NewService(repo, clients, memberScope())

	appts, err := svc.ListRange(context.Background(), "org-1", "user-1", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(appts) != 1 {
		t.Errorf("expected 1 appointment, got %d", len(appts))
	}

	_, err = svc.ListRange(context.Background(), "org-1", "user-1", to, from)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeInvalidTimeRange {
		t.Fatalf("expected INVALID_TIME_RANGE, got %v", err)
	}
}
