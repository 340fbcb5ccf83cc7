package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/karte/internal/invite"
	"github.com/hitoshi/karte/internal/middleware"
	"github.com/hitoshi/karte/internal/model"
)

type mockInviteService struct {
	issueFn   func(ctx context.Context, params invite.IssueParams) (*invite.IssueResult, error)
	listFn    func(ctx context.Context, orgID, callerID string) ([]*model.Invite, error)
	revokeFn  func(ctx context.Context, orgID, inviteID, callerID string) error
	approveFn func(ctx context.Context, orgID, inviteID, callerID string) (*model.Member, error)
}

func (m *mockInviteService) Issue(ctx context.Context, params invite.IssueParams) (*invite.IssueResult, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, params)
	}
	return nil, model.NewForbiddenError()
}

func (m *mockInviteService) List(ctx context.Context, orgID, callerID string) ([]*model.Invite, error) {
	if m.listFn != nil {
		return m.listFn(ctx, orgID, callerID)
	}
	return nil, nil
}

func (m *mockInviteService) Revoke(ctx context.Context, orgID, inviteID, callerID string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, orgID, inviteID, callerID)
	}
	return nil
}

func (m *mockInviteService) Approve(ctx context.Context, orgID, inviteID, callerID string) (*model.Member, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, orgID, inviteID, callerID)
	}
	return nil, model.NewInviteNotClaimedError()
}

type mockAcceptService struct {
	previewFn func(ctx context.Context, orgID, token string) (*model.Invite, error)
	acceptFn  func(ctx context.Context, orgID, token string, user *model.User) (*invite.AcceptResult, error)
}

func (m *mockAcceptService) Preview(ctx context.Context, orgID, token string) (*model.Invite, error) {
	if m.previewFn != nil {
		return m.previewFn(ctx, orgID, token)
	}
	return nil, model.NewInviteNotFoundError()
}

func (m *mockAcceptService) Accept(ctx context.Context, orgID, token string, user *model.User) (*invite.AcceptResult, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, orgID, token, user)
	}
	return nil, model.NewInviteNotFoundError()
}

type mockUserFinder struct {
	user *model.User
}

func (m *mockUserFinder) FindByID(_ context.Context, id string) (*model.User, error) {
	if m.user != nil && m.user.ID == id {
		return m.user, nil
	}
	return nil, nil
}

type mockInviteMetrics struct {
	issued   []string
	outcomes []string
}

func (m *mockInviteMetrics) RecordInviteIssued(orgID string) { m.issued = append(m.issued, orgID) }
func (m *mockInviteMetrics) RecordInviteAccept(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

// newInviteRequest はchiのルートパラメータと認証コンテキストを備えたリクエストを作る。
func newInviteRequest(t *testing.T, method, target, userID string, body string, params map[string]string) *http.Request {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = middleware.ContextWithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

// TestIssue_ReturnsInviteAndLink は招待発行で201とリンクが返ることを検証する。
func TestIssue_ReturnsInviteAndLink(t *testing.T) {
	svc := &mockInviteService{
		issueFn: func(_ context.Context, params invite.IssueParams) (*invite.IssueResult, error) {
			if params.OrgID != "org-1" || params.IssuerID != "manager-1" {
				t.Errorf("unexpected issue params: %+v", params)
			}
			return &invite.IssueResult{
				Invite: &model.Invite{
					ID:        "inv-1",
					OrgID:     "org-1",
					Status:    model.InviteStatusPending,
					Role:      "member",
					Email:     params.Email,
					CreatedAt: time.Now(),
				},
				Token: "tok-1",
				Link:  "/invite/tok-1?org=org-1",
			}, nil
		},
	}
	metrics := &mockInviteMetrics{}
	h := NewInviteHandler(svc, &mockAcceptService{}, &mockUserFinder{}, metrics)

	req := newInviteRequest(t, http.MethodPost, "/api/orgs/org-1/invites", "manager-1",
		`{"email":"new@example.com","role":"member"}`, map[string]string{"orgID": "org-1"})
	w := httptest.NewRecorder()

	h.Issue(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body struct {
		Invite inviteResponse `json:"invite"`
		Link   string         `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Link != "/invite/tok-1?org=org-1" {
		t.Errorf("link = %q", body.Link)
	}
	if body.Invite.Status != "pending" {
		t.Errorf("status = %q, want pending", body.Invite.Status)
	}
	if len(metrics.issued) != 1 {
		t.Errorf("issue metric should be recorded once, got %d", len(metrics.issued))
	}
}

// TestIssue_NonManager_Returns403 は管理権限のない発行が403になることを検証する。
func TestIssue_NonManager_Returns403(t *testing.T) {
	svc := &mockInviteService{
		issueFn: func(_ context.Context, _ invite.IssueParams) (*invite.IssueResult, error) {
			return nil, model.NewForbiddenError()
		},
	}
	h := NewInviteHandler(svc, &mockAcceptService{}, &mockUserFinder{}, nil)

	req := newInviteRequest(t, http.MethodPost, "/api/orgs/org-1/invites", "member-1",
		`{"email":"new@example.com"}`, map[string]string{"orgID": "org-1"})
	w := httptest.NewRecorder()

	h.Issue(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestPreview_ReturnsMinimalFields はプレビューが最小限のフィールドのみ返すことを検証する。
func TestPreview_ReturnsMinimalFields(t *testing.T) {
	acceptor := &mockAcceptService{
		previewFn: func(_ context.Context, orgID, token string) (*model.Invite, error) {
			if orgID != "org-1" || token != "tok-1" {
				t.Errorf("unexpected preview args: %s %s", orgID, token)
			}
			return &model.Invite{
				ID:     "inv-1",
				OrgID:  "org-1",
				Status: model.InviteStatusPending,
				Role:   "member",
				Email:  "secret@example.com",
			}, nil
		},
	}
	h := NewInviteHandler(&mockInviteService{}, acceptor, &mockUserFinder{}, nil)

	req := newInviteRequest(t, http.MethodGet, "/api/invites/tok-1/preview?org=org-1", "",
		"", map[string]string{"token": "tok-1"})
	w := httptest.NewRecorder()

	h.Preview(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	if body["org_id"] != "org-1" || body["role"] != "member" {
		t.Errorf("unexpected preview body: %v", body)
	}
	// 招待先メールや招待IDは露出しない
	if _, ok := body["email"]; ok {
		t.Error("preview should not expose invite email")
	}
}

// TestPreview_UnknownToken_Returns404 は未知トークンのプレビューが404になることを検証する。
// トークン不正とレコード不在は区別されない。
func TestPreview_UnknownToken_Returns404(t *testing.T) {
	h := NewInviteHandler(&mockInviteService{}, &mockAcceptService{}, &mockUserFinder{}, nil)

	req := newInviteRequest(t, http.MethodGet, "/api/invites/unknown/preview?org=org-1", "",
		"", map[string]string{"token": "unknown"})
	w := httptest.NewRecorder()

	h.Preview(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var body apiErrorResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != model.ErrCodeInviteNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInviteNotFound)
	}
}

// TestAccept_Success は受諾成功で作成されたメンバーとリダイレクト先が返ることを検証する。
func TestAccept_Success(t *testing.T) {
	acceptor := &mockAcceptService{
		acceptFn: func(_ context.Context, orgID, token string, user *model.User) (*invite.AcceptResult, error) {
			return &invite.AcceptResult{
				RedirectPath: "/",
				OrgName:      "山田クリニック",
				Member: &model.Member{
					OrgID:  orgID,
					UserID: user.ID,
					Role:   "member",
				},
			}, nil
		},
	}
	metrics := &mockInviteMetrics{}
	users := &mockUserFinder{user: &model.User{ID: "user-1", Email: "u@example.com", FirstName: "花子", LastName: "佐藤"}}
	h := NewInviteHandler(&mockInviteService{}, acceptor, users, metrics)

	req := newInviteRequest(t, http.MethodPost, "/api/invites/tok-1/accept?org=org-1", "user-1",
		"", map[string]string{"token": "tok-1"})
	w := httptest.NewRecorder()

	h.Accept(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Detour       bool           `json:"detour"`
		RedirectPath string         `json:"redirect_path"`
		OrgName      string         `json:"org_name"`
		Member       memberResponse `json:"member"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Detour {
		t.Error("detour should be false")
	}
	if body.OrgName != "山田クリニック" {
		t.Errorf("org_name = %q", body.OrgName)
	}
	if body.Member.UserID != "user-1" {
		t.Errorf("member user_id = %q", body.Member.UserID)
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "accepted" {
		t.Errorf("accept metric = %v, want [accepted]", metrics.outcomes)
	}
}

// TestAccept_Detour はプロフィール未解決でオンボーディング迂回が返ることを検証する。
func TestAccept_Detour(t *testing.T) {
	acceptor := &mockAcceptService{
		acceptFn: func(_ context.Context, _, _ string, _ *model.User) (*invite.AcceptResult, error) {
			return &invite.AcceptResult{Detour: true, DetourPath: "/onboarding"}, nil
		},
	}
	metrics := &mockInviteMetrics{}
	users := &mockUserFinder{user: &model.User{ID: "user-1", Email: "u@example.com"}}
	h := NewInviteHandler(&mockInviteService{}, acceptor, users, metrics)

	req := newInviteRequest(t, http.MethodPost, "/api/invites/tok-1/accept?org=org-1", "user-1",
		"", map[string]string{"token": "tok-1"})
	w := httptest.NewRecorder()

	h.Accept(w, req)

	var body struct {
		Detour     bool   `json:"detour"`
		DetourPath string `json:"detour_path"`
	}
	json.NewDecoder(w.Result().Body).Decode(&body)
	if !body.Detour || body.DetourPath != "/onboarding" {
		t.Errorf("unexpected detour body: %+v", body)
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "onboarding_detour" {
		t.Errorf("accept metric = %v, want [onboarding_detour]", metrics.outcomes)
	}
}

// TestAccept_EmailMismatch_Returns403 はメール不一致が403で返り、
// 結果がメトリクスに記録されることを検証する。
func TestAccept_EmailMismatch_Returns403(t *testing.T) {
	acceptor := &mockAcceptService{
		acceptFn: func(_ context.Context, _, _ string, _ *model.User) (*invite.AcceptResult, error) {
			return nil, model.NewEmailMismatchError()
		},
	}
	metrics := &mockInviteMetrics{}
	users := &mockUserFinder{user: &model.User{ID: "user-1", Email: "other@example.com", FirstName: "花子", LastName: "佐藤"}}
	h := NewInviteHandler(&mockInviteService{}, acceptor, users, metrics)

	req := newInviteRequest(t, http.MethodPost, "/api/invites/tok-1/accept?org=org-1", "user-1",
		"", map[string]string{"token": "tok-1"})
	w := httptest.NewRecorder()

	h.Accept(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != model.ErrCodeEmailMismatch {
		t.Errorf("accept metric = %v, want [EMAIL_MISMATCH]", metrics.outcomes)
	}
}

// TestAccept_WithoutAuth_Returns401 は未認証の受諾が401になることを検証する。
func TestAccept_WithoutAuth_Returns401(t *testing.T) {
	h := NewInviteHandler(&mockInviteService{}, &mockAcceptService{}, &mockUserFinder{}, nil)

	req := newInviteRequest(t, http.MethodPost, "/api/invites/tok-1/accept?org=org-1", "",
		"", map[string]string{"token": "tok-1"})
	w := httptest.NewRecorder()

	h.Accept(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestRevoke_Returns204 は招待取消が204になることを検証する。
func TestRevoke_Returns204(t *testing.T) {
	var revoked string
	svc := &mockInviteService{
		revokeFn: func(_ context.Context, orgID, inviteID, callerID string) error {
			revoked = inviteID
			return nil
		},
	}
	h := NewInviteHandler(svc, &mockAcceptService{}, &mockUserFinder{}, nil)

	req := newInviteRequest(t, http.MethodDelete, "/api/orgs/org-1/invites/inv-1", "manager-1",
		"", map[string]string{"orgID": "org-1", "inviteID": "inv-1"})
	w := httptest.NewRecorder()

	h.Revoke(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if revoked != "inv-1" {
		t.Errorf("revoked invite = %q, want inv-1", revoked)
	}
}

// TestApprove_ReturnsMember は承認でメンバーが返ることを検証する。
func TestApprove_ReturnsMember(t *testing.T) {
	svc := &mockInviteService{
		approveFn: func(_ context.Context, orgID, inviteID, callerID string) (*model.Member, error) {
			return &model.Member{OrgID: orgID, UserID: "claimant-1", Role: "member"}, nil
		},
	}
	h := NewInviteHandler(svc, &mockAcceptService{}, &mockUserFinder{}, nil)

	req := newInviteRequest(t, http.MethodPost, "/api/orgs/org-1/invites/inv-1/approve", "manager-1",
		"", map[string]string{"orgID": "org-1", "inviteID": "inv-1"})
	w := httptest.NewRecorder()

	h.Approve(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body memberResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.UserID != "claimant-1" {
		t.Errorf("member user_id = %q, want claimant-1", body.UserID)
	}
}

// TestApprove_Unclaimed_Returns409 は未クレーム招待の承認が409になることを検証する。
func TestApprove_Unclaimed_Returns409(t *testing.T) {
	h := NewInviteHandler(&mockInviteService{}, &mockAcceptService{}, &mockUserFinder{}, nil)

	req := newInviteRequest(t, http.MethodPost, "/api/orgs/org-1/invites/inv-1/approve", "manager-1",
		"", map[string]string{"orgID": "org-1", "inviteID": "inv-1"})
	w := httptest.NewRecorder()

	h.Approve(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
}
