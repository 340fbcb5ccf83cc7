package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/karte/internal/onboarding"
)

type mockOnboardingService struct {
	completeFn func(ctx context.Context, userID, firstName, lastName string) (*onboarding.CompleteResult, error)
}

func (m *mockOnboardingService) Complete(ctx context.Context, userID, firstName, lastName string) (*onboarding.CompleteResult, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, userID, firstName, lastName)
	}
	return &onboarding.CompleteResult{RedirectPath: "/"}, nil
}

// TestCompleteOnboarding_ReturnsRedirectPath はオンボーディング完了で
// 復帰先パスが返ることを検証する。
func TestCompleteOnboarding_ReturnsRedirectPath(t *testing.T) {
	svc := &mockOnboardingService{
		completeFn: func(_ context.Context, userID, firstName, lastName string) (*onboarding.CompleteResult, error) {
			if userID != "user-1" || firstName != "花子" || lastName != "佐藤" {
				t.Errorf("unexpected args: %s %s %s", userID, firstName, lastName)
			}
			return &onboarding.CompleteResult{RedirectPath: "/invite/tok-1?org=org-1"}, nil
		},
	}
	h := NewUserHandler(svc)

	req := newInviteRequest(t, http.MethodPost, "/api/users/me/onboarding", "user-1",
		`{"first_name":"花子","last_name":"佐藤"}`, nil)
	w := httptest.NewRecorder()

	h.CompleteOnboarding(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["redirect_path"] != "/invite/tok-1?org=org-1" {
		t.Errorf("redirect_path = %q, want invite link", body["redirect_path"])
	}
}

// TestCompleteOnboarding_MissingNames_Returns400 は姓名の欠落が400になることを検証する。
func TestCompleteOnboarding_MissingNames_Returns400(t *testing.T) {
	h := NewUserHandler(&mockOnboardingService{})

	tests := []struct {
		name string
		body string
	}{
		{"both missing", `{}`},
		{"last name missing", `{"first_name":"花子"}`},
		{"whitespace only", `{"first_name":"  ","last_name":"佐藤"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newInviteRequest(t, http.MethodPost, "/api/users/me/onboarding", "user-1", tt.body, nil)
			w := httptest.NewRecorder()

			h.CompleteOnboarding(w, req)

			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
			}
		})
	}
}

// TestCompleteOnboarding_WithoutAuth_Returns401 は未認証で401が返ることを検証する。
func TestCompleteOnboarding_WithoutAuth_Returns401(t *testing.T) {
	h := NewUserHandler(&mockOnboardingService{})

	req := newInviteRequest(t, http.MethodPost, "/api/users/me/onboarding", "",
		`{"first_name":"花子","last_name":"佐藤"}`, nil)
	w := httptest.NewRecorder()

	h.CompleteOnboarding(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
