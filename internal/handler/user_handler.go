package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hitoshi/karte/internal/middleware"
	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/onboarding"
)

// OnboardingServiceInterface はオンボーディングハンドラーが必要とするサービスインターフェース。
type OnboardingServiceInterface interface {
	Complete(ctx context.Context, userID, firstName, lastName string) (*onboarding.CompleteResult, error)
}

// UserHandler はユーザープロフィール関連のHTTPハンドラー。
type UserHandler struct {
	onboarding OnboardingServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(onboardingService OnboardingServiceInterface) *UserHandler {
	return &UserHandler{onboarding: onboardingService}
}

// completeOnboardingRequest はオンボーディング完了リクエストのボディ。
type completeOnboardingRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CompleteOnboarding は姓名を確定しオンボーディングを完了する。
// POST /api/users/me/onboarding
// after_onboardingポインタがあれば、その行き先（中断した招待リンク等）を返す。
func (h *UserHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	var req completeOnboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestAPIError())
		return
	}

	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "姓と名の両方を入力してください。",
			Category: "validation",
			Action:   "姓名を入力して再度お試しください。",
		})
		return
	}

	result, err := h.onboarding.Complete(r.Context(), userID, req.FirstName, req.LastName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"redirect_path": result.RedirectPath,
	})
}
