package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/karte/internal/middleware"
	"github.com/hitoshi/karte/internal/model"
)

// NavIntentServiceInterface は復帰ポインタハンドラーが必要とするサービスインターフェース。
type NavIntentServiceInterface interface {
	Set(ctx context.Context, owner string, kind model.NavIntentKind, path string) error
	Peek(ctx context.Context, owner string, kind model.NavIntentKind) (*model.NavIntent, error)
	Consume(ctx context.Context, owner string, kind model.NavIntentKind) (*model.NavIntent, error)
	Clear(ctx context.Context, owner string, kind model.NavIntentKind) error
}

// FullIntentService は復帰ポインタ操作の全メソッドをまとめたインターフェース。
// navintent.Serviceが満たす。
type FullIntentService interface {
	IntentServiceInterface
	NavIntentServiceInterface
}

// IntentHandler は復帰ポインタのHTTPハンドラー。
// フロントエンドが中断可能なフロー（未認証での招待リンク到達等）の
// 行き先をサーバー側に永続化するために使う。
type IntentHandler struct {
	service NavIntentServiceInterface
}

// NewIntentHandler はIntentHandlerを生成する。
func NewIntentHandler(service NavIntentServiceInterface) *IntentHandler {
	return &IntentHandler{service: service}
}

// setIntentRequest は復帰ポインタ設定リクエストのボディ。
type setIntentRequest struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// parseIntentKind はリクエストの種別文字列を検証する。
func parseIntentKind(raw string) (model.NavIntentKind, bool) {
	switch model.NavIntentKind(raw) {
	case model.NavIntentPostLogin, model.NavIntentPendingInvite, model.NavIntentAfterOnboarding:
		return model.NavIntentKind(raw), true
	default:
		return "", false
	}
}

func invalidIntentKindError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_INTENT_KIND",
		Message:  "不明な復帰ポインタ種別です。",
		Category: "validation",
		Action:   "種別を確認して再度お試しください。",
	}
}

// Set は復帰ポインタを設定する。所有者ごと種別ごとに最大1件。
// PUT /api/intents/{kind}
func (h *IntentHandler) Set(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	kind, ok := parseIntentKind(chi.URLParam(r, "kind"))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidIntentKindError())
		return
	}

	var req setIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestAPIError())
		return
	}

	if err := h.service.Set(r.Context(), userID, kind, req.Path); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Peek は復帰ポインタを消費せずに返す。
// GET /api/intents/{kind}
func (h *IntentHandler) Peek(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	kind, ok := parseIntentKind(chi.URLParam(r, "kind"))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidIntentKindError())
		return
	}

	intent, err := h.service.Peek(r.Context(), userID, kind)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if intent == nil {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"path": nil})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"path": intent.Path})
}

// Consume は復帰ポインタを返してから削除する。
// POST /api/intents/{kind}/consume
func (h *IntentHandler) Consume(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	kind, ok := parseIntentKind(chi.URLParam(r, "kind"))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidIntentKindError())
		return
	}

	intent, err := h.service.Consume(r.Context(), userID, kind)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if intent == nil {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"path": nil})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"path": intent.Path})
}

// Clear は復帰ポインタを削除する。
// DELETE /api/intents/{kind}
func (h *IntentHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	kind, ok := parseIntentKind(chi.URLParam(r, "kind"))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidIntentKindError())
		return
	}

	if err := h.service.Clear(r.Context(), userID, kind); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
