package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/karte/internal/client"
	"github.com/hitoshi/karte/internal/middleware"
	"github.com/hitoshi/karte/internal/model"
)

// ClientServiceInterface はクライアントハンドラーが必要とするサービスインターフェース。
type ClientServiceInterface interface {
	Create(ctx context.Context, orgID, callerID string, params client.CreateParams) (*model.Client, error)
	Get(ctx context.Context, orgID, clientID, callerID string) (*model.Client, error)
	Update(ctx context.Context, orgID, clientID, callerID string, params client.CreateParams) (*model.Client, error)
	List(ctx context.Context, orgID, callerID string) ([]*model.Client, error)
	Delete(ctx context.Context, orgID, clientID, callerID string) error
}

// ClientHandler はクライアント（患者）管理のHTTPハンドラー。
type ClientHandler struct {
	service ClientServiceInterface
}

// NewClientHandler はClientHandlerを生成する。
func NewClientHandler(service ClientServiceInterface) *ClientHandler {
	return &ClientHandler{service: service}
}

// clientRequest はクライアント作成・更新リクエストのボディ。
type clientRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Notes     string `json:"notes"`
}

// clientResponse はクライアント情報のAPIレスポンス。
type clientResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toClientResponse(c *model.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		OrgID:     c.OrgID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (req clientRequest) toParams() client.CreateParams {
	return client.CreateParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Notes:     req.Notes,
	}
}

// Create はクライアントを登録する。
// POST /api/orgs/{orgID}/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestAPIError())
		return
	}
	if req.FirstName == "" && req.LastName == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "クライアントの氏名を入力してください。",
			Category: "validation",
			Action:   "氏名を入力して再度お試しください。",
		})
		return
	}

	c, err := h.service.Create(r.Context(), orgID, userID, req.toParams())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toClientResponse(c))
}

// Get はクライアント詳細を取得する。
// GET /api/orgs/{orgID}/clients/{clientID}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")
	clientID := chi.URLParam(r, "clientID")

	c, err := h.service.Get(r.Context(), orgID, clientID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toClientResponse(c))
}

// Update はクライアント情報を更新する。
// PUT /api/orgs/{orgID}/clients/{clientID}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")
	clientID := chi.URLParam(r, "clientID")

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestAPIError())
		return
	}

	c, err := h.service.Update(r.Context(), orgID, clientID, userID, req.toParams())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toClientResponse(c))
}

// List は組織のクライアント一覧を返す。
// GET /api/orgs/{orgID}/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	clients, err := h.service.List(r.Context(), orgID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]clientResponse, len(clients))
	for i, c := range clients {
		results[i] = toClientResponse(c)
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"clients": results})
}

// Delete はクライアントを削除する。
// DELETE /api/orgs/{orgID}/clients/{clientID}
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")
	clientID := chi.URLParam(r, "clientID")

	if err := h.service.Delete(r.Context(), orgID, clientID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
