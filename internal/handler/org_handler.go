package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/karte/internal/middleware"
	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/org"
)

// OrgServiceInterface は組織ハンドラーが必要とするサービスインターフェース。
type OrgServiceInterface interface {
	Create(ctx context.Context, params org.CreateParams) (*model.Org, error)
	Get(ctx context.Context, orgID, callerID string) (*model.Org, error)
	ListMine(ctx context.Context, userID string) ([]*model.Membership, error)
	Select(ctx context.Context, orgID, userID string) error
	Roster(ctx context.Context, orgID, callerID string) ([]*model.Member, error)
}

// OrgHandler は組織管理のHTTPハンドラー。
type OrgHandler struct {
	service OrgServiceInterface
	users   UserFinder
}

// NewOrgHandler はOrgHandlerを生成する。
func NewOrgHandler(service OrgServiceInterface, users UserFinder) *OrgHandler {
	return &OrgHandler{service: service, users: users}
}

// createOrgRequest は組織作成リクエストのボディ。
type createOrgRequest struct {
	Name       string `json:"name"`
	WebsiteURL string `json:"website_url"`
}

// orgResponse は組織情報のAPIレスポンス。
type orgResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WebsiteURL string    `json:"website_url,omitempty"`
	HasLogo    bool      `json:"has_logo"`
	CreatedAt  time.Time `json:"created_at"`
}

func toOrgResponse(o *model.Org) orgResponse {
	return orgResponse{
		ID:         o.ID,
		Name:       o.DisplayName(),
		WebsiteURL: o.WebsiteURL,
		HasLogo:    len(o.LogoData) > 0,
		CreatedAt:  o.CreatedAt,
	}
}

// memberResponse は名簿エントリのAPIレスポンス。
type memberResponse struct {
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	AddedAt   time.Time `json:"added_at"`
}

func toMemberResponse(m *model.Member) memberResponse {
	return memberResponse{
		OrgID:     m.OrgID,
		UserID:    m.UserID,
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Role:      m.Role,
		AddedAt:   m.AddedAt,
	}
}

// membershipResponse は逆引きインデックスエントリのAPIレスポンス。
type membershipResponse struct {
	OrgID    string    `json:"org_id"`
	OrgName  string    `json:"org_name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Create は組織を作成し、作成者をオーナーとして登録する。
// POST /api/orgs
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	var req createOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestAPIError())
		return
	}
	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "組織名を入力してください。",
			Category: "validation",
			Action:   "組織名を指定して再度お試しください。",
		})
		return
	}

	// オーナー名簿エントリに作成者プロフィールを反映する
	creator, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	o, err := h.service.Create(r.Context(), org.CreateParams{
		Name:       req.Name,
		WebsiteURL: req.WebsiteURL,
		CreatorID:  userID,
		Creator:    creator,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toOrgResponse(o))
}

// Get は組織情報を取得する。メンバーのみアクセス可能。
// GET /api/orgs/{orgID}
func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	o, err := h.service.Get(r.Context(), orgID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toOrgResponse(o))
}

// ListMine は呼び出しユーザーの所属組織一覧を返す。
// GET /api/orgs
// 逆引きインデックスからの読み取りであり、名簿と結果整合する。
func (h *OrgHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	memberships, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]membershipResponse, len(memberships))
	for i, m := range memberships {
		results[i] = membershipResponse{
			OrgID:    m.OrgID,
			OrgName:  m.OrgName,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"orgs": results})
}

// Select はアクティブスコープの組織を切り替える。
// POST /api/orgs/{orgID}/select
func (h *OrgHandler) Select(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	if err := h.service.Select(r.Context(), orgID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"last_org_id": orgID})
}

// Logo は組織のロゴ画像を返す。メンバーのみアクセス可能。
// GET /api/orgs/{orgID}/logo
// ロゴはワーカーがWebサイトから取得してDBに保存したもの。
func (h *OrgHandler) Logo(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	o, err := h.service.Get(r.Context(), orgID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(o.LogoData) == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "LOGO_NOT_FOUND",
			Message:  "組織のロゴが見つかりません。",
			Category: "org",
			Action:   "組織のWebサイトURLを設定してください。",
		})
		return
	}

	mime := o.LogoMime
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(o.LogoData)
}

// Roster は組織の名簿を返す。メンバーのみアクセス可能。
// GET /api/orgs/{orgID}/members
func (h *OrgHandler) Roster(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	members, err := h.service.Roster(r.Context(), orgID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]memberResponse, len(members))
	for i, m := range members {
		results[i] = toMemberResponse(m)
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"members": results})
}
