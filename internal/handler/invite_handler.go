package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/karte/internal/invite"
	"github.com/hitoshi/karte/internal/middleware"
	"github.com/hitoshi/karte/internal/model"
)

// InviteServiceInterface は招待管理ハンドラーが必要とするサービスインターフェース。
type InviteServiceInterface interface {
	Issue(ctx context.Context, params invite.IssueParams) (*invite.IssueResult, error)
	List(ctx context.Context, orgID, callerID string) ([]*model.Invite, error)
	Revoke(ctx context.Context, orgID, inviteID, callerID string) error
	Approve(ctx context.Context, orgID, inviteID, callerID string) (*model.Member, error)
}

// AcceptServiceInterface は招待受諾ハンドラーが必要とするサービスインターフェース。
type AcceptServiceInterface interface {
	Preview(ctx context.Context, orgID, token string) (*model.Invite, error)
	Accept(ctx context.Context, orgID, token string, user *model.User) (*invite.AcceptResult, error)
}

// UserFinder は受諾ハンドラーが呼び出しユーザーを解決するためのインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// InviteMetrics は招待フローのメトリクス記録インターフェース。
type InviteMetrics interface {
	RecordInviteIssued(orgID string)
	RecordInviteAccept(outcome string)
}

// InviteHandler は招待の発行・一覧・取消・承認・受諾のHTTPハンドラー。
type InviteHandler struct {
	service  InviteServiceInterface
	acceptor AcceptServiceInterface
	users    UserFinder
	metrics  InviteMetrics
}

// NewInviteHandler はInviteHandlerを生成する。
// metricsはnil可。
func NewInviteHandler(service InviteServiceInterface, acceptor AcceptServiceInterface, users UserFinder, metrics InviteMetrics) *InviteHandler {
	return &InviteHandler{
		service:  service,
		acceptor: acceptor,
		users:    users,
		metrics:  metrics,
	}
}

// issueInviteRequest は招待発行リクエストのボディ。
type issueInviteRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// inviteResponse は招待レコードのAPIレスポンス。
// トークンは発行時レスポンス以外には決して含めない。
type inviteResponse struct {
	ID        string     `json:"id"`
	OrgID     string     `json:"org_id"`
	Status    string     `json:"status"`
	Role      string     `json:"role"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ClaimedBy string     `json:"claimed_by,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

func toInviteResponse(inv *model.Invite) inviteResponse {
	resp := inviteResponse{
		ID:        inv.ID,
		OrgID:     inv.OrgID,
		Status:    string(inv.Status),
		Role:      inv.Role,
		Email:     inv.Email,
		Phone:     inv.Phone,
		CreatedBy: inv.CreatedBy,
		CreatedAt: inv.CreatedAt,
		ClaimedBy: inv.ClaimedBy,
		ClaimedAt: inv.ClaimedAt,
	}
	if !inv.ExpiresAt.IsZero() {
		expiresAt := inv.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// Issue は招待を発行する。
// POST /api/orgs/{orgID}/invites
func (h *InviteHandler) Issue(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	var req issueInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestAPIError())
		return
	}

	result, err := h.service.Issue(r.Context(), invite.IssueParams{
		OrgID:    orgID,
		IssuerID: userID,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     req.Role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordInviteIssued(orgID)
	}

	writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"invite": toInviteResponse(result.Invite),
		"link":   result.Link,
	})
}

// List は組織の招待一覧を返す。
// GET /api/orgs/{orgID}/invites
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	invites, err := h.service.List(r.Context(), orgID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]inviteResponse, len(invites))
	for i, inv := range invites {
		results[i] = toInviteResponse(inv)
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"invites": results})
}

// Revoke は保留中の招待を取り消す。
// DELETE /api/orgs/{orgID}/invites/{inviteID}
func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")
	inviteID := chi.URLParam(r, "inviteID")

	if err := h.service.Revoke(r.Context(), orgID, inviteID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Approve はクレーム済み招待を管理者が承認し、メンバーを作成する。
// POST /api/orgs/{orgID}/invites/{inviteID}/approve
func (h *InviteHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")
	inviteID := chi.URLParam(r, "inviteID")

	member, err := h.service.Approve(r.Context(), orgID, inviteID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toMemberResponse(member))
}

// Preview は受諾前の招待内容を返す。認証不要。
// GET /api/invites/{token}/preview?org=xxx
// トークンと組織IDの組のみで照合し、存在しない場合は
// トークン不正とレコード不在を区別しないエラーを返す。
func (h *InviteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	orgID := r.URL.Query().Get("org")

	inv, err := h.acceptor.Preview(r.Context(), orgID, token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// プレビューは受諾判断に必要な最小限のみ返す
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"org_id": inv.OrgID,
		"role":   inv.Role,
		"status": string(inv.Status),
	})
}

// Accept は招待を受諾し、組織メンバーを作成する。
// POST /api/invites/{token}/accept?org=xxx
// プロフィール未解決のユーザーはオンボーディングへ迂回する。
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	token := chi.URLParam(r, "token")
	orgID := r.URL.Query().Get("org")

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}

	result, err := h.acceptor.Accept(r.Context(), orgID, token, user)
	if err != nil {
		h.recordAcceptOutcome(err)
		handleServiceError(w, err)
		return
	}

	if result.Detour {
		h.recordAcceptOutcome(nil)
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"detour":      true,
			"detour_path": result.DetourPath,
		})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordInviteAccept("accepted")
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"detour":        false,
		"redirect_path": result.RedirectPath,
		"org_name":      result.OrgName,
		"member":        toMemberResponse(result.Member),
	})
}

// recordAcceptOutcome は受諾試行の終端結果をメトリクスに記録する。
func (h *InviteHandler) recordAcceptOutcome(err error) {
	if h.metrics == nil {
		return
	}
	if err == nil {
		h.metrics.RecordInviteAccept("onboarding_detour")
		return
	}
	if apiErr, ok := err.(*model.APIError); ok {
		h.metrics.RecordInviteAccept(apiErr.Code)
		return
	}
	h.metrics.RecordInviteAccept("internal_error")
}
