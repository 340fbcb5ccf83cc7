package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/karte/internal/appointment"
	"github.com/hitoshi/karte/internal/middleware"
	"github.com/hitoshi/karte/internal/model"
)

// AppointmentServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type AppointmentServiceInterface interface {
	Create(ctx context.Context, orgID, callerID string, params appointment.CreateParams) (*model.Appointment, error)
	Get(ctx context.Context, orgID, apptID, callerID string) (*model.Appointment, error)
	Update(ctx context.Context, orgID, apptID, callerID string, params appointment.CreateParams) (*model.Appointment, error)
	ListRange(ctx context.Context, orgID, callerID string, from, to time.Time) ([]*model.Appointment, error)
	Delete(ctx context.Context, orgID, apptID, callerID string) error
}

// AppointmentHandler は予約管理のHTTPハンドラー。
type AppointmentHandler struct {
	service AppointmentServiceInterface
}

// NewAppointmentHandler はAppointmentHandlerを生成する。
func NewAppointmentHandler(service AppointmentServiceInterface) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// appointmentRequest は予約作成・更新リクエストのボディ。時刻はRFC3339。
type appointmentRequest struct {
	ClientID    string    `json:"client_id"`
	ClinicianID string    `json:"clinician_id"`
	Title       string    `json:"title"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// appointmentResponse は予約情報のAPIレスポンス。
type appointmentResponse struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	ClientID    string    `json:"client_id"`
	ClinicianID string    `json:"clinician_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:          a.ID,
		OrgID:       a.OrgID,
		ClientID:    a.ClientID,
		ClinicianID: a.ClinicianID,
		Title:       a.Title,
		StartsAt:    a.StartsAt,
		EndsAt:      a.EndsAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (req appointmentRequest) toParams() appointment.CreateParams {
	return appointment.CreateParams{
		ClientID:    req.ClientID,
		ClinicianID: req.ClinicianID,
		Title:       req.Title,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}
}

// Create は予約を作成する。
// POST /api/orgs/{orgID}/appointments
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestAPIError())
		return
	}

	appt, err := h.service.Create(r.Context(), orgID, userID, req.toParams())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toAppointmentResponse(appt))
}

// Get は予約詳細を取得する。
// GET /api/orgs/{orgID}/appointments/{apptID}
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")
	apptID := chi.URLParam(r, "apptID")

	appt, err := h.service.Get(r.Context(), orgID, apptID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toAppointmentResponse(appt))
}

// Update は予約を更新する。
// PUT /api/orgs/{orgID}/appointments/{apptID}
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")
	apptID := chi.URLParam(r, "apptID")

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestAPIError())
		return
	}

	appt, err := h.service.Update(r.Context(), orgID, apptID, userID, req.toParams())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toAppointmentResponse(appt))
}

// List は期間指定で予約一覧を返す。カレンダー表示用。
// GET /api/orgs/{orgID}/appointments?from=RFC3339&to=RFC3339
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimeRangeError())
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimeRangeError())
		return
	}

	appts, err := h.service.ListRange(r.Context(), orgID, userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]appointmentResponse, len(appts))
	for i, a := range appts {
		results[i] = toAppointmentResponse(a)
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"appointments": results})
}

// Delete は予約を削除する。
// DELETE /api/orgs/{orgID}/appointments/{apptID}
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedAPIError())
		return
	}
	orgID := chi.URLParam(r, "orgID")
	apptID := chi.URLParam(r, "apptID")

	if err := h.service.Delete(r.Context(), orgID, apptID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
