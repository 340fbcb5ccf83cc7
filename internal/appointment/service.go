// Package appointment はクライアントとのセッション予約のCRUDを提供する。
package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/org"
	"github.com/hitoshi/karte/internal/repository"
)

// Service は予約のビジネスロジックを提供する。
// すべての操作は組織スコープの認可を通る。
type Service struct {
	apptRepo   repository.AppointmentRepository
	clientRepo repository.ClientRepository
	scope      *org.Scope
}

// NewService はServiceを生成する。
func NewService(apptRepo repository.AppointmentRepository, clientRepo repository.ClientRepository, scope *org.Scope) *Service {
	return &Service{
		apptRepo:   apptRepo,
		clientRepo: clientRepo,
		scope:      scope,
	}
}

// CreateParams は予約作成・更新の入力。
type CreateParams struct {
	ClientID    string
	ClinicianID string
	Title       string
	StartsAt    time.Time
	EndsAt      time.Time
}

// validate は時間範囲とクライアントの帰属を検証する。
func (s *Service) validate(ctx context.Context, orgID string, params CreateParams) error {
	if params.StartsAt.IsZero() || params.EndsAt.IsZero() || !params.EndsAt.After(params.StartsAt) {
		return model.NewInvalidTimeRangeError()
	}
	if params.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}

	c, err := s.clientRepo.FindByID(ctx, orgID, params.ClientID)
	if err != nil {
		return fmt.Errorf("failed to find client: %w", err)
	}
	if c == nil {
		return model.NewClientNotFoundError(params.ClientID)
	}
	return nil
}

// Create は予約を作成する。
func (s *Service) Create(ctx context.Context, orgID, callerID string, params CreateParams) (*model.Appointment, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, orgID, params); err != nil {
		return nil, err
	}

	now := time.Now()
	appt := &model.Appointment{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		ClientID:    params.ClientID,
		ClinicianID: params.ClinicianID,
		Title:       params.Title,
		StartsAt:    params.StartsAt,
		EndsAt:      params.EndsAt,
		CreatedBy:   callerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.apptRepo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return appt, nil
}

// Get は予約を取得する。
func (s *Service) Get(ctx context.Context, orgID, apptID, callerID string) (*model.Appointment, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	appt, err := s.apptRepo.FindByID(ctx, orgID, apptID)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	if appt == nil {
		return nil, model.NewAppointmentNotFoundError(apptID)
	}
	return appt, nil
}

// Update は予約を更新する。
func (s *Service) Update(ctx context.Context, orgID, apptID, callerID string, params CreateParams) (*model.Appointment, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	appt, err := s.apptRepo.FindByID(ctx, orgID, apptID)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	if appt == nil {
		return nil, model.NewAppointmentNotFoundError(apptID)
	}

	if err := s.validate(ctx, orgID, params); err != nil {
		return nil, err
	}

	appt.ClientID = params.ClientID
	appt.ClinicianID = params.ClinicianID
	appt.Title = params.Title
	appt.StartsAt = params.StartsAt
	appt.EndsAt = params.EndsAt
	appt.UpdatedAt = time.Now()

	if err := s.apptRepo.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return appt, nil
}

// ListRange は組織の予約を期間指定で返す。カレンダー表示用。
func (s *Service) ListRange(ctx context.Context, orgID, callerID string, from, to time.Time) ([]*model.Appointment, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, model.NewInvalidTimeRangeError()
	}

	appts, err := s.apptRepo.ListByOrgAndRange(ctx, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

// Delete は予約を削除する。
func (s *Service) Delete(ctx context.Context, orgID, apptID, callerID string) error {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return err
	}

	if err := s.apptRepo.Delete(ctx, orgID, apptID); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}
