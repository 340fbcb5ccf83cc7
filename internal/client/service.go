// Package client は組織に帰属するクライアント（患者）レコードのCRUDを提供する。
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/org"
	"github.com/hitoshi/karte/internal/repository"
	"github.com/hitoshi/karte/internal/security"
)

// Service はクライアントレコードのビジネスロジックを提供する。
// すべての操作は組織スコープの認可を通り、メモは保存前にサニタイズされる。
type Service struct {
	clientRepo repository.ClientRepository
	scope      *org.Scope
	sanitizer  security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(clientRepo repository.ClientRepository, scope *org.Scope, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		clientRepo: clientRepo,
		scope:      scope,
		sanitizer:  sanitizer,
	}
}

// CreateParams はクライアント作成・更新の入力。
type CreateParams struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Notes     string // 生HTML。保存前にサニタイズされる
}

// Create はクライアントを作成する。
func (s *Service) Create(ctx context.Context, orgID, callerID string, params CreateParams) (*model.Client, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	if params.FirstName == "" && params.LastName == "" {
		return nil, fmt.Errorf("client name is required")
	}

	now := time.Now()
	c := &model.Client{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Phone:     params.Phone,
		Notes:     s.sanitizer.Sanitize(params.Notes),
		CreatedBy: callerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.clientRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}

// Get はクライアントを取得する。
func (s *Service) Get(ctx context.Context, orgID, clientID, callerID string) (*model.Client, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	c, err := s.clientRepo.FindByID(ctx, orgID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	if c == nil {
		return nil, model.NewClientNotFoundError(clientID)
	}
	return c, nil
}

// Update はクライアント情報を更新する。
func (s *Service) Update(ctx context.Context, orgID, clientID, callerID string, params CreateParams) (*model.Client, error) {
	c, err := s.Get(ctx, orgID, clientID, callerID)
	if err != nil {
		return nil, err
	}

	c.FirstName = params.FirstName
	c.LastName = params.LastName
	c.Email = params.Email
	c.Phone = params.Phone
	c.Notes = s.sanitizer.Sanitize(params.Notes)
	c.UpdatedAt = time.Now()

	if err := s.clientRepo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return c, nil
}

// List は組織のクライアント一覧を返す。
func (s *Service) List(ctx context.Context, orgID, callerID string) ([]*model.Client, error) {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	clients, err := s.clientRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// Delete はクライアントを削除する。
func (s *Service) Delete(ctx context.Context, orgID, clientID, callerID string) error {
	if _, err := s.scope.RequireMember(ctx, orgID, callerID); err != nil {
		return err
	}

	if err := s.clientRepo.Delete(ctx, orgID, clientID); err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}
