package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/models"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByStage(ctx context.Context, principalID, stage string, limit int) ([]models.Notification, error)
}

// NotificationService broadcasts principal messages to a stage.
type NotificationService struct {
	repo      notificationRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(repo notificationRepository, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{repo: repo, validator: validate, logger: logger}
}

// Broadcast stores a stage-wide message.
func (s *NotificationService) Broadcast(ctx context.Context, principalID, senderName string, req models.BroadcastRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid broadcast payload")
	}
	notification := &models.Notification{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Stage:       req.Stage,
		SenderName:  senderName,
		Message:     req.Message,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store broadcast")
	}
	s.logger.Info("stage broadcast sent",
		zap.String("principal_id", principalID), zap.String("stage", req.Stage))
	return notification, nil
}

// List returns the latest broadcasts of one stage.
func (s *NotificationService) List(ctx context.Context, principalID, stage string, limit int) ([]models.Notification, error) {
	notifications, err := s.repo.ListByStage(ctx, principalID, stage, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list broadcasts")
	}
	return notifications, nil
}
