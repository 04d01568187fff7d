// internal/service/notification/notification_service.go
package notification

import (
	"context"
	"fmt"
	"time"

	"maproom-service/internal/domain/notification"
	wstypes "maproom-service/internal/domain/websocket"
	"maproom-service/internal/repository/postgres"
	"maproom-service/internal/websocket"

	"go.uber.org/zap"
)

// NotificationService persists notifications and pushes them to connected
// clients over the websocket hub. Persistence is the source of truth; a push
// failure never loses the notification.
type NotificationService struct {
	notificationRepo *postgres.NotificationRepository
	hub              *websocket.Hub
	logger           *zap.Logger
}

func NewNotificationService(
	notificationRepo *postgres.NotificationRepository,
	hub *websocket.Hub,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		hub:              hub,
		logger:           logger,
	}
}

// Create persists a notification and pushes it to the recipient if connected
func (s *NotificationService) Create(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	n := &notification.Notification{
		IdentityID: req.IdentityID,
		Type:       req.Type,
		Title:      req.Title,
		Message:    req.Message,
		Metadata:   req.Metadata,
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.push(ctx, n)
	return n, nil
}

func (s *NotificationService) push(ctx context.Context, n *notification.Notification) {
	if s.hub == nil || !s.hub.IsUserConnected(n.IdentityID) {
		return
	}

	s.hub.BroadcastNotification(n.IdentityID, &wstypes.NotificationData{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		IsRead:    n.IsRead,
		Metadata:  n.Metadata,
		CreatedAt: n.CreatedAt,
	})

	if count, err := s.notificationRepo.CountUnread(ctx, n.IdentityID); err == nil {
		s.hub.BroadcastNotificationCount(n.IdentityID, count)
	}
}

// QuotaWarningExists reports whether a quota warning for the resource type
// was already created for the identity since the cutoff
func (s *NotificationService) QuotaWarningExists(ctx context.Context, identityID int64, resourceType string, since time.Time) (bool, error) {
	return s.notificationRepo.ExistsSince(ctx, identityID, notification.TypeQuotaWarning, resourceType, since)
}

// SendQuotaWarning emits the per-cycle quota warning for one resource type
func (s *NotificationService) SendQuotaWarning(ctx context.Context, identityID, orgID int64, resourceType string, consumed, limit int64) error {
	_, err := s.Create(ctx, &notification.CreateNotificationRequest{
		IdentityID: identityID,
		Type:       notification.TypeQuotaWarning,
		Title:      "Quota warning",
		Message:    fmt.Sprintf("You have used %d of %d %s units in the current billing cycle.", consumed, limit, resourceType),
		Metadata: map[string]interface{}{
			"resource_type":   resourceType,
			"organization_id": orgID,
			"consumed":        consumed,
			"limit":           limit,
		},
	})
	return err
}

// SendExportDecision notifies the requester that an export was decided
func (s *NotificationService) SendExportDecision(ctx context.Context, identityID, exportID int64, approved bool, reason string) error {
	title := "Export approved"
	message := "Your map export request was approved and is being processed."
	if !approved {
		title = "Export rejected"
		message = "Your map export request was rejected."
		if reason != "" {
			message = fmt.Sprintf("%s Reason: %s", message, reason)
		}
	}

	_, err := s.Create(ctx, &notification.CreateNotificationRequest{
		IdentityID: identityID,
		Type:       notification.TypeExportDecision,
		Title:      title,
		Message:    message,
		Metadata: map[string]interface{}{
			"export_id": exportID,
			"approved":  approved,
		},
	})
	return err
}

// List returns the identity's notifications plus the unread count
func (s *NotificationService) List(ctx context.Context, identityID int64, limit, offset int) (*notification.NotificationListResponse, error) {
	notifications, total, err := s.notificationRepo.ListByIdentity(ctx, identityID, limit, offset)
	if err != nil {
		return nil, err
	}

	unread, err := s.notificationRepo.CountUnread(ctx, identityID)
	if err != nil {
		return nil, err
	}

	return &notification.NotificationListResponse{
		Notifications: notifications,
		Total:         total,
		UnreadCount:   unread,
	}, nil
}

// MarkAsRead marks one notification read and refreshes the unread badge
func (s *NotificationService) MarkAsRead(ctx context.Context, identityID, notificationID int64) error {
	if err := s.notificationRepo.MarkAsRead(ctx, notificationID, identityID); err != nil {
		return err
	}

	if s.hub != nil && s.hub.IsUserConnected(identityID) {
		if count, err := s.notificationRepo.CountUnread(ctx, identityID); err == nil {
			s.hub.BroadcastNotificationCount(identityID, count)
		}
	}
	return nil
}

// MarkAllAsRead marks every unread notification read
func (s *NotificationService) MarkAllAsRead(ctx context.Context, identityID int64) error {
	if err := s.notificationRepo.MarkAllAsRead(ctx, identityID); err != nil {
		return err
	}

	if s.hub != nil && s.hub.IsUserConnected(identityID) {
		s.hub.BroadcastNotificationCount(identityID, 0)
	}
	return nil
}
