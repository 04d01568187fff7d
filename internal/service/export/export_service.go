// internal/service/export/export_service.go
package export

import (
	"context"
	"fmt"

	"maproom-service/internal/domain/export"
	"maproom-service/internal/domain/plan"
	xerrors "maproom-service/internal/pkg/errors"
	"maproom-service/internal/repository/postgres"

	"go.uber.org/zap"
)

// QuotaConsumer is the one slice of the quota service exports depend on
type QuotaConsumer interface {
	ConsumeQuota(ctx context.Context, userID, orgID int64, resourceType string, amount int64) (bool, error)
}

// DecisionNotifier tells the requester about approve/reject outcomes
type DecisionNotifier interface {
	SendExportDecision(ctx context.Context, identityID, exportID int64, approved bool, reason string) error
}

type ExportService struct {
	exportRepo *postgres.ExportRepository
	quota      QuotaConsumer
	notifier   DecisionNotifier
	logger     *zap.Logger
}

func NewExportService(
	exportRepo *postgres.ExportRepository,
	quota QuotaConsumer,
	notifier DecisionNotifier,
	logger *zap.Logger,
) *ExportService {
	return &ExportService{
		exportRepo: exportRepo,
		quota:      quota,
		notifier:   notifier,
		logger:     logger,
	}
}

// CreateExport consumes one unit of export quota, then records the job as
// pending approval. The consume happens first: a denied request creates
// nothing and a created job has already paid its unit.
func (s *ExportService) CreateExport(ctx context.Context, userID int64, req *export.CreateExportRequest) (*export.Job, error) {
	ok, err := s.quota.ConsumeQuota(ctx, userID, req.OrganizationID, plan.ResourceExport, 1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.ErrQuotaExceeded
	}

	job := &export.Job{
		UserID:         userID,
		OrganizationID: req.OrganizationID,
		MapID:          req.MapID,
		Format:         req.Format,
		Status:         export.StatusPendingApproval,
	}

	if err := s.exportRepo.Create(ctx, job); err != nil {
		// the consumed unit is not refunded; the counter resets with the cycle
		return nil, fmt.Errorf("failed to record export job: %w", err)
	}

	s.logger.Info("export requested",
		zap.Int64("export_id", job.ID),
		zap.Int64("user_id", userID),
		zap.Int64("map_id", req.MapID),
		zap.String("format", string(req.Format)),
	)

	return job, nil
}

// GetExport retrieves a job visible to the caller
func (s *ExportService) GetExport(ctx context.Context, userID, exportID int64, isAdmin bool) (*export.Job, error) {
	job, err := s.exportRepo.FindByID(ctx, exportID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && job.UserID != userID {
		return nil, xerrors.ErrForbidden
	}
	return job, nil
}

// ApproveExport moves a pending job to approved and notifies the requester
func (s *ExportService) ApproveExport(ctx context.Context, adminID, exportID int64, reason string) error {
	return s.decide(ctx, adminID, exportID, export.StatusApproved, reason)
}

// RejectExport moves a pending job to rejected and notifies the requester
func (s *ExportService) RejectExport(ctx context.Context, adminID, exportID int64, reason string) error {
	return s.decide(ctx, adminID, exportID, export.StatusRejected, reason)
}

func (s *ExportService) decide(ctx context.Context, adminID, exportID int64, status export.ExportStatus, reason string) error {
	job, err := s.exportRepo.FindByID(ctx, exportID)
	if err != nil {
		return err
	}

	if job.Status != export.StatusPendingApproval {
		return fmt.Errorf("%w: export already decided", xerrors.ErrConflict)
	}

	if err := s.exportRepo.Decide(ctx, exportID, adminID, status, reason); err != nil {
		return err
	}

	approved := status == export.StatusApproved
	if err := s.notifier.SendExportDecision(ctx, job.UserID, exportID, approved, reason); err != nil {
		s.logger.Warn("failed to notify export decision",
			zap.Int64("export_id", exportID), zap.Error(err))
	}

	s.logger.Info("export decided",
		zap.Int64("export_id", exportID),
		zap.Int64("decided_by", adminID),
		zap.String("status", string(status)),
	)

	return nil
}

// CompleteExport records the rendered artifact for an approved job
func (s *ExportService) CompleteExport(ctx context.Context, exportID int64, resultURL string) error {
	if resultURL == "" {
		return fmt.Errorf("%w: result url is required", xerrors.ErrInvalidInput)
	}
	return s.exportRepo.Complete(ctx, exportID, resultURL)
}

// FailExport records a rendering failure
func (s *ExportService) FailExport(ctx context.Context, exportID int64, reason string) error {
	return s.exportRepo.MarkFailed(ctx, exportID, reason)
}

// ListExports returns an organization's export jobs. Non-admins only see
// their own.
func (s *ExportService) ListExports(ctx context.Context, userID, orgID int64, isAdmin bool, filters *export.ExportListFilters) (*export.ExportListResponse, error) {
	if !isAdmin {
		filters.UserID = &userID
	}

	jobs, total, err := s.exportRepo.ListByOrg(ctx, orgID, filters)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &export.ExportListResponse{
		Exports:    jobs,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}
