package service

import (
	"context"
	"errors"

	"github.com/raushankrgupta/birthday-club/apperrors"
	"github.com/raushankrgupta/birthday-club/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type CleanupResult struct {
	FoundExpiredOTPs int64 `json:"foundExpiredOTPs"`
	CleanedCount     int64 `json:"cleanedCount"`
}

// CleanupExpiredOTPs unsets every expired code held by an unverified user.
// Running it again right away modifies nothing.
func (s *Service) CleanupExpiredOTPs(ctx context.Context) (CleanupResult, error) {
	found, modified, err := s.users.ClearExpiredOTPs(ctx, s.now())
	if err != nil {
		return CleanupResult{}, storeErr(err)
	}
	if found != modified {
		// a concurrent run or verification got to some rows first
		s.logger.Warn("Expired OTP cleanup count mismatch",
			zap.Int64("found", found),
			zap.Int64("modified", modified),
		)
	}
	s.logger.Info("Expired OTP cleanup finished", zap.Int64("found", found), zap.Int64("cleaned", modified))
	return CleanupResult{FoundExpiredOTPs: found, CleanedCount: modified}, nil
}

func (s *Service) OTPStats(ctx context.Context) (models.OTPStats, error) {
	stats, err := s.users.OTPStats(ctx, s.now())
	return stats, storeErr(err)
}

func (s *Service) UserCounts(ctx context.Context) (models.UserCounts, error) {
	counts, err := s.users.CountByAuthentication(ctx)
	return counts, storeErr(err)
}

type DeletionResult struct {
	RunID             string `json:"runId,omitempty"`
	TotalProcessed    int    `json:"totalProcessed"`
	MovedToDeletedDB  int    `json:"movedToDeletedDb"`
	DeletedFromMainDB int    `json:"deletedFromMainDb"`
	ExportKey         string `json:"exportKey,omitempty"`
}

// DeleteUnauthenticated archives every unverified user and then removes
// exactly the archived records from the directory. Deletion only starts once
// the archive holds a copy of every record read.
func (s *Service) DeleteUnauthenticated(ctx context.Context) (DeletionResult, error) {
	users, err := s.users.FindUnauthenticated(ctx)
	if err != nil {
		return DeletionResult{}, storeErr(err)
	}
	if len(users) == 0 {
		return DeletionResult{}, nil
	}

	runID := s.newRunID()
	log := s.logger.With(zap.String("run_id", runID))
	deletedAt := s.now()

	archived := make([]models.ArchivedUser, len(users))
	ids := make([]primitive.ObjectID, len(users))
	for i, u := range users {
		archived[i] = models.NewArchivedUser(u, runID, models.DeletionReasonUnauthenticated, deletedAt)
		ids[i] = u.ID
	}

	moved, err := s.archive.InsertMany(ctx, archived)
	if err != nil {
		if moved == 0 && errors.Is(err, apperrors.ErrStoreUnavailable) {
			return DeletionResult{}, err
		}
		log.Error("Archive insert failed", zap.Int("expected", len(users)), zap.Int("moved", moved), zap.Error(err))
		return DeletionResult{}, &apperrors.MigrationIncompleteError{Expected: len(users), Moved: moved}
	}
	if moved != len(users) {
		return DeletionResult{}, &apperrors.MigrationIncompleteError{Expected: len(users), Moved: moved}
	}

	confirmed, err := s.archive.CountByRun(ctx, runID)
	if err != nil {
		log.Error("Archive verification failed", zap.Error(err))
		return DeletionResult{}, storeErr(err)
	}
	if int(confirmed) != len(users) {
		return DeletionResult{}, &apperrors.MigrationIncompleteError{Expected: len(users), Moved: int(confirmed)}
	}

	result := DeletionResult{RunID: runID, TotalProcessed: len(users), MovedToDeletedDB: moved}

	if s.exporter != nil {
		key, err := s.exporter.ExportArchive(ctx, runID, archived)
		if err != nil {
			log.Warn("Archive export failed", zap.Error(err))
		} else {
			result.ExportKey = key
		}
	}

	deleted, err := s.users.DeleteUnauthenticatedByIDs(ctx, ids)
	if err != nil {
		log.Error("Delete after archive failed", zap.Int("moved", moved), zap.Error(err))
		return result, &apperrors.PartialDeletionError{Expected: len(users), Moved: moved, Deleted: int(deleted)}
	}
	result.DeletedFromMainDB = int(deleted)
	if result.DeletedFromMainDB != moved {
		log.Error("Archived and deleted counts differ",
			zap.Int("moved", moved),
			zap.Int("deleted", result.DeletedFromMainDB),
		)
		return result, &apperrors.PartialDeletionError{Expected: len(users), Moved: moved, Deleted: result.DeletedFromMainDB}
	}

	log.Info("Unauthenticated users archived and deleted", zap.Int("count", moved))
	return result, nil
}
