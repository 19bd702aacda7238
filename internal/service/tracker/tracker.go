// Package tracker owns the medication lifecycle and the activity feed.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookgo/clock"

	"medtrack/internal/apperr"
	"medtrack/internal/logger"
	"medtrack/internal/models"
	"medtrack/internal/service/classifier"
	"medtrack/internal/storage"
)

type Service struct {
	store storage.Store
	clock clock.Clock
	loc   *time.Location
	log   *logger.Logger
}

func NewService(store storage.Store, clk clock.Clock, log *logger.Logger) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, clock: clk, log: log}
}

// SetLocation fixes the zone used to decide which calendar day "today" is.
// Without it the clock's own zone is used.
func (s *Service) SetLocation(loc *time.Location) {
	s.loc = loc
}

func (s *Service) now() time.Time {
	if s.loc == nil {
		return s.clock.Now()
	}
	return s.clock.Now().In(s.loc)
}

// List returns the user's medications in the filter bucket, classified at now.
func (s *Service) List(ctx context.Context, userID int64, filter classifier.Filter) ([]classifier.View, error) {
	meds, err := s.store.ListMedications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return classifier.Filtered(meds, filter, s.now()), nil
}

func (s *Service) Overview(ctx context.Context, userID int64, filter classifier.Filter) (classifier.Overview, error) {
	meds, err := s.store.ListMedications(ctx, userID)
	if err != nil {
		return classifier.Overview{}, fmt.Errorf("list medications: %w", err)
	}
	return classifier.Build(meds, filter, s.now()), nil
}

// Add stores a new medication owned by the caller, whatever userId the input carried.
func (s *Service) Add(ctx context.Context, userID int64, med models.Medication) (*models.Medication, error) {
	med.ID = 0
	med.UserID = userID
	created, err := s.store.CreateMedication(ctx, med)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.log.Info("medication added", "user_id", userID, "medication_id", created.ID)
	return created, nil
}

// Update merges patch into the caller's medication. A patch that only sets
// status to taken goes through MarkTaken so the activity feed records it.
func (s *Service) Update(ctx context.Context, userID, id int64, patch models.MedicationPatch) (*models.Medication, error) {
	if patch.OnlyStatus() && *patch.Status == models.StatusTaken {
		return s.MarkTaken(ctx, userID, id)
	}
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateMedication(ctx, id, patch)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return updated, nil
}

// Delete removes the caller's medication. Activities that reference it stay.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteMedication(ctx, id); err != nil {
		return mapStoreError(err)
	}
	s.log.Info("medication deleted", "user_id", userID, "medication_id", id)
	return nil
}

// MarkTaken sets status to taken and logs a medication_taken activity.
// Marking an already taken medication returns it unchanged.
func (s *Service) MarkTaken(ctx context.Context, userID, id int64) (*models.Medication, error) {
	med, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if med.Status == models.StatusTaken {
		return med, nil
	}
	taken := models.StatusTaken
	updated, err := s.store.UpdateMedication(ctx, id, models.MedicationPatch{Status: &taken})
	if err != nil {
		return nil, mapStoreError(err)
	}
	medID := updated.ID
	_, err = s.store.CreateActivity(ctx, models.Activity{
		UserID:       userID,
		ActivityType: models.ActivityMedicationTaken,
		Description:  fmt.Sprintf("%s %s marked as taken", updated.Name, updated.Dosage),
		MedicationID: &medID,
	})
	if err != nil {
		s.log.Error("record taken activity failed", "user_id", userID, "medication_id", id, "error", err)
		return nil, fmt.Errorf("record taken activity: %w", err)
	}
	return updated, nil
}

// Activities returns the caller's feed, newest first.
func (s *Service) Activities(ctx context.Context, userID int64) ([]*models.Activity, error) {
	items, err := s.store.ListActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return items, nil
}

// RecordActivity appends an entry to the caller's feed. A medication
// reference must not point at another user's medication; a reference to a
// deleted medication is kept as is.
func (s *Service) RecordActivity(ctx context.Context, userID int64, activity models.Activity) (*models.Activity, error) {
	activity.ID = 0
	activity.UserID = userID
	activity.CreatedAt = activity.CreatedAt.UTC()
	if activity.MedicationID != nil {
		med, err := s.store.GetMedication(ctx, *activity.MedicationID)
		switch {
		case err == nil && med.UserID != userID:
			return nil, apperr.New(apperr.Forbidden, "Unauthorized")
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load medication: %w", err)
		}
	}
	created, err := s.store.CreateActivity(ctx, activity)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return created, nil
}

// owned loads a medication and checks it belongs to userID before any write.
func (s *Service) owned(ctx context.Context, userID, id int64) (*models.Medication, error) {
	med, err := s.store.GetMedication(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if med.UserID != userID {
		s.log.Warn("medication access denied", "user_id", userID, "medication_id", id)
		return nil, apperr.New(apperr.Forbidden, "Unauthorized")
	}
	return med, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "Medication not found", err)
	case apperr.KindOf(err) != apperr.Internal:
		return err
	default:
		return apperr.Wrap(apperr.Internal, "", err)
	}
}
