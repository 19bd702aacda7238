package storage

import (
	"context"
	"errors"
	"sort"

	"medtrack/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Store is the record store every service reads and writes through.
// Each call is applied completely or not at all.
type Store interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	CreateMedication(ctx context.Context, med models.Medication) (*models.Medication, error)
	GetMedication(ctx context.Context, id int64) (*models.Medication, error)
	// ListMedications returns the user's medications in ascending id order.
	ListMedications(ctx context.Context, userID int64) ([]*models.Medication, error)
	UpdateMedication(ctx context.Context, id int64, patch models.MedicationPatch) (*models.Medication, error)
	DeleteMedication(ctx context.Context, id int64) error

	CreateActivity(ctx context.Context, activity models.Activity) (*models.Activity, error)
	// ListActivities returns newest first.
	ListActivities(ctx context.Context, userID int64) ([]*models.Activity, error)

	// CreateMessages persists all messages in order as one write.
	CreateMessages(ctx context.Context, msgs ...models.Message) ([]*models.Message, error)
	// ListMessages returns oldest first (transcript order).
	ListMessages(ctx context.Context, userID int64) ([]*models.Message, error)

	Close() error
}

func sortActivities(items []*models.Activity) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func sortMessages(items []*models.Message) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
