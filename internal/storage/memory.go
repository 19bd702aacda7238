package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/facebookgo/clock"

	"medtrack/internal/models"
)

// MemoryStore keeps every record in process memory. Data lives until the
// process exits.
type MemoryStore struct {
	clock clock.Clock

	mu          sync.RWMutex
	users       map[int64]*models.User
	medications map[int64]*models.Medication
	activities  map[int64]*models.Activity
	messages    map[int64]*models.Message

	nextUserID       int64
	nextMedicationID int64
	nextActivityID   int64
	nextMessageID    int64
}

// NewMemoryStore builds an empty store. A nil clock uses the wall clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{
		clock:            clk,
		users:            make(map[int64]*models.User),
		medications:      make(map[int64]*models.Medication),
		activities:       make(map[int64]*models.Activity),
		messages:         make(map[int64]*models.Message),
		nextUserID:       1,
		nextMedicationID: 1,
		nextActivityID:   1,
		nextMessageID:    1,
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return nil, ErrDuplicate
		}
	}
	user.ID = s.nextUserID
	s.nextUserID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.clock.Now()
	}
	stored := user
	s.users[user.ID] = &stored
	return &user, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateMedication(_ context.Context, med models.Medication) (*models.Medication, error) {
	med.Normalize()
	if err := med.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	med.ID = s.nextMedicationID
	s.nextMedicationID++
	s.medications[med.ID] = med.Clone()
	return med.Clone(), nil
}

func (s *MemoryStore) GetMedication(_ context.Context, id int64) (*models.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.medications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) ListMedications(_ context.Context, userID int64) ([]*models.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Medication, 0)
	for _, m := range s.medications {
		if m.UserID == userID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateMedication(_ context.Context, id int64, patch models.MedicationPatch) (*models.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medications[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated, err := patch.Apply(m)
	if err != nil {
		return nil, err
	}
	s.medications[id] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) DeleteMedication(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.medications[id]; !ok {
		return ErrNotFound
	}
	delete(s.medications, id)
	return nil
}

func (s *MemoryStore) CreateActivity(_ context.Context, activity models.Activity) (*models.Activity, error) {
	if err := activity.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	activity.ID = s.nextActivityID
	s.nextActivityID++
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.clock.Now()
	}
	stored := cloneActivity(&activity)
	s.activities[activity.ID] = stored
	return cloneActivity(stored), nil
}

func (s *MemoryStore) ListActivities(_ context.Context, userID int64) ([]*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Activity, 0)
	for _, a := range s.activities {
		if a.UserID == userID {
			out = append(out, cloneActivity(a))
		}
	}
	sortActivities(out)
	return out, nil
}

func (s *MemoryStore) CreateMessages(_ context.Context, msgs ...models.Message) ([]*models.Message, error) {
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	out := make([]*models.Message, 0, len(msgs))
	for _, msg := range msgs {
		msg.ID = s.nextMessageID
		s.nextMessageID++
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		stored := msg
		s.messages[msg.ID] = &stored
		out = append(out, &msg)
	}
	return out, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, userID int64) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Message, 0)
	for _, m := range s.messages {
		if m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortMessages(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneActivity(a *models.Activity) *models.Activity {
	out := *a
	if a.MedicationID != nil {
		v := *a.MedicationID
		out.MedicationID = &v
	}
	return &out
}
