package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"medtrack/internal/apperr"
	"medtrack/internal/config"
	"medtrack/internal/models"
)

type storeFactory func(t *testing.T, clk clock.Clock) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clk clock.Clock) Store {
			return NewMemoryStore(clk)
		},
		"sqlite3": func(t *testing.T, clk clock.Clock) Store {
			return openTestSQLStore(t, clk)
		},
	}
}

func openTestSQLStore(t *testing.T, clk clock.Clock) *SQLStore {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	store := NewSQLStore(db, clk)
	t.Cleanup(func() { store.Close() })
	return store
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store, clk *clock.Mock)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			clk := clock.NewMock()
			clk.Add(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC).Sub(clk.Now()))
			fn(t, factory(t, clk), clk)
		})
	}
}

func mustUser(t *testing.T, s Store, username string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), models.User{Username: username, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func sampleMedication(userID int64) models.Medication {
	supply := 20
	return models.Medication{
		UserID:          userID,
		Name:            "Metformin",
		Dosage:          "500mg",
		MedicationType:  models.MedicationPrescription,
		Schedule:        "evening",
		Status:          models.StatusUpcoming,
		SupplyRemaining: &supply,
	}
}

func TestUserLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ *clock.Mock) {
		ctx := context.Background()
		alice := mustUser(t, s, "alice")
		bob := mustUser(t, s, "bob")
		if alice.ID <= 0 || bob.ID <= alice.ID {
			t.Fatalf("ids not increasing: %d, %d", alice.ID, bob.ID)
		}
		if _, err := s.CreateUser(ctx, models.User{Username: "alice", PasswordHash: "x"}); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		got, err := s.GetUserByUsername(ctx, "bob")
		if err != nil || got.ID != bob.ID {
			t.Fatalf("GetUserByUsername: %+v %v", got, err)
		}
		if _, err := s.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.CreateUser(ctx, models.User{Username: " ", PasswordHash: "x"}); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestMedicationCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clk *clock.Mock) {
		ctx := context.Background()
		u := mustUser(t, s, "carol")
		other := mustUser(t, s, "dave")

		due := clk.Now().Add(2 * time.Hour)
		details := "avoid alcohol"
		med := sampleMedication(u.ID)
		med.NextDueAt = &due
		med.HasInteraction = true
		med.InteractionDetails = &details
		created, err := s.CreateMedication(ctx, med)
		if err != nil {
			t.Fatalf("create medication: %v", err)
		}
		second, err := s.CreateMedication(ctx, sampleMedication(u.ID))
		if err != nil {
			t.Fatalf("create second medication: %v", err)
		}
		if second.ID <= created.ID {
			t.Fatalf("medication ids not increasing")
		}
		if _, err := s.CreateMedication(ctx, sampleMedication(other.ID)); err != nil {
			t.Fatalf("create other medication: %v", err)
		}

		list, err := s.ListMedications(ctx, u.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].ID != created.ID || list[1].ID != second.ID {
			t.Fatalf("unexpected list: %+v", list)
		}
		got := list[0]
		if !got.HasInteraction || got.InteractionDetails == nil || *got.InteractionDetails != details {
			t.Fatalf("interaction fields lost: %+v", got)
		}
		if got.NextDueAt == nil || !got.NextDueAt.Equal(due) {
			t.Fatalf("nextDueAt lost: %v", got.NextDueAt)
		}
		if got.SupplyRemaining == nil || *got.SupplyRemaining != 20 {
			t.Fatalf("supply lost: %v", got.SupplyRemaining)
		}

		taken := models.StatusTaken
		updated, err := s.UpdateMedication(ctx, created.ID, models.MedicationPatch{Status: &taken})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Status != models.StatusTaken || updated.Name != "Metformin" || *updated.SupplyRemaining != 20 {
			t.Fatalf("partial update changed other fields: %+v", updated)
		}
		reloaded, err := s.GetMedication(ctx, created.ID)
		if err != nil || reloaded.Status != models.StatusTaken {
			t.Fatalf("update not persisted: %+v %v", reloaded, err)
		}

		bad := models.Status("paused")
		if _, err := s.UpdateMedication(ctx, created.ID, models.MedicationPatch{Status: &bad}); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, err := s.UpdateMedication(ctx, 4242, models.MedicationPatch{Status: &taken}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		if err := s.DeleteMedication(ctx, created.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeleteMedication(ctx, created.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("second delete: expected ErrNotFound, got %v", err)
		}
		third, err := s.CreateMedication(ctx, sampleMedication(u.ID))
		if err != nil {
			t.Fatalf("create after delete: %v", err)
		}
		if third.ID <= second.ID+1 {
			t.Fatalf("ids reused or not monotonic: %d after %d", third.ID, second.ID)
		}
	})
}

func TestMedicationCreateValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ *clock.Mock) {
		u := mustUser(t, s, "erin")
		med := sampleMedication(u.ID)
		med.MedicationType = "herbal"
		if _, err := s.CreateMedication(context.Background(), med); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestMedicationTextTrimmedOnCreateAndUpdate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ *clock.Mock) {
		ctx := context.Background()
		u := mustUser(t, s, "fay")
		med := sampleMedication(u.ID)
		med.Name = " Aspirin "
		med.Dosage = "81mg\t"
		med.Schedule = " morning"
		created, err := s.CreateMedication(ctx, med)
		if err != nil {
			t.Fatalf("CreateMedication: %v", err)
		}
		stored, err := s.GetMedication(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetMedication: %v", err)
		}
		if stored.Name != "Aspirin" || stored.Dosage != "81mg" || stored.Schedule != "morning" {
			t.Fatalf("create kept surrounding whitespace: %+v", stored)
		}

		name := " Aspirin EC "
		updated, err := s.UpdateMedication(ctx, created.ID, models.MedicationPatch{Name: &name})
		if err != nil {
			t.Fatalf("UpdateMedication: %v", err)
		}
		if updated.Name != "Aspirin EC" {
			t.Fatalf("update kept surrounding whitespace: %q", updated.Name)
		}
	})
}

func TestActivitiesNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clk *clock.Mock) {
		ctx := context.Background()
		u := mustUser(t, s, "frank")
		for i, desc := range []string{"t1", "t2", "t3"} {
			_, err := s.CreateActivity(ctx, models.Activity{
				UserID:       u.ID,
				ActivityType: models.ActivityMedicationTaken,
				Description:  desc,
				CreatedAt:    clk.Now().Add(time.Duration(i) * time.Minute),
			})
			if err != nil {
				t.Fatalf("create activity: %v", err)
			}
		}
		list, err := s.ListActivities(ctx, u.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 activities, got %d", len(list))
		}
		for i, want := range []string{"t3", "t2", "t1"} {
			if list[i].Description != want {
				t.Fatalf("position %d: got %s want %s", i, list[i].Description, want)
			}
		}
	})
}

func TestActivityDefaultsCreatedAtAndKeepsMedicationRef(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clk *clock.Mock) {
		ctx := context.Background()
		u := mustUser(t, s, "gina")
		med, err := s.CreateMedication(ctx, sampleMedication(u.ID))
		if err != nil {
			t.Fatalf("create medication: %v", err)
		}
		medID := med.ID
		a, err := s.CreateActivity(ctx, models.Activity{
			UserID: u.ID, ActivityType: models.ActivityLowSupply, Description: "Metformin running low", MedicationID: &medID,
		})
		if err != nil {
			t.Fatalf("create activity: %v", err)
		}
		if !a.CreatedAt.Equal(clk.Now()) {
			t.Fatalf("createdAt not defaulted to clock: %v vs %v", a.CreatedAt, clk.Now())
		}
		if err := s.DeleteMedication(ctx, medID); err != nil {
			t.Fatalf("delete medication: %v", err)
		}
		list, err := s.ListActivities(ctx, u.ID)
		if err != nil || len(list) != 1 {
			t.Fatalf("activity removed with medication: %v %v", list, err)
		}
		if list[0].MedicationID == nil || *list[0].MedicationID != medID {
			t.Fatalf("medication reference lost: %v", list[0].MedicationID)
		}
	})
}

func TestMessagesOldestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clk *clock.Mock) {
		ctx := context.Background()
		u := mustUser(t, s, "hank")
		for _, content := range []string{"t1", "t2", "t3"} {
			clk.Add(time.Minute)
			if _, err := s.CreateMessages(ctx, models.Message{UserID: u.ID, Content: content}); err != nil {
				t.Fatalf("create message: %v", err)
			}
		}
		list, err := s.ListMessages(ctx, u.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for i, want := range []string{"t1", "t2", "t3"} {
			if list[i].Content != want {
				t.Fatalf("position %d: got %s want %s", i, list[i].Content, want)
			}
		}
	})
}

func TestCreateMessagesKeepsPairOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ *clock.Mock) {
		ctx := context.Background()
		u := mustUser(t, s, "iris")
		pair, err := s.CreateMessages(ctx,
			models.Message{UserID: u.ID, Content: "hello"},
			models.Message{UserID: u.ID, Content: "Hello back", IsBot: true},
		)
		if err != nil {
			t.Fatalf("create pair: %v", err)
		}
		if len(pair) != 2 || pair[0].IsBot || !pair[1].IsBot || pair[1].ID <= pair[0].ID {
			t.Fatalf("unexpected pair: %+v", pair)
		}
		list, err := s.ListMessages(ctx, u.ID)
		if err != nil || len(list) != 2 {
			t.Fatalf("list: %v %v", list, err)
		}
		if list[0].Content != "hello" || list[1].Content != "Hello back" {
			t.Fatalf("pair order lost: %+v", list)
		}

		_, err = s.CreateMessages(ctx,
			models.Message{UserID: u.ID, Content: "ok"},
			models.Message{UserID: u.ID, Content: ""},
		)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		list, _ = s.ListMessages(ctx, u.ID)
		if len(list) != 2 {
			t.Fatalf("partial pair written: %d messages", len(list))
		}
	})
}
