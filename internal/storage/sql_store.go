package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/jmoiron/sqlx"

	"medtrack/internal/models"
)

// SQLStore implements Store on top of sqlite3, mysql or postgres.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	clock  clock.Clock
}

// NewSQLStore wraps an opened and migrated database.
func NewSQLStore(db *sqlx.DB, clk clock.Clock) *SQLStore {
	if clk == nil {
		clk = clock.New()
	}
	return &SQLStore{db: db, driver: db.DriverName(), clock: clk}
}

type userRow struct {
	ID           int64          `db:"id"`
	Username     string         `db:"username"`
	PasswordHash string         `db:"password_hash"`
	FirstName    sql.NullString `db:"first_name"`
	LastName     sql.NullString `db:"last_name"`
	Email        sql.NullString `db:"email"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r userRow) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName.String,
		LastName:     r.LastName.String,
		Email:        r.Email.String,
		CreatedAt:    r.CreatedAt,
	}
}

type medicationRow struct {
	ID                 int64          `db:"id"`
	UserID             int64          `db:"user_id"`
	Name               string         `db:"name"`
	Dosage             string         `db:"dosage"`
	MedicationType     string         `db:"medication_type"`
	Schedule           string         `db:"schedule"`
	Status             string         `db:"status"`
	SupplyRemaining    sql.NullInt64  `db:"supply_remaining"`
	HasInteraction     bool           `db:"has_interaction"`
	InteractionDetails sql.NullString `db:"interaction_details"`
	NextDueAt          sql.NullTime   `db:"next_due_at"`
}

func (r medicationRow) toModel() *models.Medication {
	m := &models.Medication{
		ID:             r.ID,
		UserID:         r.UserID,
		Name:           r.Name,
		Dosage:         r.Dosage,
		MedicationType: models.MedicationType(r.MedicationType),
		Schedule:       r.Schedule,
		Status:         models.Status(r.Status),
		HasInteraction: r.HasInteraction,
	}
	if r.SupplyRemaining.Valid {
		v := int(r.SupplyRemaining.Int64)
		m.SupplyRemaining = &v
	}
	if r.InteractionDetails.Valid {
		v := r.InteractionDetails.String
		m.InteractionDetails = &v
	}
	if r.NextDueAt.Valid {
		v := r.NextDueAt.Time
		m.NextDueAt = &v
	}
	return m
}

type activityRow struct {
	ID           int64         `db:"id"`
	UserID       int64         `db:"user_id"`
	ActivityType string        `db:"activity_type"`
	Description  string        `db:"description"`
	MedicationID sql.NullInt64 `db:"medication_id"`
	CreatedAt    time.Time     `db:"created_at"`
}

func (r activityRow) toModel() *models.Activity {
	a := &models.Activity{
		ID:           r.ID,
		UserID:       r.UserID,
		ActivityType: r.ActivityType,
		Description:  r.Description,
		CreatedAt:    r.CreatedAt,
	}
	if r.MedicationID.Valid {
		v := r.MedicationID.Int64
		a.MedicationID = &v
	}
	return a
}

type messageRow struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Content   string    `db:"content"`
	IsBot     bool      `db:"is_bot"`
	CreatedAt time.Time `db:"created_at"`
}

func (r messageRow) toModel() *models.Message {
	return &models.Message{ID: r.ID, UserID: r.UserID, Content: r.Content, IsBot: r.IsBot, CreatedAt: r.CreatedAt}
}

const (
	userColumns       = `id, username, password_hash, first_name, last_name, email, created_at`
	medicationColumns = `id, user_id, name, dosage, medication_type, schedule, status, supply_remaining, has_interaction, interaction_details, next_due_at`
	activityColumns   = `id, user_id, activity_type, description, medication_id, created_at`
	messageColumns    = `id, user_id, content, is_bot, created_at`
)

// insert runs an INSERT and returns the new id; postgres has no LastInsertId.
func (s *SQLStore) insert(ctx context.Context, ex sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	if s.driver == DriverPostgres {
		var id int64
		if err := ex.QueryRowxContext(ctx, s.db.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := ex.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (s *SQLStore) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.clock.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists,
		s.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`), user.Username,
	); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, ErrDuplicate
	}
	id, err := s.insert(ctx, tx,
		`INSERT INTO users (username, password_hash, first_name, last_name, email, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, user.PasswordHash, nullString(user.FirstName), nullString(user.LastName), nullString(user.Email), user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user: %w", err)
	}
	user.ID = id
	return &user, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) CreateMedication(ctx context.Context, med models.Medication) (*models.Medication, error) {
	med.Normalize()
	if err := med.Validate(); err != nil {
		return nil, err
	}
	id, err := s.insert(ctx, s.db,
		`INSERT INTO medications (user_id, name, dosage, medication_type, schedule, status, supply_remaining, has_interaction, interaction_details, next_due_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		med.UserID, med.Name, med.Dosage, string(med.MedicationType), med.Schedule, string(med.Status),
		med.SupplyRemaining, med.HasInteraction, med.InteractionDetails, utcPtr(med.NextDueAt),
	)
	if err != nil {
		return nil, fmt.Errorf("create medication: %w", err)
	}
	med.ID = id
	return med.Clone(), nil
}

func (s *SQLStore) GetMedication(ctx context.Context, id int64) (*models.Medication, error) {
	return s.getMedication(ctx, s.db, id)
}

func (s *SQLStore) getMedication(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Medication, error) {
	var row medicationRow
	err := sqlx.GetContext(ctx, q, &row, s.db.Rebind(`SELECT `+medicationColumns+` FROM medications WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListMedications(ctx context.Context, userID int64) ([]*models.Medication, error) {
	var rows []medicationRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT `+medicationColumns+` FROM medications WHERE user_id = ? ORDER BY id ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	out := make([]*models.Medication, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) UpdateMedication(ctx context.Context, id int64, patch models.MedicationPatch) (*models.Medication, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := s.getMedication(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	updated, err := patch.Apply(current)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, s.db.Rebind(
		`UPDATE medications SET name = ?, dosage = ?, medication_type = ?, schedule = ?, status = ?,
		 supply_remaining = ?, has_interaction = ?, interaction_details = ?, next_due_at = ? WHERE id = ?`),
		updated.Name, updated.Dosage, string(updated.MedicationType), updated.Schedule, string(updated.Status),
		updated.SupplyRemaining, updated.HasInteraction, updated.InteractionDetails, utcPtr(updated.NextDueAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update medication: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit medication: %w", err)
	}
	return updated, nil
}

func (s *SQLStore) DeleteMedication(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM medications WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateActivity(ctx context.Context, activity models.Activity) (*models.Activity, error) {
	if err := activity.Validate(); err != nil {
		return nil, err
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.clock.Now()
	}
	activity.CreatedAt = activity.CreatedAt.UTC()
	id, err := s.insert(ctx, s.db,
		`INSERT INTO activities (user_id, activity_type, description, medication_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		activity.UserID, activity.ActivityType, activity.Description, activity.MedicationID, activity.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	activity.ID = id
	return &activity, nil
}

func (s *SQLStore) ListActivities(ctx context.Context, userID int64) ([]*models.Activity, error) {
	var rows []activityRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT `+activityColumns+` FROM activities WHERE user_id = ? ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	out := make([]*models.Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	// the driver's timestamp precision can collapse distinct instants
	sortActivities(out)
	return out, nil
}

func (s *SQLStore) CreateMessages(ctx context.Context, msgs ...models.Message) ([]*models.Message, error) {
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			return nil, err
		}
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC()
	out := make([]*models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		id, err := s.insert(ctx, tx,
			`INSERT INTO messages (user_id, content, is_bot, created_at) VALUES (?, ?, ?, ?)`,
			msg.UserID, msg.Content, msg.IsBot, msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		msg.ID = id
		out = append(out, &msg)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit messages: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListMessages(ctx context.Context, userID int64) ([]*models.Message, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT `+messageColumns+` FROM messages WHERE user_id = ? ORDER BY created_at ASC, id ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]*models.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	sortMessages(out)
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
