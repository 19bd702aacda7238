package models

import (
	"strings"
	"time"
)

type MedicationType string

const (
	MedicationPrescription MedicationType = "prescription"
	MedicationSupplement   MedicationType = "supplement"
)

// Status is set by callers. The store never derives it from the clock.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusTaken    Status = "taken"
	StatusOverdue  Status = "overdue"
)

func (t MedicationType) Valid() bool {
	return t == MedicationPrescription || t == MedicationSupplement
}

func (s Status) Valid() bool {
	return s == StatusUpcoming || s == StatusTaken || s == StatusOverdue
}

type Medication struct {
	ID                 int64          `json:"id"`
	UserID             int64          `json:"userId"`
	Name               string         `json:"name"`
	Dosage             string         `json:"dosage"`
	MedicationType     MedicationType `json:"medicationType"`
	Schedule           string         `json:"schedule"`
	Status             Status         `json:"status"`
	SupplyRemaining    *int           `json:"supplyRemaining"`
	HasInteraction     bool           `json:"hasInteraction"`
	InteractionDetails *string        `json:"interactionDetails"`
	NextDueAt          *time.Time     `json:"nextDueAt"`
}

// Normalize trims the free-text fields the way both create and update store them.
func (m *Medication) Normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Dosage = strings.TrimSpace(m.Dosage)
	m.Schedule = strings.TrimSpace(m.Schedule)
}

func (m *Medication) Validate() error {
	if m.UserID <= 0 {
		return fieldError("userId", "is required")
	}
	if isBlank(m.Name) {
		return fieldError("name", "is required")
	}
	if isBlank(m.Dosage) {
		return fieldError("dosage", "is required")
	}
	if !m.MedicationType.Valid() {
		return fieldError("medicationType", "must be one of prescription, supplement")
	}
	if isBlank(m.Schedule) {
		return fieldError("schedule", "is required")
	}
	if !m.Status.Valid() {
		return fieldError("status", "must be one of upcoming, taken, overdue")
	}
	if m.SupplyRemaining != nil && *m.SupplyRemaining < 0 {
		return fieldError("supplyRemaining", "cannot be negative")
	}
	return nil
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (m *Medication) Clone() *Medication {
	if m == nil {
		return nil
	}
	out := *m
	if m.SupplyRemaining != nil {
		v := *m.SupplyRemaining
		out.SupplyRemaining = &v
	}
	if m.InteractionDetails != nil {
		v := *m.InteractionDetails
		out.InteractionDetails = &v
	}
	if m.NextDueAt != nil {
		v := *m.NextDueAt
		out.NextDueAt = &v
	}
	return &out
}

// MedicationPatch is a partial update. A nil field leaves the stored value
// untouched; the owner cannot be changed through a patch.
type MedicationPatch struct {
	Name               *string         `json:"name"`
	Dosage             *string         `json:"dosage"`
	MedicationType     *MedicationType `json:"medicationType"`
	Schedule           *string         `json:"schedule"`
	Status             *Status         `json:"status"`
	SupplyRemaining    *int            `json:"supplyRemaining"`
	HasInteraction     *bool           `json:"hasInteraction"`
	InteractionDetails *string         `json:"interactionDetails"`
	NextDueAt          *time.Time      `json:"nextDueAt"`
}

// Empty reports whether the patch sets nothing.
func (p MedicationPatch) Empty() bool {
	return p.Name == nil && p.Dosage == nil && p.MedicationType == nil && p.Schedule == nil &&
		p.Status == nil && p.SupplyRemaining == nil && p.HasInteraction == nil &&
		p.InteractionDetails == nil && p.NextDueAt == nil
}

// OnlyStatus reports whether the patch sets status and nothing else.
func (p MedicationPatch) OnlyStatus() bool {
	if p.Status == nil {
		return false
	}
	rest := p
	rest.Status = nil
	return rest.Empty()
}

// Apply merges the patch onto a copy of m and validates the result.
func (p MedicationPatch) Apply(m *Medication) (*Medication, error) {
	out := m.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Dosage != nil {
		out.Dosage = *p.Dosage
	}
	if p.MedicationType != nil {
		out.MedicationType = *p.MedicationType
	}
	if p.Schedule != nil {
		out.Schedule = *p.Schedule
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.SupplyRemaining != nil {
		v := *p.SupplyRemaining
		out.SupplyRemaining = &v
	}
	if p.HasInteraction != nil {
		out.HasInteraction = *p.HasInteraction
	}
	if p.InteractionDetails != nil {
		v := *p.InteractionDetails
		out.InteractionDetails = &v
	}
	if p.NextDueAt != nil {
		v := *p.NextDueAt
		out.NextDueAt = &v
	}
	out.Normalize()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
