package models

import "time"

// Known activity types. The set is open; any non-empty type is accepted.
const (
	ActivityMedicationTaken       = "medication_taken"
	ActivityLowSupply             = "low_supply"
	ActivityAppointmentScheduled  = "appointment_scheduled"
	ActivityMedicationInteraction = "medication_interaction"
	ActivityPrescriptionRefilled  = "prescription_refilled"
)

// Activity is an append-only feed entry. MedicationID is a weak reference:
// deleting the medication leaves the activity in place.
type Activity struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	ActivityType string    `json:"activityType"`
	Description  string    `json:"description"`
	MedicationID *int64    `json:"medicationId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (a *Activity) Validate() error {
	if a.UserID <= 0 {
		return fieldError("userId", "is required")
	}
	if isBlank(a.ActivityType) {
		return fieldError("activityType", "is required")
	}
	if isBlank(a.Description) {
		return fieldError("description", "is required")
	}
	return nil
}
