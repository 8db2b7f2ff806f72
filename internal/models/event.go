package models

import "time"

// TimecardEventType names a published lifecycle transition.
type TimecardEventType string

const (
	TimecardEventSubmitted    TimecardEventType = "submitted"
	TimecardEventApproved     TimecardEventType = "approved"
	TimecardEventRejected     TimecardEventType = "rejected"
	TimecardEventAutoApproved TimecardEventType = "auto_approved"
	TimecardEventDisputed     TimecardEventType = "disputed"
	TimecardEventResolved     TimecardEventType = "dispute_resolved"
	TimecardEventPaid         TimecardEventType = "paid"
)

// TimecardEvent is the payload pushed to subscribers on every transition.
type TimecardEvent struct {
	Type       TimecardEventType `json:"type"`
	TimecardID string            `json:"timecardId"`
	NurseID    string            `json:"nurseId"`
	ClientID   string            `json:"clientId"`
	ActorID    string            `json:"actorId,omitempty"`
	Status     TimecardStatus    `json:"status"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewTimecardEvent builds an event from the timecard's current state.
func NewTimecardEvent(eventType TimecardEventType, tc *Timecard, actorID string, at time.Time) TimecardEvent {
	return TimecardEvent{
		Type:       eventType,
		TimecardID: tc.ID,
		NurseID:    tc.NurseID,
		ClientID:   tc.ClientID,
		ActorID:    actorID,
		Status:     tc.Status,
		OccurredAt: at,
	}
}
