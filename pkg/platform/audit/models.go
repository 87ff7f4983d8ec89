package audit

import (
	"context"
	"time"

	id "kyc/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: every
	// change to a user's KYC score or status, and every receipt that fed it.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging.
	// These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID tracks who performed the action when different from UserID,
	// e.g. an admin verifying a user manually.
	ActorID string
	// DeviceFingerprint identifies the client that triggered the action.
	DeviceFingerprint string
}

type AuditEvent string

const (
	// Receipt events
	EventReceiptSubmitted   AuditEvent = "receipt_submitted"
	EventReceiptProcessed   AuditEvent = "receipt_processed"
	EventReceiptFailed      AuditEvent = "receipt_failed"
	EventReceiptReprocessed AuditEvent = "receipt_reprocessed"
	EventReceiptDeleted     AuditEvent = "receipt_deleted"

	// Verification events
	EventScoreCalculated    AuditEvent = "kyc_score_calculated"
	EventStatusChanged      AuditEvent = "kyc_status_changed"
	EventUserManuallyVerify AuditEvent = "user_manually_verified"
	EventScoreViewed        AuditEvent = "kyc_score_viewed"

	// Admin events
	EventScoresExported AuditEvent = "scores_exported"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventReceiptSubmitted:   CategoryCompliance,
	EventReceiptDeleted:     CategoryCompliance,
	EventScoreCalculated:    CategoryCompliance,
	EventStatusChanged:      CategoryCompliance,
	EventUserManuallyVerify: CategoryCompliance,

	EventReceiptProcessed:   CategoryOperations,
	EventReceiptFailed:      CategoryOperations,
	EventReceiptReprocessed: CategoryOperations,
	EventScoreViewed:        CategoryOperations,
	EventScoresExported:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader returns the trail recorded for one user, newest first.
type Reader interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

// ComplianceEvent captures regulatory-significant actions requiring guaranteed persistence.
// Use with the compliance publisher for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp         time.Time // set automatically if zero
	UserID            id.UserID // required
	Subject           string    // what the action was about, e.g. a receipt id
	Action            string
	Decision          string // outcome, e.g. the resulting KYC status
	Reason            string
	RequestID         string
	ActorID           string
	DeviceFingerprint string
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the stored Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:          CategoryCompliance,
		Timestamp:         e.Timestamp,
		UserID:            e.UserID,
		Subject:           e.Subject,
		Action:            e.Action,
		Decision:          e.Decision,
		Reason:            e.Reason,
		RequestID:         e.RequestID,
		ActorID:           e.ActorID,
		DeviceFingerprint: e.DeviceFingerprint,
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
type OpsEvent struct {
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	RequestID string
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToEvent converts to the stored Event shape.
func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		UserID:    e.UserID,
		Subject:   e.Subject,
		Action:    e.Action,
		RequestID: e.RequestID,
	}
}
