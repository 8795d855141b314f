package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeVaultInitialized
	EventTypeDeposited
	EventTypeWithdrawn
	EventTypeLoanIssued
	EventTypeLoanRepaid
	EventTypeLoanLiquidated
	EventTypeBorrowerAuthorized
	EventTypeBorrowerRevoked
	EventTypeIssuerAuthorized
	EventTypeIssuerRevoked
	EventTypeOriginationFeeUpdated
	EventTypeTreasuryUpdated
	EventTypeOwnershipTransferred
	EventTypeInsurancePoolFunded
	EventTypeFeesCollected
)

// Envelope wraps every emitted vault event. Sequence is the monotonic
// per-vault operation counter assigned at commit time.
type Envelope struct {
	EventID   uuid.UUID   `json:"event_id"`
	Sequence  int64       `json:"sequence"`
	Type      EventType   `json:"type"`
	TypeName  string      `json:"type_name"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Payload is implemented by every event payload type.
type Payload interface {
	EventType() EventType
}

// NewEnvelope wraps a payload with identity, sequence and timestamp.
func NewEnvelope(sequence int64, ts time.Time, payload Payload) Envelope {
	return Envelope{
		EventID:   uuid.New(),
		Sequence:  sequence,
		Type:      payload.EventType(),
		TypeName:  payload.EventType().String(),
		Timestamp: ts,
		Payload:   payload,
	}
}

func (et EventType) String() string {
	switch et {
	case EventTypeVaultInitialized:
		return "VaultInitialized"
	case EventTypeDeposited:
		return "Deposited"
	case EventTypeWithdrawn:
		return "Withdrawn"
	case EventTypeLoanIssued:
		return "LoanIssued"
	case EventTypeLoanRepaid:
		return "LoanRepaid"
	case EventTypeLoanLiquidated:
		return "LoanLiquidated"
	case EventTypeBorrowerAuthorized:
		return "BorrowerAuthorized"
	case EventTypeBorrowerRevoked:
		return "BorrowerRevoked"
	case EventTypeIssuerAuthorized:
		return "IssuerAuthorized"
	case EventTypeIssuerRevoked:
		return "IssuerRevoked"
	case EventTypeOriginationFeeUpdated:
		return "OriginationFeeUpdated"
	case EventTypeTreasuryUpdated:
		return "TreasuryUpdated"
	case EventTypeOwnershipTransferred:
		return "OwnershipTransferred"
	case EventTypeInsurancePoolFunded:
		return "InsurancePoolFunded"
	case EventTypeFeesCollected:
		return "FeesCollected"
	default:
		return "Unknown"
	}
}
