package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // record created; provider not yet acknowledged
	PaymentStatusProcessing PaymentStatus = "processing" // provider accepted the collect request
	PaymentStatusSuccess    PaymentStatus = "success"    // provider confirmed the transfer
	PaymentStatusFailed     PaymentStatus = "failed"     // provider rejected, or timed out on our side
	PaymentStatusCancelled  PaymentStatus = "cancelled"  // user/admin cancel
	PaymentStatusRefunded   PaymentStatus = "refunded"   // settled then returned
)

// Terminal reports whether no further automatic transition may leave s.
// Refunded is reachable from success only, by explicit action.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// transitions is the allowed forward edge set. Anything not listed is rejected,
// which is what makes a late conflicting webhook a no-op.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusSuccess:    {PaymentStatusRefunded},
}

// CanTransition reports whether from -> to is an allowed status change.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type PaymentPurpose string

const (
	PurposeRegistrationFee PaymentPurpose = "registration_fee"
	PurposeTestFee         PaymentPurpose = "test_fee"
	PurposeSubscription    PaymentPurpose = "subscription"
	PurposeOther           PaymentPurpose = "other"
)

func (p PaymentPurpose) Valid() bool {
	switch p {
	case PurposeRegistrationFee, PurposeTestFee, PurposeSubscription, PurposeOther:
		return true
	}
	return false
}

// Payment records one attempted mobile-money transfer. Rows are never deleted;
// they are the financial audit trail.
type Payment struct {
	ID            string // UUID
	UserID        string // UUID
	TransactionID string // locally generated reference (ULID), unique
	ProviderTxID  *string
	Amount        int64 // minor currency units
	PhoneNumber   string
	Currency      string // "XAF"
	Purpose       PaymentPurpose
	Description   string
	Status        PaymentStatus
	FailureReason string

	// Webhook bookkeeping
	WebhookReceived    bool
	WebhookAttempts    int
	LastWebhookPayload []byte

	InitiatedAt time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time

	// Link to the subscription this payment funds (subscription purpose only).
	SubscriptionID *string
}

func (p *Payment) IsZero() bool { return p == nil || p.ID == "" }
