package domain

import "time"

// ActorType identifies who triggered an audited action.
type ActorType string

const (
	ActorSystem  ActorType = "system"
	ActorAdmin   ActorType = "admin"
	ActorPartner ActorType = "partner"
)

// Actor is the subject recorded on audit entries.
type Actor struct {
	Type    ActorType
	ID      string
	IP      string
	Country string
}

// SystemActor is used by background jobs.
var SystemActor = Actor{Type: ActorSystem, ID: "system"}

// AuditEntry is an append-only record of a state change.
type AuditEntry struct {
	ID         string
	Actor      Actor
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
	CreatedAt  time.Time
}

const (
	AuditCampaignClosed          = "campaign.closed"
	AuditPayoutCreated           = "payout.created"
	AuditPayoutCompleted         = "payout.completed"
	AuditPayoutFailed            = "payout.failed"
	AuditPayoutAutomationStarted = "payout.automation.started"
	AuditPayoutAutomationPending = "payout.automation.pending"
	AuditPayoutRecipientUpdated  = "payout.recipient.updated"
	AuditPayoutNote              = "payout.note"
)
