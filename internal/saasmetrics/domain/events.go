package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RecalcEventKind enumerates the business events that drive reactive
// snapshot recomputation.
type RecalcEventKind string

const (
	EventInvoicePaid     RecalcEventKind = "invoice_paid"
	EventInvoiceCreated  RecalcEventKind = "invoice_created"
	EventTenantActivated RecalcEventKind = "tenant_activated"
	EventTenantCancelled RecalcEventKind = "tenant_cancelled"
	EventPlanChanged     RecalcEventKind = "plan_changed"
	EventManualTrigger   RecalcEventKind = "manual_trigger"
)

// Valid reports whether the kind belongs to the closed event set.
func (k RecalcEventKind) Valid() bool {
	switch k {
	case EventInvoicePaid, EventInvoiceCreated, EventTenantActivated,
		EventTenantCancelled, EventPlanChanged, EventManualTrigger:
		return true
	}
	return false
}

// RecalcEvent carries one business event into the recalculation trigger.
// Tenant and invoice references are optional; OccurredAt defaults to the
// engine clock when zero.
type RecalcEvent struct {
	Kind       RecalcEventKind `json:"kind"`
	TenantID   *snowflake.ID   `json:"tenant_id,omitempty"`
	InvoiceID  *snowflake.ID   `json:"invoice_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
