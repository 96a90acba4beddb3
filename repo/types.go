// Package repo implements the durable repository for the docwallet
// engine. It is the single source of truth for documents, commands,
// schedules, conditional orders, prices, per-document configuration,
// encrypted secrets and the audit trail. All state is persisted in an
// embedded bbolt database; every operation is individually atomic and
// multi-record operations run inside one write transaction.
package repo

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a command.
type Status string

const (
	StatusInvalid         Status = "INVALID"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusExecuting       Status = "EXECUTING"
	StatusExecuted        Status = "EXECUTED"
	StatusFailed          Status = "FAILED"
	StatusRejected        Status = "REJECTED"
)

// Terminal reports whether the status is write-once final.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusFailed || s == StatusRejected
}

// Editable reports whether a user edit of the raw command may still
// re-parse the record. Anything at or past APPROVED is locked.
func (s Status) Editable() bool {
	return s == StatusInvalid || s == StatusPendingApproval
}

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrIllegalTransition is returned when a status change violates the
	// command state machine. This indicates a programming error in the
	// caller; it is never retried.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Doc is one tracked document.
type Doc struct {
	DocID            string    `json:"doc_id"`
	DisplayName      string    `json:"display_name"`
	PrimaryAddress   string    `json:"primary_address,omitempty"`
	SecondaryAddress string    `json:"secondary_address,omitempty"`
	LastUserHash     string    `json:"last_user_hash,omitempty"`
	PollFailures     int       `json:"poll_failures"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Command is one user-authored instruction. It mirrors a row in the
// document's Commands table; the two share CmdID and Raw after poll
// reconciliation.
type Command struct {
	CmdID      string    `json:"cmd_id"`
	DocID      string    `json:"doc_id"`
	Raw        string    `json:"raw_command"`
	ParsedJSON string    `json:"parsed_json,omitempty"`
	Status     Status    `json:"status"`
	TxRef      string    `json:"tx_ref,omitempty"`
	ResultText string    `json:"result_text,omitempty"`
	ErrorText  string    `json:"error_text,omitempty"`
	Seq        uint64    `json:"seq"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ScheduleStatus is the lifecycle state of a schedule.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "ACTIVE"
	ScheduleCancelled ScheduleStatus = "CANCELLED"
)

// Schedule spawns one approved command per interval.
type Schedule struct {
	ScheduleID    string         `json:"schedule_id"`
	DocID         string         `json:"doc_id"`
	IntervalHours float64        `json:"interval_hours"`
	InnerCommand  string         `json:"inner_command_text"`
	NextRunAt     time.Time      `json:"next_run_at"`
	TotalRuns     int            `json:"total_runs"`
	Status        ScheduleStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// OrderType discriminates conditional orders.
type OrderType string

const (
	OrderStopLoss   OrderType = "STOP_LOSS"
	OrderTakeProfit OrderType = "TAKE_PROFIT"
)

// OrderStatus is the lifecycle state of a conditional order.
type OrderStatus string

const (
	OrderActive    OrderStatus = "ACTIVE"
	OrderTriggered OrderStatus = "TRIGGERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// ConditionalOrder is a persisted trigger rule evaluated by the price
// tick. Triggering is one-shot: ACTIVE transitions to TRIGGERED exactly
// once, atomically with recording the spawned command id.
type ConditionalOrder struct {
	OrderID        string      `json:"order_id"`
	DocID          string      `json:"doc_id"`
	Type           OrderType   `json:"type"`
	Base           string      `json:"base"`
	Quote          string      `json:"quote"`
	TriggerPrice   float64     `json:"trigger_price"`
	Qty            string      `json:"qty"`
	Status         OrderStatus `json:"status"`
	TriggeredCmdID string      `json:"triggered_cmd_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// PriceSnapshot is the cached market price for one pair.
type PriceSnapshot struct {
	Pair      string    `json:"pair"`
	Mid       float64   `json:"mid"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditEvent is one append-only audit line for a document.
type AuditEvent struct {
	DocID     string `json:"doc_id"`
	Timestamp string `json:"timestamp_iso"`
	Message   string `json:"message"`
}

// Activity is one append-only recent-activity entry for a document. The
// per-document history is capped.
type Activity struct {
	DocID     string `json:"doc_id"`
	Timestamp string `json:"timestamp_iso"`
	Type      string `json:"type"`
	Details   string `json:"details"`
	TxRef     string `json:"tx_ref,omitempty"`
}
