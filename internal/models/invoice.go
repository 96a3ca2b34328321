package models

import "time"

// InvoiceLineItem represents a single line item within an invoice.
// It is derived 1:1 from a candidate project task at build time and is
// immutable once computed.
type InvoiceLineItem struct {
	TaskID       string  `json:"task_id"`
	Description  string  `json:"description"` // Task name, denormalized for display
	HourlyRate   float64 `json:"hourly_rate"`
	TotalPrice   float64 `json:"total_price"`
	TrackedHours float64 `json:"tracked_hours,omitempty"` // 0 when the task has no tracked time
}

// Invoice is the transient value object built per webhook invocation.
// It is never stored locally; it is serialized once into the ClickUp
// create-task call and into the generated PDF, then discarded.
type Invoice struct {
	Name         string            `json:"name"` // e.g. F2026-001_AC
	Number       int               `json:"number"`
	IssueDate    time.Time         `json:"issue_date"`
	DueDate      time.Time         `json:"due_date"`
	Client       Client            `json:"client"` // Snapshot at build time
	Items        []InvoiceLineItem `json:"items"`
	Total        float64           `json:"total"`
	CurrencyCode string            `json:"currency_code"`
}
