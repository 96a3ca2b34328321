package models

// Client is the billing identity resolved from the Clients list. It is
// owned by ClickUp; this is a read-only snapshot keyed by exact task
// name match.
type Client struct {
	TaskID          string `json:"task_id"`
	Name            string `json:"name"`
	ShortCode       string `json:"short_code"` // e.g. "JK", falls back to "CL"
	Street          string `json:"street"`
	City            string `json:"city"`
	Zip             string `json:"zip"`
	Country         string `json:"country"`
	CompanyID       string `json:"company_id"` // IČO
	TaxID           string `json:"tax_id"`     // DIČ
	Email           string `json:"email"`
	DefaultDueDays  int    `json:"default_due_days"`
	ShowTrackedTime bool   `json:"show_tracked_time"` // Adds the tracked-time column to the PDF
}

// Address renders the single-line postal address used in emails and on
// the invoice PDF.
func (c *Client) Address() string {
	return c.Street + ", " + c.Zip + " " + c.City + ", " + c.Country
}
