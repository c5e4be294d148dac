// Package tabular defines the record provider boundary: the clients,
// jobs, and invoices the portal reads from an external tabular store.
package tabular

import "context"

// Client is one row of the client register. A client owns jobs and
// invoices and is the entity users subscribe to for notifications.
type Client struct {
	ID        string
	Code      string // short code addressing the client's file folder
	Name      string
	Contact   string
	Email     string
	Phone     string
	Notes     string
	ChannelID string
	CreatedAt string
	Archived  bool
	AuthCode  string // one-time secret handed to the client for /auth
}

// Job is a tracked work item. Status and dates are free-form strings
// owned by the store; the portal formats them but never interprets
// them beyond case-insensitive matching.
type Job struct {
	ID          string
	Code        string
	ClientID    string
	Title       string
	Status      string
	Priority    string
	Deadline    string
	Budget      string
	Description string
	Notes       string
	CreatedAt   string
	ClosedAt    string
	UpdatedAt   string
}

// Invoice is one row of the invoice register.
type Invoice struct {
	ID        string
	ClientID  string
	JobID     string
	Status    string
	Total     string
	DueAt     string
	CreatedAt string
	LineItems string // JSON array of {description, price}, may be empty
	Notes     string
	Terms     string
}

// NewClient carries the fields appended to the store when an intake
// form is submitted.
type NewClient struct {
	Name     string
	Email    string
	Phone    string
	Notes    string
	Code     string
	AuthCode string
}

// ClientRef identifies a freshly created client.
type ClientRef struct {
	ID       string
	Code     string
	AuthCode string
}

// Provider is the read/append interface over the external tabular
// store. Implementations: sheets.Client (Google Sheets) and
// localstore.Store (SQLite, development and tests).
type Provider interface {
	Clients(ctx context.Context) ([]Client, error)
	Jobs(ctx context.Context) ([]Job, error)
	Invoices(ctx context.Context) ([]Invoice, error)

	// ClientJobs and ClientInvoices filter by owning client ID.
	ClientJobs(ctx context.Context, clientID string) ([]Job, error)
	ClientInvoices(ctx context.Context, clientID string) ([]Invoice, error)

	// FindClientByAuthCode returns ErrNotFound when no client holds
	// the code.
	FindClientByAuthCode(ctx context.Context, code string) (Client, error)

	AppendClient(ctx context.Context, c NewClient) (ClientRef, error)
}
