package tabular

import "errors"

var (
	// ErrNotFound is returned by lookups that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable wraps transport-level failures reaching the store.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrMalformed wraps responses the provider could not interpret.
	ErrMalformed = errors.New("malformed provider response")
)

// FilterJobs returns the jobs owned by clientID, preserving order.
func FilterJobs(jobs []Job, clientID string) []Job {
	var out []Job
	for _, j := range jobs {
		if j.ClientID == clientID {
			out = append(out, j)
		}
	}
	return out
}

// FilterInvoices returns the invoices owned by clientID, preserving order.
func FilterInvoices(invoices []Invoice, clientID string) []Invoice {
	var out []Invoice
	for _, inv := range invoices {
		if inv.ClientID == clientID {
			out = append(out, inv)
		}
	}
	return out
}
