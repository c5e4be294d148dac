// Package sheets implements tabular.Provider on top of the Google
// Sheets values API. Rows are mapped by the header row, so column
// order in the spreadsheet is not significant.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/halroad/progressbot/internal/gauth"
	"github.com/halroad/progressbot/internal/tabular"
)

const defaultBaseURL = "https://sheets.googleapis.com"

// Ranges read and written by the provider.
const (
	clientsRange  = "Clients!A:Z"
	jobsRange     = "Jobs!A:Z"
	invoicesRange = "Invoices!A:Z"
	appendRange   = "Clients!A:K"
)

// Client reads and appends spreadsheet rows for one sheet ID.
type Client struct {
	baseURL    string
	sheetID    string
	tokens     gauth.TokenSource
	httpClient *http.Client
}

// New creates a Client for the given spreadsheet.
func New(sheetID string, tokens gauth.TokenSource) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		sheetID:    sheetID,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithBaseURL creates a Client against a non-default API host
// (used by tests).
func NewWithBaseURL(sheetID string, tokens gauth.TokenSource, baseURL string) *Client {
	c := New(sheetID, tokens)
	c.baseURL = baseURL
	return c
}

// valuesResponse mirrors the JSON returned by values.get.
type valuesResponse struct {
	Values [][]string `json:"values"`
}

func (c *Client) getValues(ctx context.Context, readRange string) ([][]string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}

	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s", c.baseURL, c.sheetID, url.PathEscape(readRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating values request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: values.get returned %d", tabular.ErrUnavailable, resp.StatusCode)
	}

	var vr valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrMalformed, err)
	}
	return vr.Values, nil
}

// rowMap resolves header titles to column indexes. Matching is
// case-insensitive and ignores spaces, so "Client ID" and "clientId"
// name the same column.
type rowMap struct {
	columns map[string]int
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), " ", ""))
}

func newRowMap(header []string) rowMap {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[normalizeHeader(h)] = i
	}
	return rowMap{columns: columns}
}

func (m rowMap) get(row []string, name string) string {
	idx, ok := m.columns[normalizeHeader(name)]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Clients returns every row of the Clients sheet.
func (c *Client) Clients(ctx context.Context) ([]tabular.Client, error) {
	rows, err := c.getValues(ctx, clientsRange)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	m := newRowMap(rows[0])
	clients := make([]tabular.Client, 0, len(rows)-1)
	for _, row := range rows[1:] {
		clients = append(clients, tabular.Client{
			ID:        m.get(row, "ID"),
			Code:      m.get(row, "Code"),
			Name:      m.get(row, "Name"),
			Contact:   m.get(row, "Contact"),
			Email:     m.get(row, "Email"),
			Phone:     m.get(row, "Phone"),
			Notes:     m.get(row, "Notes"),
			ChannelID: m.get(row, "Channel ID"),
			CreatedAt: m.get(row, "Created At"),
			Archived:  strings.EqualFold(m.get(row, "Archived"), "true"),
			AuthCode:  m.get(row, "Auth Code"),
		})
	}
	return clients, nil
}

// Jobs returns every row of the Jobs sheet.
func (c *Client) Jobs(ctx context.Context) ([]tabular.Job, error) {
	rows, err := c.getValues(ctx, jobsRange)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	m := newRowMap(rows[0])
	jobs := make([]tabular.Job, 0, len(rows)-1)
	for _, row := range rows[1:] {
		jobs = append(jobs, tabular.Job{
			ID:          m.get(row, "ID"),
			Code:        m.get(row, "Code"),
			ClientID:    m.get(row, "Client ID"),
			Title:       m.get(row, "Title"),
			Status:      m.get(row, "Status"),
			Priority:    m.get(row, "Priority"),
			Deadline:    m.get(row, "Deadline"),
			Budget:      m.get(row, "Budget"),
			Description: m.get(row, "Description"),
			Notes:       m.get(row, "Notes"),
			CreatedAt:   m.get(row, "Created At"),
			ClosedAt:    m.get(row, "Closed At"),
			UpdatedAt:   m.get(row, "Updated At"),
		})
	}
	return jobs, nil
}

// Invoices returns every row of the Invoices sheet.
func (c *Client) Invoices(ctx context.Context) ([]tabular.Invoice, error) {
	rows, err := c.getValues(ctx, invoicesRange)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	m := newRowMap(rows[0])
	invoices := make([]tabular.Invoice, 0, len(rows)-1)
	for _, row := range rows[1:] {
		invoices = append(invoices, tabular.Invoice{
			ID:        m.get(row, "ID"),
			ClientID:  m.get(row, "Client ID"),
			JobID:     m.get(row, "Job ID"),
			Status:    m.get(row, "Status"),
			Total:     m.get(row, "Total"),
			DueAt:     m.get(row, "Due At"),
			CreatedAt: m.get(row, "Created At"),
			LineItems: m.get(row, "Line Items"),
			Notes:     m.get(row, "Notes"),
			Terms:     m.get(row, "Terms"),
		})
	}
	return invoices, nil
}

// ClientJobs returns the jobs owned by clientID.
func (c *Client) ClientJobs(ctx context.Context, clientID string) ([]tabular.Job, error) {
	jobs, err := c.Jobs(ctx)
	if err != nil {
		return nil, err
	}
	return tabular.FilterJobs(jobs, clientID), nil
}

// ClientInvoices returns the invoices owned by clientID.
func (c *Client) ClientInvoices(ctx context.Context, clientID string) ([]tabular.Invoice, error) {
	invoices, err := c.Invoices(ctx)
	if err != nil {
		return nil, err
	}
	return tabular.FilterInvoices(invoices, clientID), nil
}

// FindClientByAuthCode scans the client register for an exact auth
// code match.
func (c *Client) FindClientByAuthCode(ctx context.Context, code string) (tabular.Client, error) {
	clients, err := c.Clients(ctx)
	if err != nil {
		return tabular.Client{}, err
	}
	for _, cl := range clients {
		if cl.AuthCode != "" && cl.AuthCode == code {
			return cl, nil
		}
	}
	return tabular.Client{}, tabular.ErrNotFound
}

// appendRequest is the JSON body for values.append.
type appendRequest struct {
	Values [][]string `json:"values"`
}

// AppendClient appends a client row in the register's column order,
// allocating the next numeric ID from the existing rows.
func (c *Client) AppendClient(ctx context.Context, nc tabular.NewClient) (tabular.ClientRef, error) {
	clients, err := c.Clients(ctx)
	if err != nil {
		return tabular.ClientRef{}, err
	}
	maxID := 0
	for _, cl := range clients {
		if id, err := strconv.Atoi(cl.ID); err == nil && id > maxID {
			maxID = id
		}
	}
	nextID := strconv.Itoa(maxID + 1)

	now := time.Now().UTC().Format(time.RFC3339)
	row := []string{
		nextID,      // ID
		nc.Code,     // Code
		nc.Name,     // Name
		nc.Email,    // Contact (email is the primary contact)
		nc.Email,    // Email
		nc.Phone,    // Phone
		nc.Notes,    // Notes
		"",          // Channel ID
		now,         // Created At
		"false",     // Archived
		nc.AuthCode, // Auth Code
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return tabular.ClientRef{}, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}

	body, err := json.Marshal(appendRequest{Values: [][]string{row}})
	if err != nil {
		return tabular.ClientRef{}, fmt.Errorf("marshalling append request: %w", err)
	}

	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=RAW",
		c.baseURL, c.sheetID, url.PathEscape(appendRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return tabular.ClientRef{}, fmt.Errorf("creating append request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tabular.ClientRef{}, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tabular.ClientRef{}, fmt.Errorf("%w: values.append returned %d", tabular.ErrUnavailable, resp.StatusCode)
	}

	return tabular.ClientRef{ID: nextID, Code: nc.Code, AuthCode: nc.AuthCode}, nil
}
