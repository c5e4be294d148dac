// Package drive is a read-only Google Drive client for client file
// folders and invoice PDFs stored on a shared drive.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/halroad/progressbot/internal/gauth"
	"github.com/halroad/progressbot/internal/tabular"
)

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"

	folderMIMEType = "application/vnd.google-apps.folder"

	// clientFilesFolder is the top-level folder on the shared drive
	// that holds one subfolder per client.
	clientFilesFolder = "Client Files"
)

// File is a Drive file reference.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     string `json:"size,omitempty"`
}

// Client lists and downloads files from one shared drive.
type Client struct {
	baseURL          string
	sharedDriveID    string
	invoicesFolderID string
	tokens           gauth.TokenSource
	httpClient       *http.Client
}

// New creates a Client for the given shared drive.
func New(sharedDriveID, invoicesFolderID string, tokens gauth.TokenSource) *Client {
	return &Client{
		baseURL:          defaultBaseURL,
		sharedDriveID:    sharedDriveID,
		invoicesFolderID: invoicesFolderID,
		tokens:           tokens,
		httpClient:       &http.Client{Timeout: 60 * time.Second},
	}
}

// NewWithBaseURL creates a Client against a non-default API host
// (used by tests).
func NewWithBaseURL(sharedDriveID, invoicesFolderID string, tokens gauth.TokenSource, baseURL string) *Client {
	c := New(sharedDriveID, invoicesFolderID, tokens)
	c.baseURL = baseURL
	return c
}

type fileList struct {
	Files []File `json:"files"`
}

// list runs a files.list query scoped to the shared drive.
func (c *Client) list(ctx context.Context, query string) ([]File, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}

	params := url.Values{
		"q":                         {query},
		"corpora":                   {"drive"},
		"driveId":                   {c.sharedDriveID},
		"includeItemsFromAllDrives": {"true"},
		"supportsAllDrives":         {"true"},
		"fields":                    {"files(id,name,mimeType,size)"},
		"pageSize":                  {"100"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating files.list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: files.list returned %d", tabular.ErrUnavailable, resp.StatusCode)
	}

	var fl fileList
	if err := json.NewDecoder(resp.Body).Decode(&fl); err != nil {
		return nil, fmt.Errorf("%w: %v", tabular.ErrMalformed, err)
	}
	return fl.Files, nil
}

// escapeQuery escapes single quotes for Drive query literals.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

// clientFolder resolves the Drive folder for a client code. Folders are
// named with the code left-padded with zeros to four characters, such
// as "0042 Acme".
func (c *Client) clientFolder(ctx context.Context, clientCode string) (File, error) {
	roots, err := c.list(ctx, fmt.Sprintf(
		"name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(clientFilesFolder), folderMIMEType))
	if err != nil {
		return File{}, err
	}
	if len(roots) == 0 {
		return File{}, fmt.Errorf("%w: folder %q", tabular.ErrNotFound, clientFilesFolder)
	}

	padded := PadCode(clientCode)
	folders, err := c.list(ctx, fmt.Sprintf(
		"'%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(roots[0].ID), folderMIMEType))
	if err != nil {
		return File{}, err
	}
	for _, f := range folders {
		if strings.HasPrefix(f.Name, padded) {
			return f, nil
		}
	}
	return File{}, fmt.Errorf("%w: client folder for code %s", tabular.ErrNotFound, clientCode)
}

// ClientFiles lists the files in a client's folder.
func (c *Client) ClientFiles(ctx context.Context, clientCode string) ([]File, error) {
	folder, err := c.clientFolder(ctx, clientCode)
	if err != nil {
		return nil, err
	}
	return c.list(ctx, fmt.Sprintf(
		"'%s' in parents and mimeType != '%s' and trashed = false",
		escapeQuery(folder.ID), folderMIMEType))
}

// FileContent is a downloaded file with its metadata.
type FileContent struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Download fetches a file's metadata and raw content.
func (c *Client) Download(ctx context.Context, fileID string) (FileContent, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return FileContent{}, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}

	var meta File
	metaURL := fmt.Sprintf("%s/files/%s?supportsAllDrives=true&fields=id,name,mimeType", c.baseURL, url.PathEscape(fileID))
	if err := c.getJSON(ctx, token, metaURL, fileID, &meta); err != nil {
		return FileContent{}, err
	}

	u := fmt.Sprintf("%s/files/%s?alt=media&supportsAllDrives=true", c.baseURL, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return FileContent{}, fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FileContent{}, fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return FileContent{}, fmt.Errorf("%w: file %s", tabular.ErrNotFound, fileID)
	}
	if resp.StatusCode != http.StatusOK {
		return FileContent{}, fmt.Errorf("%w: download returned %d", tabular.ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return FileContent{}, fmt.Errorf("reading file content: %w", err)
	}
	return FileContent{Name: meta.Name, MIMEType: meta.MIMEType, Data: data}, nil
}

func (c *Client) getJSON(ctx context.Context, token, url, fileID string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", tabular.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: file %s", tabular.ErrNotFound, fileID)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: files.get returned %d", tabular.ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", tabular.ErrMalformed, err)
	}
	return nil
}

// InvoicePDF finds the PDF for an invoice ID in the invoices folder.
func (c *Client) InvoicePDF(ctx context.Context, invoiceID string) (File, error) {
	if c.invoicesFolderID == "" {
		return File{}, fmt.Errorf("%w: invoices folder not configured", tabular.ErrNotFound)
	}
	files, err := c.list(ctx, fmt.Sprintf(
		"'%s' in parents and name contains '%s' and mimeType = 'application/pdf' and trashed = false",
		escapeQuery(c.invoicesFolderID), escapeQuery("Invoice "+invoiceID)))
	if err != nil {
		return File{}, err
	}
	if len(files) == 0 {
		return File{}, fmt.Errorf("%w: invoice %s PDF", tabular.ErrNotFound, invoiceID)
	}
	return files[0], nil
}

// PadCode left-pads a client code with zeros to four characters, the
// convention used for folder names on the shared drive.
func PadCode(code string) string {
	if len(code) >= 4 {
		return code
	}
	return strings.Repeat("0", 4-len(code)) + code
}
