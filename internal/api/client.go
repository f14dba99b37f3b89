package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidewatch/battlecore/internal/storage"
	"github.com/tidewatch/battlecore/pkg/core"
)

// Client handles communication with the battle dashboard.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	exports    storage.Uploadable
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithExports lets ReportBattle attach the report file a storage backend exported
// for the same session.
func (c *Client) WithExports(u storage.Uploadable) *Client {
	c.exports = u
	return c
}

// Healthcheck checks if the dashboard is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// ReportBattle sends a settled battle to the dashboard. When the storage backend
// exported a report file for the session, the file is uploaded; otherwise the
// record itself is posted as JSON.
func (c *Client) ReportBattle(ctx context.Context, rec core.BattleRecord) error {
	if c.exports != nil {
		meta := c.exports.GetExportMetadata()
		if path := c.exports.GetExportedFilePath(); path != "" && meta.SessionID == rec.SessionID {
			return c.Upload(ctx, path, meta)
		}
	}
	return c.PostRecord(ctx, rec)
}

// PostRecord posts a battle record as JSON.
func (c *Client) PostRecord(ctx context.Context, rec core.BattleRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal battle record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/battles", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("report returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload sends an exported battle report file to the dashboard.
func (c *Client) Upload(ctx context.Context, filePath string, meta storage.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Create multipart form
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and file in goroutine
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		_ = writer.WriteField("secret", c.apiKey)
		_ = writer.WriteField("filename", filepath.Base(filePath))
		_ = writer.WriteField("sessionId", meta.SessionID)
		_ = writer.WriteField("objective", meta.Objective)
		_ = writer.WriteField("outcome", meta.Outcome)
		_ = writer.WriteField("winner", meta.Winner)
		_ = writer.WriteField("turns", strconv.Itoa(meta.Turns))
		_ = writer.WriteField("duration", fmt.Sprintf("%f", meta.DurationSeconds))
		_ = writer.WriteField("objectiveCompleted", strconv.FormatBool(meta.ObjectiveCompleted))

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/battles/upload", pr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check goroutine error
	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return nil
}
