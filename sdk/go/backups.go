package taxonvault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Backup is the metadata of a stored backup record.
type Backup struct {
	ID             int64        `json:"id"`
	VersionNumber  int64        `json:"version_number"`
	CreatedAt      time.Time    `json:"created_at"`
	TriggerType    string       `json:"trigger_type"`
	Description    string       `json:"description"`
	OriginalSize   int64        `json:"original_size"`
	CompressedSize int64        `json:"compressed_size"`
	Checksum       string       `json:"checksum"`
	EntityCounts   EntityCounts `json:"entity_counts"`
}

// EntityCounts maps entity kinds to record counts.
type EntityCounts struct {
	Products               int `json:"products"`
	Suppliers              int `json:"suppliers"`
	TreeNodes              int `json:"tree_nodes"`
	CustomFieldDefinitions int `json:"custom_field_definitions"`
	AppSettings            int `json:"app_settings"`
}

// RestoreResult describes the outcome of a restore.
type RestoreResult struct {
	Success        bool         `json:"success"`
	OperationID    string       `json:"operation_id"`
	BackupID       int64        `json:"backup_id"`
	VersionNumber  int64        `json:"version_number"`
	SafetyBackupID int64        `json:"safety_backup_id"`
	RestoredCounts EntityCounts `json:"restored_counts"`
	Error          string       `json:"error"`
	Message        string       `json:"message"`
	DurationString string       `json:"duration_string"`
}

// Settings is the server's retention and scheduling configuration.
type Settings struct {
	MaxBackups              int `json:"max_backups"`
	AutoBackupIntervalHours int `json:"auto_backup_interval_hours"`
}

// SettingsUpdate is a partial settings change. Nil fields are left unchanged.
type SettingsUpdate struct {
	MaxBackups              *int `json:"max_backups,omitempty"`
	AutoBackupIntervalHours *int `json:"auto_backup_interval_hours,omitempty"`
}

// List returns all backups, oldest first.
func (c *Client) List(ctx context.Context) ([]Backup, error) {
	var resp struct {
		Backups []Backup `json:"backups"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/backups", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Backups, nil
}

// Create triggers a manual backup with an optional description.
func (c *Client) Create(ctx context.Context, description string) (*Backup, error) {
	body := map[string]string{"description": description}
	var b Backup
	if err := c.doJSON(ctx, http.MethodPost, "/api/backups", body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Get returns one backup's metadata.
func (c *Client) Get(ctx context.Context, id int64) (*Backup, error) {
	var b Backup
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/backups/%d", id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a backup record.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/backups/%d", id), nil, nil)
}

// Preview returns what a restore of the given backup would bring back,
// without modifying anything.
func (c *Client) Preview(ctx context.Context, id int64) (*Backup, error) {
	var b Backup
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/backups/%d/preview", id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Restore replaces the server's live dataset with the given backup.
func (c *Client) Restore(ctx context.Context, id int64) (*RestoreResult, error) {
	var result RestoreResult
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/backups/%d/restore", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Export downloads a backup as a portable container.
func (c *Client) Export(ctx context.Context, id int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+fmt.Sprintf("/api/backups/%d/export", id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFromResponse(resp)
	}
	return io.ReadAll(resp.Body)
}

// Import uploads a backup container, creating a new backup record on the
// server. It never restores.
func (c *Client) Import(ctx context.Context, container []byte) (*Backup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/backups/import", bytes.NewReader(container))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiErrorFromResponse(resp)
	}

	var b Backup
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &b, nil
}

// TriggerAuto asks the server to take an automatic backup immediately.
func (c *Client) TriggerAuto(ctx context.Context, reason string) (*Backup, error) {
	body := map[string]string{"reason": reason}
	var b Backup
	if err := c.doJSON(ctx, http.MethodPost, "/api/backups/trigger", body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetSettings returns the server's backup settings.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.doJSON(ctx, http.MethodGet, "/api/backups/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings applies a partial settings update.
func (c *Client) UpdateSettings(ctx context.Context, upd SettingsUpdate) (*Settings, error) {
	var s Settings
	if err := c.doJSON(ctx, http.MethodPut, "/api/backups/settings", upd, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// doJSON performs a JSON request/response round trip.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFromResponse(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiErrorFromResponse builds an APIError from a non-2xx response, mapping
// known status codes to sentinel errors.
func apiErrorFromResponse(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	switch resp.StatusCode {
	case http.StatusNotFound:
		apiErr.Err = ErrNotFound
	case http.StatusConflict:
		apiErr.Err = ErrRestoreInProgress
	case http.StatusUnprocessableEntity:
		apiErr.Err = ErrIntegrity
	}
	return apiErr
}
