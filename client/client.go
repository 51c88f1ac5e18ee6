package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"medshift/core/incidents"
	"medshift/core/store"
)

// Client is a typed HTTP client for the incidents API, the transport behind
// the state slice in this package.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Code    string `json:"code"`
	I18nKey string `json:"i18n_key"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// Error surfaces the server's error code, the string the reducer stores in
// State.Error on rejection.
type Error struct {
	Status int
	Code   string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("http %d", e.Status)
}

type SearchParams struct {
	Status       string
	Step         string
	IncidentType string
	Search       string
	Page         int
	Limit        int
}

func (c *Client) SearchIncidents(ctx context.Context, params SearchParams) (*incidents.SearchResult, error) {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.Step != "" {
		q.Set("currentStep", params.Step)
	}
	if params.IncidentType != "" {
		q.Set("incidentType", params.IncidentType)
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	var out incidents.SearchResult
	if err := c.doJSON(ctx, http.MethodGet, "/api/incidents/?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CreateIncidentParams struct {
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	IncidentType        string     `json:"incident_type"`
	PHIDataTypes        []string   `json:"phi_data_types,omitempty"`
	IndividualsAffected *int       `json:"individuals_affected,omitempty"`
	OccurrenceDate      *time.Time `json:"occurrence_date,omitempty"`
	DiscoveryDate       *time.Time `json:"discovery_date,omitempty"`
}

func (c *Client) CreateIncident(ctx context.Context, params CreateIncidentParams) (*store.Incident, error) {
	var out store.Incident
	if err := c.doJSON(ctx, http.MethodPost, "/api/incidents/", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetIncident(ctx context.Context, id int64) (*store.Incident, error) {
	var out store.Incident
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/incidents/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdvanceStep(ctx context.Context, id int64, step, notes string) (*store.Incident, error) {
	body := map[string]string{"step": step, "notes": notes}
	var out store.Incident
	if err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/incidents/%d/step", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetStatus(ctx context.Context, id int64, status string) (*store.Incident, error) {
	body := map[string]string{"status": status}
	var out store.Incident
	if err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/incidents/%d/status", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UploadAttachment(ctx context.Context, id int64, filename, contentType string, data []byte) (*store.Incident, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+fmt.Sprintf("/api/incidents/%d/attachment/upload", id), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out store.Incident
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAttachment(ctx context.Context, id int64, attachmentID string) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/incidents/%d/attachment/%s", id, attachmentID), nil, nil)
}

func (c *Client) DownloadAttachment(ctx context.Context, id int64, attachmentID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fmt.Sprintf("/api/incidents/%d/attachment/%s", id, attachmentID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var env errorEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return &Error{Status: resp.StatusCode, Code: env.Error.Code}
}
