// Package directory is the HTTP client for the collection directory backend.
// It is the only code that talks to the service; everything else consumes it
// through small interfaces.
package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// RequestError is returned for every failed call: non-2xx responses carry
// the HTTP status, transport failures carry Status 0.
type RequestError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Cause   error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("request failed: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// ListQuery filters a collection listing. ProjectID selects root
// collections of a project, ParentCollectionID the children of a collection.
type ListQuery struct {
	ProjectID          string
	ParentCollectionID string
	Skip               int
	Limit              int
}

// RecordQuery filters a record listing.
type RecordQuery struct {
	ProjectID    string
	CollectionID string
	Skip         int
	Limit        int
}

// Client talks to the collection directory REST API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// List returns collections matching q. A childless node yields an empty,
// non-nil slice.
func (c *Client) List(ctx context.Context, q ListQuery) ([]model.Collection, error) {
	params := url.Values{}
	if q.ProjectID != "" {
		params.Set("project_id", q.ProjectID)
	}
	if q.ParentCollectionID != "" {
		params.Set("parent_collection_id", q.ParentCollectionID)
	}
	setPaging(params, q.Skip, q.Limit)

	var out []model.Collection
	if err := c.do(ctx, http.MethodGet, "/collections/", params, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Collection{}
	}
	return out, nil
}

// ListChildren lists the immediate children of a collection.
func (c *Client) ListChildren(ctx context.Context, parentID string) ([]model.Collection, error) {
	return c.List(ctx, ListQuery{ParentCollectionID: parentID})
}

// ListRoots lists the root collections of a project.
func (c *Client) ListRoots(ctx context.Context, projectID string) ([]model.Collection, error) {
	return c.List(ctx, ListQuery{ProjectID: projectID})
}

// Get fetches a single collection.
func (c *Client) Get(ctx context.Context, id string) (model.Collection, error) {
	var out model.Collection
	err := c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// Create creates a collection; the server assigns id and timestamps.
func (c *Client) Create(ctx context.Context, in model.CollectionCreate) (model.Collection, error) {
	if err := in.Validate(); err != nil {
		return model.Collection{}, fmt.Errorf("invalid collection: %w", err)
	}
	var out model.Collection
	err := c.do(ctx, http.MethodPost, "/collections/", nil, in, &out)
	return out, err
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id string, in model.CollectionUpdate) (model.Collection, error) {
	if err := in.Validate(); err != nil {
		return model.Collection{}, fmt.Errorf("invalid update: %w", err)
	}
	var out model.Collection
	err := c.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(id), nil, in, &out)
	return out, err
}

// Delete removes a collection.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(id), nil, nil, nil)
}

// ListProjects lists all projects visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	if err := c.do(ctx, http.MethodGet, "/projects/", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Project{}
	}
	return out, nil
}

// GetProject fetches a single project.
func (c *Client) GetProject(ctx context.Context, id string) (model.Project, error) {
	var out model.Project
	err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// ListRecords lists records attached to a project or collection.
func (c *Client) ListRecords(ctx context.Context, q RecordQuery) ([]model.Record, error) {
	params := url.Values{}
	if q.ProjectID != "" {
		params.Set("project_id", q.ProjectID)
	}
	if q.CollectionID != "" {
		params.Set("collection_id", q.CollectionID)
	}
	setPaging(params, q.Skip, q.Limit)

	var out []model.Record
	if err := c.do(ctx, http.MethodGet, "/records/", params, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Record{}
	}
	return out, nil
}

func setPaging(params url.Values, skip, limit int) {
	if skip > 0 {
		params.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
}

// do performs one JSON round trip. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Method: method, Path: path, Message: "encoding body: " + err.Error(), Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &RequestError{Method: method, Path: path, Message: err.Error(), Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Method: method, Path: path, Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Method: method, Path: path, Status: resp.StatusCode, Message: "reading body: " + err.Error(), Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Method: method, Path: path, Status: resp.StatusCode, Message: statusMessage(resp.StatusCode, data)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RequestError{Method: method, Path: path, Status: resp.StatusCode, Message: "decoding response: " + err.Error(), Cause: err}
	}
	return nil
}

// statusMessage derives a human message from the status and, when present,
// the backend's {"detail": ...} body.
func statusMessage(status int, body []byte) string {
	msg := http.StatusText(status)
	if msg == "" {
		msg = "unexpected status"
	}
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		switch d := payload.Detail.(type) {
		case string:
			if d != "" {
				return msg + ": " + d
			}
		default:
			if b, err := json.Marshal(d); err == nil {
				return msg + ": " + string(b)
			}
		}
	}
	return msg
}
