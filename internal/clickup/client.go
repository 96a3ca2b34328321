package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/logger"
)

// IClickUpAPI defines the task-level operations the invoice pipeline
// needs from ClickUp.
type IClickUpAPI interface {
	ListTasks(ctx context.Context, listID string) ([]Task, error)
	GetTask(ctx context.Context, taskID string) (*Task, error)
	UpdateTaskFields(ctx context.Context, taskID string, fields []FieldValue) error
	CreateTask(ctx context.Context, listID string, req CreateTaskRequest) (*Task, error)
	UploadAttachment(ctx context.Context, taskID, filename string, data []byte) (*Attachment, error)
	ListFields(ctx context.Context, listID string) ([]Field, error)
}

// IWorkspaceAPI defines the workspace discovery calls used by the debug
// endpoint.
type IWorkspaceAPI interface {
	ListTeams(ctx context.Context) ([]Team, error)
	ListSpaces(ctx context.Context, teamID string) ([]Space, error)
	ListSpaceLists(ctx context.Context, spaceID string) ([]List, error)
	ListFolders(ctx context.Context, spaceID string) ([]Folder, error)
	ListFolderLists(ctx context.Context, folderID string) ([]List, error)
	ListFields(ctx context.Context, listID string) ([]Field, error)
}

// APIError is a non-2xx response from the ClickUp API. Handlers map it
// to a 502 towards the webhook caller.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clickup: %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Client is a thin typed wrapper over the ClickUp REST API,
// authenticated with a static token header.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a ClickUp API client from the loaded configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.ClickUpAPIBase,
		token:   cfg.ClickUpToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logger.WithComponent("clickup"),
	}
}

// do performs a JSON request against the API and decodes the response
// into out (when out is non-nil). Non-2xx responses are returned as
// *APIError with the status and body, logged for diagnosis.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body for %s: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.execute(req, path, out)
}

func (c *Client) execute(req *http.Request, path string, out interface{}) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clickup request to %s failed: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 8192))
		apiErr := &APIError{Status: res.StatusCode, Path: path, Body: string(data)}
		c.log.Error().Int("status", res.StatusCode).Str("path", path).Str("body", apiErr.Body).Msg("ClickUp API error")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode clickup response from %s: %w", path, err)
	}
	return nil
}

// ListTasks returns all non-archived tasks in a list.
func (c *Client) ListTasks(ctx context.Context, listID string) ([]Task, error) {
	var res struct {
		Tasks []Task `json:"tasks"`
	}
	path := fmt.Sprintf("/list/%s/task?archived=false", url.PathEscape(listID))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Tasks, nil
}

// GetTask fetches a single task with its custom fields.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	path := fmt.Sprintf("/task/%s", url.PathEscape(taskID))
	if err := c.do(ctx, http.MethodGet, path, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskFields writes the given custom field values onto a task.
func (c *Client) UpdateTaskFields(ctx context.Context, taskID string, fields []FieldValue) error {
	path := fmt.Sprintf("/task/%s", url.PathEscape(taskID))
	body := map[string]interface{}{"custom_fields": fields}
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// CreateTask creates a task in the given list and returns the created
// record.
func (c *Client) CreateTask(ctx context.Context, listID string, req CreateTaskRequest) (*Task, error) {
	var task Task
	path := fmt.Sprintf("/list/%s/task", url.PathEscape(listID))
	if err := c.do(ctx, http.MethodPost, path, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UploadAttachment uploads a binary attachment to a task via multipart
// form and returns the stored attachment (including its URL).
func (c *Client) UploadAttachment(ctx context.Context, taskID, filename string, data []byte) (*Attachment, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("attachment", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build attachment form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write attachment data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize attachment form: %w", err)
	}

	path := fmt.Sprintf("/task/%s/attachment", url.PathEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build attachment request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var att Attachment
	if err := c.execute(req, path, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// ListFields returns the custom field metadata of a list, including
// dropdown options.
func (c *Client) ListFields(ctx context.Context, listID string) ([]Field, error) {
	var res struct {
		Fields []Field `json:"fields"`
	}
	path := fmt.Sprintf("/list/%s/field", url.PathEscape(listID))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Fields, nil
}

// ListTeams returns the teams visible to the configured token.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	var res struct {
		Teams []Team `json:"teams"`
	}
	if err := c.do(ctx, http.MethodGet, "/team", nil, &res); err != nil {
		return nil, err
	}
	return res.Teams, nil
}

// ListSpaces returns the non-archived spaces of a team.
func (c *Client) ListSpaces(ctx context.Context, teamID string) ([]Space, error) {
	var res struct {
		Spaces []Space `json:"spaces"`
	}
	path := fmt.Sprintf("/team/%s/space?archived=false", url.PathEscape(teamID))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Spaces, nil
}

// ListSpaceLists returns the folderless lists of a space.
func (c *Client) ListSpaceLists(ctx context.Context, spaceID string) ([]List, error) {
	var res struct {
		Lists []List `json:"lists"`
	}
	path := fmt.Sprintf("/space/%s/list?archived=false", url.PathEscape(spaceID))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Lists, nil
}

// ListFolders returns the non-archived folders of a space.
func (c *Client) ListFolders(ctx context.Context, spaceID string) ([]Folder, error) {
	var res struct {
		Folders []Folder `json:"folders"`
	}
	path := fmt.Sprintf("/space/%s/folder?archived=false", url.PathEscape(spaceID))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Folders, nil
}

// ListFolderLists returns the lists inside a folder.
func (c *Client) ListFolderLists(ctx context.Context, folderID string) ([]List, error) {
	var res struct {
		Lists []List `json:"lists"`
	}
	path := fmt.Sprintf("/folder/%s/list?archived=false", url.PathEscape(folderID))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Lists, nil
}
