package tracklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Trackline HTTP API client.
type Client struct {
	BaseURL      string
	BearerToken  string
	AccountEmail string
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Account represents an API account.
type Account struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// Project represents an API project.
type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	BeginsAt    *string `json:"begins_at,omitempty"`
	FinishesAt  *string `json:"finishes_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// Invitation represents a pending invitation.
type Invitation struct {
	Token        string `json:"token"`
	ProjectID    string `json:"project_id"`
	AccountEmail string `json:"account_email"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at"`
}

// Participant represents a project membership.
type Participant struct {
	ProjectID    string `json:"project_id"`
	AccountEmail string `json:"account_email"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at"`
}

// IssueGroup represents a column of issues.
type IssueGroup struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	IsFinal   bool   `json:"is_final"`
	CreatedAt string `json:"created_at"`
}

// Issue represents an API issue.
type Issue struct {
	ID                     string  `json:"id"`
	IssueGroupID           string  `json:"issue_group_id"`
	Title                  string  `json:"title"`
	Description            string  `json:"description,omitempty"`
	ExpiresAt              *string `json:"expires_at,omitempty"`
	Completed              bool    `json:"completed"`
	AssignedToAccountEmail *string `json:"assigned_to_account_email,omitempty"`
	CreatedAt              string  `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts"`
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id"`
	AccountEmail string `json:"account_email"`
	Payload      string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateAccount signs up a new account. It is the one call that does not
// require authentication.
func (c *Client) CreateAccount(ctx context.Context, name, email, password string) (Account, error) {
	body := map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	}
	var resp Account
	err := c.do(ctx, http.MethodPost, "v0/accounts", body, &resp)
	return resp, err
}

// CreateProject creates a project owned by the authenticated account.
func (c *Client) CreateProject(ctx context.Context, name, description string) (Project, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// ListProjects returns the projects the authenticated account participates in.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "v0/projects", nil, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, projectPath(projectID, ""), nil, &resp)
	return resp, err
}

// DeleteProject deletes a project. Owner only.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, projectPath(projectID, ""), nil, nil)
}

// Invite invites an account to a project with the given role.
func (c *Client) Invite(ctx context.Context, projectID, email, role string) (Invitation, error) {
	body := map[string]any{
		"email": email,
		"role":  role,
	}
	var resp Invitation
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "invitations"), body, &resp)
	return resp, err
}

// ListInvitations returns pending invitations for a project.
func (c *Client) ListInvitations(ctx context.Context, projectID string) ([]Invitation, error) {
	var resp []Invitation
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "invitations"), nil, &resp)
	return resp, err
}

// RevokeInvitation cancels a pending invitation.
func (c *Client) RevokeInvitation(ctx context.Context, projectID, email string) error {
	endpoint := projectPath(projectID, "invitations/"+url.PathEscape(email))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// AcceptInvitation redeems an invitation token for the authenticated account.
func (c *Client) AcceptInvitation(ctx context.Context, token string) (Participant, error) {
	body := map[string]any{"token": token}
	var resp Participant
	err := c.do(ctx, http.MethodPost, "v0/invitations/accept", body, &resp)
	return resp, err
}

// ListParticipants returns the members of a project.
func (c *Client) ListParticipants(ctx context.Context, projectID string) ([]Participant, error) {
	var resp []Participant
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "participants"), nil, &resp)
	return resp, err
}

// KickParticipant removes a participant from a project.
func (c *Client) KickParticipant(ctx context.Context, projectID, email string) error {
	endpoint := projectPath(projectID, "participants/"+url.PathEscape(email))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// UpdateParticipantRole changes a participant's role.
func (c *Client) UpdateParticipantRole(ctx context.Context, projectID, email, role string) error {
	body := map[string]any{"role": role}
	endpoint := projectPath(projectID, "participants/"+url.PathEscape(email)+"/role")
	return c.do(ctx, http.MethodPatch, endpoint, body, nil)
}

// CreateIssueGroup creates an issue group in a project.
func (c *Client) CreateIssueGroup(ctx context.Context, projectID, title string, isFinal bool) (IssueGroup, error) {
	body := map[string]any{
		"title":    title,
		"is_final": isFinal,
	}
	var resp IssueGroup
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "groups"), body, &resp)
	return resp, err
}

// ListIssueGroups returns a project's issue groups.
func (c *Client) ListIssueGroups(ctx context.Context, projectID string) ([]IssueGroup, error) {
	var resp []IssueGroup
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "groups"), nil, &resp)
	return resp, err
}

// DeleteIssueGroup deletes an issue group and its issues.
func (c *Client) DeleteIssueGroup(ctx context.Context, groupID string) error {
	endpoint := "v0/groups/" + url.PathEscape(groupID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// CreateIssue creates an issue in a group.
func (c *Client) CreateIssue(ctx context.Context, groupID, title, description string) (Issue, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
	}
	var resp Issue
	endpoint := "v0/groups/" + url.PathEscape(groupID) + "/issues"
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ListIssues returns the issues of a group.
func (c *Client) ListIssues(ctx context.Context, groupID string) ([]Issue, error) {
	var resp []Issue
	endpoint := "v0/groups/" + url.PathEscape(groupID) + "/issues"
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MoveIssue moves an issue to another group. Moving into a final group marks
// the issue completed.
func (c *Client) MoveIssue(ctx context.Context, issueID, groupID string) (Issue, error) {
	body := map[string]any{"issue_group_id": groupID}
	var resp Issue
	endpoint := "v0/issues/" + url.PathEscape(issueID) + "/move"
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// AssignIssue assigns an issue to a participant. A nil email unassigns.
func (c *Client) AssignIssue(ctx context.Context, issueID string, email *string) (Issue, error) {
	body := map[string]any{"assignee_email": email}
	var resp Issue
	endpoint := "v0/issues/" + url.PathEscape(issueID) + "/assign"
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// DeleteIssue deletes an issue.
func (c *Client) DeleteIssue(ctx context.Context, issueID string) error {
	endpoint := "v0/issues/" + url.PathEscape(issueID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Events returns recent project events, newest first.
func (c *Client) Events(ctx context.Context, projectID string, limit int) ([]Event, error) {
	endpoint := projectPath(projectID, "events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.AccountEmail != "":
		req.Header.Set("X-Account-Email", c.AccountEmail)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func projectPath(projectID, p string) string {
	endpoint := "v0/projects/" + url.PathEscape(projectID)
	if p == "" {
		return endpoint
	}
	return endpoint + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
