package server

import "trackline/internal/domain"

type CreateAccountRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AccountResponse struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func accountResponse(a domain.Account) AccountResponse {
	return AccountResponse{
		Email:     a.Email,
		Name:      a.Name,
		CreatedAt: a.CreatedAt,
	}
}

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	BeginsAt    *string `json:"begins_at,omitempty"`
	FinishesAt  *string `json:"finishes_at,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	BeginsAt    *string `json:"begins_at,omitempty"`
	FinishesAt  *string `json:"finishes_at,omitempty"`
}

type ProjectResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	BeginsAt    *string `json:"begins_at,omitempty"`
	FinishesAt  *string `json:"finishes_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		BeginsAt:    p.BeginsAt,
		FinishesAt:  p.FinishesAt,
		CreatedAt:   p.CreatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := []ProjectResponse{}
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type InvitationResponse struct {
	Token        string `json:"token"`
	ProjectID    string `json:"project_id"`
	AccountEmail string `json:"account_email"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at"`
}

func invitationResponse(inv domain.Invitation) InvitationResponse {
	return InvitationResponse{
		Token:        inv.Token,
		ProjectID:    inv.ProjectID,
		AccountEmail: inv.AccountEmail,
		Role:         inv.Role,
		CreatedAt:    inv.CreatedAt,
	}
}

func mapInvitations(items []domain.Invitation) []InvitationResponse {
	res := []InvitationResponse{}
	for _, inv := range items {
		res = append(res, invitationResponse(inv))
	}
	return res
}

type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

type ParticipantResponse struct {
	ProjectID    string `json:"project_id"`
	AccountEmail string `json:"account_email"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at"`
}

func participantResponse(p domain.Participant) ParticipantResponse {
	return ParticipantResponse{
		ProjectID:    p.ProjectID,
		AccountEmail: p.AccountEmail,
		Role:         p.Role,
		CreatedAt:    p.CreatedAt,
	}
}

func mapParticipants(items []domain.Participant) []ParticipantResponse {
	res := []ParticipantResponse{}
	for _, p := range items {
		res = append(res, participantResponse(p))
	}
	return res
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type CreateIssueGroupRequest struct {
	Title   string `json:"title"`
	IsFinal bool   `json:"is_final,omitempty"`
}

type IssueGroupResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	IsFinal   bool   `json:"is_final"`
	CreatedAt string `json:"created_at"`
}

func issueGroupResponse(g domain.IssueGroup) IssueGroupResponse {
	return IssueGroupResponse{
		ID:        g.ID,
		ProjectID: g.ProjectID,
		Title:     g.Title,
		IsFinal:   g.IsFinal,
		CreatedAt: g.CreatedAt,
	}
}

func mapIssueGroups(items []domain.IssueGroup) []IssueGroupResponse {
	res := []IssueGroupResponse{}
	for _, g := range items {
		res = append(res, issueGroupResponse(g))
	}
	return res
}

type CreateIssueRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
}

type UpdateIssueRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
}

type MoveIssueRequest struct {
	IssueGroupID string `json:"issue_group_id"`
}

type AssignIssueRequest struct {
	AssigneeEmail *string `json:"assignee_email"`
}

type IssueResponse struct {
	ID                     string  `json:"id"`
	IssueGroupID           string  `json:"issue_group_id"`
	Title                  string  `json:"title"`
	Description            string  `json:"description,omitempty"`
	ExpiresAt              *string `json:"expires_at,omitempty"`
	Completed              bool    `json:"completed"`
	AssignedToAccountEmail *string `json:"assigned_to_account_email,omitempty"`
	CreatedAt              string  `json:"created_at"`
}

func issueResponse(i domain.Issue) IssueResponse {
	return IssueResponse{
		ID:                     i.ID,
		IssueGroupID:           i.IssueGroupID,
		Title:                  i.Title,
		Description:            i.Description,
		ExpiresAt:              i.ExpiresAt,
		Completed:              i.Completed,
		AssignedToAccountEmail: i.AssignedToAccountEmail,
		CreatedAt:              i.CreatedAt,
	}
}

func mapIssues(items []domain.Issue) []IssueResponse {
	res := []IssueResponse{}
	for _, i := range items {
		res = append(res, issueResponse(i))
	}
	return res
}

type EventResponse struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts"`
	Type         string `json:"type"`
	ProjectID    string `json:"project_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	AccountEmail string `json:"account_email"`
	Payload      string `json:"payload_json"`
}

func mapEvents(items []domain.Event) []EventResponse {
	res := []EventResponse{}
	for _, e := range items {
		res = append(res, EventResponse{
			ID:           e.ID,
			TS:           e.TS,
			Type:         e.Type,
			ProjectID:    e.ProjectID,
			EntityKind:   e.EntityKind,
			EntityID:     e.EntityID,
			AccountEmail: e.AccountEmail,
			Payload:      e.Payload,
		})
	}
	return res
}
