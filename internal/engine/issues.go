package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"trackline/internal/domain"
	"trackline/internal/events"
	"trackline/internal/repo"
)

type IssueGroupCreateOptions struct {
	ProjectID      string
	Title          string
	IsFinal        bool
	RequesterEmail string
}

func (e Engine) CreateIssueGroup(ctx context.Context, opts IssueGroupCreateOptions) (domain.IssueGroup, error) {
	if err := e.requireProject(ctx, opts.ProjectID); err != nil {
		return domain.IssueGroup{}, err
	}
	if err := e.authorize(ctx, opts.ProjectID, opts.RequesterEmail, domain.PermCreateIssueGroup); err != nil {
		return domain.IssueGroup{}, err
	}
	g := domain.IssueGroup{
		ID:        uuid.New().String(),
		ProjectID: opts.ProjectID,
		Title:     opts.Title,
		IsFinal:   opts.IsFinal,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.IssueGroup{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertIssueGroup(ctx, tx, g); err != nil {
		return domain.IssueGroup{}, err
	}
	if err := e.Events.Append(ctx, tx, "issuegroup.created", g.ProjectID, "issue_group", g.ID, opts.RequesterEmail, events.EventPayload{"title": g.Title, "is_final": g.IsFinal}); err != nil {
		return domain.IssueGroup{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.IssueGroup{}, err
	}
	return g, nil
}

// issueGroup resolves the group or reports it missing.
func (e Engine) issueGroup(ctx context.Context, issueGroupID string) (domain.IssueGroup, error) {
	g, err := e.Repo.GetIssueGroup(ctx, issueGroupID)
	if errors.Is(err, repo.ErrNotFound) {
		return g, domain.IssueGroupNotFoundError{IssueGroupID: issueGroupID}
	}
	return g, err
}

// issue resolves an issue or reports it missing.
func (e Engine) issue(ctx context.Context, issueID string) (domain.Issue, error) {
	i, err := e.Repo.GetIssue(ctx, issueID)
	if errors.Is(err, repo.ErrNotFound) {
		return i, domain.IssueNotFoundError{IssueID: issueID}
	}
	return i, err
}

func (e Engine) DeleteIssueGroup(ctx context.Context, issueGroupID, requesterEmail string) error {
	g, err := e.issueGroup(ctx, issueGroupID)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, g.ProjectID, requesterEmail, domain.PermDeleteIssueGroup); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteIssueGroup(ctx, tx, issueGroupID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "issuegroup.deleted", g.ProjectID, "issue_group", issueGroupID, requesterEmail, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

type IssueCreateOptions struct {
	IssueGroupID   string
	Title          string
	Description    string
	ExpiresAt      *string
	RequesterEmail string
}

// CreateIssue also enforces the project's lifecycle window: issues cannot be
// created before begins_at or after finishes_at.
func (e Engine) CreateIssue(ctx context.Context, opts IssueCreateOptions) (domain.Issue, error) {
	g, err := e.issueGroup(ctx, opts.IssueGroupID)
	if err != nil {
		return domain.Issue{}, err
	}
	p, err := e.Repo.GetProject(ctx, g.ProjectID)
	if err != nil {
		return domain.Issue{}, err
	}
	now := e.now()
	if p.BeginsAt != nil {
		if begins, err := time.Parse(time.RFC3339, *p.BeginsAt); err == nil && now.Before(begins) {
			return domain.Issue{}, domain.ProjectHasntBegunError{ProjectID: p.ID}
		}
	}
	if p.FinishesAt != nil {
		if finishes, err := time.Parse(time.RFC3339, *p.FinishesAt); err == nil && now.After(finishes) {
			return domain.Issue{}, domain.ProjectIsArchivedError{ProjectID: p.ID}
		}
	}
	if err := e.authorize(ctx, g.ProjectID, opts.RequesterEmail, domain.PermCreateIssue); err != nil {
		return domain.Issue{}, err
	}
	if opts.ExpiresAt != nil && *opts.ExpiresAt != "" {
		if err := domain.ValidateFutureDate(*opts.ExpiresAt, "expires_at", now); err != nil {
			return domain.Issue{}, err
		}
	}
	i := domain.Issue{
		ID:           uuid.New().String(),
		IssueGroupID: opts.IssueGroupID,
		Title:        opts.Title,
		Description:  opts.Description,
		ExpiresAt:    opts.ExpiresAt,
		Completed:    false,
		CreatedAt:    now.UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertIssue(ctx, tx, i); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, "issue.created", g.ProjectID, "issue", i.ID, opts.RequesterEmail, events.EventPayload{"title": i.Title}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return i, nil
}

type IssueUpdateOptions struct {
	IssueID        string
	Title          *string
	Description    *string
	ExpiresAt      *string
	RequesterEmail string
}

func (e Engine) UpdateIssue(ctx context.Context, opts IssueUpdateOptions) (domain.Issue, error) {
	i, err := e.issue(ctx, opts.IssueID)
	if err != nil {
		return domain.Issue{}, err
	}
	g, err := e.issueGroup(ctx, i.IssueGroupID)
	if err != nil {
		return domain.Issue{}, err
	}
	if err := e.authorize(ctx, g.ProjectID, opts.RequesterEmail, domain.PermUpdateIssue); err != nil {
		return domain.Issue{}, err
	}
	if opts.ExpiresAt != nil && *opts.ExpiresAt != "" {
		if err := domain.ValidateFutureDate(*opts.ExpiresAt, "expires_at", e.now()); err != nil {
			return domain.Issue{}, err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateIssue(ctx, tx, opts.IssueID, opts.Title, opts.Description, opts.ExpiresAt); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, "issue.updated", g.ProjectID, "issue", opts.IssueID, opts.RequesterEmail, events.EventPayload{}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return e.issue(ctx, opts.IssueID)
}

func (e Engine) DeleteIssue(ctx context.Context, issueID, requesterEmail string) error {
	i, err := e.issue(ctx, issueID)
	if err != nil {
		return err
	}
	g, err := e.issueGroup(ctx, i.IssueGroupID)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, g.ProjectID, requesterEmail, domain.PermDeleteIssue); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteIssue(ctx, tx, issueID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "issue.deleted", g.ProjectID, "issue", issueID, requesterEmail, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

type IssueMoveOptions struct {
	IssueID        string
	IssueGroupID   string
	RequesterEmail string
}

// MoveIssue re-homes an issue within its project and recomputes the completed
// flag from the destination group's is_final on every move, both directions.
func (e Engine) MoveIssue(ctx context.Context, opts IssueMoveOptions) (domain.Issue, error) {
	i, err := e.issue(ctx, opts.IssueID)
	if err != nil {
		return domain.Issue{}, err
	}
	from, err := e.issueGroup(ctx, i.IssueGroupID)
	if err != nil {
		return domain.Issue{}, err
	}
	to, err := e.issueGroup(ctx, opts.IssueGroupID)
	if err != nil {
		return domain.Issue{}, err
	}
	if to.ProjectID != from.ProjectID {
		return domain.Issue{}, domain.IssueGroupBelongsToDifferentProjectError{IssueGroupID: to.ID}
	}
	if err := e.authorize(ctx, from.ProjectID, opts.RequesterEmail, domain.PermMoveIssue); err != nil {
		return domain.Issue{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.MoveIssue(ctx, tx, opts.IssueID, to.ID, to.IsFinal); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, "issue.moved", from.ProjectID, "issue", opts.IssueID, opts.RequesterEmail, events.EventPayload{
		"from_group": from.ID,
		"to_group":   to.ID,
		"completed":  to.IsFinal,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return e.issue(ctx, opts.IssueID)
}

type IssueAssignOptions struct {
	IssueID        string
	AssigneeEmail  *string
	RequesterEmail string
}

// AssignIssue sets or clears the assignee; an assignee must participate in
// the issue's project.
func (e Engine) AssignIssue(ctx context.Context, opts IssueAssignOptions) (domain.Issue, error) {
	i, err := e.issue(ctx, opts.IssueID)
	if err != nil {
		return domain.Issue{}, err
	}
	g, err := e.issueGroup(ctx, i.IssueGroupID)
	if err != nil {
		return domain.Issue{}, err
	}
	if err := e.authorize(ctx, g.ProjectID, opts.RequesterEmail, domain.PermAssignIssue); err != nil {
		return domain.Issue{}, err
	}
	if opts.AssigneeEmail != nil && *opts.AssigneeEmail != "" {
		participates, err := e.Repo.DoesParticipantExist(ctx, g.ProjectID, *opts.AssigneeEmail)
		if err != nil {
			return domain.Issue{}, err
		}
		if !participates {
			return domain.Issue{}, domain.NotParticipantInProjectError{Email: *opts.AssigneeEmail}
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.AssignIssue(ctx, tx, opts.IssueID, opts.AssigneeEmail); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, "issue.assigned", g.ProjectID, "issue", opts.IssueID, opts.RequesterEmail, events.EventPayload{
		"assignee": stringOrEmpty(opts.AssigneeEmail),
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return e.issue(ctx, opts.IssueID)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
