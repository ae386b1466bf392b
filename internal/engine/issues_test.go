package engine_test

import (
	"errors"
	"testing"
	"time"

	"trackline/internal/domain"
	"trackline/internal/engine"
)

func issueSetup(t *testing.T) (testEnv, domain.Project, domain.IssueGroup) {
	env := newTestEnv(t)
	env.createAccount(t, "owner@email.com")
	p := env.createProject(t, "owner@email.com")
	g, err := env.Engine.CreateIssueGroup(env.Ctx, engine.IssueGroupCreateOptions{
		ProjectID:      p.ID,
		Title:          "todo",
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return env, p, g
}

func TestCreateIssueGroupRequiresPermission(t *testing.T) {
	env, p, _ := issueSetup(t)
	env.addParticipant(t, p.ID, "member@email.com", domain.RoleMember)
	_, err := env.Engine.CreateIssueGroup(env.Ctx, engine.IssueGroupCreateOptions{
		ProjectID:      p.ID,
		Title:          "nope",
		RequesterEmail: "member@email.com",
	})
	var insufficient domain.RoleInsufficientPermissionError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected RoleInsufficientPermissionError, got %v", err)
	}
}

func TestDeleteIssueGroupDeniedLeavesGroup(t *testing.T) {
	env, p, g := issueSetup(t)
	env.addParticipant(t, p.ID, "member@email.com", domain.RoleMember)
	err := env.Engine.DeleteIssueGroup(env.Ctx, g.ID, "member@email.com")
	var insufficient domain.RoleInsufficientPermissionError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected RoleInsufficientPermissionError, got %v", err)
	}
	if n := countRows(t, env.Engine.DB, `SELECT COUNT(*) FROM issue_groups WHERE id=?`, g.ID); n != 1 {
		t.Fatal("expected group untouched after denied delete")
	}
	if err := env.Engine.DeleteIssueGroup(env.Ctx, g.ID, "owner@email.com"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestCreateIssue(t *testing.T) {
	env, _, g := issueSetup(t)
	i, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   g.ID,
		Title:          "fix login",
		Description:    "login breaks on enter",
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	if i.Completed {
		t.Fatal("new issue must not be completed")
	}
}

func TestCreateIssueUnknownGroup(t *testing.T) {
	env, _, _ := issueSetup(t)
	_, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   "missing",
		Title:          "x",
		RequesterEmail: "owner@email.com",
	})
	var gnf domain.IssueGroupNotFoundError
	if !errors.As(err, &gnf) {
		t.Fatalf("expected IssueGroupNotFoundError, got %v", err)
	}
}

func TestCreateIssueRejectsPastExpiry(t *testing.T) {
	env, _, g := issueSetup(t)
	yesterday := testNow.Add(-24 * time.Hour).Format(time.RFC3339)
	_, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   g.ID,
		Title:          "expired",
		ExpiresAt:      &yesterday,
		RequesterEmail: "owner@email.com",
	})
	var notFuture domain.NotFutureDateError
	if !errors.As(err, &notFuture) {
		t.Fatalf("expected NotFutureDateError, got %v", err)
	}
}

func TestCreateIssueProjectLifecycleWindow(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "owner@email.com")
	tomorrow := testNow.Add(24 * time.Hour).Format(time.RFC3339)
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Name:       "future",
		OwnerEmail: "owner@email.com",
		BeginsAt:   &tomorrow,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	g, err := env.Engine.CreateIssueGroup(env.Ctx, engine.IssueGroupCreateOptions{
		ProjectID:      p.ID,
		Title:          "todo",
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	_, err = env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   g.ID,
		Title:          "too early",
		RequesterEmail: "owner@email.com",
	})
	var notBegun domain.ProjectHasntBegunError
	if !errors.As(err, &notBegun) {
		t.Fatalf("expected ProjectHasntBegunError, got %v", err)
	}
}

func TestMoveIssueIntoFinalGroupCompletes(t *testing.T) {
	env, p, g := issueSetup(t)
	done, err := env.Engine.CreateIssueGroup(env.Ctx, engine.IssueGroupCreateOptions{
		ProjectID:      p.ID,
		Title:          "done",
		IsFinal:        true,
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create final group: %v", err)
	}
	i, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   g.ID,
		Title:          "ship it",
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}

	moved, err := env.Engine.MoveIssue(env.Ctx, engine.IssueMoveOptions{
		IssueID:        i.ID,
		IssueGroupID:   done.ID,
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !moved.Completed {
		t.Fatal("expected issue completed after move into final group")
	}

	// moving back out always recomputes from the destination group
	back, err := env.Engine.MoveIssue(env.Ctx, engine.IssueMoveOptions{
		IssueID:        i.ID,
		IssueGroupID:   g.ID,
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("move back: %v", err)
	}
	if back.Completed {
		t.Fatal("expected completed reset after move into non-final group")
	}
}

func TestMoveIssueAcrossProjectsRejected(t *testing.T) {
	env, _, g := issueSetup(t)
	env.createAccount(t, "other@email.com")
	other := env.createProject(t, "other@email.com")
	foreign, err := env.Engine.CreateIssueGroup(env.Ctx, engine.IssueGroupCreateOptions{
		ProjectID:      other.ID,
		Title:          "elsewhere",
		RequesterEmail: "other@email.com",
	})
	if err != nil {
		t.Fatalf("create foreign group: %v", err)
	}
	i, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   g.ID,
		Title:          "stay home",
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	_, err = env.Engine.MoveIssue(env.Ctx, engine.IssueMoveOptions{
		IssueID:        i.ID,
		IssueGroupID:   foreign.ID,
		RequesterEmail: "owner@email.com",
	})
	var wrongProject domain.IssueGroupBelongsToDifferentProjectError
	if !errors.As(err, &wrongProject) {
		t.Fatalf("expected IssueGroupBelongsToDifferentProjectError, got %v", err)
	}
}

func TestAssignIssueRequiresParticipantAssignee(t *testing.T) {
	env, p, g := issueSetup(t)
	env.createAccount(t, "outsider@email.com")
	env.addParticipant(t, p.ID, "member@email.com", domain.RoleMember)
	i, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   g.ID,
		Title:          "assign me",
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}

	outsider := "outsider@email.com"
	_, err = env.Engine.AssignIssue(env.Ctx, engine.IssueAssignOptions{
		IssueID:        i.ID,
		AssigneeEmail:  &outsider,
		RequesterEmail: "owner@email.com",
	})
	var np domain.NotParticipantInProjectError
	if !errors.As(err, &np) {
		t.Fatalf("expected NotParticipantInProjectError, got %v", err)
	}

	member := "member@email.com"
	assigned, err := env.Engine.AssignIssue(env.Ctx, engine.IssueAssignOptions{
		IssueID:        i.ID,
		AssigneeEmail:  &member,
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssignedToAccountEmail == nil || *assigned.AssignedToAccountEmail != member {
		t.Fatalf("unexpected assignee %+v", assigned.AssignedToAccountEmail)
	}
}

func TestUpdateIssueSpectatorDenied(t *testing.T) {
	env, p, g := issueSetup(t)
	env.addParticipant(t, p.ID, "spectator@email.com", domain.RoleSpectator)
	i, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   g.ID,
		Title:          "readonly",
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	title := "hacked"
	_, err = env.Engine.UpdateIssue(env.Ctx, engine.IssueUpdateOptions{
		IssueID:        i.ID,
		Title:          &title,
		RequesterEmail: "spectator@email.com",
	})
	var insufficient domain.RoleInsufficientPermissionError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected RoleInsufficientPermissionError, got %v", err)
	}
}

func TestDeleteIssue(t *testing.T) {
	env, _, g := issueSetup(t)
	i, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		IssueGroupID:   g.ID,
		Title:          "short lived",
		RequesterEmail: "owner@email.com",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	if err := env.Engine.DeleteIssue(env.Ctx, i.ID, "owner@email.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = env.Engine.DeleteIssue(env.Ctx, i.ID, "owner@email.com")
	var inf domain.IssueNotFoundError
	if !errors.As(err, &inf) {
		t.Fatalf("expected IssueNotFoundError, got %v", err)
	}
}
