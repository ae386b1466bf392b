package engine_test

import (
	"errors"
	"testing"

	"trackline/internal/domain"
	"trackline/internal/engine"
)

func inviteSetup(t *testing.T) (testEnv, domain.Project) {
	env := newTestEnv(t)
	env.createAccount(t, "owner@email.com")
	p := env.createProject(t, "owner@email.com")
	env.createAccount(t, "garcia@email.com")
	return env, p
}

func TestInviteAccountHappyPath(t *testing.T) {
	env, p := inviteSetup(t)
	inv, err := env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleMember,
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if inv.Token == "" {
		t.Fatal("expected generated token")
	}
	if inv.Role != domain.RoleMember {
		t.Fatalf("expected member role, got %s", inv.Role)
	}
	n := countRows(t, env.Engine.DB, `SELECT COUNT(*) FROM invitations WHERE project_id=?`, p.ID)
	if n != 1 {
		t.Fatalf("expected exactly one invitation row, got %d", n)
	}
}

func TestInviteAccountGuardOrder(t *testing.T) {
	env, p := inviteSetup(t)
	env.addParticipant(t, p.ID, "spectator@email.com", domain.RoleSpectator)

	// unknown project wins over everything
	_, err := env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    "missing",
		InviterEmail: "owner@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleMember,
	})
	var pnf domain.ProjectNotFoundError
	if !errors.As(err, &pnf) {
		t.Fatalf("expected ProjectNotFoundError, got %v", err)
	}

	// non-participant inviter
	_, err = env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "garcia@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleMember,
	})
	var np domain.NotParticipantInProjectError
	if !errors.As(err, &np) {
		t.Fatalf("expected NotParticipantInProjectError, got %v", err)
	}

	// participant without the permission
	_, err = env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "spectator@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleMember,
	})
	var insufficient domain.RoleInsufficientPermissionError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected RoleInsufficientPermissionError, got %v", err)
	}

	// unknown invitee account
	_, err = env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "ghost@email.com",
		RoleName:     domain.RoleMember,
	})
	var anf domain.AccountNotFoundError
	if !errors.As(err, &anf) {
		t.Fatalf("expected AccountNotFoundError, got %v", err)
	}

	// invitee already participates
	_, err = env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "spectator@email.com",
		RoleName:     domain.RoleMember,
	})
	var already domain.AccountAlreadyParticipatesInProjectError
	if !errors.As(err, &already) {
		t.Fatalf("expected AccountAlreadyParticipatesInProjectError, got %v", err)
	}
}

func TestInviteAccountRejectsOwnerRole(t *testing.T) {
	env, p := inviteSetup(t)
	_, err := env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleOwner,
	})
	var ownerRole domain.OwnerRoleInInvitationError
	if !errors.As(err, &ownerRole) {
		t.Fatalf("expected OwnerRoleInInvitationError, got %v", err)
	}
	n := countRows(t, env.Engine.DB, `SELECT COUNT(*) FROM invitations`)
	if n != 0 {
		t.Fatalf("expected no invitation persisted, got %d", n)
	}
}

func TestInviteAccountRejectsUnknownRole(t *testing.T) {
	env, p := inviteSetup(t)
	_, err := env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     "superuser",
	})
	var invalid domain.InvalidRoleNameError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRoleNameError, got %v", err)
	}
}

func TestInviteAccountRejectsPendingDuplicate(t *testing.T) {
	env, p := inviteSetup(t)
	if _, err := env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleMember,
	}); err != nil {
		t.Fatalf("first invite: %v", err)
	}
	_, err := env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleAdmin,
	})
	var pending domain.AccountHasAlreadyBeenInvitedError
	if !errors.As(err, &pending) {
		t.Fatalf("expected AccountHasAlreadyBeenInvitedError, got %v", err)
	}
}

func TestAcceptInvitation(t *testing.T) {
	env, p := inviteSetup(t)
	inv, err := env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleMember,
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	participant, err := env.Engine.AcceptInvitation(env.Ctx, inv.Token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if participant.Role != domain.RoleMember || participant.AccountEmail != "garcia@email.com" {
		t.Fatalf("unexpected participant %+v", participant)
	}
	// token is consumed; accepting again fails the same way as a bogus token
	_, err = env.Engine.AcceptInvitation(env.Ctx, inv.Token)
	var invalid domain.InvalidInvitationTokenError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInvitationTokenError on reuse, got %v", err)
	}
}

func TestAcceptInvitationUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.AcceptInvitation(env.Ctx, "bogus-token")
	var invalid domain.InvalidInvitationTokenError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInvitationTokenError, got %v", err)
	}
}

func TestRevokeInvitation(t *testing.T) {
	env, p := inviteSetup(t)
	env.addParticipant(t, p.ID, "member@email.com", domain.RoleMember)
	if _, err := env.Engine.InviteAccount(env.Ctx, engine.InviteOptions{
		ProjectID:    p.ID,
		InviterEmail: "owner@email.com",
		InviteeEmail: "garcia@email.com",
		RoleName:     domain.RoleMember,
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	// a member cannot revoke someone else's invitation
	err := env.Engine.RevokeInvitation(env.Ctx, engine.RevokeInvitationOptions{
		ProjectID:      p.ID,
		RequesterEmail: "member@email.com",
		TargetEmail:    "garcia@email.com",
	})
	var insufficient domain.RoleInsufficientPermissionError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected RoleInsufficientPermissionError, got %v", err)
	}

	if err := env.Engine.RevokeInvitation(env.Ctx, engine.RevokeInvitationOptions{
		ProjectID:      p.ID,
		RequesterEmail: "owner@email.com",
		TargetEmail:    "garcia@email.com",
	}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	n := countRows(t, env.Engine.DB, `SELECT COUNT(*) FROM invitations`)
	if n != 0 {
		t.Fatalf("expected invitation deleted, got %d rows", n)
	}
}

func TestKickParticipant(t *testing.T) {
	env, p := inviteSetup(t)
	env.addParticipant(t, p.ID, "admin@email.com", domain.RoleAdmin)
	env.addParticipant(t, p.ID, "member@email.com", domain.RoleMember)

	// kicking yourself is rejected before permission is consulted
	err := env.Engine.KickParticipant(env.Ctx, engine.KickOptions{
		ProjectID:      p.ID,
		RequesterEmail: "admin@email.com",
		TargetEmail:    "admin@email.com",
	})
	var self domain.CannotKickYourselfError
	if !errors.As(err, &self) {
		t.Fatalf("expected CannotKickYourselfError, got %v", err)
	}

	// the owner can never be kicked, even by an admin
	err = env.Engine.KickParticipant(env.Ctx, engine.KickOptions{
		ProjectID:      p.ID,
		RequesterEmail: "admin@email.com",
		TargetEmail:    "owner@email.com",
	})
	var owner domain.CannotKickOwnerError
	if !errors.As(err, &owner) {
		t.Fatalf("expected CannotKickOwnerError, got %v", err)
	}

	// a member lacks the permission
	err = env.Engine.KickParticipant(env.Ctx, engine.KickOptions{
		ProjectID:      p.ID,
		RequesterEmail: "member@email.com",
		TargetEmail:    "admin@email.com",
	})
	var insufficient domain.RoleInsufficientPermissionError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected RoleInsufficientPermissionError, got %v", err)
	}

	if err := env.Engine.KickParticipant(env.Ctx, engine.KickOptions{
		ProjectID:      p.ID,
		RequesterEmail: "admin@email.com",
		TargetEmail:    "member@email.com",
	}); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if n := countRows(t, env.Engine.DB, `SELECT COUNT(*) FROM participants WHERE project_id=? AND account_email=?`, p.ID, "member@email.com"); n != 0 {
		t.Fatal("expected participant removed")
	}
}

func TestUpdateParticipantRoleGuardOrder(t *testing.T) {
	env, p := inviteSetup(t)
	env.addParticipant(t, p.ID, "admin@email.com", domain.RoleAdmin)
	env.addParticipant(t, p.ID, "member@email.com", domain.RoleMember)

	// promoting to owner is rejected before the self-update check
	err := env.Engine.UpdateParticipantRole(env.Ctx, engine.RoleUpdateOptions{
		ProjectID:      p.ID,
		RequesterEmail: "admin@email.com",
		TargetEmail:    "admin@email.com",
		RoleName:       domain.RoleOwner,
	})
	var toOwner domain.CannotUpdateRoleToOwnerError
	if !errors.As(err, &toOwner) {
		t.Fatalf("expected CannotUpdateRoleToOwnerError, got %v", err)
	}

	// self-update is rejected regardless of permissions
	err = env.Engine.UpdateParticipantRole(env.Ctx, engine.RoleUpdateOptions{
		ProjectID:      p.ID,
		RequesterEmail: "admin@email.com",
		TargetEmail:    "admin@email.com",
		RoleName:       domain.RoleMember,
	})
	var ownRole domain.CannotUpdateYourOwnRoleError
	if !errors.As(err, &ownRole) {
		t.Fatalf("expected CannotUpdateYourOwnRoleError, got %v", err)
	}

	// bogus role name
	err = env.Engine.UpdateParticipantRole(env.Ctx, engine.RoleUpdateOptions{
		ProjectID:      p.ID,
		RequesterEmail: "admin@email.com",
		TargetEmail:    "member@email.com",
		RoleName:       "espectator",
	})
	var invalid domain.InvalidRoleNameError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRoleNameError, got %v", err)
	}

	// a member lacks the permission
	err = env.Engine.UpdateParticipantRole(env.Ctx, engine.RoleUpdateOptions{
		ProjectID:      p.ID,
		RequesterEmail: "member@email.com",
		TargetEmail:    "admin@email.com",
		RoleName:       domain.RoleSpectator,
	})
	var insufficient domain.RoleInsufficientPermissionError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected RoleInsufficientPermissionError, got %v", err)
	}

	// the owner's role is immutable
	err = env.Engine.UpdateParticipantRole(env.Ctx, engine.RoleUpdateOptions{
		ProjectID:      p.ID,
		RequesterEmail: "admin@email.com",
		TargetEmail:    "owner@email.com",
		RoleName:       domain.RoleMember,
	})
	var ofOwner domain.CannotUpdateRoleOfOwnerError
	if !errors.As(err, &ofOwner) {
		t.Fatalf("expected CannotUpdateRoleOfOwnerError, got %v", err)
	}

	if err := env.Engine.UpdateParticipantRole(env.Ctx, engine.RoleUpdateOptions{
		ProjectID:      p.ID,
		RequesterEmail: "admin@email.com",
		TargetEmail:    "member@email.com",
		RoleName:       domain.RoleSpectator,
	}); err != nil {
		t.Fatalf("update role: %v", err)
	}
	role, err := env.Engine.Repo.FindParticipantRole(env.Ctx, p.ID, "member@email.com")
	if err != nil || role != domain.RoleSpectator {
		t.Fatalf("expected spectator, got %s (%v)", role, err)
	}
}
