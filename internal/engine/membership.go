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

type InviteOptions struct {
	ProjectID    string
	InviterEmail string
	InviteeEmail string
	RoleName     string
}

// InviteAccount runs the invitation guard chain in its pinned order and
// creates a pending invitation with a generated token.
func (e Engine) InviteAccount(ctx context.Context, opts InviteOptions) (domain.Invitation, error) {
	if err := e.requireProject(ctx, opts.ProjectID); err != nil {
		return domain.Invitation{}, err
	}
	if err := e.authorize(ctx, opts.ProjectID, opts.InviterEmail, domain.PermInviteAccount); err != nil {
		return domain.Invitation{}, err
	}
	exists, err := e.Repo.DoesAccountExist(ctx, opts.InviteeEmail)
	if err != nil {
		return domain.Invitation{}, err
	}
	if !exists {
		return domain.Invitation{}, domain.AccountNotFoundError{Email: opts.InviteeEmail}
	}
	participates, err := e.Repo.DoesParticipantExist(ctx, opts.ProjectID, opts.InviteeEmail)
	if err != nil {
		return domain.Invitation{}, err
	}
	if participates {
		return domain.Invitation{}, domain.AccountAlreadyParticipatesInProjectError{Email: opts.InviteeEmail}
	}
	pending, err := e.Repo.HasPendingInvitation(ctx, opts.ProjectID, opts.InviteeEmail)
	if err != nil {
		return domain.Invitation{}, err
	}
	if pending {
		return domain.Invitation{}, domain.AccountHasAlreadyBeenInvitedError{Email: opts.InviteeEmail}
	}
	role, err := domain.ParseRole(opts.RoleName)
	if err != nil {
		return domain.Invitation{}, err
	}
	if role.Name() == domain.RoleOwner {
		return domain.Invitation{}, domain.OwnerRoleInInvitationError{}
	}
	inv := domain.Invitation{
		Token:        uuid.New().String(),
		ProjectID:    opts.ProjectID,
		AccountEmail: opts.InviteeEmail,
		Role:         role.Name(),
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invitation{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertInvitation(ctx, tx, inv); err != nil {
		return domain.Invitation{}, err
	}
	if err := e.Events.Append(ctx, tx, "invitation.sent", inv.ProjectID, "invitation", inv.Token, opts.InviterEmail, events.EventPayload{
		"account_email": inv.AccountEmail,
		"role":          inv.Role,
	}); err != nil {
		return domain.Invitation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Invitation{}, err
	}
	return inv, nil
}

// AcceptInvitation converts a pending invitation into a participant row. The
// only invalid state is "token not found"; accepting twice fails the same way.
func (e Engine) AcceptInvitation(ctx context.Context, token string) (domain.Participant, error) {
	inv, err := e.Repo.GetInvitationByToken(ctx, token)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Participant{}, domain.InvalidInvitationTokenError{Token: token}
	}
	if err != nil {
		return domain.Participant{}, err
	}
	p := domain.Participant{
		ProjectID:    inv.ProjectID,
		AccountEmail: inv.AccountEmail,
		Role:         inv.Role,
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Participant{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertParticipant(ctx, tx, p); err != nil {
		return domain.Participant{}, err
	}
	if err := e.Repo.DeleteInvitationByToken(ctx, tx, token); err != nil {
		return domain.Participant{}, err
	}
	if err := e.Events.Append(ctx, tx, "invitation.accepted", inv.ProjectID, "participant", inv.AccountEmail, inv.AccountEmail, events.EventPayload{
		"role": inv.Role,
	}); err != nil {
		return domain.Participant{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Participant{}, err
	}
	return p, nil
}

type RevokeInvitationOptions struct {
	ProjectID      string
	RequesterEmail string
	TargetEmail    string
}

// RevokeInvitation deletes a pending invitation. Revoking someone else's
// invitation requires the permission; revoking your own does not.
func (e Engine) RevokeInvitation(ctx context.Context, opts RevokeInvitationOptions) error {
	if err := e.requireProject(ctx, opts.ProjectID); err != nil {
		return err
	}
	if _, err := e.participantRole(ctx, opts.ProjectID, opts.RequesterEmail); err != nil {
		return err
	}
	if opts.TargetEmail != opts.RequesterEmail {
		if err := e.authorize(ctx, opts.ProjectID, opts.RequesterEmail, domain.PermRevokeInvitation); err != nil {
			return err
		}
	}
	exists, err := e.Repo.DoesAccountExist(ctx, opts.TargetEmail)
	if err != nil {
		return err
	}
	if !exists {
		return domain.AccountNotFoundError{Email: opts.TargetEmail}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteInvitation(ctx, tx, opts.ProjectID, opts.TargetEmail); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.InvalidInvitationTokenError{}
		}
		return err
	}
	if err := e.Events.Append(ctx, tx, "invitation.revoked", opts.ProjectID, "invitation", opts.TargetEmail, opts.RequesterEmail, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

type KickOptions struct {
	ProjectID      string
	RequesterEmail string
	TargetEmail    string
}

func (e Engine) KickParticipant(ctx context.Context, opts KickOptions) error {
	if err := e.requireProject(ctx, opts.ProjectID); err != nil {
		return err
	}
	if _, err := e.participantRole(ctx, opts.ProjectID, opts.RequesterEmail); err != nil {
		return err
	}
	targetRole, err := e.participantRole(ctx, opts.ProjectID, opts.TargetEmail)
	if err != nil {
		return err
	}
	if opts.TargetEmail == opts.RequesterEmail {
		return domain.CannotKickYourselfError{}
	}
	if targetRole.Name() == domain.RoleOwner {
		return domain.CannotKickOwnerError{}
	}
	if err := e.authorize(ctx, opts.ProjectID, opts.RequesterEmail, domain.PermKickParticipant); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteParticipant(ctx, tx, opts.ProjectID, opts.TargetEmail); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "participant.kicked", opts.ProjectID, "participant", opts.TargetEmail, opts.RequesterEmail, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

type RoleUpdateOptions struct {
	ProjectID      string
	RequesterEmail string
	TargetEmail    string
	RoleName       string
}

// UpdateParticipantRole follows a check order pinned by tests: which error a
// malformed request surfaces first is part of the contract.
func (e Engine) UpdateParticipantRole(ctx context.Context, opts RoleUpdateOptions) error {
	if err := e.requireProject(ctx, opts.ProjectID); err != nil {
		return err
	}
	if _, err := e.participantRole(ctx, opts.ProjectID, opts.RequesterEmail); err != nil {
		return err
	}
	targetRole, err := e.participantRole(ctx, opts.ProjectID, opts.TargetEmail)
	if err != nil {
		return err
	}
	if opts.RoleName == domain.RoleOwner {
		return domain.CannotUpdateRoleToOwnerError{}
	}
	if opts.TargetEmail == opts.RequesterEmail {
		return domain.CannotUpdateYourOwnRoleError{}
	}
	newRole, err := domain.ParseRole(opts.RoleName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, opts.ProjectID, opts.RequesterEmail, domain.PermUpdateParticipantRole); err != nil {
		return err
	}
	if targetRole.Name() == domain.RoleOwner {
		return domain.CannotUpdateRoleOfOwnerError{}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateParticipantRole(ctx, tx, opts.ProjectID, opts.TargetEmail, newRole.Name()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "participant.role.updated", opts.ProjectID, "participant", opts.TargetEmail, opts.RequesterEmail, events.EventPayload{
		"from": targetRole.Name(),
		"to":   newRole.Name(),
	}); err != nil {
		return err
	}
	return tx.Commit()
}
