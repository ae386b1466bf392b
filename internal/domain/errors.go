package domain

import "fmt"

// Not-found errors map to HTTP 404.

type ProjectNotFoundError struct{ ProjectID string }

func (e ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %s not found", e.ProjectID)
}

type AccountNotFoundError struct{ Email string }

func (e AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.Email)
}

type IssueGroupNotFoundError struct{ IssueGroupID string }

func (e IssueGroupNotFoundError) Error() string {
	return fmt.Sprintf("issue group %s not found", e.IssueGroupID)
}

type IssueNotFoundError struct{ IssueID string }

func (e IssueNotFoundError) Error() string {
	return fmt.Sprintf("issue %s not found", e.IssueID)
}

// RoleInsufficientPermissionError maps to HTTP 401.

type RoleInsufficientPermissionError struct {
	Role       string
	Permission Permission
}

func (e RoleInsufficientPermissionError) Error() string {
	return fmt.Sprintf("role %s lacks permission %s", e.Role, e.Permission)
}

// Validation and business-rule errors map to HTTP 400.

type InvalidEmailError struct{ Email string }

func (e InvalidEmailError) Error() string {
	return fmt.Sprintf("email %s is not valid", e.Email)
}

type EmailAlreadyInUseError struct{ Email string }

func (e EmailAlreadyInUseError) Error() string {
	return fmt.Sprintf("email %s is already in use", e.Email)
}

type InvalidDateError struct{ Field string }

func (e InvalidDateError) Error() string {
	return fmt.Sprintf("%s is not a valid RFC 3339 date", e.Field)
}

type NotFutureDateError struct{ Field string }

func (e NotFutureDateError) Error() string {
	return fmt.Sprintf("%s must be a future date", e.Field)
}

type InvalidRoleNameError struct{ Name string }

func (e InvalidRoleNameError) Error() string {
	return fmt.Sprintf("role name %s is not valid", e.Name)
}

type NotParticipantInProjectError struct{ Email string }

func (e NotParticipantInProjectError) Error() string {
	return fmt.Sprintf("account %s does not participate in this project", e.Email)
}

type AccountAlreadyParticipatesInProjectError struct{ Email string }

func (e AccountAlreadyParticipatesInProjectError) Error() string {
	return fmt.Sprintf("account %s already participates in this project", e.Email)
}

type AccountHasAlreadyBeenInvitedError struct{ Email string }

func (e AccountHasAlreadyBeenInvitedError) Error() string {
	return fmt.Sprintf("account %s already has a pending invitation for this project", e.Email)
}

type OwnerRoleInInvitationError struct{}

func (OwnerRoleInInvitationError) Error() string {
	return "owner cannot be used as the role of an invitation"
}

type InvalidInvitationTokenError struct{ Token string }

func (e InvalidInvitationTokenError) Error() string {
	return "invitation token is not valid"
}

type CannotKickYourselfError struct{}

func (CannotKickYourselfError) Error() string {
	return "you cannot kick yourself out of a project"
}

type CannotKickOwnerError struct{}

func (CannotKickOwnerError) Error() string {
	return "the owner of a project cannot be kicked"
}

type CannotUpdateYourOwnRoleError struct{}

func (CannotUpdateYourOwnRoleError) Error() string {
	return "you cannot update your own role"
}

type CannotUpdateRoleOfOwnerError struct{}

func (CannotUpdateRoleOfOwnerError) Error() string {
	return "the role of the project owner cannot be updated"
}

type CannotUpdateRoleToOwnerError struct{}

func (CannotUpdateRoleToOwnerError) Error() string {
	return "a participant cannot be promoted to owner"
}

type IssueGroupBelongsToDifferentProjectError struct {
	IssueGroupID string
}

func (e IssueGroupBelongsToDifferentProjectError) Error() string {
	return fmt.Sprintf("issue group %s belongs to a different project", e.IssueGroupID)
}

type ProjectHasntBegunError struct{ ProjectID string }

func (e ProjectHasntBegunError) Error() string {
	return fmt.Sprintf("project %s has not begun yet", e.ProjectID)
}

type ProjectIsArchivedError struct{ ProjectID string }

func (e ProjectIsArchivedError) Error() string {
	return fmt.Sprintf("project %s is archived", e.ProjectID)
}
