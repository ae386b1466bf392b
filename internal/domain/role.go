package domain

// Permission identifies a single mutating capability inside a project.
type Permission string

const (
	PermInviteAccount         Permission = "project.invite"
	PermRevokeInvitation      Permission = "invitation.revoke"
	PermKickParticipant       Permission = "participant.kick"
	PermUpdateParticipantRole Permission = "participant.role.update"
	PermCreateIssueGroup      Permission = "issuegroup.create"
	PermDeleteIssueGroup      Permission = "issuegroup.delete"
	PermCreateIssue           Permission = "issue.create"
	PermUpdateIssue           Permission = "issue.update"
	PermDeleteIssue           Permission = "issue.delete"
	PermMoveIssue             Permission = "issue.move"
	PermAssignIssue           Permission = "issue.assign"
	PermUpdateProject         Permission = "project.update"
	PermDeleteProject         Permission = "project.delete"
)

// Role is one of a closed set of names, each mapped to a fixed permission set.
type Role struct {
	name string
}

const (
	RoleOwner     = "owner"
	RoleAdmin     = "admin"
	RoleMember    = "member"
	RoleSpectator = "spectator"
)

var memberPerms = []Permission{
	PermCreateIssue,
	PermUpdateIssue,
	PermDeleteIssue,
	PermMoveIssue,
	PermAssignIssue,
}

var adminPerms = append([]Permission{
	PermInviteAccount,
	PermRevokeInvitation,
	PermKickParticipant,
	PermUpdateParticipantRole,
	PermCreateIssueGroup,
	PermDeleteIssueGroup,
	PermUpdateProject,
}, memberPerms...)

var ownerPerms = append([]Permission{
	PermDeleteProject,
}, adminPerms...)

var rolePermissions = map[string][]Permission{
	RoleSpectator: nil,
	RoleMember:    memberPerms,
	RoleAdmin:     adminPerms,
	RoleOwner:     ownerPerms,
}

// ParseRole validates a role name against the closed set.
func ParseRole(name string) (Role, error) {
	if _, ok := rolePermissions[name]; !ok {
		return Role{}, InvalidRoleNameError{Name: name}
	}
	return Role{name: name}, nil
}

func (r Role) Name() string { return r.name }

// Can reports whether the role grants the permission. Pure lookup, no I/O.
func (r Role) Can(p Permission) bool {
	for _, granted := range rolePermissions[r.name] {
		if granted == p {
			return true
		}
	}
	return false
}

// RoleNames returns the closed set of valid role names.
func RoleNames() []string {
	return []string{RoleOwner, RoleAdmin, RoleMember, RoleSpectator}
}
