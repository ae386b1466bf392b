package domain

import "testing"

func TestParseRoleRejectsUnknownNames(t *testing.T) {
	for _, name := range []string{"", "superuser", "Owner", "OWNER", "espectator "} {
		if _, err := ParseRole(name); err == nil {
			t.Errorf("expected error for role name %q", name)
		}
	}
}

func TestParseRoleAcceptsClosedSet(t *testing.T) {
	for _, name := range RoleNames() {
		r, err := ParseRole(name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if r.Name() != name {
			t.Fatalf("expected name %s, got %s", name, r.Name())
		}
	}
}

func TestRolePermissionMatrix(t *testing.T) {
	cases := []struct {
		role string
		perm Permission
		want bool
	}{
		{RoleSpectator, PermCreateIssue, false},
		{RoleSpectator, PermUpdateProject, false},
		{RoleMember, PermCreateIssue, true},
		{RoleMember, PermMoveIssue, true},
		{RoleMember, PermInviteAccount, false},
		{RoleMember, PermDeleteProject, false},
		{RoleAdmin, PermInviteAccount, true},
		{RoleAdmin, PermKickParticipant, true},
		{RoleAdmin, PermUpdateParticipantRole, true},
		{RoleAdmin, PermDeleteIssueGroup, true},
		{RoleAdmin, PermDeleteProject, false},
		{RoleOwner, PermDeleteProject, true},
		{RoleOwner, PermAssignIssue, true},
	}
	for _, tc := range cases {
		r, err := ParseRole(tc.role)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.role, err)
		}
		if got := r.Can(tc.perm); got != tc.want {
			t.Errorf("%s.Can(%s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestCanIsStable(t *testing.T) {
	r, _ := ParseRole(RoleMember)
	for i := 0; i < 3; i++ {
		if !r.Can(PermCreateIssue) {
			t.Fatalf("expected stable result on call %d", i)
		}
	}
}
