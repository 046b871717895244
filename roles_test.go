package authstate_test

import (
	"testing"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/stretchr/testify/assert"
)

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role  authstate.Role
		valid bool
	}{
		{authstate.RoleAdmin, true},
		{authstate.RoleCoordinator, true},
		{authstate.RoleStudent, true},
		{authstate.RoleNone, false},
		{authstate.Role("Admin"), false},
		{authstate.Role("guest"), false},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.role.IsValid())
		})
	}
}

func TestParseRole(t *testing.T) {
	role, ok := authstate.ParseRole("coordinator")
	assert.True(t, ok)
	assert.Equal(t, authstate.RoleCoordinator, role)

	role, ok = authstate.ParseRole("root")
	assert.False(t, ok)
	assert.Equal(t, authstate.Role("root"), role)

	_, ok = authstate.ParseRole("")
	assert.False(t, ok)
}

func TestRole_None(t *testing.T) {
	assert.True(t, authstate.RoleNone.IsNone())
	assert.False(t, authstate.RoleStudent.IsNone())
	assert.Equal(t, "none", authstate.RoleNone.String())
	assert.Equal(t, "student", authstate.RoleStudent.String())
	assert.ElementsMatch(t, []authstate.Role{
		authstate.RoleAdmin,
		authstate.RoleCoordinator,
		authstate.RoleStudent,
	}, authstate.AllRoles())
}
