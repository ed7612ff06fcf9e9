package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow-backend/internal/shared/apperr"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		name      string
		requester string
		role      Role
		owner     string
		want      bool
	}{
		{name: "owner editor", requester: "u1", role: RoleEditor, owner: "u1", want: true},
		{name: "owner viewer", requester: "u1", role: RoleViewer, owner: "u1", want: true},
		{name: "other editor", requester: "u1", role: RoleEditor, owner: "u2", want: false},
		{name: "other viewer", requester: "u1", role: RoleViewer, owner: "u2", want: false},
		{name: "admin other", requester: "u1", role: RoleAdmin, owner: "u2", want: true},
		{name: "admin no id", requester: "", role: RoleAdmin, owner: "u2", want: true},
		{name: "empty ids", requester: "", role: RoleEditor, owner: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allow(tt.requester, tt.role, tt.owner))
		})
	}
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check(Principal{UserID: "u1", Role: RoleEditor}, "u1"))

	err := Check(Principal{UserID: "u1", Role: RoleEditor}, "u2")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, ForbiddenMessage, apperr.MessageOf(err))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)

	p := Principal{Role: RoleViewer}
	assert.True(t, p.HasRole(RoleEditor, RoleViewer))
	assert.False(t, p.HasRole(RoleAdmin))
	assert.False(t, p.IsAdmin())
}
