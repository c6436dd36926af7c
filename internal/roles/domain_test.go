package roles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	role, err := Parse("  Manager ")
	require.NoError(t, err)
	require.Equal(t, RoleManager, role)

	_, err = Parse("owner")
	require.Error(t, err)

	_, err = Parse("")
	require.Error(t, err)
}

func TestWeightOrdering(t *testing.T) {
	all := All()
	for i := 1; i < len(all); i++ {
		require.Greater(t, all[i].Weight(), all[i-1].Weight(),
			"%s should outrank %s", all[i], all[i-1])
	}
}

func TestAtLeast(t *testing.T) {
	require.True(t, RoleAdmin.AtLeast(RoleManager))
	require.True(t, RoleManager.AtLeast(RoleManager))
	require.False(t, RoleViewer.AtLeast(RoleEditor))
	require.False(t, RoleNone.AtLeast(RoleViewer))
	require.False(t, RoleAdmin.AtLeast(Role("owner")))
}

func TestAllow(t *testing.T) {
	// The weakest acceptable role sets the floor.
	require.True(t, Allow(RoleOperator, RoleOperator, RoleManager))
	require.True(t, Allow(RoleSuperadmin, RoleViewer))
	require.False(t, Allow(RoleEditor, RoleOperator, RoleManager))

	// Closed by default.
	require.False(t, Allow(RoleNone, RoleViewer))
	require.False(t, Allow(RoleAdmin))
	require.False(t, Allow(Role("owner"), RoleViewer))
	require.False(t, Allow(RoleAdmin, Role("owner")))
}
