package seeds

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/memoboard/internal/auth"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store/memstore"
)

func fullEnv() map[string]string {
	env := map[string]string{}
	for _, p := range []string{"SEED_ADMIN", "SEED_TRAINEE1", "SEED_TRAINEE2", "SEED_TRAINEE3"} {
		env[p+"_USERNAME"] = p + "_user"
		env[p+"_PASSWORD"] = "password-" + p
		env[p+"_DISPLAY"] = p
	}
	return env
}

func TestLoadSeedUsers(t *testing.T) {
	env := fullEnv()
	users, err := LoadSeedUsers(func(k string) string { return env[k] })
	require.NoError(t, err)
	require.Len(t, users, 4)
	require.Equal(t, models.RoleAdmin, users[0].Role)
	require.Equal(t, "SEED_TRAINEE3_user", users[3].Username)

	delete(env, "SEED_TRAINEE2_PASSWORD")
	_, err = LoadSeedUsers(func(k string) string { return env[k] })
	require.EqualError(t, err, "missing [SEED_TRAINEE2_PASSWORD]")
}

func TestAvailableSeedUsers(t *testing.T) {
	env := fullEnv()
	delete(env, "SEED_TRAINEE1_DISPLAY")
	delete(env, "SEED_TRAINEE3_USERNAME")

	users := AvailableSeedUsers(func(k string) string { return env[k] })
	require.Len(t, users, 2)
	require.Equal(t, "SEED_ADMIN_user", users[0].Username)
	require.Equal(t, "SEED_TRAINEE2_user", users[1].Username)

	require.Empty(t, AvailableSeedUsers(func(string) string { return "" }))
}

func TestSeedUsers_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	env := fullEnv()
	users, err := LoadSeedUsers(func(k string) string { return env[k] })
	require.NoError(t, err)

	var out bytes.Buffer
	created, err := SeedUsers(ctx, s, users, &out)
	require.NoError(t, err)
	require.Equal(t, 5, created)

	sys, err := s.UserByUsername(ctx, models.SentinelUsername)
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, sys.Role)
	require.Equal(t, "system", sys.DisplayName)

	admin, err := s.UserByUsername(ctx, "SEED_ADMIN_user")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)
	require.True(t, auth.CheckPassword(admin.PasswordHash, "password-SEED_ADMIN"))

	out.Reset()
	created, err = SeedUsers(ctx, s, users, &out)
	require.NoError(t, err)
	require.Zero(t, created)
	require.Contains(t, out.String(), "User exists: system")
}

func TestSeedUsers_SentinelOnly(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	var out bytes.Buffer
	created, err := SeedUsers(ctx, s, nil, &out)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	_, err = s.UserByUsername(ctx, models.SentinelUsername)
	require.NoError(t, err)
}
