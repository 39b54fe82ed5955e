// Package seeds creates the system user and the initial accounts named by the
// SEED_* environment variables.
package seeds

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/EmpoweredVote/memoboard/internal/auth"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/utils"
)

type SeedUser struct {
	Username    string
	Password    string
	DisplayName string
	Role        string
}

var seedPrefixes = []struct {
	prefix string
	role   string
}{
	{"SEED_ADMIN", models.RoleAdmin},
	{"SEED_TRAINEE1", models.RoleUser},
	{"SEED_TRAINEE2", models.RoleUser},
	{"SEED_TRAINEE3", models.RoleUser},
}

func fromEnv(getenv func(string) string, prefix, role string) SeedUser {
	return SeedUser{
		Username:    getenv(prefix + "_USERNAME"),
		Password:    getenv(prefix + "_PASSWORD"),
		DisplayName: getenv(prefix + "_DISPLAY"),
		Role:        role,
	}
}

// LoadSeedUsers reads <PREFIX>_USERNAME, _PASSWORD and _DISPLAY for the admin
// and three trainees. Every variable is required.
func LoadSeedUsers(getenv func(string) string) ([]SeedUser, error) {
	var missing []string
	users := make([]SeedUser, 0, len(seedPrefixes))
	for _, p := range seedPrefixes {
		u := fromEnv(getenv, p.prefix, p.role)
		for _, f := range []struct{ suffix, value string }{
			{"_USERNAME", u.Username}, {"_PASSWORD", u.Password}, {"_DISPLAY", u.DisplayName},
		} {
			if f.value == "" {
				missing = append(missing, p.prefix+f.suffix)
			}
		}
		users = append(users, u)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing %v", missing)
	}
	return users, nil
}

// AvailableSeedUsers returns the users whose three variables are all set and
// skips the rest.
func AvailableSeedUsers(getenv func(string) string) []SeedUser {
	var users []SeedUser
	for _, p := range seedPrefixes {
		u := fromEnv(getenv, p.prefix, p.role)
		if u.Username == "" || u.Password == "" || u.DisplayName == "" {
			continue
		}
		users = append(users, u)
	}
	return users
}

type UserStore interface {
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

// SeedUsers makes sure the system user exists, then creates each of users that
// is not already present. It returns how many rows were inserted.
func SeedUsers(ctx context.Context, s UserStore, users []SeedUser, out io.Writer) (int, error) {
	// Nobody logs in as the system user, so its password is random and
	// never shown.
	all := append([]SeedUser{{
		Username:    models.SentinelUsername,
		Password:    uuid.NewString() + uuid.NewString(),
		DisplayName: models.SentinelUsername,
		Role:        models.RoleUser,
	}}, users...)

	created := 0
	for _, u := range all {
		_, err := s.UserByUsername(ctx, u.Username)
		if err == nil {
			fmt.Fprintf(out, "User exists: %s\n", u.Username)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return created, fmt.Errorf("lookup %s: %w", u.Username, err)
		}

		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return created, fmt.Errorf("hash %s: %w", u.Username, err)
		}
		row := models.User{
			ID:           utils.GenerateUUID(),
			Username:     u.Username,
			PasswordHash: hash,
			DisplayName:  u.DisplayName,
			Role:         u.Role,
			CreatedAt:    utils.Now(),
		}
		if err := s.CreateUser(ctx, &row); err != nil {
			return created, fmt.Errorf("create %s: %w", u.Username, err)
		}
		created++
		fmt.Fprintf(out, "Created user: %s\n", u.Username)
	}
	return created, nil
}
