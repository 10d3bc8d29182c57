package stubserver

import (
	"fmt"

	"github.com/noah-isme/pass-request-client/internal/models"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password"

// SeedGroups are registered by Seed, deliberately out of order.
var SeedGroups = []int{972303, 972301, 972302}

// SeedEmail returns the seeded account email for role.
func SeedEmail(role models.UserRole) string {
	return fmt.Sprintf("%s@stub.local", role)
}

// Seed registers the default groups and one account per role.
func Seed(store *Store) error {
	for _, n := range SeedGroups {
		store.AddGroup(n, false)
	}
	store.AddGroup(972201, true)

	group := SeedGroups[1]
	accounts := []struct {
		name  string
		role  models.UserRole
		group *int
	}{
		{name: "Admin Adminov", role: models.RoleAdmin},
		{name: "Dina Deanova", role: models.RoleDeanery},
		{name: "Timur Teacherov", role: models.RoleTeacher},
		{name: "Ivan Petrov", role: models.RoleStudent, group: &group},
	}
	for _, a := range accounts {
		if _, err := store.AddUser(a.name, SeedEmail(a.role), SeedPassword, a.role, a.group); err != nil {
			return fmt.Errorf("seed %s: %w", a.role, err)
		}
	}
	return nil
}
