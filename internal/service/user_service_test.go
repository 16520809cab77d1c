package service_test

import (
	"testing"

	"github.com/gatehouse-labs/gatehouse/internal/service"

	"gotest.tools/v3/assert"
)

func setupUserService(t *testing.T) *service.UserService {
	t.Helper()
	return service.NewUserService(service.UserServiceConfig{Database: newTestDatabase(t)})
}

func TestCreateUser(t *testing.T) {
	users := setupUserService(t)

	user, err := users.CreateUser(service.CreateUserParams{
		Username: "bob",
		Email:    "bob@example.com",
		Name:     "Bob",
		Password: "hunter2hunter2",
	})
	assert.NilError(t, err)
	assert.Assert(t, user.ID != "")
	assert.Assert(t, user.IsActive)
	assert.Assert(t, user.PasswordHash != "hunter2hunter2")

	assert.Assert(t, users.CheckPassword(user, "hunter2hunter2"))
	assert.Assert(t, !users.CheckPassword(user, "wrong"))

	// Omitted display name defaults to the capitalized username
	user, err = users.CreateUser(service.CreateUserParams{
		Username: "heidi",
		Email:    "heidi@example.com",
		Password: "hunter2hunter2",
	})
	assert.NilError(t, err)
	assert.Equal(t, "Heidi", user.Name)

	// Duplicate username
	_, err = users.CreateUser(service.CreateUserParams{
		Username: "bob",
		Email:    "other@example.com",
		Password: "hunter2hunter2",
	})
	assert.ErrorIs(t, err, service.ErrUsernameTaken)

	// Duplicate email
	_, err = users.CreateUser(service.CreateUserParams{
		Username: "bobby",
		Email:    "bob@example.com",
		Password: "hunter2hunter2",
	})
	assert.ErrorIs(t, err, service.ErrEmailTaken)
}

func TestUpdateUser(t *testing.T) {
	users := setupUserService(t)

	user, err := users.CreateUser(service.CreateUserParams{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "initial-password",
	})
	assert.NilError(t, err)

	name := "Carol C."
	admin := true
	updated, err := users.UpdateUser(user.ID, service.UpdateUserParams{
		Name:    &name,
		IsAdmin: &admin,
	})
	assert.NilError(t, err)
	assert.Equal(t, "Carol C.", updated.Name)
	assert.Assert(t, updated.IsAdmin)

	// Untouched fields survive a partial update
	assert.Equal(t, "carol@example.com", updated.Email)

	password := "rotated-password"
	updated, err = users.UpdateUser(user.ID, service.UpdateUserParams{Password: &password})
	assert.NilError(t, err)
	assert.Assert(t, users.CheckPassword(updated, "rotated-password"))
	assert.Assert(t, !users.CheckPassword(updated, "initial-password"))

	_, err = users.UpdateUser("missing", service.UpdateUserParams{Name: &name})
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestRoles(t *testing.T) {
	users := setupUserService(t)

	user, err := users.CreateUser(service.CreateUserParams{
		Username: "dave",
		Email:    "dave@example.com",
		Password: "dave-password",
	})
	assert.NilError(t, err)

	role, err := users.CreateRole("auditor", "Read only access to reports")
	assert.NilError(t, err)

	assert.NilError(t, users.AssignRole(user.ID, role.ID))

	// Assigning twice is a no-op
	assert.NilError(t, users.AssignRole(user.ID, role.ID))

	roles, err := users.GetUserRoles(user.ID)
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"auditor"}, roles)

	// A role in use cannot be deleted
	err = users.DeleteRole(role.ID)
	assert.ErrorIs(t, err, service.ErrRoleInUse)

	assert.NilError(t, users.RemoveRole(user.ID, role.ID))
	assert.NilError(t, users.DeleteRole(role.ID))

	err = users.DeleteRole(role.ID)
	assert.ErrorIs(t, err, service.ErrRoleNotFound)
}

func TestDeleteUserCleansRoles(t *testing.T) {
	users := setupUserService(t)

	user, err := users.CreateUser(service.CreateUserParams{
		Username: "erin",
		Email:    "erin@example.com",
		Password: "erin-password",
	})
	assert.NilError(t, err)

	role, err := users.CreateRole("operator", "")
	assert.NilError(t, err)
	assert.NilError(t, users.AssignRole(user.ID, role.ID))

	assert.NilError(t, users.DeleteUser(user.ID))

	_, err = users.GetUser(user.ID)
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	// The assignment is gone, so the role is deletable again
	assert.NilError(t, users.DeleteRole(role.ID))
}
