package auth

import (
	"content-wiki/internal/environment"
	"content-wiki/internal/models"
	"context"
	"errors"
)

const usernamePasswordFalse = "username or password false"

var ErrLoginFailed = errors.New(usernamePasswordFalse)

type AuthService struct {
	*environment.Env
}

// DoLogin checks the credentials of user and fills in its id, role and display name.
func (c *AuthService) DoLogin(ctx context.Context, user *models.User) error {
	var foundUser models.User

	err := c.FindUserLoginCredentials(ctx, user.Username, &foundUser)
	if err != nil {
		return ErrLoginFailed
	}
	if err = models.VerifyPassword(foundUser.Password, user.Password); err != nil {
		return ErrLoginFailed
	}

	user.ID = foundUser.ID
	user.Role = foundUser.Role
	user.DisplayName = foundUser.DisplayName
	return nil
}

// Roles returns the token roles of a user; admins may do everything editors may do.
func Roles(user *models.User) []string {
	if user.Role == models.RoleAdmin {
		return []string{string(models.RoleAdmin), string(models.RoleEditor)}
	}
	return []string{string(models.RoleEditor)}
}
