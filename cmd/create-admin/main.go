package main

import (
	"content-wiki/internal/config"
	"content-wiki/internal/database"
	"content-wiki/internal/logging"
	"content-wiki/internal/models"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// EnvAdminPassword is read when no -password flag is given.
const EnvAdminPassword = "WIKI_ADMIN_PASSWORD"

var (
	username    = flag.String("username", "admin", "Username of the admin account")
	email       = flag.String("email", "", "Email address of the admin account")
	password    = flag.String("password", "", "Password of the admin account (default $"+EnvAdminPassword+")")
	displayName = flag.String("display-name", "", "Name shown next to the revisions of the admin")
)

// create-admin bootstraps an admin account so that the first editors can be managed through the API.
func main() {
	c := config.InitConfig()
	logger := logging.InitLogging(c)

	if err := run(c, logger); err != nil {
		logger.LogError(logging.GetLogTypeInitialization(), err)
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *config.Configuration, logger logging.Logger) error {
	if c.Database.Driver == config.DriverMemory {
		return errors.New("the memory driver keeps no data; configure a database to create an admin")
	}

	admin, err := newAdmin()
	if err != nil {
		return err
	}

	repository, err := database.InitRepository(c, logger)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = repository.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("error creating admin %s: %w", admin.Username, err)
	}

	logger.LogInfof(logging.GetLogTypeInitialization(), "created admin %s with id %d", admin.Username, admin.ID)
	return nil
}

func newAdmin() (*models.User, error) {
	pw := *password
	if len(pw) == 0 {
		pw = os.Getenv(EnvAdminPassword)
	}

	admin := &models.User{
		Username:    *username,
		Email:       *email,
		Password:    pw,
		DisplayName: strings.TrimSpace(*displayName),
		Role:        models.RoleAdmin,
	}
	admin.Prepare()
	if err := admin.Validate(); err != nil {
		return nil, err
	}
	if len(admin.Email) == 0 {
		return nil, errors.New("email is required")
	}
	return admin, nil
}
