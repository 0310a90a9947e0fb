package models

import (
	"errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"html"
	"strings"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
)

// User is an authenticated actor. Revisions and articles reference users as their author.
type User struct {
	Model
	Username    string `gorm:"not null;unique" json:"username" mapstructure:"username"`
	Email       string `gorm:"not null;unique" json:"email" mapstructure:"email"`
	Password    string `gorm:"not null" json:"-" mapstructure:"password"`
	DisplayName string `json:"displayName" mapstructure:"displayName"`
	Role        Role   `gorm:"not null;default:EDITOR" json:"role" mapstructure:"-"`
}

// Name returns the name shown next to revisions in the history view.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if len(u.DisplayName) > 0 {
		return u.DisplayName
	}
	return u.Username
}

func Hash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Prepare trims and escapes the login fields in place.
func (u *User) Prepare() {
	u.Username = html.EscapeString(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
}

// Validate checks the fields required for a login.
func (u *User) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Username, validation.Required.Error("username is required")),
		validation.Field(&u.Password, validation.Required.Error("password is required")),
	)
}

// BeforeSave hashes a plain text password before it is persisted.
// Already hashed passwords (bcrypt prefix) are left untouched.
func (u *User) BeforeSave(_ *gorm.DB) error {
	if len(u.Password) == 0 {
		return errors.New("password must not be empty")
	}
	if strings.HasPrefix(u.Password, "$2a$") || strings.HasPrefix(u.Password, "$2b$") {
		return nil
	}
	hashedPassword, err := Hash(u.Password)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}
