package auth_test

import (
	"bytes"
	"content-wiki/internal/auth"
	"content-wiki/internal/database"
	"content-wiki/internal/environment"
	"content-wiki/internal/middlewares"
	"content-wiki/internal/models"
	"context"
	"encoding/json"
	"github.com/gin-gonic/gin"
	"net/http"
	"net/http/httptest"
	"testing"
)

type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

func newController(t *testing.T) (*auth.Controller, models.User) {
	t.Helper()
	repo := database.NewMemoryRepository()
	admin := models.User{Username: "root", Email: "root@example.com", Password: "s3cret", Role: models.RoleAdmin}
	if err := repo.CreateUser(context.Background(), &admin); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	return auth.NewController(environment.Environment(repo, nil)), admin
}

func login(ctrl *auth.Controller, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(body))
	ctrl.Login(c)
	return w
}

func TestLogin_Success(t *testing.T) {
	ctrl, admin := newController(t)

	w := login(ctrl, `{"data": {"username": " root ", "password": "s3cret"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", w.Code, w.Body.String())
	}

	var got loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshalling error: %v", err)
	}

	token, err := middlewares.ValidateToken(got.Data.Token, middlewares.SigningKey)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	claims := token.Claims.(*middlewares.WikiClaims)
	if claims.UserId != admin.ID || claims.Username != "root" {
		t.Errorf("got claims %+v, want user %d", claims, admin.ID)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != string(models.RoleAdmin) {
		t.Errorf("got roles %v, want ADMIN and EDITOR", claims.Roles)
	}
}

func TestLogin_Failures(t *testing.T) {
	ctrl, _ := newController(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrongPassword", `{"data": {"username": "root", "password": "nope"}}`, http.StatusUnauthorized},
		{"unknownUser", `{"data": {"username": "nobody", "password": "s3cret"}}`, http.StatusUnauthorized},
		{"missingPassword", `{"data": {"username": "root"}}`, http.StatusUnprocessableEntity},
		{"brokenJson", `{"data": `, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := login(ctrl, tt.body); w.Code != tt.want {
				t.Errorf("got status %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRefreshToken(t *testing.T) {
	ctrl, admin := newController(t)

	token, _, err := middlewares.GenerateToken(context.Background(), []byte(middlewares.SigningKey), admin.ID, admin.Username, []string{"ADMIN"})
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/refresh-token", nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)
	ctrl.RefreshToken(c)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	var got loginResponse
	if err = json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshalling error: %v", err)
	}
	refreshed, err := middlewares.ValidateToken(got.Data.Token, middlewares.SigningKey)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	if refreshed.Claims.(*middlewares.WikiClaims).UserId != admin.ID {
		t.Error("refreshed token lost the user id")
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/refresh-token", nil)
	ctrl.RefreshToken(c)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401 without token", w.Code)
	}
}
