package auth

import (
	"content-wiki/internal/api"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"content-wiki/internal/middlewares"
	"content-wiki/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Api defines the set of authentication-related endpoints exposed by the system.
type Api interface {

	// Login to the wiki
	Login(c *gin.Context)

	// RefreshToken creates a new access token after validating the old one
	RefreshToken(c *gin.Context)
}

// Controller wires environment dependencies with authentication service methods.
// It fulfills the Api interface and delegates business logic to AuthService.
type Controller struct {
	*environment.Env
	*AuthService
}

// ensure Controller implements Api
var _ Api = &Controller{}

func NewController(env *environment.Env) *Controller {
	return &Controller{Env: env, AuthService: &AuthService{Env: env}}
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (ac *Controller) Login(c *gin.Context) {
	logType := logging.GetLogTypeAuth(logging.RequestId(c.Request.Context()))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		ac.LogErrorf(logType, "Error reading login info: %v", err)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, api.NewErrorResponse("Error reading login info"))
		return
	}

	request := api.GenericRequest{}
	err = request.Load(body)
	if err != nil {
		ac.LogErrorf(logType, "Error loading request data: %v", err)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, api.NewErrorResponse("Error reading login info"))
		return
	}

	login := api.LoginRequest{}
	err = request.DecodeDataTo(&login)
	if err != nil {
		ac.LogErrorf(logType, "Error loading user data: %v", err)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, api.NewErrorResponse("Error reading user info"))
		return
	}
	user := models.User{Username: login.Username, Password: login.Password}
	user.Prepare()
	err = user.Validate()
	if err != nil {
		ac.LogDebugf(logType, "Error validating user: %v", err)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, api.NewErrorResponsef("Error validating User: %v", err))
		return
	}

	err = ac.DoLogin(c.Request.Context(), &user)
	if err != nil {
		ac.LogInfof(logType, "login of %s failed", user.Username)
		c.AbortWithStatusJSON(http.StatusUnauthorized, api.NewErrorResponse("Login not successful"))
		return
	}

	//issue token
	token, expiresAt, err := middlewares.GenerateToken(c.Request.Context(), []byte(middlewares.SigningKey), user.ID, user.Username, Roles(&user))
	if err != nil {
		ac.LogErrorf(logType, "Error creating JWT: %v", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, api.NewErrorResponse("Error creating JWT"))
		return
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "", tokenResponse{Token: token, ExpiresAt: expiresAt}))
}

func (ac *Controller) RefreshToken(c *gin.Context) {
	tokenHeader := c.Request.Header.Get("Authorization")

	b := "Bearer "
	if !strings.HasPrefix(tokenHeader, b) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, api.NewErrorResponse("An authorization token was not supplied"))
		return
	}

	token, err := middlewares.ValidateToken(strings.TrimPrefix(tokenHeader, b), middlewares.SigningKey)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, api.NewErrorResponsef("Invalid authorization token: %v", err))
		return
	}

	claims := token.Claims.(*middlewares.WikiClaims)
	expiresAt := time.Now().Add(middlewares.TokenTtl)
	claims.ExpiresAt = expiresAt.Unix()
	claims.IssuedAt = time.Now().Unix()

	// Create the token
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := newToken.SignedString([]byte(middlewares.SigningKey))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, api.NewErrorResponse("Error refreshing JWT"))
		return
	}
	c.JSON(http.StatusOK, api.NewGenericResponse(api.Success, "", tokenResponse{Token: tokenString, ExpiresAt: expiresAt}))
}
