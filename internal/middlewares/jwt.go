package middlewares

import (
	"context"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"net/http"
	"strings"
	"time"
)

const actorKey = "actor"

var (
	SigningKey = "79tesfUO0vy!U1wl7c8&EavOzmO2#W"
	TokenTtl   = 12 * time.Hour
)

// AuthHandler rejects requests without a valid bearer token and stores the claims of the token
// in the gin context; see Actor and ActorId. If authRoles are given, the token must carry one of them.
func AuthHandler(authRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {

		token := c.Request.Header.Get("Authorization")

		// Check if toke in correct format
		// ie Bearer xx03xllasx
		b := "Bearer "
		if !strings.HasPrefix(token, b) {
			if len(token) <= 0 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Your request is not authorized."})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Your request is not authorized. Are you missing the prefix 'Bearer'?"})
			}
			return
		}
		t := strings.TrimPrefix(token, b)
		if len(t) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "An authorization token was not supplied"})
			return
		}

		// Validate token
		parsed, err := ValidateToken(t, SigningKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid authorization token"})
			return
		}

		claims := parsed.Claims.(*WikiClaims)
		if claims.UserId == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "The authorization token does not identify a user"})
			return
		}
		if len(authRoles) > 0 && !containsAny(authRoles, claims.Roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Your role does not allow this request"})
			return
		}

		c.Set(actorKey, claims)
		c.Next()
	}
}

// Actor returns the claims stored by AuthHandler, or nil.
func Actor(c *gin.Context) *WikiClaims {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*WikiClaims)
	return claims
}

// ActorId returns the id of the authenticated user, or 0 if the request is anonymous.
func ActorId(c *gin.Context) uint {
	if claims := Actor(c); claims != nil {
		return claims.UserId
	}
	return 0
}

// SetActor stores claims in the gin context as AuthHandler does.
func SetActor(c *gin.Context, claims *WikiClaims) {
	c.Set(actorKey, claims)
}

func containsAny(slice []string, items []string) bool {
	set := make(map[string]struct{}, len(slice))
	for _, s := range slice {
		set[s] = struct{}{}
	}

	for _, item := range items {
		if _, ok := set[item]; ok {
			return true
		}
	}
	return false
}

type WikiClaims struct {
	UserId   uint     `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.StandardClaims
}

func GenerateToken(ctx context.Context, key []byte, userId uint, username string, roles []string) (string, time.Time, error) {

	expiresAt := time.Now().Add(TokenTtl)
	claims := WikiClaims{
		userId,
		username,
		roles,
		jwt.StandardClaims{
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  time.Now().Unix(),
			Issuer:    "content-wiki",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(key)
	return tokenString, expiresAt, err
}

func ValidateToken(tokenString string, key string) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, &WikiClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(key), nil
	})

	return token, err
}
