package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stattrack/pkg/auth"
	"stattrack/pkg/logger"
)

var (
	apiKeyHash string
	tokenTTL   = 24 * time.Hour
)

// jwtAuthMiddleware accepts HS256 bearer tokens signed with jwtSecret.
func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(authHeader) < 8 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		subject, err := auth.Verify(jwtSecret, authHeader[7:])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Set("subject", subject)
		c.Next()
	}
}

// tokenHandler exchanges the shared API key for a bearer token.
func tokenHandler(c *gin.Context) {
	var req struct {
		Client string `json:"client" binding:"required"`
		Key    string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := auth.CheckKey(apiKeyHash, req.Key); err != nil {
		logger.WithField("client", req.Client).Warn("token request rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := auth.Issue(jwtSecret, req.Client, tokenTTL, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(tokenTTL.Seconds())})
}
