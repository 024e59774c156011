package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/euras-play/backend/internal/accounts"
	"github.com/euras-play/backend/internal/middleware"
)

// GetUser returns the caller's own account record. Other players' records
// are not exposed; opponent display data travels inside the session.
func GetUser(users *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString(middleware.UserIDKey)
		if c.Param("id") != playerID {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		user, err := users.Get(c.Request.Context(), playerID)
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			log.Printf("[USER] Failed to load user %s: %v", playerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": publicUser(user)})
	}
}
