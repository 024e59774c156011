package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/euras-play/backend/internal/accounts"
	"github.com/euras-play/backend/internal/config"
)

// Register creates a new account. Login keys are generated server-side and
// returned exactly once; only the security key's hash is stored.
func Register(users *accounts.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ID       string `json:"id" binding:"required"`
			Username string `json:"username" binding:"required"`
			Avatar   string `json:"avatar"`
			Wallet   string `json:"wallet"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id and username required"})
			return
		}

		username := strings.TrimSpace(req.Username)
		if username == "" || len(username) > 50 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
			return
		}

		profileKey := accounts.GenerateProfileKey()
		securityKey := accounts.GenerateSecurityKey()

		user := accounts.User{
			ID:           req.ID,
			Username:     username,
			ProfileKey:   profileKey,
			ActiveWallet: req.Wallet,
			Avatar:       req.Avatar,
		}
		if req.Wallet != "" {
			user.Wallets = []accounts.Wallet{{Address: req.Wallet, Provider: "Test", AddedAt: time.Now().UnixMilli()}}
		}

		stored, err := users.Register(c.Request.Context(), user, securityKey)
		if err != nil {
			log.Printf("[AUTH] Failed to register user %s: %v", req.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
			return
		}

		token, err := issueToken(cfg, stored.ID)
		if err != nil {
			log.Printf("[AUTH] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":        token,
			"user":         publicUser(stored),
			"profile_key":  profileKey,
			"security_key": securityKey,
		})
	}
}

// Login authenticates a profile-key/security-key pair and issues a JWT.
func Login(users *accounts.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProfileKey  string `json:"profile_key" binding:"required"`
			SecurityKey string `json:"security_key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "profile_key and security_key required"})
			return
		}

		user, err := users.LoginWithKeys(c.Request.Context(), req.ProfileKey, req.SecurityKey)
		if err != nil {
			if errors.Is(err, accounts.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid keys"})
				return
			}
			log.Printf("[AUTH] Login lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		token, err := issueToken(cfg, user.ID)
		if err != nil {
			log.Printf("[AUTH] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token, "user": publicUser(user)})
	}
}

func issueToken(cfg *config.Config, userID string) (string, error) {
	exp := time.Now().Add(24 * time.Hour)
	claims := jwt.MapClaims{"user_id": userID, "exp": exp.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// publicUser strips credential material from an account record.
func publicUser(u *accounts.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"username":      u.Username,
		"avatar":        u.Avatar,
		"balance":       u.Balance,
		"active_wallet": u.ActiveWallet,
		"owned_items":   u.OwnedItemIDs,
		"equipped":      u.Equipped,
	}
}
