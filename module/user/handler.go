package user

import (
	"net/http"

	"PRelay/global"
	"PRelay/logger"
	"PRelay/module/chat/store"
	"PRelay/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandlerLogin checks credentials against the store and issues the JWT the
// websocket auth frame expects.
func HandlerLogin(cfg *global.AppConfig, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
			return
		}
		u, err := st.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
				return
			}
			logger.Errorf("[login] lookup %s err=%v", req.Email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
			return
		}
		token, exp, err := security.Generate(security.DefaultOptions([]byte(cfg.JWTSecret)), u.ID)
		if err != nil {
			logger.Errorf("[login] sign token user=%d err=%v", u.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"expiresAt": exp,
			"user": gin.H{
				"id":        u.ID,
				"username":  u.Username,
				"firstName": u.FirstName,
				"status":    u.Status,
			},
		})
	}
}
