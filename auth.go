package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/models"
	"github.com/parishops/registry_backend/utils"
)

type loginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input loginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}

		user, err := models.Authenticate(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := utils.JwtGenerate(user.ID, user.ChurchId, user.Username, string(user.Role))
		if err != nil {
			config.LogError(config.GetLogger(), "auth.go", "loginHandler", "JwtGenerate", user.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":        user.ID,
				"church_id": user.ChurchId,
				"username":  user.Username,
				"name":      user.Name,
				"role":      user.Role,
			},
		})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context()); !ok || !isAdmin {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			if ve, ok := utils.AsValidationError(err); ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
				return
			}
			config.LogError(config.GetLogger(), "auth.go", "createUserHandler", "CreateUser", input.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
			return
		}
		// A stale cache entry would hide the new account's role.
		_ = user.RemoveInstanceRedis()
		c.JSON(http.StatusCreated, user)
	}
}
