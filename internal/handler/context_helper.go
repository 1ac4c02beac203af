package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/jobcoach-api/internal/middleware"
	"github.com/noah-isme/jobcoach-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}
