package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Rzouga01/LearnHub-sub001/internal/middleware"
	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	"github.com/Rzouga01/LearnHub-sub001/internal/policy"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the caller; nil means anonymous.
func actorFromContext(c *gin.Context) *policy.Actor {
	return policy.ActorFromClaims(claimsFromContext(c))
}
