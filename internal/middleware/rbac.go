package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Rzouga01/LearnHub-sub001/internal/policy"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
	"github.com/Rzouga01/LearnHub-sub001/pkg/response"
)

// RequireCapability enforces the policy table for a route. It must run after JWT.
// Denials use the same shape the service would produce for the action.
func RequireCapability(guard *policy.Guard, action policy.Action) gin.HandlerFunc {
	if guard == nil {
		guard = policy.NewGuard()
	}
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if err := guard.Check(policy.ActorFromClaims(claims), action); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}
