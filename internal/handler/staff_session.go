package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/service"
	"github.com/upgrade-events/Upgrade-Events/pkg/response"
)

const (
	// StaffSessionHeader carries the token returned by POST /staff/sessions
	StaffSessionHeader = "X-Staff-Session"

	contextKeyStaffCredential = "staff_credential"
)

// StaffSessionMiddleware resolves the staff session token into a credential.
// The code behind the session is re-checked on every request, so a
// deactivated or expired code stops working immediately.
func StaffSessionMiddleware(staffAccess service.StaffAccessService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(StaffSessionHeader))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("Staff session header is required"))
			return
		}

		cred, err := staffAccess.ResolveSession(c.Request.Context(), token)
		if err != nil {
			respondError(c, err, "Failed to resolve staff session")
			c.Abort()
			return
		}

		c.Set(contextKeyStaffCredential, *cred)
		c.Next()
	}
}

// GetStaffCredential returns the credential stored by StaffSessionMiddleware
func GetStaffCredential(c *gin.Context) (domain.StaffCredential, bool) {
	v, exists := c.Get(contextKeyStaffCredential)
	if !exists {
		return domain.StaffCredential{}, false
	}
	cred, ok := v.(domain.StaffCredential)
	return cred, ok
}
