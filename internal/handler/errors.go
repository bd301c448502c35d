package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/service"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/middleware"
	"github.com/upgrade-events/Upgrade-Events/pkg/response"
	"go.uber.org/zap"
)

// maxUploadSize bounds payment proof and event image uploads
const maxUploadSize = 10 << 20

// respondError maps a service error onto the API error envelope.
// fallback is the message used for unexpected failures.
func respondError(c *gin.Context, err error, fallback string) {
	var (
		capErr   *domain.CapacityError
		limitErr *domain.LimitError
		credErr  *domain.CredentialError
	)

	var resp *response.Response
	switch {
	case errors.As(err, &capErr):
		resp = response.CapacityExceeded(err.Error(), map[string]string{
			"resource":    string(capErr.Kind),
			"resource_id": strconv.FormatInt(capErr.ResourceID, 10),
			"requested":   strconv.Itoa(capErr.Requested),
			"spots_left":  strconv.Itoa(capErr.SpotsLeft),
			"capacity":    strconv.Itoa(capErr.Capacity),
		})
	case errors.As(err, &limitErr):
		resp = response.MaxLimitReached(err.Error())
	case errors.As(err, &credErr):
		if credErr.Reason == domain.CredentialUnknown {
			resp = response.Error(response.ErrCodeInvalidStaffCode, err.Error())
		} else {
			resp = response.Error(response.ErrCodeStaffCodeNotActive, err.Error())
		}
	case errors.Is(err, domain.ErrSessionNotFound):
		resp = response.Unauthorized("Staff session expired or unknown, scan your staff code again")
	case errors.Is(err, domain.ErrInvalidTransition):
		resp = response.InvalidTransition(err.Error())
	case errors.Is(err, domain.ErrNotFound):
		resp = response.NotFound(capitalize(err.Error()))
	case errors.Is(err, domain.ErrForbidden):
		resp = response.Forbidden("")
	case errors.Is(err, domain.ErrInvalidInput):
		resp = response.BadRequest(err.Error())
	case errors.Is(err, service.ErrStorageDisabled), errors.Is(err, service.ErrMailDisabled):
		resp = response.ServiceUnavailable(err.Error())
	default:
		logger.Get().ErrorContext(c.Request.Context(), fallback,
			zap.String("path", c.FullPath()), zap.Error(err))
		resp = response.InternalError(fallback)
	}

	c.JSON(resp.Status(), resp)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// parseID reads a positive int64 path parameter; it writes the 400 itself
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid "+name))
		return 0, false
	}
	return id, true
}

// actor returns the authenticated caller; it writes the 401 itself
func actor(c *gin.Context) (domain.Actor, bool) {
	a, err := middleware.GetActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
		return domain.Actor{}, false
	}
	return a, true
}

// bindingDetails turns validator errors into field -> tag details
func bindingDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": "malformed request body"}
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return details
}
