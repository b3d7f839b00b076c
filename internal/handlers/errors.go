package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/licensing"
	"github.com/alptraumtech/lms/internal/services"
	appErrors "github.com/alptraumtech/lms/pkg/errors"
	"github.com/alptraumtech/lms/pkg/response"
)

// respondServiceError translates service sentinel errors into API errors.
// Anything unrecognised falls through as a 500 with the detail kept server side.
func respondServiceError(c *gin.Context, err error) {
	var missing *services.MissingPermitsError
	if errors.As(err, &missing) {
		response.Error(c, appErrors.New("MISSING_PERMITS",
			"Checkout blocked, missing permits: "+strings.Join(missing.Missing, ", "), 403))
		return
	}

	switch {
	case errors.Is(err, services.ErrEmployeeNotFound),
		errors.Is(err, services.ErrSupervisorNotFound),
		errors.Is(err, services.ErrPermitTypeNotFound),
		errors.Is(err, services.ErrGrantNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrSubCategoryNotFound),
		errors.Is(err, services.ErrParameterNotFound),
		errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, services.ErrNoDefaultTemplate):
		response.Error(c, appErrors.ErrNotFound)

	case errors.Is(err, services.ErrInvalidCredentials):
		response.Error(c, appErrors.ErrInvalidCredentials)

	case errors.Is(err, services.ErrLicenseBlocked),
		errors.Is(err, licensing.ErrLicenseExpired),
		errors.Is(err, licensing.ErrNoLicense):
		response.Error(c, appErrors.ErrLicenseExpired)

	case errors.Is(err, services.ErrAccountDisabled):
		response.Error(c, appErrors.NewForbidden("Account is disabled"))

	case errors.Is(err, services.ErrAssignSelf),
		errors.Is(err, services.ErrAssignRoleDenied),
		errors.Is(err, services.ErrAssignNotDirectReport),
		errors.Is(err, services.ErrAssignIssuerLacksGrant),
		errors.Is(err, services.ErrAssignExceedsIssuerGrant),
		errors.Is(err, services.ErrAssignTargetAdmin),
		errors.Is(err, services.ErrRequirementDenied),
		errors.Is(err, services.ErrNotHolder):
		response.Error(c, appErrors.NewForbidden(trimServicePrefix(err)))

	case errors.Is(err, services.ErrPermitTypeExists),
		errors.Is(err, services.ErrItemExists),
		errors.Is(err, services.ErrCategoryExists),
		errors.Is(err, services.ErrSubCategoryExists),
		errors.Is(err, services.ErrTemplateExists),
		errors.Is(err, services.ErrRFIDInUse),
		errors.Is(err, services.ErrEmailInUse):
		response.Error(c, appErrors.New("CONFLICT", trimServicePrefix(err), 409))

	case errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrDurationTooLong),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrSupervisorCycle),
		errors.Is(err, services.ErrSupervisorNotEligible),
		errors.Is(err, services.ErrBadPosition),
		errors.Is(err, services.ErrParameterLimit),
		errors.Is(err, services.ErrBadTemplateKind),
		errors.Is(err, services.ErrItemUnavailable),
		errors.Is(err, services.ErrItemNotHeld),
		errors.Is(err, services.ErrCategoryInUse),
		errors.Is(err, services.ErrSubCategoryInUse),
		errors.Is(err, services.ErrParameterInUse):
		response.Error(c, appErrors.NewBadRequest(trimServicePrefix(err)))

	case errors.Is(err, licensing.ErrLicenseRejected),
		errors.Is(err, licensing.ErrDeviceMismatch):
		response.Error(c, appErrors.NewForbidden(trimServicePrefix(err)))

	default:
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
	}
}

// trimServicePrefix strips the "<pkg> service: " prefix services put on
// their sentinels so clients see the human part only.
func trimServicePrefix(err error) string {
	msg := err.Error()
	if _, rest, found := strings.Cut(msg, ": "); found {
		return rest
	}
	return msg
}
