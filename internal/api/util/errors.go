package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/jwt"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/http/tmdb"
	"github.com/hbomb79/Cinelog/pkg/logger"
	"github.com/labstack/echo/v4"
)

var log = logger.Get("API")

type ErrorResponse struct {
	Message string               `json:"message"`
	Fields  []catalog.FieldError `json:"fields,omitempty"`
}

// HTTPError converts an error returned by the store in to an echo HTTP
// error with a suitable status code. Errors outside of the catalog taxonomy
// are reported as a 500 without revealing their content to the client.
func HTTPError(err error) *echo.HTTPError {
	var (
		validationErr *catalog.ValidationError
		upstreamErr   *tmdb.FailedRequestError
		unavailable   *tmdb.UnavailableError
	)
	switch {
	case errors.As(err, &validationErr):
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: catalog.ErrValidation.Error(), Fields: validationErr.Fields}).SetInternal(err)
	case errors.Is(err, catalog.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: err.Error()}).SetInternal(err)
	case errors.Is(err, catalog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrorResponse{Message: err.Error()}).SetInternal(err)
	case errors.Is(err, catalog.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, ErrorResponse{Message: err.Error()}).SetInternal(err)
	case errors.Is(err, catalog.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, ErrorResponse{Message: err.Error()}).SetInternal(err)
	case errors.As(err, &unavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrorResponse{Message: "metadata provider is currently unavailable"}).SetInternal(err)
	case errors.As(err, &upstreamErr):
		log.Warnf("Metadata provider responded with HTTP %d: %v\n", upstreamErr.StatusCode(), err)
		return echo.NewHTTPError(http.StatusBadGateway, ErrorResponse{Message: http.StatusText(http.StatusBadGateway)}).SetInternal(err)
	default:
		log.Errorf("Unexpected error: %v\n", err)
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Message: http.StatusText(http.StatusInternalServerError)}).SetInternal(err)
	}
}

// BindAndValidate binds the request body in to the target, and then
// validates it using the target's validation tags.
func BindAndValidate(ec echo.Context, target any) error {
	if err := ec.Bind(target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: fmt.Sprintf("JSON body invalid: %s", err)}).SetInternal(err)
	}

	if err := catalog.Validate(target); err != nil {
		return HTTPError(err)
	}

	return nil
}

// UUIDParam parses the named path parameter as a UUID, returning
// a 400 error if it is malformed.
func UUIDParam(ec echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ec.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: fmt.Sprintf("%s is not a valid UUID", name)})
	}

	return id, nil
}

type AuthenticatedUserProvider interface {
	GetAuthenticatedUserFromContext(ec echo.Context) (*jwt.AuthenticatedUser, error)
}

// ActorID returns the ID of the authenticated user performing the request.
func ActorID(ec echo.Context, provider AuthenticatedUserProvider) (uuid.UUID, error) {
	u, err := provider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized).SetInternal(err)
	}

	return u.UserID, nil
}
