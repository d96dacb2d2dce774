package ratings

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/util"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		DeleteRating(actorID uuid.UUID, ratingID uuid.UUID) error
	}

	RatingController struct {
		store        Store
		authProvider util.AuthenticatedUserProvider
	}
)

func New(authProvider util.AuthenticatedUserProvider, store Store) *RatingController {
	return &RatingController{store, authProvider}
}

func (controller *RatingController) SetRoutes(eg *echo.Group) {
	eg.DELETE("/:id/", controller.delete)
}

func (controller *RatingController) delete(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	if err := controller.store.DeleteRating(actorID, id); err != nil {
		return util.HTTPError(err)
	}

	return ec.NoContent(http.StatusNoContent)
}
