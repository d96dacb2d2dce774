package folders

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/dto"
	"github.com/hbomb79/Cinelog/internal/api/util"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/media"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		MoveToFolder(actorID uuid.UUID, mediaID uuid.UUID, target catalog.Folder) (catalog.MoveOutcome, error)
		RemoveFromFolder(actorID uuid.UUID, mediaID uuid.UUID, target catalog.Folder) error
		ListFolder(userID uuid.UUID, target catalog.Folder) ([]*media.Media, error)
	}

	MoveRequest struct {
		MediaID uuid.UUID `json:"media_id" validate:"required"`
	}

	FolderController struct {
		store        Store
		authProvider util.AuthenticatedUserProvider
	}
)

func New(authProvider util.AuthenticatedUserProvider, store Store) *FolderController {
	return &FolderController{store, authProvider}
}

func (controller *FolderController) SetRoutes(eg *echo.Group) {
	eg.GET("/:folder/", controller.list)
	eg.POST("/:folder/", controller.move)
	eg.DELETE("/:folder/:media_id/", controller.remove)
}

func (controller *FolderController) list(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	folder, err := catalog.ParseFolder(ec.Param("folder"))
	if err != nil {
		return util.HTTPError(err)
	}

	medias, err := controller.store.ListFolder(actorID, folder)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.MediasToDtos(medias))
}

// move places the media in the folder for the authenticated user. The
// response reports whether the media was newly added, moved from the other
// folder, or was already present.
func (controller *FolderController) move(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	folder, err := catalog.ParseFolder(ec.Param("folder"))
	if err != nil {
		return util.HTTPError(err)
	}

	var request MoveRequest
	if err := util.BindAndValidate(ec, &request); err != nil {
		return err
	}

	outcome, err := controller.store.MoveToFolder(actorID, request.MediaID, folder)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.FolderMoveResponse{Folder: string(folder), Outcome: outcome.String()})
}

func (controller *FolderController) remove(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	folder, err := catalog.ParseFolder(ec.Param("folder"))
	if err != nil {
		return util.HTTPError(err)
	}

	mediaID, err := util.UUIDParam(ec, "media_id")
	if err != nil {
		return err
	}

	if err := controller.store.RemoveFromFolder(actorID, mediaID, folder); err != nil {
		return util.HTTPError(err)
	}

	return ec.NoContent(http.StatusNoContent)
}
