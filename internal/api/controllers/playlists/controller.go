package playlists

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/dto"
	"github.com/hbomb79/Cinelog/internal/api/util"
	"github.com/hbomb79/Cinelog/internal/playlist"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		CreatePlaylist(actorID uuid.UUID, name string) (*playlist.Playlist, error)
		GetPlaylist(playlistID uuid.UUID) (*playlist.PlaylistWithMedia, error)
		RenamePlaylist(actorID uuid.UUID, playlistID uuid.UUID, name string) (*playlist.Playlist, error)
		DeletePlaylist(actorID uuid.UUID, playlistID uuid.UUID) error
		AddMediaToPlaylist(actorID uuid.UUID, playlistID uuid.UUID, mediaID uuid.UUID) (bool, error)
		RemoveMediaFromPlaylist(actorID uuid.UUID, playlistID uuid.UUID, mediaID uuid.UUID) error
	}

	PlaylistRequest struct {
		Name string `json:"name" validate:"notblank,max=50"`
	}

	AddMediaRequest struct {
		MediaID uuid.UUID `json:"media_id" validate:"required"`
	}

	PlaylistController struct {
		store        Store
		authProvider util.AuthenticatedUserProvider
	}
)

func New(authProvider util.AuthenticatedUserProvider, store Store) *PlaylistController {
	return &PlaylistController{store, authProvider}
}

func (controller *PlaylistController) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.create)
	eg.GET("/:id/", controller.get)
	eg.PATCH("/:id/", controller.rename)
	eg.DELETE("/:id/", controller.delete)
	eg.POST("/:id/media/", controller.addMedia)
	eg.DELETE("/:id/media/:media_id/", controller.removeMedia)
}

func (controller *PlaylistController) create(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	var request PlaylistRequest
	if err := util.BindAndValidate(ec, &request); err != nil {
		return err
	}

	p, err := controller.store.CreatePlaylist(actorID, request.Name)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusCreated, dto.PlaylistToDto(p))
}

func (controller *PlaylistController) get(ec echo.Context) error {
	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	p, err := controller.store.GetPlaylist(id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.PlaylistWithMediaToDto(p))
}

func (controller *PlaylistController) rename(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	var request PlaylistRequest
	if err := util.BindAndValidate(ec, &request); err != nil {
		return err
	}

	p, err := controller.store.RenamePlaylist(actorID, id, request.Name)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.PlaylistToDto(p))
}

func (controller *PlaylistController) delete(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	if err := controller.store.DeletePlaylist(actorID, id); err != nil {
		return util.HTTPError(err)
	}

	return ec.NoContent(http.StatusNoContent)
}

// addMedia links media to the playlist. Adding media which is already
// present responds with a 200 rather than a 201.
func (controller *PlaylistController) addMedia(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	var request AddMediaRequest
	if err := util.BindAndValidate(ec, &request); err != nil {
		return err
	}

	added, err := controller.store.AddMediaToPlaylist(actorID, id, request.MediaID)
	if err != nil {
		return util.HTTPError(err)
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}

	return ec.JSON(status, dto.PlaylistMediaResponse{Added: added})
}

func (controller *PlaylistController) removeMedia(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	mediaID, err := util.UUIDParam(ec, "media_id")
	if err != nil {
		return err
	}

	if err := controller.store.RemoveMediaFromPlaylist(actorID, id, mediaID); err != nil {
		return util.HTTPError(err)
	}

	return ec.NoContent(http.StatusNoContent)
}
