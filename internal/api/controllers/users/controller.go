package users

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/dto"
	"github.com/hbomb79/Cinelog/internal/api/util"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/media"
	"github.com/hbomb79/Cinelog/internal/playlist"
	"github.com/hbomb79/Cinelog/internal/rating"
	"github.com/hbomb79/Cinelog/internal/user"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		SearchUsers(actorID uuid.UUID, query string) ([]*user.User, error)
		GetUserWithID(userID uuid.UUID) (*user.User, error)
		GetUserWithUsername(username string) (*user.User, error)

		Follow(actorID uuid.UUID, targetID uuid.UUID) (bool, error)
		Unfollow(actorID uuid.UUID, targetID uuid.UUID) (bool, error)
		IsFollowing(followerID uuid.UUID, followeeID uuid.UUID) (bool, error)
		ListFollowing(userID uuid.UUID) ([]*user.User, error)
		ListFollowers(userID uuid.UUID) ([]*user.User, error)
		ListFriends(userID uuid.UUID) ([]*user.User, error)

		ListRatingsForUser(userID uuid.UUID) ([]*rating.DetailedRating, error)
		ListPlaylistsForUser(userID uuid.UUID) ([]*playlist.Playlist, error)
		ListFolder(userID uuid.UUID, folder catalog.Folder) ([]*media.Media, error)
	}

	UserController struct {
		store        Store
		authProvider util.AuthenticatedUserProvider
	}
)

func New(authProvider util.AuthenticatedUserProvider, store Store) *UserController {
	return &UserController{store, authProvider}
}

func (controller *UserController) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.search)
	eg.GET("/by-username/:username/", controller.getByUsername)
	eg.GET("/:id/", controller.get)
	eg.POST("/:id/follow/", controller.follow)
	eg.DELETE("/:id/follow/", controller.unfollow)
	eg.GET("/:id/following/", controller.listFollowing)
	eg.GET("/:id/followers/", controller.listFollowers)
	eg.GET("/:id/friends/", controller.listFriends)
	eg.GET("/:id/ratings/", controller.listRatings)
	eg.GET("/:id/playlists/", controller.listPlaylists)
	eg.GET("/:id/folders/:folder/", controller.listFolder)
}

// search finds users by their username, excluding the user performing the search.
func (controller *UserController) search(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	users, err := controller.store.SearchUsers(actorID, ec.QueryParam("q"))
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.UsersToPublicDtos(users))
}

// get returns the public profile of the user, including whether the
// authenticated user follows them.
func (controller *UserController) get(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	u, err := controller.store.GetUserWithID(id)
	if err != nil {
		return util.HTTPError(err)
	}

	following, err := controller.store.IsFollowing(actorID, id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.UserToProfileDto(u, following))
}

func (controller *UserController) getByUsername(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	u, err := controller.store.GetUserWithUsername(ec.Param("username"))
	if err != nil {
		return util.HTTPError(err)
	}

	following, err := controller.store.IsFollowing(actorID, u.ID)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.UserToProfileDto(u, following))
}

// follow makes the authenticated user follow the target user. Following
// a user who is already followed is not an error, and responds with a 200
// rather than a 201.
func (controller *UserController) follow(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	targetID, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	created, err := controller.store.Follow(actorID, targetID)
	if err != nil {
		return util.HTTPError(err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	return ec.JSON(status, dto.FollowResponse{Following: true, Changed: created})
}

func (controller *UserController) unfollow(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	targetID, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	removed, err := controller.store.Unfollow(actorID, targetID)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.FollowResponse{Following: false, Changed: removed})
}

func (controller *UserController) listFollowing(ec echo.Context) error {
	return controller.listUsers(ec, controller.store.ListFollowing)
}

func (controller *UserController) listFollowers(ec echo.Context) error {
	return controller.listUsers(ec, controller.store.ListFollowers)
}

func (controller *UserController) listFriends(ec echo.Context) error {
	return controller.listUsers(ec, controller.store.ListFriends)
}

func (controller *UserController) listRatings(ec echo.Context) error {
	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	ratings, err := controller.store.ListRatingsForUser(id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.DetailedRatingsToDtos(ratings))
}

func (controller *UserController) listPlaylists(ec echo.Context) error {
	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	playlists, err := controller.store.ListPlaylistsForUser(id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.PlaylistsToDtos(playlists))
}

func (controller *UserController) listFolder(ec echo.Context) error {
	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	folder, err := catalog.ParseFolder(ec.Param("folder"))
	if err != nil {
		return util.HTTPError(err)
	}

	medias, err := controller.store.ListFolder(id, folder)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.MediasToDtos(medias))
}

func (controller *UserController) listUsers(ec echo.Context, lister func(uuid.UUID) ([]*user.User, error)) error {
	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	users, err := lister(id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.UsersToPublicDtos(users))
}
