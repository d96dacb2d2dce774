package medias

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/dto"
	"github.com/hbomb79/Cinelog/internal/api/util"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/media"
	"github.com/hbomb79/Cinelog/internal/rating"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		SearchMedia(ctx context.Context, query string, mediaType catalog.MediaType) ([]catalog.SearchResult, error)
		ImportMedia(ctx context.Context, tmdbID int, mediaType catalog.MediaType) (*media.Media, error)
		GetMediaWithID(mediaID uuid.UUID) (*media.Media, error)
		ListGenres() ([]*media.Genre, error)

		RateMedia(ctx context.Context, actorID uuid.UUID, request rating.RateRequest) (*rating.Rating, bool, error)
		ListRatingsForMedia(mediaID uuid.UUID) ([]*rating.DetailedRating, error)
		GetRatingForMedia(userID uuid.UUID, mediaID uuid.UUID) (*rating.Rating, error)
		GetFolderMembership(userID uuid.UUID, mediaID uuid.UUID) (*catalog.Folder, error)
	}

	// RateMediaRequest is the body of a rating request; the title being
	// rated is identified by the path.
	RateMediaRequest struct {
		Score     int        `json:"score" validate:"required,min=1,max=5"`
		Review    *string    `json:"review" validate:"omitempty,max=5000"`
		WatchedAt *time.Time `json:"watched_at"`
	}

	MembershipResponse struct {
		Folder *catalog.Folder `json:"folder"`
	}

	MediaController struct {
		store        Store
		authProvider util.AuthenticatedUserProvider
	}
)

func New(authProvider util.AuthenticatedUserProvider, store Store) *MediaController {
	return &MediaController{store, authProvider}
}

func (controller *MediaController) SetRoutes(eg *echo.Group) {
	eg.GET("/search/", controller.search)
	eg.GET("/genres/", controller.listGenres)
	eg.GET("/:id/", controller.get)
	eg.GET("/:id/ratings/", controller.listRatings)
	eg.GET("/:id/rating/", controller.getOwnRating)
	eg.GET("/:id/folder/", controller.folderMembership)
	eg.GET("/:type/:tmdb_id/", controller.getByTmdbID)
	eg.POST("/:type/:tmdb_id/rating/", controller.rate)
}

// search queries the metadata provider for titles matching the query. The
// type defaults to movie if none is specified.
func (controller *MediaController) search(ec echo.Context) error {
	mediaType := catalog.MovieMediaType
	if raw := ec.QueryParam("type"); raw != "" {
		t, err := catalog.ParseMediaType(raw)
		if err != nil {
			return util.HTTPError(err)
		}
		mediaType = t
	}

	query := ec.QueryParam("q")
	if query == "" {
		return util.HTTPError(catalog.NewValidationError("q", "is required"))
	}

	results, err := controller.store.SearchMedia(ec.Request().Context(), query, mediaType)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, results)
}

func (controller *MediaController) listGenres(ec echo.Context) error {
	genres, err := controller.store.ListGenres()
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.GenresToDtos(genres))
}

func (controller *MediaController) get(ec echo.Context) error {
	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	m, err := controller.store.GetMediaWithID(id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.MediaToDto(m))
}

// getByTmdbID returns the media with the TMDB composite key provided,
// importing it from TMDB if this is the first time it has been requested.
func (controller *MediaController) getByTmdbID(ec echo.Context) error {
	mediaType, tmdbID, err := tmdbKeyFromPath(ec)
	if err != nil {
		return err
	}

	m, err := controller.store.ImportMedia(ec.Request().Context(), tmdbID, mediaType)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.MediaToDto(m))
}

func (controller *MediaController) listRatings(ec echo.Context) error {
	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	ratings, err := controller.store.ListRatingsForMedia(id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.DetailedRatingsToDtos(ratings))
}

// getOwnRating returns the authenticated users rating of the media, or a 404
// if they have not rated it.
func (controller *MediaController) getOwnRating(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	r, err := controller.store.GetRatingForMedia(actorID, id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, dto.RatingToDto(r))
}

func (controller *MediaController) folderMembership(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	id, err := util.UUIDParam(ec, "id")
	if err != nil {
		return err
	}

	folder, err := controller.store.GetFolderMembership(actorID, id)
	if err != nil {
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusOK, MembershipResponse{Folder: folder})
}

// rate creates or updates the authenticated users rating of the title. A
// 201 is returned when the rating is new, otherwise 200.
func (controller *MediaController) rate(ec echo.Context) error {
	actorID, err := util.ActorID(ec, controller.authProvider)
	if err != nil {
		return err
	}

	mediaType, tmdbID, err := tmdbKeyFromPath(ec)
	if err != nil {
		return err
	}

	var request RateMediaRequest
	if err := util.BindAndValidate(ec, &request); err != nil {
		return err
	}

	r, created, err := controller.store.RateMedia(ec.Request().Context(), actorID, rating.RateRequest{
		TmdbID:    tmdbID,
		MediaType: mediaType,
		Score:     request.Score,
		Review:    request.Review,
		WatchedAt: request.WatchedAt,
	})
	if err != nil {
		return util.HTTPError(err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	return ec.JSON(status, dto.RatingToDto(r))
}

func tmdbKeyFromPath(ec echo.Context) (catalog.MediaType, int, error) {
	mediaType, err := catalog.ParseMediaType(ec.Param("type"))
	if err != nil {
		return "", 0, util.HTTPError(err)
	}

	tmdbID, err := strconv.Atoi(ec.Param("tmdb_id"))
	if err != nil || tmdbID <= 0 {
		return "", 0, util.HTTPError(catalog.NewValidationError("tmdb_id", "must be a positive integer"))
	}

	return mediaType, tmdbID, nil
}
