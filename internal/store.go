package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/hbomb79/Cinelog/internal/folder"
	"github.com/hbomb79/Cinelog/internal/media"
	"github.com/hbomb79/Cinelog/internal/playlist"
	"github.com/hbomb79/Cinelog/internal/rating"
	"github.com/hbomb79/Cinelog/internal/user"
	"github.com/hbomb79/Cinelog/pkg/logger"
	"github.com/jmoiron/sqlx"
)

var storeLog = logger.Get("Store")

// storeOrchestrator is responsible for managing all of Cinelog's resources,
// especially highly-relational data. You can think of all
// the data stores below this layer being 'dumb', and this store
// linking them together and providing the database instance.
//
// Every mutation which touches more than one table runs inside a single
// transaction, and ownership of user-owned rows is enforced here rather
// than in the stores.
type storeOrchestrator struct {
	db       database.Manager
	provider catalog.MetadataProvider

	UserStore     *user.Store
	MediaStore    *media.Store
	RatingStore   *rating.Store
	PlaylistStore *playlist.Store
	FolderStore   *folder.Store
}

func NewStoreOrchestrator(db database.Manager, provider catalog.MetadataProvider) *storeOrchestrator {
	return &storeOrchestrator{
		db:            db,
		provider:      provider,
		UserStore:     user.NewStore(),
		MediaStore:    &media.Store{},
		RatingStore:   &rating.Store{},
		PlaylistStore: &playlist.Store{},
		FolderStore:   &folder.Store{},
	}
}

// Users

func (orchestrator *storeOrchestrator) RegisterUser(email string, username string, password string) (*user.User, error) {
	if err := catalog.Validate(&user.RegisterRequest{Email: email, Username: username, Password: password}); err != nil {
		return nil, err
	}

	var created *user.User
	if err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		u, err := orchestrator.UserStore.Create(tx, email, username, []byte(password))
		created = u
		return err
	}); err != nil {
		return nil, err
	}

	return created, nil
}

func (orchestrator *storeOrchestrator) GetUserWithID(id uuid.UUID) (*user.User, error) {
	return orchestrator.UserStore.GetWithID(orchestrator.db.GetSqlxDb(), id)
}

func (orchestrator *storeOrchestrator) GetUserWithUsername(username string) (*user.User, error) {
	return orchestrator.UserStore.GetWithUsername(orchestrator.db.GetSqlxDb(), username)
}

func (orchestrator *storeOrchestrator) GetUserWithUsernameAndPassword(username string, password []byte) (*user.User, error) {
	return orchestrator.UserStore.GetWithUsernameAndPassword(orchestrator.db.GetSqlxDb(), username, password)
}

func (orchestrator *storeOrchestrator) RecordUserLogin(userID uuid.UUID) error {
	return orchestrator.UserStore.RecordLogin(orchestrator.db.GetSqlxDb(), userID)
}

// SearchUsers finds users whose username contains the query, excluding the
// actor performing the search.
func (orchestrator *storeOrchestrator) SearchUsers(actorID uuid.UUID, query string) ([]*user.User, error) {
	return orchestrator.UserStore.Search(orchestrator.db.GetSqlxDb(), query, actorID)
}

// Media & genres

func (orchestrator *storeOrchestrator) GetMediaWithID(id uuid.UUID) (*media.Media, error) {
	return orchestrator.MediaStore.GetWithID(orchestrator.db.GetSqlxDb(), id)
}

func (orchestrator *storeOrchestrator) GetMediaWithTmdbID(tmdbID int, mediaType catalog.MediaType) (*media.Media, error) {
	return orchestrator.MediaStore.GetWithTmdbID(orchestrator.db.GetSqlxDb(), tmdbID, mediaType)
}

// UpsertMedia saves the metadata as a media row, along with its genres. Upserting
// the same (tmdb_id, media_type) twice yields the same media row.
func (orchestrator *storeOrchestrator) UpsertMedia(metadata *catalog.Metadata) (*media.Media, error) {
	var result *media.Media
	if err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		m, err := orchestrator.saveMetadata(tx, metadata)
		result = m
		return err
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// AttachGenres ensures the media is linked to each of the genres provided. Links
// which already exist are left untouched.
func (orchestrator *storeOrchestrator) AttachGenres(mediaID uuid.UUID, genres []catalog.Genre) error {
	return orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		return orchestrator.attachGenres(tx, mediaID, genres)
	})
}

func (orchestrator *storeOrchestrator) ListGenres() ([]*media.Genre, error) {
	return orchestrator.MediaStore.ListGenres(orchestrator.db.GetSqlxDb())
}

func (orchestrator *storeOrchestrator) GetGenresForMedia(mediaID uuid.UUID) ([]*media.Genre, error) {
	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireMedia(db, mediaID); err != nil {
		return nil, err
	}

	return orchestrator.MediaStore.GetGenresForMedia(db, mediaID)
}

// SearchMedia forwards the query to the metadata provider. Results are not
// persisted; a title is only imported once a user interacts with it.
func (orchestrator *storeOrchestrator) SearchMedia(ctx context.Context, query string, mediaType catalog.MediaType) ([]catalog.SearchResult, error) {
	return orchestrator.provider.Search(ctx, query, mediaType)
}

// ImportMedia returns the media with the given TMDB composite key, fetching
// it from the metadata provider and storing it if this is the first time
// the title has been referenced.
func (orchestrator *storeOrchestrator) ImportMedia(ctx context.Context, tmdbID int, mediaType catalog.MediaType) (*media.Media, error) {
	existing, metadata, err := orchestrator.resolveMedia(ctx, tmdbID, mediaType)
	if err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	return orchestrator.UpsertMedia(metadata)
}

// Ratings

// RateMedia creates or updates the actors rating of the title. In a single
// transaction this will:
//   - import the title if it has not been seen before,
//   - upsert the rating (see rating.Store.Upsert for the review policy),
//   - stamp the media as watched if a watch time is given, and,
//   - on the first rating of the title, move it in to the actors watched folder.
//
// The boolean returned indicates whether a new rating was created.
func (orchestrator *storeOrchestrator) RateMedia(ctx context.Context, actorID uuid.UUID, request rating.RateRequest) (*rating.Rating, bool, error) {
	if err := catalog.Validate(&request); err != nil {
		return nil, false, err
	}

	// Metadata is fetched before the transaction is opened so that a slow
	// provider does not hold locks.
	existing, metadata, err := orchestrator.resolveMedia(ctx, request.TmdbID, request.MediaType)
	if err != nil {
		return nil, false, err
	}

	var (
		result  *rating.Rating
		created bool
	)
	if err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		if err := orchestrator.UserStore.LockForUpdate(tx, actorID); err != nil {
			return err
		}

		m := existing
		if m == nil {
			if m, err = orchestrator.saveMetadata(tx, metadata); err != nil {
				return err
			}
		}

		if result, created, err = orchestrator.RatingStore.Upsert(tx, actorID, m.ID, request.Score, request.Review); err != nil {
			return err
		}

		if request.WatchedAt != nil {
			if err := orchestrator.MediaStore.MarkWatched(tx, m.ID, *request.WatchedAt); err != nil {
				return err
			}
		}

		if created {
			outcome, err := orchestrator.FolderStore.Move(tx, actorID, m.ID, catalog.WatchedFolder)
			if err != nil {
				return err
			}

			storeLog.Debugf("First rating of %s by %s, watched folder move: %s\n", m.ID, actorID, outcome)
		}

		return nil
	}); err != nil {
		return nil, false, err
	}

	return result, created, nil
}

// DeleteRating removes the rating, provided it belongs to the actor.
func (orchestrator *storeOrchestrator) DeleteRating(actorID uuid.UUID, ratingID uuid.UUID) error {
	return orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		existing, err := orchestrator.RatingStore.GetWithID(tx, ratingID)
		if err != nil {
			return err
		}

		if existing.UserID != actorID {
			return catalog.Unauthorizedf("rating %s does not belong to user %s", ratingID, actorID)
		}

		return orchestrator.RatingStore.Delete(tx, ratingID)
	})
}

func (orchestrator *storeOrchestrator) ListRatingsForMedia(mediaID uuid.UUID) ([]*rating.DetailedRating, error) {
	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireMedia(db, mediaID); err != nil {
		return nil, err
	}

	return orchestrator.RatingStore.ListForMedia(db, mediaID)
}

func (orchestrator *storeOrchestrator) ListRatingsForUser(userID uuid.UUID) ([]*rating.DetailedRating, error) {
	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireUser(db, userID); err != nil {
		return nil, err
	}

	return orchestrator.RatingStore.ListForUser(db, userID)
}

// GetRatingForMedia returns the users own rating of the media. If the user
// has not rated the media, an error wrapping catalog.ErrNotFound is returned.
func (orchestrator *storeOrchestrator) GetRatingForMedia(userID uuid.UUID, mediaID uuid.UUID) (*rating.Rating, error) {
	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireMedia(db, mediaID); err != nil {
		return nil, err
	}

	return orchestrator.RatingStore.GetForUserAndMedia(db, userID, mediaID)
}

// Folders

// MoveToFolder places the media in the actors folder, removing it from the
// other folder if necessary. Moves for a single user are serialised by
// locking the user row for the duration of the transaction.
func (orchestrator *storeOrchestrator) MoveToFolder(actorID uuid.UUID, mediaID uuid.UUID, target catalog.Folder) (catalog.MoveOutcome, error) {
	outcome := catalog.MoveUnchanged
	if err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		if err := orchestrator.UserStore.LockForUpdate(tx, actorID); err != nil {
			return err
		}

		o, err := orchestrator.FolderStore.Move(tx, actorID, mediaID, target)
		outcome = o
		return err
	}); err != nil {
		return catalog.MoveUnchanged, err
	}

	return outcome, nil
}

func (orchestrator *storeOrchestrator) RemoveFromFolder(actorID uuid.UUID, mediaID uuid.UUID, target catalog.Folder) error {
	if !target.Valid() {
		return catalog.NewValidationError("folder", fmt.Sprintf("'%s' is not one of [watched to_be_watched]", target))
	}

	return orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		if err := orchestrator.UserStore.LockForUpdate(tx, actorID); err != nil {
			return err
		}

		return orchestrator.FolderStore.Remove(tx, actorID, mediaID, target)
	})
}

func (orchestrator *storeOrchestrator) ListFolder(userID uuid.UUID, target catalog.Folder) ([]*media.Media, error) {
	if !target.Valid() {
		return nil, catalog.NewValidationError("folder", fmt.Sprintf("'%s' is not one of [watched to_be_watched]", target))
	}

	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireUser(db, userID); err != nil {
		return nil, err
	}

	return orchestrator.FolderStore.List(db, userID, target)
}

// GetFolderMembership returns the folder the media is in for the user, or nil
// if it is in neither. Both the user and the media must exist.
func (orchestrator *storeOrchestrator) GetFolderMembership(userID uuid.UUID, mediaID uuid.UUID) (*catalog.Folder, error) {
	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireUser(db, userID); err != nil {
		return nil, err
	}
	if err := orchestrator.requireMedia(db, mediaID); err != nil {
		return nil, err
	}

	return orchestrator.FolderStore.Membership(db, userID, mediaID)
}

// Playlists

func (orchestrator *storeOrchestrator) CreatePlaylist(actorID uuid.UUID, name string) (*playlist.Playlist, error) {
	return orchestrator.PlaylistStore.Create(orchestrator.db.GetSqlxDb(), actorID, name)
}

// GetPlaylist returns the playlist along with the media it contains.
func (orchestrator *storeOrchestrator) GetPlaylist(id uuid.UUID) (*playlist.PlaylistWithMedia, error) {
	db := orchestrator.db.GetSqlxDb()
	p, err := orchestrator.PlaylistStore.GetWithID(db, id)
	if err != nil {
		return nil, err
	}

	medias, err := orchestrator.PlaylistStore.ListMedia(db, id)
	if err != nil {
		return nil, err
	}

	return &playlist.PlaylistWithMedia{Playlist: *p, Medias: medias}, nil
}

func (orchestrator *storeOrchestrator) ListPlaylistsForUser(userID uuid.UUID) ([]*playlist.Playlist, error) {
	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireUser(db, userID); err != nil {
		return nil, err
	}

	return orchestrator.PlaylistStore.ListForUser(db, userID)
}

// AddMediaToPlaylist links the media to the actors playlist. Adding media which
// is already present is not an error, and is indicated by a false return.
func (orchestrator *storeOrchestrator) AddMediaToPlaylist(actorID uuid.UUID, playlistID uuid.UUID, mediaID uuid.UUID) (bool, error) {
	added := false
	if err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		if _, err := orchestrator.ownedPlaylist(tx, actorID, playlistID); err != nil {
			return err
		}

		a, err := orchestrator.PlaylistStore.AddMedia(tx, playlistID, mediaID)
		added = a
		return err
	}); err != nil {
		return false, err
	}

	return added, nil
}

func (orchestrator *storeOrchestrator) RemoveMediaFromPlaylist(actorID uuid.UUID, playlistID uuid.UUID, mediaID uuid.UUID) error {
	return orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		if _, err := orchestrator.ownedPlaylist(tx, actorID, playlistID); err != nil {
			return err
		}

		return orchestrator.PlaylistStore.RemoveMedia(tx, playlistID, mediaID)
	})
}

func (orchestrator *storeOrchestrator) RenamePlaylist(actorID uuid.UUID, playlistID uuid.UUID, name string) (*playlist.Playlist, error) {
	var renamed *playlist.Playlist
	if err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		if _, err := orchestrator.ownedPlaylist(tx, actorID, playlistID); err != nil {
			return err
		}

		p, err := orchestrator.PlaylistStore.Rename(tx, playlistID, name)
		renamed = p
		return err
	}); err != nil {
		return nil, err
	}

	return renamed, nil
}

// DeletePlaylist removes the actors playlist and its links to media. The
// media themselves, and any other playlists, are untouched.
func (orchestrator *storeOrchestrator) DeletePlaylist(actorID uuid.UUID, playlistID uuid.UUID) error {
	return orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		if _, err := orchestrator.ownedPlaylist(tx, actorID, playlistID); err != nil {
			return err
		}

		return orchestrator.PlaylistStore.Delete(tx, playlistID)
	})
}

// Social

// Follow creates the edge actor -> target. Following an already-followed user
// is a no-op, indicated by a false return.
func (orchestrator *storeOrchestrator) Follow(actorID uuid.UUID, targetID uuid.UUID) (bool, error) {
	created := false
	if err := orchestrator.db.WrapTx(func(tx *sqlx.Tx) error {
		c, err := orchestrator.UserStore.Follow(tx, actorID, targetID)
		created = c
		return err
	}); err != nil {
		return false, err
	}

	return created, nil
}

func (orchestrator *storeOrchestrator) Unfollow(actorID uuid.UUID, targetID uuid.UUID) (bool, error) {
	return orchestrator.UserStore.Unfollow(orchestrator.db.GetSqlxDb(), actorID, targetID)
}

// IsFollowing reports whether the follower currently follows the followee.
func (orchestrator *storeOrchestrator) IsFollowing(followerID uuid.UUID, followeeID uuid.UUID) (bool, error) {
	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireUser(db, followeeID); err != nil {
		return false, err
	}

	return orchestrator.UserStore.IsFollowing(db, followerID, followeeID)
}

func (orchestrator *storeOrchestrator) ListFollowing(userID uuid.UUID) ([]*user.User, error) {
	return orchestrator.listUsersFor(userID, orchestrator.UserStore.ListFollowing)
}

func (orchestrator *storeOrchestrator) ListFollowers(userID uuid.UUID) ([]*user.User, error) {
	return orchestrator.listUsersFor(userID, orchestrator.UserStore.ListFollowers)
}

// ListFriends returns every user the given user follows or is followed by,
// each exactly once.
func (orchestrator *storeOrchestrator) ListFriends(userID uuid.UUID) ([]*user.User, error) {
	return orchestrator.listUsersFor(userID, orchestrator.UserStore.ListFriends)
}

func (orchestrator *storeOrchestrator) listUsersFor(userID uuid.UUID, lister func(database.Queryable, uuid.UUID) ([]*user.User, error)) ([]*user.User, error) {
	db := orchestrator.db.GetSqlxDb()
	if err := orchestrator.requireUser(db, userID); err != nil {
		return nil, err
	}

	return lister(db, userID)
}

// resolveMedia looks up the media by its composite key. If it does not exist
// then the metadata for the title is fetched from the provider instead, and
// the returned media is nil.
func (orchestrator *storeOrchestrator) resolveMedia(ctx context.Context, tmdbID int, mediaType catalog.MediaType) (*media.Media, *catalog.Metadata, error) {
	if !mediaType.Valid() {
		return nil, nil, catalog.NewValidationError("media_type", fmt.Sprintf("'%s' is not one of [movie show]", mediaType))
	}

	existing, err := orchestrator.MediaStore.GetWithTmdbID(orchestrator.db.GetSqlxDb(), tmdbID, mediaType)
	if err == nil {
		return existing, nil, nil
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return nil, nil, err
	}

	storeLog.Infof("Media (tmdb_id=%d type=%s) not yet known, fetching metadata\n", tmdbID, mediaType)
	metadata, err := orchestrator.provider.GetMetadata(ctx, tmdbID, mediaType)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch metadata for (tmdb_id=%d type=%s): %w", tmdbID, mediaType, err)
	}

	return nil, metadata, nil
}

func (orchestrator *storeOrchestrator) saveMetadata(tx database.Queryable, metadata *catalog.Metadata) (*media.Media, error) {
	m, err := orchestrator.MediaStore.Upsert(tx, metadata)
	if err != nil {
		return nil, err
	}

	if err := orchestrator.attachGenres(tx, m.ID, metadata.Genres); err != nil {
		return nil, err
	}

	if m.Genres, err = orchestrator.MediaStore.GetGenresForMedia(tx, m.ID); err != nil {
		return nil, err
	}

	return m, nil
}

func (orchestrator *storeOrchestrator) attachGenres(tx database.Queryable, mediaID uuid.UUID, genres []catalog.Genre) error {
	saved, err := orchestrator.MediaStore.SaveGenres(tx, genres)
	if err != nil {
		return err
	}

	return orchestrator.MediaStore.SaveMediaGenreAssociations(tx, mediaID, saved)
}

// ownedPlaylist fetches the playlist, returning an error wrapping
// catalog.ErrUnauthorized if it is not owned by the actor.
func (orchestrator *storeOrchestrator) ownedPlaylist(tx database.Queryable, actorID uuid.UUID, playlistID uuid.UUID) (*playlist.Playlist, error) {
	p, err := orchestrator.PlaylistStore.GetWithID(tx, playlistID)
	if err != nil {
		return nil, err
	}

	if p.UserID != actorID {
		return nil, catalog.Unauthorizedf("playlist %s does not belong to user %s", playlistID, actorID)
	}

	return p, nil
}

// requireUser returns an error wrapping catalog.ErrNotFound if no user exists
// with the given ID. Listings use this so that an unknown ID is not mistaken
// for an empty result.
func (orchestrator *storeOrchestrator) requireUser(db database.Queryable, userID uuid.UUID) error {
	_, err := orchestrator.UserStore.GetWithID(db, userID)
	return err
}

func (orchestrator *storeOrchestrator) requireMedia(db database.Queryable, mediaID uuid.UUID) error {
	_, err := orchestrator.MediaStore.GetWithID(db, mediaID)
	return err
}
