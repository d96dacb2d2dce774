package media

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/hbomb79/Cinelog/pkg/logger"
)

var log = logger.Get("MediaStore")

type (
	// Media is a single title (movie or show) known to Cinelog. Rows are created
	// lazily the first time a user interacts with the title, and are identified
	// externally by the composite key (TmdbID, Type).
	Media struct {
		ID            uuid.UUID         `db:"id" json:"id"`
		TmdbID        int               `db:"tmdb_id" json:"tmdb_id"`
		Type          catalog.MediaType `db:"media_type" json:"media_type"`
		Title         string            `db:"title" json:"title"`
		Overview      string            `db:"overview" json:"overview"`
		ReleaseDate   *time.Time        `db:"release_date" json:"release_date,omitempty"`
		PosterPath    string            `db:"poster_path" json:"poster_path"`
		Seasons       *int              `db:"seasons" json:"seasons,omitempty"`
		Episodes      *int              `db:"episodes" json:"episodes,omitempty"`
		LastWatchedAt *time.Time        `db:"last_watched_at" json:"last_watched_at,omitempty"`
		CreatedAt     time.Time         `db:"created_at" json:"created_at"`
		UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
		Genres        []*Genre          `db:"-" json:"genres"`
	}

	Store struct {
		mediaGenreStore
	}
)

// Upsert saves the metadata provided as a Media row. If a row already exists with
// the same (tmdb_id, media_type) composite key, then the catalog information of that
// row is refreshed and the existing row (with its original ID) is returned. The
// upsert is a single statement so concurrent first-fetches of the same title
// always resolve to exactly one row.
//
// NOTE: genres in the metadata are NOT saved by this method, see AttachGenres.
func (store *Store) Upsert(db database.Queryable, metadata *catalog.Metadata) (*Media, error) {
	if err := validateMetadata(metadata); err != nil {
		return nil, err
	}

	var media Media
	if err := db.Get(&media, `
		INSERT INTO medias(id, tmdb_id, media_type, title, overview, release_date, poster_path, seasons, episodes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, current_timestamp, current_timestamp)
		ON CONFLICT(tmdb_id, media_type) DO UPDATE
		SET (title, overview, release_date, poster_path, seasons, episodes, updated_at) =
			(EXCLUDED.title, EXCLUDED.overview, EXCLUDED.release_date, EXCLUDED.poster_path, EXCLUDED.seasons, EXCLUDED.episodes, current_timestamp)
		RETURNING *
	`,
		uuid.New(), metadata.TmdbID, metadata.Type, metadata.Title, metadata.Overview,
		metadata.ReleaseDate, metadata.PosterPath, metadata.Seasons, metadata.Episodes,
	); err != nil {
		return nil, database.TranslateError("media", err)
	}

	log.Emit(logger.DEBUG, "Upserted media %s (tmdb_id=%d type=%s) as %s\n", media.Title, media.TmdbID, media.Type, media.ID)
	return &media, nil
}

// GetWithID returns the media with the Cinelog ID provided, including its genres.
func (store *Store) GetWithID(db database.Queryable, id uuid.UUID) (*Media, error) {
	var media Media
	if err := db.Get(&media, `SELECT * FROM medias WHERE id=$1`, id); err != nil {
		return nil, database.TranslateError("media", err)
	}

	return store.withGenres(db, &media)
}

// GetWithTmdbID returns the media matching the composite key (tmdbID, mediaType).
func (store *Store) GetWithTmdbID(db database.Queryable, tmdbID int, mediaType catalog.MediaType) (*Media, error) {
	var media Media
	if err := db.Get(&media, `SELECT * FROM medias WHERE tmdb_id=$1 AND media_type=$2`, tmdbID, mediaType); err != nil {
		return nil, database.TranslateError("media", err)
	}

	return store.withGenres(db, &media)
}

// MarkWatched updates the last-watched timestamp of the media.
func (store *Store) MarkWatched(db database.Queryable, mediaID uuid.UUID, at time.Time) error {
	res, err := db.Exec(`UPDATE medias SET last_watched_at=$2, updated_at=current_timestamp WHERE id=$1`, mediaID, at)
	if err != nil {
		return database.TranslateError("media", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return database.TranslateError("media", err)
	} else if n == 0 {
		return catalog.NotFoundf("media %s does not exist", mediaID)
	}

	return nil
}

func (store *Store) withGenres(db database.Queryable, media *Media) (*Media, error) {
	genres, err := store.GetGenresForMedia(db, media.ID)
	if err != nil {
		return nil, err
	}

	media.Genres = genres
	return media, nil
}

func validateMetadata(metadata *catalog.Metadata) error {
	if metadata == nil {
		return catalog.NewValidationError("metadata", "is required")
	}

	var fields []catalog.FieldError
	if metadata.TmdbID <= 0 {
		fields = append(fields, catalog.FieldError{Field: "tmdb_id", Message: "must be a positive integer"})
	}
	if !metadata.Type.Valid() {
		fields = append(fields, catalog.FieldError{Field: "media_type", Message: fmt.Sprintf("'%s' is not one of [movie show]", metadata.Type)})
	}
	if metadata.Title == "" {
		fields = append(fields, catalog.FieldError{Field: "title", Message: "is required"})
	}

	if len(fields) > 0 {
		return &catalog.ValidationError{Fields: fields}
	}

	return nil
}
