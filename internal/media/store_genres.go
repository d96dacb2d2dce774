package media

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/lib/pq"
)

type (
	Genre struct {
		ID     uuid.UUID `db:"id" json:"id"`
		TmdbID int       `db:"tmdb_id" json:"tmdb_id"`
		Name   string    `db:"name" json:"name"`
	}

	mediaGenreStore struct{}
)

// SaveGenres upserts the given genres, using the TMDB genre ID as the identity
// of a genre. The returned genres are the rows as stored in the database, regardless
// of whether they were newly created or already present.
func (store *mediaGenreStore) SaveGenres(db database.Queryable, genres []catalog.Genre) ([]*Genre, error) {
	if len(genres) == 0 {
		return []*Genre{}, nil
	}

	// A single INSERT cannot affect the same row twice, so collapse
	// any duplicate genres before building the batch.
	seen := make(map[int]struct{}, len(genres))
	rows := make([]Genre, 0, len(genres))
	ids := make([]int64, 0, len(genres))
	for _, g := range genres {
		if _, ok := seen[g.TmdbID]; ok {
			continue
		}

		seen[g.TmdbID] = struct{}{}
		rows = append(rows, Genre{ID: uuid.New(), TmdbID: g.TmdbID, Name: g.Name})
		ids = append(ids, int64(g.TmdbID))
	}

	if _, err := db.NamedExec(`
		INSERT INTO genres(id, tmdb_id, name)
		VALUES (:id, :tmdb_id, :name)
		ON CONFLICT(tmdb_id) DO UPDATE SET name=EXCLUDED.name
	`, rows); err != nil {
		return nil, database.TranslateError("genre", err)
	}

	var results []*Genre
	if err := db.Select(&results, `SELECT * FROM genres WHERE tmdb_id = ANY($1) ORDER BY name`, pq.Array(ids)); err != nil {
		return nil, database.TranslateError("genre", err)
	}

	return results, nil
}

// SaveMediaGenreAssociations ensures a link exists between the media and each
// of the genres provided. Existing links are left untouched, so no link will ever
// be duplicated.
//
// NB: This query will FAIL if any of the given genres do not have a row in the genre table
func (store *mediaGenreStore) SaveMediaGenreAssociations(db database.Queryable, mediaID uuid.UUID, genres []*Genre) error {
	if len(genres) == 0 {
		return nil
	}

	type genreAssoc struct {
		MediaID uuid.UUID `db:"media_id"`
		GenreID uuid.UUID `db:"genre_id"`
	}
	assocs := make([]genreAssoc, len(genres))
	for k, v := range genres {
		assocs[k] = genreAssoc{mediaID, v.ID}
	}

	if _, err := db.NamedExec(`
		INSERT INTO media_genres(media_id, genre_id)
		VALUES(:media_id, :genre_id)
		ON CONFLICT(media_id, genre_id) DO NOTHING
	`, assocs); err != nil {
		return database.TranslateError("media genre", err)
	}

	return nil
}

func (store *mediaGenreStore) ListGenres(db database.Queryable) ([]*Genre, error) {
	results := make([]*Genre, 0)
	if err := db.Select(&results, `SELECT * FROM genres ORDER BY name`); err != nil {
		return nil, database.TranslateError("genre", err)
	}

	return results, nil
}

func (store *mediaGenreStore) GetGenresForMedia(db database.Queryable, mediaID uuid.UUID) ([]*Genre, error) {
	results := make([]*Genre, 0)
	if err := db.Select(&results, `
		SELECT genres.* FROM media_genres
		INNER JOIN genres ON genres.id = media_genres.genre_id
		WHERE media_genres.media_id = $1
		ORDER BY genres.name`, mediaID); err != nil {
		return nil, fmt.Errorf("failed to select genres for media %s: %w", mediaID, database.TranslateError("genre", err))
	}

	return results, nil
}
