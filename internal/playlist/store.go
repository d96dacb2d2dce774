package playlist

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/hbomb79/Cinelog/internal/media"
)

const MaxNameLength = 50

type (
	Playlist struct {
		ID        uuid.UUID `db:"id" json:"id"`
		UserID    uuid.UUID `db:"user_id" json:"user_id"`
		Name      string    `db:"name" json:"name"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
		UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	}

	// PlaylistWithMedia is a playlist with all of the media it
	// contains, in the order it was added.
	PlaylistWithMedia struct {
		Playlist
		Medias []*media.Media `json:"medias"`
	}

	Store struct{}
)

func (store *Store) Create(db database.Queryable, userID uuid.UUID, name string) (*Playlist, error) {
	name, err := normaliseName(name)
	if err != nil {
		return nil, err
	}

	var playlist Playlist
	if err := db.Get(&playlist, `
		INSERT INTO playlists(id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, current_timestamp, current_timestamp)
		RETURNING *
	`, uuid.New(), userID, name); err != nil {
		return nil, database.TranslateError("playlist", err)
	}

	return &playlist, nil
}

func (store *Store) GetWithID(db database.Queryable, id uuid.UUID) (*Playlist, error) {
	var playlist Playlist
	if err := db.Get(&playlist, `SELECT * FROM playlists WHERE id=$1`, id); err != nil {
		return nil, database.TranslateError("playlist", err)
	}

	return &playlist, nil
}

func (store *Store) ListForUser(db database.Queryable, userID uuid.UUID) ([]*Playlist, error) {
	results := make([]*Playlist, 0)
	if err := db.Select(&results, `SELECT * FROM playlists WHERE user_id=$1 ORDER BY created_at, id`, userID); err != nil {
		return nil, database.TranslateError("playlist", err)
	}

	return results, nil
}

func (store *Store) Rename(db database.Queryable, id uuid.UUID, name string) (*Playlist, error) {
	name, err := normaliseName(name)
	if err != nil {
		return nil, err
	}

	var playlist Playlist
	if err := db.Get(&playlist, `
		UPDATE playlists SET name=$2, updated_at=current_timestamp
		WHERE id=$1
		RETURNING *
	`, id, name); err != nil {
		return nil, database.TranslateError("playlist", err)
	}

	return &playlist, nil
}

// Delete removes the playlist, after first removing all of the links between
// the playlist and its media. The media themselves are not affected.
func (store *Store) Delete(db database.Queryable, id uuid.UUID) error {
	if _, err := db.Exec(`DELETE FROM playlist_medias WHERE playlist_id=$1`, id); err != nil {
		return database.TranslateError("playlist media", err)
	}

	res, err := db.Exec(`DELETE FROM playlists WHERE id=$1`, id)
	if err != nil {
		return database.TranslateError("playlist", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return database.TranslateError("playlist", err)
	} else if n == 0 {
		return catalog.NotFoundf("playlist %s does not exist", id)
	}

	return nil
}

// AddMedia links the media to the playlist. Adding media which is already in the
// playlist is a no-op, indicated by a false return.
func (store *Store) AddMedia(db database.Queryable, playlistID uuid.UUID, mediaID uuid.UUID) (bool, error) {
	res, err := db.Exec(`
		INSERT INTO playlist_medias(playlist_id, media_id, added_at)
		VALUES ($1, $2, current_timestamp)
		ON CONFLICT(playlist_id, media_id) DO NOTHING
	`, playlistID, mediaID)
	if err != nil {
		return false, database.TranslateError("playlist media", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, database.TranslateError("playlist media", err)
	}

	return n == 1, nil
}

func (store *Store) RemoveMedia(db database.Queryable, playlistID uuid.UUID, mediaID uuid.UUID) error {
	res, err := db.Exec(`DELETE FROM playlist_medias WHERE playlist_id=$1 AND media_id=$2`, playlistID, mediaID)
	if err != nil {
		return database.TranslateError("playlist media", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return database.TranslateError("playlist media", err)
	} else if n == 0 {
		return catalog.NotFoundf("media %s is not in playlist %s", mediaID, playlistID)
	}

	return nil
}

func (store *Store) ListMedia(db database.Queryable, playlistID uuid.UUID) ([]*media.Media, error) {
	results := make([]*media.Media, 0)
	if err := db.Select(&results, `
		SELECT medias.* FROM playlist_medias
		INNER JOIN medias ON medias.id = playlist_medias.media_id
		WHERE playlist_medias.playlist_id = $1
		ORDER BY playlist_medias.added_at, medias.id`, playlistID); err != nil {
		return nil, database.TranslateError("playlist media", err)
	}

	return results, nil
}

func normaliseName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", catalog.NewValidationError("name", "is required")
	} else if len([]rune(name)) > MaxNameLength {
		return "", catalog.NewValidationError("name", "must be at most 50 characters")
	}

	return name, nil
}
