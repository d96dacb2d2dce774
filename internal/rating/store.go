package rating

import (
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/database"
)

const (
	MinScore = 1
	MaxScore = 5
)

type (
	Rating struct {
		ID        uuid.UUID `db:"id" json:"id"`
		UserID    uuid.UUID `db:"user_id" json:"user_id"`
		MediaID   uuid.UUID `db:"media_id" json:"media_id"`
		Score     int       `db:"score" json:"score"`
		Review    *string   `db:"review" json:"review,omitempty"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
		UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	}

	// DetailedRating is a rating joined with the username of the rater and
	// the title of the media which was rated, used for listings.
	DetailedRating struct {
		Rating
		Username   string            `db:"username" json:"username"`
		MediaTitle string            `db:"media_title" json:"media_title"`
		TmdbID     int               `db:"tmdb_id" json:"tmdb_id"`
		MediaType  catalog.MediaType `db:"media_type" json:"media_type"`
	}

	// RateRequest describes a rating of a title, identified by its TMDB
	// composite key. The title is imported from the metadata provider if
	// it has not been seen before.
	RateRequest struct {
		TmdbID    int               `json:"tmdb_id" validate:"required,min=1"`
		MediaType catalog.MediaType `json:"media_type" validate:"required,oneof=movie show"`
		Score     int               `json:"score" validate:"required,min=1,max=5"`
		Review    *string           `json:"review" validate:"omitempty,max=5000"`
		WatchedAt *time.Time        `json:"watched_at"`
	}

	Store struct{}
)

// Upsert creates the rating for the (user, media) pair if none exists, otherwise the
// existing rating is updated in place. The boolean returned is true when a new
// rating row was created.
//
// Review policy: a nil review leaves any existing review untouched, an empty review
// clears the existing review, and any other value replaces it.
func (store *Store) Upsert(db database.Queryable, userID uuid.UUID, mediaID uuid.UUID, score int, review *string) (*Rating, bool, error) {
	if score < MinScore || score > MaxScore {
		return nil, false, catalog.NewValidationError("score", fmt.Sprintf("must be between %d and %d", MinScore, MaxScore))
	}

	var reviewArg any
	keepReview := review == nil
	if review != nil && *review != "" {
		reviewArg = *review
	}

	var result struct {
		Rating
		Inserted bool `db:"inserted"`
	}
	if err := db.Get(&result, `
		INSERT INTO ratings(id, user_id, media_id, score, review, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, current_timestamp, current_timestamp)
		ON CONFLICT(user_id, media_id) DO UPDATE
		SET score = EXCLUDED.score,
			review = CASE WHEN $6 THEN ratings.review ELSE EXCLUDED.review END,
			updated_at = current_timestamp
		RETURNING *, (xmax = 0) AS inserted
	`, uuid.New(), userID, mediaID, score, reviewArg, keepReview); err != nil {
		return nil, false, database.TranslateError("rating", err)
	}

	return &result.Rating, result.Inserted, nil
}

func (store *Store) GetWithID(db database.Queryable, id uuid.UUID) (*Rating, error) {
	var rating Rating
	if err := db.Get(&rating, `SELECT * FROM ratings WHERE id=$1`, id); err != nil {
		return nil, database.TranslateError("rating", err)
	}

	return &rating, nil
}

func (store *Store) GetForUserAndMedia(db database.Queryable, userID uuid.UUID, mediaID uuid.UUID) (*Rating, error) {
	var rating Rating
	if err := db.Get(&rating, `SELECT * FROM ratings WHERE user_id=$1 AND media_id=$2`, userID, mediaID); err != nil {
		return nil, database.TranslateError("rating", err)
	}

	return &rating, nil
}

// ListForMedia returns all ratings for the given media, most recently
// updated first.
func (store *Store) ListForMedia(db database.Queryable, mediaID uuid.UUID) ([]*DetailedRating, error) {
	return store.list(db, squirrel.Eq{"ratings.media_id": mediaID})
}

// ListForUser returns all the ratings made by the given user, most
// recently updated first.
func (store *Store) ListForUser(db database.Queryable, userID uuid.UUID) ([]*DetailedRating, error) {
	return store.list(db, squirrel.Eq{"ratings.user_id": userID})
}

func (store *Store) Delete(db database.Queryable, id uuid.UUID) error {
	res, err := db.Exec(`DELETE FROM ratings WHERE id=$1`, id)
	if err != nil {
		return database.TranslateError("rating", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return database.TranslateError("rating", err)
	} else if n == 0 {
		return catalog.NotFoundf("rating %s does not exist", id)
	}

	return nil
}

func (store *Store) list(db database.Queryable, pred squirrel.Sqlizer) ([]*DetailedRating, error) {
	query, args, err := squirrel.
		Select("ratings.*", "users.username", "medias.title AS media_title", "medias.tmdb_id", "medias.media_type").
		From("ratings").
		InnerJoin("users ON users.id = ratings.user_id").
		InnerJoin("medias ON medias.id = ratings.media_id").
		Where(pred).
		OrderBy("ratings.updated_at DESC", "ratings.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list ratings query: %w", err)
	}

	results := make([]*DetailedRating, 0)
	if err := db.Select(&results, db.Rebind(query), args...); err != nil {
		return nil, database.TranslateError("rating", err)
	}

	return results, nil
}
