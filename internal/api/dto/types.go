package dto

import (
	"time"

	"github.com/google/uuid"
)

type (
	// User is the full representation of a user, only ever
	// returned to the user it describes.
	User struct {
		ID        uuid.UUID  `json:"id"`
		Email     string     `json:"email"`
		Username  string     `json:"username"`
		CreatedAt time.Time  `json:"created_at"`
		LastLogin *time.Time `json:"last_login,omitempty"`
	}

	// PublicUser is the representation of a user visible to other users.
	PublicUser struct {
		ID        uuid.UUID `json:"id"`
		Username  string    `json:"username"`
		CreatedAt time.Time `json:"created_at"`
	}

	// UserProfile is a public user, along with whether the
	// requesting user follows them.
	UserProfile struct {
		PublicUser
		Following bool `json:"following"`
	}

	Genre struct {
		ID     uuid.UUID `json:"id"`
		TmdbID int       `json:"tmdb_id"`
		Name   string    `json:"name"`
	}

	Media struct {
		ID            uuid.UUID  `json:"id"`
		TmdbID        int        `json:"tmdb_id"`
		Type          string     `json:"media_type"`
		Title         string     `json:"title"`
		Overview      string     `json:"overview"`
		ReleaseDate   *time.Time `json:"release_date,omitempty"`
		PosterPath    string     `json:"poster_path,omitempty"`
		Seasons       *int       `json:"seasons,omitempty"`
		Episodes      *int       `json:"episodes,omitempty"`
		LastWatchedAt *time.Time `json:"last_watched_at,omitempty"`
		Genres        []Genre    `json:"genres"`
	}

	Rating struct {
		ID         uuid.UUID `json:"id"`
		UserID     uuid.UUID `json:"user_id"`
		Username   string    `json:"username,omitempty"`
		MediaID    uuid.UUID `json:"media_id"`
		MediaTitle string    `json:"media_title,omitempty"`
		Score      int       `json:"score"`
		Review     *string   `json:"review,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
		UpdatedAt  time.Time `json:"updated_at"`
	}

	Playlist struct {
		ID        uuid.UUID `json:"id"`
		UserID    uuid.UUID `json:"user_id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
		Medias    []Media   `json:"medias,omitempty"`
	}

	FollowResponse struct {
		Following bool `json:"following"`
		Changed   bool `json:"changed"`
	}

	FolderMoveResponse struct {
		Folder  string `json:"folder"`
		Outcome string `json:"outcome"`
	}

	PlaylistMediaResponse struct {
		Added bool `json:"added"`
	}
)
