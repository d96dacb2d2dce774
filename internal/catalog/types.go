package catalog

import (
	"database/sql/driver"
	"fmt"
	"time"
)

type (
	// MediaType distinguishes the two kinds of title we track. TMDB ids are
	// only unique within a media type, so the pair (tmdb id, type) forms the
	// natural key of a media row.
	MediaType string

	// Folder is a per-user classification of a title. A title may live in
	// at most one folder for a given user.
	Folder string

	// MoveOutcome describes what MoveToFolder did, so that callers can
	// distinguish "already in list" from an actual state change.
	MoveOutcome int

	// Genre is the genre information as reported by the metadata provider.
	Genre struct {
		TmdbID int
		Name   string
	}

	// Metadata is the shape of the information the metadata provider returns
	// for a single title. It is consumed by the media store to populate Media
	// and Genre rows.
	Metadata struct {
		TmdbID      int
		Type        MediaType
		Title       string
		Overview    string
		ReleaseDate *time.Time
		PosterPath  string
		Seasons     *int
		Episodes    *int
		Genres      []Genre
	}

	// SearchResult is a lightweight search stub returned by the
	// metadata provider when searching for titles by name.
	SearchResult struct {
		TmdbID      int        `json:"tmdb_id"`
		Type        MediaType  `json:"media_type"`
		Title       string     `json:"title"`
		Overview    string     `json:"overview"`
		PosterPath  string     `json:"poster_path"`
		ReleaseDate *time.Time `json:"release_date"`
	}
)

const (
	MovieMediaType MediaType = "movie"
	ShowMediaType  MediaType = "show"
)

const (
	WatchedFolder     Folder = "watched"
	ToBeWatchedFolder Folder = "to_be_watched"
)

const (
	// MoveAdded indicates the title was not in any folder, and has been added to the target.
	MoveAdded MoveOutcome = iota
	// MoveMoved indicates the title was removed from the other folder and added to the target.
	MoveMoved
	// MoveUnchanged indicates the title was already in the target folder; nothing was written.
	MoveUnchanged
)

func ParseMediaType(s string) (MediaType, error) {
	switch s {
	case "movie":
		return MovieMediaType, nil
	case "show", "tv":
		return ShowMediaType, nil
	default:
		return "", NewValidationError("media_type", fmt.Sprintf("'%s' is not one of [movie show]", s))
	}
}

func (t MediaType) Valid() bool { return t == MovieMediaType || t == ShowMediaType }

func (t MediaType) Value() (driver.Value, error) { return string(t), nil }

func (t *MediaType) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*t = MediaType(v)
	case []byte:
		*t = MediaType(v)
	default:
		return fmt.Errorf("cannot scan %T in to MediaType", src)
	}

	return nil
}

func ParseFolder(s string) (Folder, error) {
	switch s {
	case "watched":
		return WatchedFolder, nil
	case "to_be_watched", "to-be-watched":
		return ToBeWatchedFolder, nil
	default:
		return "", NewValidationError("folder", fmt.Sprintf("'%s' is not one of [watched to_be_watched]", s))
	}
}

func (f Folder) Valid() bool { return f == WatchedFolder || f == ToBeWatchedFolder }

func (o MoveOutcome) String() string {
	switch o {
	case MoveAdded:
		return "added"
	case MoveMoved:
		return "moved"
	case MoveUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}
