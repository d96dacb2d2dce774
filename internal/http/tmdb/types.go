package tmdb

import (
	"bytes"
	"encoding/json"
	"time"
)

const tmdbDateLayout = "2006-01-02"

type (
	// Date is a TMDB calendar date. TMDB reports unknown dates as
	// either null or the empty string, both of which leave the Date unset.
	Date struct{ time.Time }

	SearchResult struct {
		Results      []SearchResultItem `json:"results"`
		TotalPages   int                `json:"total_pages"`
		TotalResults int                `json:"total_results"`
	}

	SearchResultItem struct {
		Id           json.Number `json:"id"`
		Adult        bool        `json:"adult"`
		Title        string      `json:"title"`
		Name         string      `json:"name"`
		Plot         string      `json:"overview"`
		PosterPath   string      `json:"poster_path"`
		FirstAirDate *Date       `json:"first_air_date"`
		ReleaseDate  *Date       `json:"release_date"`
	}

	Genre struct {
		Id   json.Number `json:"id"`
		Name string      `json:"name"`
	}

	Movie struct {
		Id          json.Number `json:"id"`
		Adult       bool        `json:"adult"`
		ReleaseDate *Date       `json:"release_date"`
		Name        string      `json:"title"`
		Tagline     string      `json:"tagline"`
		Overview    string      `json:"overview"`
		PosterPath  string      `json:"poster_path"`
		Genres      []Genre     `json:"genres"`
	}

	Series struct {
		Id               json.Number `json:"id"`
		Adult            bool        `json:"adult"`
		Name             string      `json:"name"`
		Overview         string      `json:"overview"`
		PosterPath       string      `json:"poster_path"`
		FirstAirDate     *Date       `json:"first_air_date"`
		NumberOfSeasons  *int        `json:"number_of_seasons"`
		NumberOfEpisodes *int        `json:"number_of_episodes"`
		Genres           []Genre     `json:"genres"`
	}
)

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		return nil
	}

	t, err := time.Parse(tmdbDateLayout, s)
	if err != nil {
		return err
	}

	d.Time = t
	return nil
}

// ptr returns a pointer to the time held by the date, or nil if
// the date is missing or was never set.
func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}

	t := d.Time
	return &t
}
