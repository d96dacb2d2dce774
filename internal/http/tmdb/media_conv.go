package tmdb

import (
	"github.com/hbomb79/Cinelog/internal/catalog"
)

func (genre Genre) toCatalog() catalog.Genre {
	id, _ := genre.Id.Int64()
	return catalog.Genre{TmdbID: int(id), Name: genre.Name}
}

func tmdbGenresToCatalog(genres []Genre) []catalog.Genre {
	gs := make([]catalog.Genre, 0, len(genres))
	for _, v := range genres {
		if g := v.toCatalog(); g.TmdbID > 0 && g.Name != "" {
			gs = append(gs, g)
		}
	}

	return gs
}

func (movie *Movie) toMetadata() *catalog.Metadata {
	id, _ := movie.Id.Int64()
	return &catalog.Metadata{
		TmdbID:      int(id),
		Type:        catalog.MovieMediaType,
		Title:       movie.Name,
		Overview:    movie.Overview,
		ReleaseDate: movie.ReleaseDate.ptr(),
		PosterPath:  movie.PosterPath,
		Genres:      tmdbGenresToCatalog(movie.Genres),
	}
}

func (series *Series) toMetadata() *catalog.Metadata {
	id, _ := series.Id.Int64()
	return &catalog.Metadata{
		TmdbID:      int(id),
		Type:        catalog.ShowMediaType,
		Title:       series.Name,
		Overview:    series.Overview,
		ReleaseDate: series.FirstAirDate.ptr(),
		PosterPath:  series.PosterPath,
		Seasons:     series.NumberOfSeasons,
		Episodes:    series.NumberOfEpisodes,
		Genres:      tmdbGenresToCatalog(series.Genres),
	}
}

// toSearchResult converts the item to a catalog search result. TMDB names
// movies by 'title' and series by 'name', so the type decides which is used.
func (item SearchResultItem) toSearchResult(mediaType catalog.MediaType) catalog.SearchResult {
	id, _ := item.Id.Int64()
	res := catalog.SearchResult{
		TmdbID:     int(id),
		Type:       mediaType,
		Title:      item.Title,
		Overview:   item.Plot,
		PosterPath: item.PosterPath,
	}

	if mediaType == catalog.ShowMediaType {
		res.Title = item.Name
		res.ReleaseDate = item.FirstAirDate.ptr()
	} else {
		res.ReleaseDate = item.ReleaseDate.ptr()
	}

	return res
}
