package catalog

import "context"

// MetadataProvider is the boundary to the external title catalog (TMDB). Given
// an external id and media type it returns the information required to
// populate a Media row and its genres.
type MetadataProvider interface {
	GetMetadata(ctx context.Context, tmdbID int, mediaType MediaType) (*Metadata, error)
	Search(ctx context.Context, query string, mediaType MediaType) ([]SearchResult, error)
}
