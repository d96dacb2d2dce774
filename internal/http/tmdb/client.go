package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	tmdbGetMoviePath     = "/movie/%d"
	tmdbGetSeriesPath    = "/tv/%d"
	tmdbSearchMoviePath  = "/search/movie"
	tmdbSearchSeriesPath = "/search/tv"
)

var log = logger.Get("TMDB")

type (
	Config struct {
		ApiKey            string        `yaml:"api_key" env:"TMDB_API_KEY" env-required:"true"`
		BaseURL           string        `yaml:"base_url" env:"TMDB_BASE_URL" env-default:"https://api.themoviedb.org/3"`
		RequestsPerSecond float64       `yaml:"requests_per_second" env:"TMDB_REQUESTS_PER_SECOND" env-default:"20"`
		RequestTimeout    time.Duration `yaml:"request_timeout" env:"TMDB_REQUEST_TIMEOUT" env-default:"10s"`
		BreakerFailures   uint32        `yaml:"breaker_failures" env:"TMDB_BREAKER_FAILURES" env-default:"5"`
		BreakerCooldown   time.Duration `yaml:"breaker_cooldown" env:"TMDB_BREAKER_COOLDOWN" env-default:"30s"`
	}

	// Client is the metadata provider for Cinelog, backed by the TMDB API.
	// See https://developer.themoviedb.org/reference/intro/getting-started for
	// information on the TMDB API.
	//
	// Requests are rate limited, and guarded by a circuit breaker so that an
	// unavailable TMDB API fails fast rather than tying up request handlers.
	Client struct {
		config  Config
		http    *http.Client
		limiter *rate.Limiter
		breaker *gobreaker.CircuitBreaker[[]byte]
	}
)

func NewClient(config Config) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb-api",
		MaxRequests: 1,
		Timeout:     config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		// A title which does not exist is a perfectly healthy response, and
		// a caller giving up on its request says nothing about TMDB's health
		IsSuccessful: func(err error) bool {
			var aborted *AbortedRequestError
			return err == nil || errors.Is(err, catalog.ErrNotFound) || errors.As(err, &aborted)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Circuit breaker %s changed state %s -> %s\n", name, from, to)
		},
	})

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), max(1, int(config.RequestsPerSecond))),
		breaker: breaker,
	}
}

// GetMetadata queries TMDB for the title with the given ID and type. A TMDB
// ID which does not exist results in an error wrapping catalog.ErrNotFound.
func (client *Client) GetMetadata(ctx context.Context, tmdbID int, mediaType catalog.MediaType) (*catalog.Metadata, error) {
	switch mediaType {
	case catalog.MovieMediaType:
		var movie Movie
		if err := client.getJson(ctx, fmt.Sprintf(tmdbGetMoviePath, tmdbID), nil, &movie); err != nil {
			return nil, err
		}

		return movie.toMetadata(), nil
	case catalog.ShowMediaType:
		var series Series
		if err := client.getJson(ctx, fmt.Sprintf(tmdbGetSeriesPath, tmdbID), nil, &series); err != nil {
			return nil, err
		}

		return series.toMetadata(), nil
	default:
		return nil, catalog.NewValidationError("media_type", fmt.Sprintf("'%s' is not one of [movie show]", mediaType))
	}
}

// Search queries TMDB for titles of the given type which match the query. The
// results are ordered by how closely their title matches the query.
func (client *Client) Search(ctx context.Context, query string, mediaType catalog.MediaType) ([]catalog.SearchResult, error) {
	path := tmdbSearchMoviePath
	switch mediaType {
	case catalog.MovieMediaType:
	case catalog.ShowMediaType:
		path = tmdbSearchSeriesPath
	default:
		return nil, catalog.NewValidationError("media_type", fmt.Sprintf("'%s' is not one of [movie show]", mediaType))
	}

	var searchResult SearchResult
	if err := client.getJson(ctx, path, url.Values{"query": {query}}, &searchResult); err != nil {
		return nil, err
	}

	results := make([]catalog.SearchResult, len(searchResult.Results))
	for k, v := range searchResult.Results {
		results[k] = v.toSearchResult(mediaType)
	}

	rankResults(results, query)
	return results, nil
}

// rankResults sorts the results in place such that those whose title is most
// similar to the query come first. Ties keep TMDB's ordering (popularity).
func rankResults(results []catalog.SearchResult, query string) {
	metric := metrics.NewJaroWinkler()
	metric.CaseSensitive = false

	similarity := make(map[int]float64, len(results))
	for _, res := range results {
		similarity[res.TmdbID] = strutil.Similarity(res.Title, query, metric)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return similarity[results[i].TmdbID] > similarity[results[j].TmdbID]
	})
}

func (client *Client) getJson(ctx context.Context, path string, query url.Values, target any) error {
	body, err := client.breaker.Execute(func() ([]byte, error) {
		return client.get(ctx, path, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &UnavailableError{reason: err.Error()}
		}

		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return &UnknownRequestError{"response JSON could not be unmarshalled", err}
	}

	return nil
}

func (client *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	// The limiter only fails when the callers context has ended, or would
	// end before a token is available
	if err := client.limiter.Wait(ctx); err != nil {
		return nil, &AbortedRequestError{path: path, err: err}
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", client.config.ApiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.config.BaseURL+path+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, &UnknownRequestError{fmt.Sprintf("failed to construct request for %s", path), err}
	}
	req.Header.Set("Accept", "application/json")

	log.Debugf("GET %s\n", path)
	resp, err := client.http.Do(req)
	if err != nil {
		// Only the callers own context ending counts as an abort; the client
		// timeout expiring is a failure of TMDB to respond.
		if ctx.Err() != nil {
			return nil, &AbortedRequestError{path: path, err: ctx.Err()}
		}

		return nil, &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s) to TMDB", path), err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &AbortedRequestError{path: path, err: ctx.Err()}
		}

		return nil, &UnknownRequestError{"failed to read response body", err}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr tmdbError
		if err := json.Unmarshal(respBody, &apiErr); err != nil {
			apiErr = tmdbError{StatusCode: -1, StatusMessage: "non-OK response could not be unmarshalled"}
		}

		failure := &FailedRequestError{httpCode: resp.StatusCode, message: apiErr.StatusMessage, tmdbCode: apiErr.StatusCode}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", catalog.ErrNotFound, failure)
		}

		return nil, failure
	}

	return respBody, nil
}

type (
	tmdbError struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
	}
	FailedRequestError struct {
		httpCode int
		tmdbCode int
		message  string
	}
	UnknownRequestError struct {
		reason string
		err    error
	}
	AbortedRequestError struct {
		path string
		err  error
	}
	UnavailableError struct{ reason string }
)

func (err *UnknownRequestError) Error() string {
	return fmt.Sprintf("unknown error occurred while communicating with TMDB: %s: %s", err.reason, err.err)
}
func (err *UnknownRequestError) Unwrap() error { return err.err }
func (err *AbortedRequestError) Error() string {
	return fmt.Sprintf("request to TMDB (%s) abandoned by caller: %s", err.path, err.err)
}
func (err *AbortedRequestError) Unwrap() error { return err.err }
func (err *FailedRequestError) Error() string {
	return "Request failure (HTTP " + strconv.Itoa(err.httpCode) + "): " + err.message
}
func (err *FailedRequestError) StatusCode() int { return err.httpCode }
func (err *UnavailableError) Error() string {
	return fmt.Sprintf("TMDB is currently unavailable: %s", err.reason)
}
