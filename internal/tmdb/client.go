package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reelshelf/internal/services"
)

const component = "tmdb"

// MovieRef is a movie entry of a find response.
type MovieRef struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Popularity  float64 `json:"popularity"`
}

// PersonRef is a person entry of a find response.
type PersonRef struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Popularity float64 `json:"popularity"`
}

// FindResult models the /find response for an external id.
type FindResult struct {
	MovieResults  []MovieRef  `json:"movie_results"`
	PersonResults []PersonRef `json:"person_results"`
}

// MovieDetails captures the movie fields enrichment uses. Budget and revenue
// of zero mean unknown.
type MovieDetails struct {
	ID          int64   `json:"id"`
	IMDbID      string  `json:"imdb_id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Budget      float64 `json:"budget"`
	Revenue     float64 `json:"revenue"`
	Popularity  float64 `json:"popularity"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int64   `json:"vote_count"`
}

// PersonDetails captures the person fields enrichment uses.
type PersonDetails struct {
	ID         int64   `json:"id"`
	IMDbID     string  `json:"imdb_id"`
	Name       string  `json:"name"`
	Birthday   string  `json:"birthday"`
	Popularity float64 `json:"popularity"`
}

// Lookup defines the TMDB operations used by enrichment.
type Lookup interface {
	FindByExternalID(ctx context.Context, imdbID string) (*FindResult, error)
	MovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error)
	PersonDetails(ctx context.Context, personID int64) (*PersonDetails, error)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	bearer     string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Lookup = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBearerToken authenticates with a v4 read token instead of api_key.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.bearer = strings.TrimSpace(token)
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a TMDB client. Either apiKey or a bearer token option is
// required.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.apiKey == "" && client.bearer == "" {
		return nil, errors.New("tmdb api key or bearer token required")
	}
	return client, nil
}

// FindByExternalID resolves an IMDb id (tt… or nm…) to TMDB entries.
func (c *Client) FindByExternalID(ctx context.Context, imdbID string) (*FindResult, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, services.Wrap(services.ErrValidation, component, "find", "external id must not be empty", nil)
	}
	params := url.Values{}
	params.Set("external_source", "imdb_id")
	var payload FindResult
	if err := c.get(ctx, "find", "/find/"+url.PathEscape(imdbID), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// MovieDetails fetches movie details by TMDB id.
func (c *Client) MovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error) {
	if movieID <= 0 {
		return nil, services.Wrap(services.ErrValidation, component, "movie details", "movie id must be positive", nil)
	}
	var payload MovieDetails
	if err := c.get(ctx, "movie details", fmt.Sprintf("/movie/%d", movieID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// PersonDetails fetches person details by TMDB id.
func (c *Client) PersonDetails(ctx context.Context, personID int64) (*PersonDetails, error) {
	if personID <= 0 {
		return nil, services.Wrap(services.ErrValidation, component, "person details", "person id must be positive", nil)
	}
	var payload PersonDetails
	if err := c.get(ctx, "person details", fmt.Sprintf("/person/%d", personID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, into any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, component, operation, "parse tmdb url", err)
	}
	if params == nil {
		params = url.Values{}
	}
	if c.bearer == "" {
		params.Set("api_key", c.apiKey)
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, component, operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, component, operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if err := statusError(operation, resp.StatusCode, latency); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return services.Wrap(services.ErrDecode, component, operation, "decode tmdb response", err)
	}
	return nil
}

// statusError maps a non-200 status onto an error marker. Rate limiting and
// server errors are transient; a 404 is a miss; bad credentials abort.
func statusError(operation string, status int, latency time.Duration) error {
	if status == http.StatusOK {
		return nil
	}
	message := fmt.Sprintf("tmdb %s returned %d (latency=%v)", operation, status, latency)
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return services.Wrap(services.ErrTransient, component, operation, message, nil)
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, component, operation, message, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, component, operation, message, nil)
	default:
		return services.Wrap(services.ErrValidation, component, operation, message, nil)
	}
}
