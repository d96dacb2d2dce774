package api

import (
	"context"
	"sync"

	"github.com/hbomb79/Cinelog/internal/api/controllers/auth"
	"github.com/hbomb79/Cinelog/internal/api/controllers/folders"
	"github.com/hbomb79/Cinelog/internal/api/controllers/medias"
	"github.com/hbomb79/Cinelog/internal/api/controllers/playlists"
	"github.com/hbomb79/Cinelog/internal/api/controllers/ratings"
	"github.com/hbomb79/Cinelog/internal/api/controllers/users"
	"github.com/hbomb79/Cinelog/internal/api/jwt"
	"github.com/hbomb79/Cinelog/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	apiBasePath = "/api/cinelog/v1"
	refreshPath = apiBasePath + "/auth/refresh/"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr           string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
		AuthTokenSecret    string `yaml:"auth_token_secret" env:"API_AUTH_TOKEN_SECRET" env-required:"true"`
		RefreshTokenSecret string `yaml:"refresh_token_secret" env:"API_REFRESH_TOKEN_SECRET" env-required:"true"`
		CookieSecure       bool   `yaml:"cookie_secure" env:"API_COOKIE_SECURE" env-default:"true"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// dataStore represents a union of all the controller store requirements
	dataStore interface {
		jwt.Store
		auth.Store
		users.Store
		medias.Store
		ratings.Store
		folders.Store
		playlists.Store
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsibility
	// is to create the routes Cinelog exposes, and to enforce authentication middleware
	// where applicable. Authorization (ownership of playlists, ratings, etc) is the
	// responsibility of the store.
	RestGateway struct {
		config *RestConfig
		ec     *echo.Echo
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. Each controller requires access
// to a data store, which is provided as an argument.
func NewRestGateway(config *RestConfig, store dataStore) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	authProvider := jwt.NewJwtAuth(store, refreshPath, []byte(config.AuthTokenSecret), []byte(config.RefreshTokenSecret), config.CookieSecure)
	verifier := authProvider.GetVerifierMiddleware()

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	// Auth routes manage their own middleware, as some (login, register) must
	// be reachable without a valid token.
	auth.New(authProvider, store).SetRoutes(ec.Group(apiBasePath + "/auth"))

	protected := map[string]controller{
		"/users":     users.New(authProvider, store),
		"/media":     medias.New(authProvider, store),
		"/ratings":   ratings.New(authProvider, store),
		"/folders":   folders.New(authProvider, store),
		"/playlists": playlists.New(authProvider, store),
	}
	for path, c := range protected {
		c.SetRoutes(ec.Group(apiBasePath+path, verifier))
	}

	return &RestGateway{config: config, ec: ec}
}

// Handler exposes the underlying router so that it may be
// served by something other than Run (such as httptest).
func (gateway *RestGateway) Handler() *echo.Echo { return gateway.ec }

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
