package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/biomix/mixnode/bridge"
	"github.com/biomix/mixnode/coordinator"
	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/log"
	"github.com/biomix/mixnode/mixnet"
	"github.com/biomix/mixnode/storage"
)

const maxRequestBodyLog = 512 // Maximum length of request body to log

// APIConfig holds everything needed to stand up the HTTP server: the
// network address to bind, the bearer token guarding every endpoint (empty
// disables auth), and the node's collaborators wired up at startup.
type APIConfig struct {
	Host        string
	Port        int
	AuthToken   string
	Pool        *bridge.Pool
	Network     *mixnet.Network
	Self        curve.ActiveParticipant
	Coordinator *coordinator.Coordinator
	Codes       storage.CodeStore
}

// API is the HTTP server exposing the node's six endpoints.
type API struct {
	router      *chi.Mux
	pool        *bridge.Pool
	network     *mixnet.Network
	self        curve.ActiveParticipant
	coordinator *coordinator.Coordinator
	codes       storage.CodeStore
}

// New validates conf, builds the router, and starts serving in the
// background. It returns immediately; ListenAndServe failures are fatal.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("api: missing configuration")
	}
	if conf.Network == nil {
		return nil, fmt.Errorf("api: missing network")
	}
	if conf.Coordinator == nil {
		return nil, fmt.Errorf("api: missing coordinator")
	}
	if conf.Pool == nil {
		return nil, fmt.Errorf("api: missing CPU pool")
	}

	a := &API{
		pool:        conf.Pool,
		network:     conf.Network,
		self:        conf.Self,
		coordinator: conf.Coordinator,
		codes:       conf.Codes,
	}
	a.initRouter(conf.AuthToken)

	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)
		if err := http.ListenAndServe(addr, a.router); err != nil {
			log.Fatalf("api server stopped: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router, primarily for tests.
func (a *API) Router() *chi.Mux {
	return a.router
}

// initRouter builds the middleware chain and registers every handler.
func (a *API) initRouter(authToken string) {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(requestIDMiddleware)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))
	a.router.Use(bodyLimitMiddleware(maxRequestBodyBytes))
	a.router.Use(bearerAuthMiddleware(authToken))

	a.registerHandlers()
}

// registerHandlers wires up every endpoint this node serves.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", HealthEndpoint, "method", "GET")
	a.router.Get(HealthEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	log.Infow("register handler", "endpoint", PublicKeySetEndpoint, "method", "GET")
	a.router.Get(PublicKeySetEndpoint, a.publicKeySet)

	log.Infow("register handler", "endpoint", EncryptEndpoint, "method", "POST")
	a.router.Post(EncryptEndpoint, a.encrypt)

	log.Infow("register handler", "endpoint", RemixEndpoint, "method", "POST")
	a.router.Post(RemixEndpoint, a.remix)

	log.Infow("register handler", "endpoint", DecryptShareEndpoint, "method", "POST")
	a.router.Post(DecryptShareEndpoint, a.decryptShare)

	log.Infow("register handler", "endpoint", HammingEndpoint, "method", "POST")
	a.router.Post(HammingEndpoint, a.hamming)
}
