package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goahttp "goa.design/goa/v3/http"
	httpmdlwr "goa.design/goa/v3/http/middleware"
	"goa.design/goa/v3/security"
	"go.uber.org/zap"

	"pixelforge/internal/config"
	"pixelforge/internal/metrics"
	"pixelforge/internal/services"
)

const apiPrefix = "/api/v1"

// Services are the handlers' collaborators.
type Services struct {
	Gate       *services.AuthGate
	Auth       *services.AuthService
	Users      *services.UserService
	Contact    *services.ContactService
	Quote      *services.QuoteService
	Newsletter *services.NewsletterService
	Project    *services.ProjectService
	Health     *services.HealthService
}

// Server routes HTTP requests to the services.
type Server struct {
	mux       goahttp.Muxer
	svc       Services
	cfg       *config.Config
	log       *zap.Logger
	debug     bool
	maxUpload int64
}

// access says who may call a route.
type access int

const (
	public access = iota
	authenticated
	staff
	admin
)

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// New creates a server and mounts every route.
func New(cfg *config.Config, svc Services, log *zap.Logger) *Server {
	s := &Server{
		mux:       goahttp.NewMuxer(),
		svc:       svc,
		cfg:       cfg,
		log:       log.Named("http"),
		debug:     cfg.App.Debug,
		maxUpload: cfg.Assets.MaxUploadBytes,
	}
	s.mount()
	return s
}

func (s *Server) mount() {
	s.handle("GET", "/health", public, s.health)

	// Auth
	s.handle("POST", apiPrefix+"/register", public, s.register)
	s.handle("POST", apiPrefix+"/login", public, s.login)
	s.handle("POST", apiPrefix+"/logout", authenticated, s.logout)
	s.handle("GET", apiPrefix+"/me", authenticated, s.me)
	s.handle("PUT", apiPrefix+"/me", authenticated, s.updateProfile)
	s.handle("PUT", apiPrefix+"/me/password", authenticated, s.changePassword)
	s.handle("POST", apiPrefix+"/password/forgot", public, s.forgotPassword)
	s.handle("POST", apiPrefix+"/password/reset", public, s.resetPassword)

	// Users
	s.handle("GET", apiPrefix+"/users", admin, s.listUsers)
	s.handle("POST", apiPrefix+"/users", admin, s.createUser)
	s.handle("GET", apiPrefix+"/users/{id}", admin, s.getUser)
	s.handle("PUT", apiPrefix+"/users/{id}", admin, s.updateUser)
	s.handle("DELETE", apiPrefix+"/users/{id}", admin, s.deleteUser)

	// Contact
	s.handle("POST", apiPrefix+"/contact", public, s.submitContact)
	s.handle("GET", apiPrefix+"/contact", staff, s.listContacts)
	s.handle("GET", apiPrefix+"/contact/{id}", staff, s.getContact)
	s.handle("PATCH", apiPrefix+"/contact/{id}", staff, s.updateContact)
	s.handle("DELETE", apiPrefix+"/contact/{id}", admin, s.deleteContact)

	// Quotes
	s.handle("POST", apiPrefix+"/quotes", public, s.submitQuote)
	s.handle("GET", apiPrefix+"/quotes", staff, s.listQuotes)
	s.handle("GET", apiPrefix+"/quotes/{id}", staff, s.getQuote)
	s.handle("PATCH", apiPrefix+"/quotes/{id}/status", staff, s.updateQuoteStatus)
	s.handle("POST", apiPrefix+"/quotes/{id}/replies", staff, s.replyQuote)
	s.handle("DELETE", apiPrefix+"/quotes/{id}", admin, s.deleteQuote)

	// Newsletter
	s.handle("POST", apiPrefix+"/newsletter/subscribe", public, s.subscribe)
	s.handle("DELETE", apiPrefix+"/newsletter/subscribers", public, s.unsubscribe)
	s.handle("GET", apiPrefix+"/newsletter/subscribers", staff, s.listSubscribers)
	s.handle("POST", apiPrefix+"/newsletter", staff, s.createCampaign)
	s.handle("GET", apiPrefix+"/newsletter", staff, s.listCampaigns)
	s.handle("GET", apiPrefix+"/newsletter/{id}", staff, s.getCampaign)
	s.handle("PUT", apiPrefix+"/newsletter/{id}", staff, s.updateCampaign)
	s.handle("DELETE", apiPrefix+"/newsletter/{id}", admin, s.deleteCampaign)
	s.handle("POST", apiPrefix+"/newsletter/{id}/send", staff, s.sendCampaign)

	// Projects
	s.handle("GET", apiPrefix+"/projects", public, s.listProjects)
	s.handle("GET", apiPrefix+"/projects/{id}", public, s.getProject)
	s.handle("POST", apiPrefix+"/projects", staff, s.createProject)
	s.handle("PUT", apiPrefix+"/projects/{id}", staff, s.updateProject)
	s.handle("DELETE", apiPrefix+"/projects/{id}", admin, s.deleteProject)
	s.handle("POST", apiPrefix+"/projects/{id}/slides", staff, s.addSlide)
	s.handle("DELETE", apiPrefix+"/projects/{id}/slides/{slide_id}", staff, s.removeSlide)
}

// handle registers h behind the auth gate for the given access level.
func (s *Server) handle(method, pattern string, level access, h handlerFunc) {
	var scheme *security.JWTScheme
	switch level {
	case authenticated:
		scheme = &security.JWTScheme{Name: "jwt"}
	case staff:
		scheme = &security.JWTScheme{Name: "jwt", Scopes: services.StaffScopes, RequiredScopes: services.StaffScopes}
	case admin:
		scheme = &security.JWTScheme{Name: "jwt", Scopes: services.AdminScopes, RequiredScopes: services.AdminScopes}
	}

	s.mux.Handle(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		setRoute(r, method+" "+pattern)
		if scheme != nil {
			token, ok := bearerToken(r)
			if !ok {
				s.encodeError(w, r, unauthorized("missing or malformed authorization header"))
				return
			}
			ctx, err := s.svc.Gate.JWTAuth(r.Context(), token, scheme)
			if err != nil {
				s.encodeError(w, r, err)
				return
			}
			r = r.WithContext(ctx)
		}
		if err := h(w, r); err != nil {
			s.encodeError(w, r, err)
		}
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Handler returns the full handler: middleware chain, API routes and the
// Prometheus endpoint.
func (s *Server) Handler() http.Handler {
	metricsHandler := promhttp.Handler()
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			metricsHandler.ServeHTTP(w, r)
			return
		}
		s.mux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = metrics.PrometheusMiddleware(routeOf)(h)
	h = requestLogging(s.log)(h)
	h = withRouteLabel(h)
	h = httpmdlwr.PopulateRequestContext()(h)
	h = httpmdlwr.RequestID(
		httpmdlwr.UseXRequestIDHeaderOption(true),
		httpmdlwr.XRequestHeaderLimitOption(128),
	)(h)
	h = cors(&s.cfg.CORS, s.debug)(h)
	h = securityHeaders(&s.cfg.App)(h)
	return h
}
