package stubserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/middleware"
	"github.com/noah-isme/pass-request-client/internal/models"
	"github.com/noah-isme/pass-request-client/pkg/logger"
	"github.com/noah-isme/pass-request-client/pkg/middleware/cors"
	"github.com/noah-isme/pass-request-client/pkg/middleware/requestid"
)

// Config tunes the stub server.
type Config struct {
	JWTSecret      string
	JWTExpiration  time.Duration
	AllowedOrigins []string
	// BcryptCost zero means bcrypt.DefaultCost; tests pass bcrypt.MinCost.
	BcryptCost int
	// Seed registers SeedGroups and one account per role.
	Seed bool
	// EmptyCreateResponse makes POST /pass/request answer with an empty body.
	EmptyCreateResponse bool
	MaxUploadBytes      int64
}

// Metrics is what the server needs from the metrics service.
type Metrics interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

// Server is an in-memory implementation of the pass-request API.
type Server struct {
	cfg      Config
	store    *Store
	tokens   *Tokens
	logger   *zap.Logger
	validate *validator.Validate
	engine   *gin.Engine
}

// New builds the server and its routes.
func New(cfg Config, metrics Metrics, logr *zap.Logger) (*Server, error) {
	if logr == nil {
		logr = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}

	s := &Server{
		cfg:      cfg,
		store:    NewStore(cfg.BcryptCost),
		tokens:   NewTokens(cfg.JWTSecret, cfg.JWTExpiration),
		logger:   logr,
		validate: validator.New(),
	}
	if cfg.Seed {
		if err := Seed(s.store); err != nil {
			return nil, err
		}
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(cors.New(cors.Config{AllowedOrigins: cfg.AllowedOrigins}))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/login", s.login)
	r.POST("/auth/registration", s.register)
	r.GET("/group/list", s.listGroups)

	secured := r.Group("/", middleware.JWT(s.tokens))
	secured.GET("/user/profile", s.profile)
	secured.PATCH("/user/profile", s.updateProfile)
	secured.GET("/pass/request/my/pageable", s.listMine)
	secured.POST("/pass/request", s.createRequest)
	secured.DELETE("/pass/request/:id", s.deleteRequest)
	secured.POST("/pass/request/:id/extend", s.extendRequest)

	reviewers := secured.Group("/", middleware.RequireRoles(models.RoleAdmin, models.RoleDeanery, models.RoleTeacher))
	reviewers.GET("/pass/request/pageable", s.listAll)

	s.engine = r
	return s, nil
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Store exposes the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Tokens exposes the token issuer.
func (s *Server) Tokens() *Tokens {
	return s.tokens
}

// SetAcceptance reviews a request as a deanery member would.
func (s *Server) SetAcceptance(id string, decision *bool) error {
	return s.store.SetAcceptance(id, decision)
}

// TokenFor issues a fresh token for the account registered under email.
func (s *Server) TokenFor(email string) (string, error) {
	user, err := s.store.UserByEmail(email)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(user)
}

// ExpiredTokenFor issues a correctly signed token for email whose expiry
// has already passed.
func (s *Server) ExpiredTokenFor(email string) (string, error) {
	user, err := s.store.UserByEmail(email)
	if err != nil {
		return "", err
	}
	issued := s.tokens.now().Add(-s.tokens.expiry - time.Hour)
	return s.tokens.IssueAt(user, issued)
}
