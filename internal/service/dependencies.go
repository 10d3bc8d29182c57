package service

import (
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/pkg/apiclient"
	"github.com/noah-isme/pass-request-client/pkg/config"
	"github.com/noah-isme/pass-request-client/pkg/imaging"
	"github.com/noah-isme/pass-request-client/pkg/storage"
)

// TokenStore is what the services need from a secret store.
type TokenStore = tokenStore

// Dependencies is the wired client. Nothing in it is global; build one per
// process or per test.
type Dependencies struct {
	API      *apiclient.Client
	Tokens   TokenStore
	Metrics  *MetricsService
	Auth     *AuthService
	Profile  *ProfileService
	Groups   *GroupService
	Requests *PassRequestService
	Session  *SessionService
	Export   *ExportService
}

// NewDependencies wires every service against cfg and tokens.
func NewDependencies(cfg *config.Config, tokens TokenStore, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetricsService()
	validate := NewValidator()

	api := apiclient.New(cfg.API.BaseURL, tokens,
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithLogger(logger.Named("api")),
		apiclient.WithObserver(metrics),
	)

	compressor := imaging.NewCompressor(imaging.Options{
		MaxDimension: cfg.Images.MaxDimension,
		MaxBytes:     cfg.Images.MaxBytes,
		StartQuality: cfg.Images.StartQuality,
		QualityStep:  cfg.Images.QualityStep,
		MinQuality:   cfg.Images.MinQuality,
	})

	exports, err := storage.NewLocalStorage(cfg.Export.Dir, storage.Lazy())
	if err != nil {
		return nil, err
	}

	profile := NewProfileService(api, validate, logger.Named("profile"))

	return &Dependencies{
		API:     api,
		Tokens:  tokens,
		Metrics: metrics,
		Auth:    NewAuthService(api, tokens, validate, logger.Named("auth")),
		Profile: profile,
		Groups:  NewGroupService(api, logger.Named("groups")),
		Requests: NewPassRequestService(api, compressor, metrics, validate, logger.Named("requests"), PassRequestConfig{
			PageSize: cfg.Paging.PageSize,
			Location: cfg.Location,
		}),
		Session: NewSessionService(tokens, profile, logger.Named("session")),
		Export:  NewExportService(exports, cfg.Location, logger.Named("export"), nil, nil),
	}, nil
}
