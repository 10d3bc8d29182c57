package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/dto"
	"github.com/noah-isme/pass-request-client/internal/models"
	"github.com/noah-isme/pass-request-client/pkg/apiclient"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
	"github.com/noah-isme/pass-request-client/pkg/imaging"
	"github.com/noah-isme/pass-request-client/pkg/pager"
)

const (
	listEndpoint   = "/pass/request/pageable"
	myListEndpoint = "/pass/request/my/pageable"
	createEndpoint = "/pass/request"

	// wire format for dates sent with create and extend
	requestDateLayout = "2006-01-02T15:04:05.000Z07:00"

	defaultExtension = 7 * 24 * time.Hour
)

// NewestFirst sorts listings by creation time, newest first.
var NewestFirst = []string{"createTimestamp,desc"}

// RequestLister is the paged fetcher over pass requests.
type RequestLister = pager.Fetcher[models.PassRequest, models.RequestFilter]

type imageCompressor interface {
	Compress(img image.Image) (*imaging.Result, error)
}

// PassRequestConfig tunes listing and lookups.
type PassRequestConfig struct {
	PageSize     int
	Location     *time.Location
	MaxScanPages int
}

// PassRequestService lists, creates, extends and deletes pass requests.
// It keeps no state between calls; callers refresh their listings after a
// mutation.
type PassRequestService struct {
	api        apiDoer
	compressor imageCompressor
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        PassRequestConfig
}

// NewPassRequestService constructs a PassRequestService.
func NewPassRequestService(api apiDoer, compressor imageCompressor, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PassRequestConfig) *PassRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if compressor == nil {
		compressor = imaging.NewCompressor(imaging.DefaultOptions())
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxScanPages <= 0 {
		cfg.MaxScanPages = 50
	}
	return &PassRequestService{
		api:        api,
		compressor: compressor,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// List fetches one page. Students see their own requests; privileged roles
// see everyone's, narrowed by the filter.
func (s *PassRequestService) List(ctx context.Context, role models.UserRole, filter models.RequestFilter, page models.PageRequest) (*models.Page[models.PassRequest], error) {
	endpoint, query := s.listQuery(role, filter, page)

	var out models.Page[models.PassRequest]
	if err := s.api.Do(ctx, apiclient.Request{Endpoint: endpoint, Query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PassRequestService) listQuery(role models.UserRole, filter models.RequestFilter, page models.PageRequest) (string, url.Values) {
	q := url.Values{}
	endpoint := myListEndpoint

	if role.Privileged() {
		endpoint = listEndpoint
		if filter.UserID != "" {
			q.Set("userId", filter.UserID)
		}
		if search := strings.TrimSpace(filter.UserSearch); search != "" {
			q.Set("userSearchString", search)
		}
		if filter.DateStart != nil {
			q.Set("dateStart", formatQueryTime(StartOfDay(*filter.DateStart, s.cfg.Location)))
		}
		if filter.DateEnd != nil {
			q.Set("dateEnd", formatQueryTime(EndOfDay(*filter.DateEnd, s.cfg.Location)))
		}
	}
	if filter.Accepted != nil {
		q.Set("isAccepted", strconv.FormatBool(*filter.Accepted))
	}

	size := page.Size
	if size <= 0 {
		size = s.cfg.PageSize
	}
	q.Set("page", strconv.Itoa(page.Page))
	q.Set("size", strconv.Itoa(size))
	for _, sort := range page.Sort {
		q.Add("sort", sort)
	}
	return endpoint, q
}

// NewLister binds List to a paged fetcher for role, starting from filter.
func (s *PassRequestService) NewLister(role models.UserRole, filter models.RequestFilter, sort ...string) *RequestLister {
	listing := "mine"
	if role.Privileged() {
		listing = "all"
	}
	fetch := func(ctx context.Context, f models.RequestFilter, page int) (pager.Batch[models.PassRequest], error) {
		p, err := s.List(ctx, role, f, models.PageRequest{Page: page, Size: s.cfg.PageSize, Sort: sort})
		s.metrics.RecordPageFetch(listing, err)
		if err != nil {
			s.logger.Warn("page fetch failed", zap.String("listing", listing), zap.Int("page", page), zap.Error(err))
			return pager.Batch[models.PassRequest]{}, err
		}
		return pager.Batch[models.PassRequest]{Items: p.Content, Number: p.Number, Last: p.Last}, nil
	}
	return pager.New[models.PassRequest, models.RequestFilter](fetch, models.PassRequest.Key, filter)
}

// Create submits a new request with its photos. When the server answers with
// an empty or undecodable body the newest own request is fetched and
// returned instead.
func (s *PassRequestService) Create(ctx context.Context, req dto.CreatePassRequest) (*models.PassRequest, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, translateValidation(err)
	}
	if req.DateEnd.Before(req.DateStart) {
		return nil, appErrors.Validation(MsgDateRange)
	}
	files, err := s.attachments(req.Images)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("dateStart", formatRequestTime(req.DateStart))
	q.Set("dateEnd", formatRequestTime(req.DateEnd))
	if req.Message != "" {
		q.Set("message", req.Message)
	}

	var created models.PassRequest
	err = s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Endpoint: createEndpoint, Query: q, Files: files}, &created)
	if err == nil {
		s.logger.Info("pass request created", zap.String("id", created.ID), zap.Int("files", len(files)))
		return &created, nil
	}
	if !errors.Is(err, appErrors.ErrNoData) && !errors.Is(err, appErrors.ErrDecoding) {
		return nil, err
	}

	s.logger.Debug("create response unusable, loading newest request", zap.Error(err))
	latest, err := s.List(ctx, models.RoleStudent, models.RequestFilter{}, models.PageRequest{Page: 0, Size: 1, Sort: NewestFirst})
	if err != nil {
		return nil, err
	}
	if len(latest.Content) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoData, "request was submitted but could not be loaded")
	}
	newest := latest.Content[0]
	return &newest, nil
}

// Delete removes a pending request. snapshot is the caller's cached copy;
// non-pending requests are refused without contacting the server.
func (s *PassRequestService) Delete(ctx context.Context, snapshot models.PassRequest) error {
	if snapshot.ID == "" {
		return appErrors.Validation(emptyFieldMessage("ID"))
	}
	if !snapshot.Acceptance.IsPending() {
		return appErrors.Validation(MsgDeleteNotPending)
	}
	err := s.api.Do(ctx, apiclient.Request{
		Method:   http.MethodDelete,
		Endpoint: "/pass/request/" + url.PathEscape(snapshot.ID),
		Route:    "/pass/request/{id}",
	}, nil)
	if err != nil {
		return err
	}
	s.logger.Info("pass request deleted", zap.String("id", snapshot.ID))
	return nil
}

// Extend asks to move the end date of an accepted request and returns the
// request as the server now reports it.
func (s *PassRequestService) Extend(ctx context.Context, snapshot models.PassRequest, req dto.ExtendPassRequest) (*models.PassRequest, error) {
	if snapshot.ID == "" {
		return nil, appErrors.Validation(emptyFieldMessage("ID"))
	}
	if !snapshot.Acceptance.IsAccepted() {
		return nil, appErrors.Validation(MsgExtendNotAccepted)
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, translateValidation(err)
	}
	if !req.DateEnd.After(snapshot.DateEnd.Time) {
		return nil, appErrors.Validation(MsgExtendNotLater)
	}
	files, err := s.attachments(req.Images)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("dateEnd", formatRequestTime(req.DateEnd))
	if req.Message != "" {
		q.Set("message", req.Message)
	}

	var echoed models.PassRequest
	err = s.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/pass/request/" + url.PathEscape(snapshot.ID) + "/extend",
		Route:    "/pass/request/{id}/extend",
		Query:    q,
		Files:    files,
	}, &echoed)
	if err != nil && !errors.Is(err, appErrors.ErrNoData) && !errors.Is(err, appErrors.ErrDecoding) {
		return nil, err
	}
	if err != nil {
		s.logger.Debug("extend response not usable, reloading request", zap.String("id", snapshot.ID), zap.Error(err))
	}
	s.logger.Info("extension requested", zap.String("id", snapshot.ID))

	found, findErr := s.FindMine(ctx, snapshot.ID)
	if findErr == nil {
		return found, nil
	}
	if err == nil && echoed.ID != "" {
		return &echoed, nil
	}
	return nil, findErr
}

// FindMine scans the user's own listing, newest first, for id.
func (s *PassRequestService) FindMine(ctx context.Context, id string) (*models.PassRequest, error) {
	for page := 0; page < s.cfg.MaxScanPages; page++ {
		p, err := s.List(ctx, models.RoleStudent, models.RequestFilter{}, models.PageRequest{Page: page, Size: s.cfg.PageSize, Sort: NewestFirst})
		if err != nil {
			return nil, err
		}
		for i := range p.Content {
			if p.Content[i].ID == id {
				found := p.Content[i]
				return &found, nil
			}
		}
		if p.Last || len(p.Content) == 0 {
			break
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNoData, fmt.Sprintf("request %s not found", id))
}

// SuggestExtensionEnd proposes a new end date one week after the current one.
func SuggestExtensionEnd(snapshot models.PassRequest) time.Time {
	return snapshot.DateEnd.Add(defaultExtension)
}

func (s *PassRequestService) attachments(images []models.Attachment) ([]apiclient.File, error) {
	for i, a := range images {
		if a.Image == nil {
			return nil, appErrors.Validation(fmt.Sprintf("photo %d could not be read", i+1))
		}
	}

	files := make([]apiclient.File, 0, len(images))
	for i, a := range images {
		start := time.Now()
		res, err := s.compressor.Compress(a.Image)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnknown.Code, 0, "compress photo")
		}
		s.metrics.ObserveCompression(len(res.Data), res.Quality, time.Since(start))
		s.logger.Debug("photo compressed",
			zap.String("name", a.Name),
			zap.Int("bytes", len(res.Data)),
			zap.Int("quality", res.Quality),
			zap.Int("width", res.Bounds.Dx()),
			zap.Int("height", res.Bounds.Dy()),
		)
		files = append(files, apiclient.File{
			Field:       apiclient.FilesField,
			Name:        fmt.Sprintf("image%d.jpg", i),
			ContentType: "image/jpeg",
			Data:        res.Data,
		})
	}
	return files, nil
}

// StartOfDay is midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay is one second before the next day's midnight in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Second)
}

func formatQueryTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatRequestTime(t time.Time) string {
	return t.UTC().Format(requestDateLayout)
}
