package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/dto"
	"github.com/noah-isme/pass-request-client/internal/models"
	"github.com/noah-isme/pass-request-client/pkg/apiclient"
)

const profileEndpoint = "/user/profile"

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	api       apiDoer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(api apiDoer, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &ProfileService{api: api, validator: validate, logger: logger}
}

// GetProfile fetches the current user.
func (s *ProfileService) GetProfile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.api.Do(ctx, apiclient.Request{Endpoint: profileEndpoint}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile sends the fields of req that differ from current and returns
// the updated user. When nothing differs no request is made.
func (s *ProfileService) UpdateProfile(ctx context.Context, current models.User, req dto.EditProfileRequest) (*models.User, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, translateValidation(err)
	}

	patch := ProfileDiff(current, req)
	if patch.Empty() {
		s.logger.Debug("profile unchanged, skipping update", zap.String("user_id", current.ID))
		unchanged := current
		return &unchanged, nil
	}

	var updated models.User
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPatch, Endpoint: profileEndpoint, Body: patch}, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ProfileDiff keeps only the edited fields. A cleared group is not sent.
func ProfileDiff(current models.User, req dto.EditProfileRequest) dto.ProfilePatch {
	var patch dto.ProfilePatch
	if req.FullName != current.FullName {
		name := req.FullName
		patch.FullName = &name
	}
	if req.Email != current.Email {
		email := req.Email
		patch.Email = &email
	}
	if req.GroupNumber != nil && *req.GroupNumber != current.GroupNumber() {
		group := *req.GroupNumber
		patch.Group = &group
	}
	return patch
}
