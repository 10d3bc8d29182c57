package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/dto"
	"github.com/noah-isme/pass-request-client/internal/models"
	"github.com/noah-isme/pass-request-client/pkg/apiclient"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
)

func currentUser() models.User {
	return models.User{
		ID:       "u-1",
		Email:    "ivan@tsu.ru",
		FullName: "Ivan Petrov",
		Role:     models.RoleStudent,
		Group:    &models.Group{GroupNumber: 972301},
	}
}

func TestProfileDiff(t *testing.T) {
	user := currentUser()

	patch := ProfileDiff(user, dto.EditProfileRequest{FullName: user.FullName, Email: user.Email, GroupNumber: intPtr(972301)})
	assert.True(t, patch.Empty())

	patch = ProfileDiff(user, dto.EditProfileRequest{FullName: "Ivan P.", Email: user.Email})
	require.NotNil(t, patch.FullName)
	assert.Equal(t, "Ivan P.", *patch.FullName)
	assert.Nil(t, patch.Email)
	assert.Nil(t, patch.Group)

	patch = ProfileDiff(user, dto.EditProfileRequest{FullName: user.FullName, Email: "new@tsu.ru", GroupNumber: intPtr(972302)})
	assert.Nil(t, patch.FullName)
	require.NotNil(t, patch.Email)
	require.NotNil(t, patch.Group)
	assert.Equal(t, 972302, *patch.Group)
}

func TestUpdateProfileUnchangedSkipsNetwork(t *testing.T) {
	api := &fakeAPI{}
	svc := NewProfileService(api, nil, zap.NewNop())
	user := currentUser()

	got, err := svc.UpdateProfile(context.Background(), user, dto.EditProfileRequest{
		FullName: "  Ivan Petrov ",
		Email:    user.Email,
	})
	require.NoError(t, err)
	assert.Equal(t, user, *got)
	assert.Empty(t, api.Calls())
}

func TestUpdateProfileSendsOnlyChangedFields(t *testing.T) {
	api := &fakeAPI{handle: func(_ int, req apiclient.Request, out any) error {
		updated := currentUser()
		updated.FullName = "Ivan P."
		return respond(out, updated)
	}}
	svc := NewProfileService(api, nil, zap.NewNop())

	got, err := svc.UpdateProfile(context.Background(), currentUser(), dto.EditProfileRequest{
		FullName: "Ivan P.",
		Email:    "ivan@tsu.ru",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ivan P.", got.FullName)

	call := api.Calls()[0]
	assert.Equal(t, http.MethodPatch, call.Method)
	assert.Equal(t, "/user/profile", call.Endpoint)
	var body map[string]any
	require.NoError(t, respond(&body, call.Body))
	assert.Equal(t, map[string]any{"fullName": "Ivan P."}, body)
}

func TestUpdateProfileValidation(t *testing.T) {
	api := &fakeAPI{}
	svc := NewProfileService(api, nil, zap.NewNop())

	_, err := svc.UpdateProfile(context.Background(), currentUser(), dto.EditProfileRequest{FullName: "Ivan", Email: "broken"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, MsgInvalidEmail, appErrors.FromError(err).Message)

	_, err = svc.UpdateProfile(context.Background(), currentUser(), dto.EditProfileRequest{FullName: "Ivan", Email: "ivan@tsu.ru", GroupNumber: intPtr(0)})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, MsgInvalidGroupNumber, appErrors.FromError(err).Message)
	assert.Empty(t, api.Calls())
}

func TestGetProfile(t *testing.T) {
	api := &fakeAPI{handle: func(_ int, req apiclient.Request, out any) error {
		return respond(out, currentUser())
	}}
	svc := NewProfileService(api, nil, zap.NewNop())

	user, err := svc.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 972301, user.GroupNumber())
	assert.Equal(t, "/user/profile", api.Calls()[0].Endpoint)
}

func TestListGroupsSortsByNumber(t *testing.T) {
	api := &fakeAPI{handle: func(_ int, _ apiclient.Request, out any) error {
		return respondRaw(out, `[{"groupNumber":972303},{"groupNumber":972301,"isDeleted":true},{"groupNumber":972302}]`)
	}}
	svc := NewGroupService(api, zap.NewNop())

	list, err := svc.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Groups, 3)
	assert.Equal(t, []int{972301, 972302, 972303}, []int{
		list.Groups[0].GroupNumber, list.Groups[1].GroupNumber, list.Groups[2].GroupNumber,
	})
	assert.Len(t, list.Active(), 2)
	assert.Equal(t, "/group/list", api.Calls()[0].Endpoint)
}

func TestListGroupsPropagatesErrors(t *testing.T) {
	api := &fakeAPI{handle: func(int, apiclient.Request, any) error {
		return appErrors.Clone(appErrors.ErrTransport, "offline")
	}}
	svc := NewGroupService(api, zap.NewNop())

	_, err := svc.ListGroups(context.Background())
	require.ErrorIs(t, err, appErrors.ErrTransport)
}
