package stubserver

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/pass-request-client/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := New(Config{JWTSecret: "test-secret", JWTExpiration: time.Hour, BcryptCost: bcrypt.MinCost, Seed: true}, nil, nil)
	require.NoError(t, err)
	return srv
}

func tokenFor(t *testing.T, srv *Server, role models.UserRole) string {
	t.Helper()
	token, err := srv.TokenFor(SeedEmail(role))
	require.NoError(t, err)
	return token
}

func do(srv *Server, method, target, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func doJSON(srv *Server, method, target, token string, payload any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(payload)
	return do(srv, method, target, token, raw, "application/json")
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil))
	return buf.Bytes()
}

func multipartBody(t *testing.T, parts map[string][]byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range parts {
		fw, err := w.CreateFormFile(filesField, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createRequest(t *testing.T, srv *Server, token string, start, end time.Time) models.PassRequest {
	t.Helper()
	body, contentType := multipartBody(t, map[string][]byte{"image0.jpg": jpegBytes(t)})
	q := url.Values{}
	q.Set("dateStart", start.UTC().Format(time.RFC3339))
	q.Set("dateEnd", end.UTC().Format(time.RFC3339))
	rec := do(srv, http.MethodPost, "/pass/request?"+q.Encode(), token, body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeJSON[models.PassRequest](t, rec)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(srv, http.MethodPost, "/auth/login", "", map[string]string{"email": SeedEmail(models.RoleStudent), "password": SeedPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeJSON[models.TokenResponse](t, rec).Token
	claims, err := srv.Tokens().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, claims.Role)

	rec = doJSON(srv, http.MethodPost, "/auth/login", "", map[string]string{"email": SeedEmail(models.RoleStudent), "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	envelope := decodeJSON[models.ErrorEnvelope](t, rec)
	assert.Equal(t, "invalid email or password", envelope.Message)
	assert.Equal(t, "/auth/login", envelope.Path)

	rec = doJSON(srv, http.MethodPost, "/auth/login", "", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistration(t *testing.T) {
	srv := newTestServer(t)
	payload := map[string]any{"fullName": "New Student", "email": "new@stub.local", "groupNumber": SeedGroups[0], "password": "pw"}

	rec := doJSON(srv, http.MethodPost, "/auth/registration", "", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decodeJSON[models.TokenResponse](t, rec).Token

	rec = do(srv, http.MethodGet, "/user/profile", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeJSON[models.User](t, rec)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, SeedGroups[0], user.GroupNumber())

	rec = doJSON(srv, http.MethodPost, "/auth/registration", "", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	payload["email"] = "other@stub.local"
	payload["groupNumber"] = 1
	rec = doJSON(srv, http.MethodPost, "/auth/registration", "", payload)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileRequiresValidToken(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, http.MethodGet, "/user/profile", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := srv.ExpiredTokenFor(SeedEmail(models.RoleStudent))
	require.NoError(t, err)
	rec = do(srv, http.MethodGet, "/user/profile", expired, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := NewTokens("other-secret", time.Hour).Issue(models.User{ID: "x", Role: models.RoleAdmin})
	require.NoError(t, err)
	rec = do(srv, http.MethodGet, "/user/profile", forged, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	srv := newTestServer(t)
	token := tokenFor(t, srv, models.RoleStudent)

	rec := doJSON(srv, http.MethodPatch, "/user/profile", token, map[string]any{"fullName": "Ivan P.", "group": SeedGroups[2]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeJSON[models.User](t, rec)
	assert.Equal(t, "Ivan P.", user.FullName)
	assert.Equal(t, SeedGroups[2], user.GroupNumber())
	assert.Equal(t, SeedEmail(models.RoleStudent), user.Email)

	rec = doJSON(srv, http.MethodPatch, "/user/profile", token, map[string]any{"email": SeedEmail(models.RoleAdmin)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(srv, http.MethodPatch, "/user/profile", token, map[string]any{"email": "broken"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupListKeepsInsertionOrder(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, http.MethodGet, "/group/list", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[models.GroupList](t, rec)
	require.Len(t, list.Groups, 4)
	assert.Equal(t, SeedGroups[0], list.Groups[0].GroupNumber)
	assert.Len(t, list.Active(), 3)
}

func TestCreateAndListRequests(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, srv, models.RoleStudent)
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	first := createRequest(t, srv, student, start, start.AddDate(0, 0, 2))
	second := createRequest(t, srv, student, start.AddDate(0, 0, 10), start.AddDate(0, 0, 12))
	assert.True(t, first.Acceptance.IsPending())
	require.Len(t, first.Files, 1)
	assert.Equal(t, "image0.jpg", first.Files[0].Name)

	rec := do(srv, http.MethodGet, "/pass/request/my/pageable?page=0&size=1&sort=createTimestamp,desc", student, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeJSON[models.Page[models.PassRequest]](t, rec)
	require.Len(t, page.Content, 1)
	assert.Equal(t, second.ID, page.Content[0].ID)
	assert.False(t, page.Last)
	assert.Equal(t, int64(2), page.TotalElements)

	rec = do(srv, http.MethodGet, "/pass/request/pageable", student, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	teacher := tokenFor(t, srv, models.RoleTeacher)
	q := url.Values{}
	q.Set("userSearchString", "petrov")
	q.Set("dateStart", start.AddDate(0, 0, 9).Format(time.RFC3339))
	q.Set("dateEnd", start.AddDate(0, 0, 20).Format(time.RFC3339))
	rec = do(srv, http.MethodGet, "/pass/request/pageable?"+q.Encode(), teacher, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decodeJSON[models.Page[models.PassRequest]](t, rec)
	require.Len(t, page.Content, 1)
	assert.Equal(t, second.ID, page.Content[0].ID)
	assert.True(t, page.Last)

	require.NoError(t, srv.SetAcceptance(first.ID, boolPtr(true)))
	rec = do(srv, http.MethodGet, "/pass/request/pageable?isAccepted=true", teacher, nil, "")
	page = decodeJSON[models.Page[models.PassRequest]](t, rec)
	require.Len(t, page.Content, 1)
	assert.Equal(t, first.ID, page.Content[0].ID)
}

func TestCreateRejectsBadUploads(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, srv, models.RoleStudent)

	body, contentType := multipartBody(t, map[string][]byte{"image0.jpg": []byte("not a jpeg")})
	rec := do(srv, http.MethodPost, "/pass/request?dateStart=2024-02-01T00:00:00Z&dateEnd=2024-02-02T00:00:00Z", student, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType = multipartBody(t, map[string][]byte{"image0.jpg": jpegBytes(t)})
	rec = do(srv, http.MethodPost, "/pass/request?dateStart=2024-02-03T00:00:00Z&dateEnd=2024-02-02T00:00:00Z", student, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/pass/request?dateEnd=2024-02-02T00:00:00Z", student, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dateStart is required"))
}

func TestEmptyCreateResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := New(Config{JWTSecret: "s", BcryptCost: bcrypt.MinCost, Seed: true, EmptyCreateResponse: true}, nil, nil)
	require.NoError(t, err)
	token := tokenFor(t, srv, models.RoleStudent)

	body, contentType := multipartBody(t, map[string][]byte{"image0.jpg": jpegBytes(t)})
	rec := do(srv, http.MethodPost, "/pass/request?dateStart=2024-02-01T00:00:00.000Z&dateEnd=2024-02-02T00:00:00.000Z", token, body, contentType)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestDeleteOnlyPendingOwnRequests(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, srv, models.RoleStudent)
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	pending := createRequest(t, srv, student, start, start.AddDate(0, 0, 1))
	accepted := createRequest(t, srv, student, start, start.AddDate(0, 0, 1))
	require.NoError(t, srv.SetAcceptance(accepted.ID, boolPtr(true)))

	rec := do(srv, http.MethodDelete, "/pass/request/"+pending.ID, tokenFor(t, srv, models.RoleAdmin), nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(srv, http.MethodDelete, "/pass/request/"+accepted.ID, student, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodDelete, "/pass/request/"+pending.ID, student, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())

	rec = do(srv, http.MethodDelete, "/pass/request/"+pending.ID, student, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtendAcceptedRequest(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, srv, models.RoleStudent)
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)
	req := createRequest(t, srv, student, start, end)
	body, contentType := multipartBody(t, map[string][]byte{"image0.jpg": jpegBytes(t)})
	later := url.Values{"dateEnd": {end.AddDate(0, 0, 7).Format(time.RFC3339)}, "message": {"still ill"}}

	rec := do(srv, http.MethodPost, "/pass/request/"+req.ID+"/extend?"+later.Encode(), student, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, srv.SetAcceptance(req.ID, boolPtr(true)))
	earlier := url.Values{"dateEnd": {end.Format(time.RFC3339)}}
	rec = do(srv, http.MethodPost, "/pass/request/"+req.ID+"/extend?"+earlier.Encode(), student, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/pass/request/"+req.ID+"/extend?"+later.Encode(), student, body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	extended := decodeJSON[models.PassRequest](t, rec)
	require.Len(t, extended.ExtensionRequests, 1)
	ext := extended.ExtensionRequests[0]
	assert.True(t, ext.Acceptance.IsPending())
	require.NotNil(t, ext.Message)
	assert.Equal(t, "still ill", *ext.Message)

	require.NoError(t, srv.SetAcceptance(req.ID, boolPtr(true)))
	stored, err := srv.Store().Request(req.ID)
	require.NoError(t, err)
	assert.True(t, stored.ExtensionRequests[0].Acceptance.IsAccepted())
	assert.True(t, stored.DateEnd.Equal(end.AddDate(0, 0, 7)))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := paginate(items, 2, 2)
	assert.Equal(t, []int{5}, page.Content)
	assert.True(t, page.Last)
	assert.Equal(t, 3, page.TotalPages)

	page = paginate(items, 9, 2)
	assert.True(t, page.Empty)
	assert.True(t, page.Last)

	page = paginate([]int{}, 0, 10)
	assert.True(t, page.Last)
	assert.True(t, page.First)
}

func boolPtr(v bool) *bool { return &v }
