package stubserver

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/dto"
	"github.com/noah-isme/pass-request-client/internal/middleware"
	"github.com/noah-isme/pass-request-client/internal/models"
	"github.com/noah-isme/pass-request-client/pkg/decode"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
	"github.com/noah-isme/pass-request-client/pkg/response"
)

const filesField = "files"

type loginBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registrationBody struct {
	FullName    string `json:"fullName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	GroupNumber *int   `json:"groupNumber" binding:"omitempty,gt=0"`
	Password    string `json:"password" binding:"required"`
}

func badRequest(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

func (s *Server) login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, badRequest(err, "invalid login payload"))
		return
	}

	user, err := s.store.Authenticate(body.Email, body.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	s.respondToken(c, user)
}

func (s *Server) register(c *gin.Context) {
	var body registrationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, badRequest(err, "invalid registration payload"))
		return
	}

	user, err := s.store.AddUser(strings.TrimSpace(body.FullName), strings.TrimSpace(body.Email), body.Password, models.RoleStudent, body.GroupNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("email", user.Email))
	s.respondToken(c, user)
}

func (s *Server) respondToken(c *gin.Context, user models.User) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnknown.Code, http.StatusInternalServerError, "failed to create access token"))
		return
	}
	response.JSON(c, http.StatusOK, models.TokenResponse{Token: token})
}

func (s *Server) listGroups(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.GroupList{Groups: s.store.Groups()})
}

func (s *Server) profile(c *gin.Context) {
	claims, _ := middleware.Claims(c)
	user, err := s.store.User(claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

func (s *Server) updateProfile(c *gin.Context) {
	var patch dto.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, badRequest(err, "invalid profile payload"))
		return
	}
	if patch.Email != nil {
		if err := s.validate.Var(*patch.Email, "email"); err != nil {
			response.Error(c, badRequest(err, "invalid email"))
			return
		}
	}
	if patch.Group != nil && *patch.Group <= 0 {
		response.Error(c, appErrors.Server(http.StatusBadRequest, "invalid group number"))
		return
	}

	claims, _ := middleware.Claims(c)
	user, err := s.store.UpdateUser(claims.UserID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

func (s *Server) listAll(c *gin.Context) {
	q, err := listQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	q.UserID = c.Query("userId")
	q.UserSearch = strings.TrimSpace(c.Query("userSearchString"))
	if q.DateStart, err = queryTime(c, "dateStart"); err != nil {
		response.Error(c, err)
		return
	}
	if q.DateEnd, err = queryTime(c, "dateEnd"); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, s.store.ListRequests(q))
}

func (s *Server) listMine(c *gin.Context) {
	q, err := listQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	claims, _ := middleware.Claims(c)
	q.OwnerID = claims.UserID
	response.JSON(c, http.StatusOK, s.store.ListRequests(q))
}

func (s *Server) createRequest(c *gin.Context) {
	start, err := requiredTime(c, "dateStart")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := requiredTime(c, "dateEnd")
	if err != nil {
		response.Error(c, err)
		return
	}
	files, err := uploadedFiles(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.Claims(c)
	created, err := s.store.CreateRequest(claims.UserID, start, end, optionalQuery(c, "message"), files)
	if err != nil {
		response.Error(c, err)
		return
	}
	s.logger.Info("pass request created", zap.String("id", created.ID), zap.Int("files", len(files)))

	if s.cfg.EmptyCreateResponse {
		response.Empty(c)
		return
	}
	response.JSON(c, http.StatusOK, created)
}

func (s *Server) deleteRequest(c *gin.Context) {
	claims, _ := middleware.Claims(c)
	if err := s.store.DeleteRequest(claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Empty(c)
}

func (s *Server) extendRequest(c *gin.Context) {
	end, err := requiredTime(c, "dateEnd")
	if err != nil {
		response.Error(c, err)
		return
	}
	files, err := uploadedFiles(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.Claims(c)
	updated, err := s.store.ExtendRequest(claims.UserID, c.Param("id"), end, optionalQuery(c, "message"), files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated)
}

func listQuery(c *gin.Context) (RequestQuery, error) {
	q := RequestQuery{Size: 10}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return q, appErrors.Server(http.StatusBadRequest, "invalid page")
		}
		q.Page = page
	}
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return q, appErrors.Server(http.StatusBadRequest, "invalid size")
		}
		q.Size = size
	}
	if raw := c.Query("isAccepted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, appErrors.Server(http.StatusBadRequest, "invalid isAccepted")
		}
		q.Accepted = &v
	}
	for _, sort := range c.QueryArray("sort") {
		field, dir, _ := strings.Cut(sort, ",")
		if field == "createTimestamp" {
			q.Ascending = strings.EqualFold(dir, "asc")
		}
	}
	return q, nil
}

func queryTime(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := decode.ParseDate(raw)
	if !ok {
		return time.Time{}, appErrors.Server(http.StatusBadRequest, fmt.Sprintf("invalid %s", key))
	}
	return t, nil
}

func requiredTime(c *gin.Context, key string) (time.Time, error) {
	t, err := queryTime(c, key)
	if err != nil {
		return t, err
	}
	if t.IsZero() {
		return t, appErrors.Server(http.StatusBadRequest, fmt.Sprintf("%s is required", key))
	}
	return t, nil
}

func optionalQuery(c *gin.Context, key string) *string {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil
	}
	return &raw
}

// uploadedFiles reads the multipart files part. Every file must be a JPEG.
func uploadedFiles(c *gin.Context) ([]models.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, badRequest(err, "multipart body expected")
	}
	headers := form.File[filesField]
	if len(headers) == 0 {
		return nil, appErrors.Server(http.StatusBadRequest, "at least one file is required")
	}

	files := make([]models.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, badRequest(err, "unreadable upload")
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, badRequest(err, "unreadable upload")
		}
		if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, badRequest(err, fmt.Sprintf("%s is not a jpeg image", fh.Filename))
		}
		files = append(files, models.File{Name: fh.Filename, Size: int64(len(data))})
	}
	return files, nil
}
