package stubserver

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/pass-request-client/internal/dto"
	"github.com/noah-isme/pass-request-client/internal/models"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
)

type account struct {
	user         models.User
	passwordHash []byte
}

// RequestQuery filters a listing. Zero values do not filter.
type RequestQuery struct {
	OwnerID    string
	UserID     string
	UserSearch string
	DateStart  time.Time
	DateEnd    time.Time
	Accepted   *bool
	Page       int
	Size       int
	Ascending  bool
}

// Store keeps users, groups and pass requests in memory.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account
	emails   map[string]string
	groups   []models.Group
	requests map[string]*models.PassRequest
	now      func() time.Time
	cost     int
}

// NewStore returns an empty store. cost is the bcrypt cost; zero selects
// bcrypt.DefaultCost.
func NewStore(cost int) *Store {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		accounts: make(map[string]*account),
		emails:   make(map[string]string),
		requests: make(map[string]*models.PassRequest),
		now:      func() time.Time { return time.Now().UTC() },
		cost:     cost,
	}
}

// AddGroup registers a group number. Adding a known number is a no-op.
func (s *Store) AddGroup(number int, deleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.GroupNumber == number {
			return
		}
	}
	s.groups = append(s.groups, models.Group{GroupNumber: number, IsDeleted: deleted})
}

// Groups returns groups in insertion order.
func (s *Store) Groups() []models.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Group, len(s.groups))
	copy(out, s.groups)
	return out
}

func (s *Store) group(number int) (*models.Group, bool) {
	for i := range s.groups {
		if s.groups[i].GroupNumber == number {
			g := s.groups[i]
			return &g, true
		}
	}
	return nil, false
}

// AddUser creates an account. The email must be unused.
func (s *Store) AddUser(fullName, email, password string, role models.UserRole, groupNumber *int) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.User{}, appErrors.Wrap(err, appErrors.ErrUnknown.Code, http.StatusInternalServerError, "failed to hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := s.emails[key]; exists {
		return models.User{}, appErrors.Server(http.StatusConflict, "user with this email already exists")
	}

	user := models.User{ID: uuid.NewString(), Email: email, FullName: fullName, Role: role}
	if groupNumber != nil {
		g, ok := s.group(*groupNumber)
		if !ok {
			return models.User{}, appErrors.Server(http.StatusNotFound, "group not found")
		}
		user.Group = g
	}

	s.accounts[user.ID] = &account{user: user, passwordHash: hash}
	s.emails[key] = user.ID
	return user, nil
}

// Authenticate checks credentials.
func (s *Store) Authenticate(email, password string) (models.User, error) {
	s.mu.RLock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	var acc *account
	if ok {
		acc = s.accounts[id]
	}
	s.mu.RUnlock()

	if acc == nil {
		return models.User{}, appErrors.Server(http.StatusUnauthorized, "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return models.User{}, appErrors.Server(http.StatusUnauthorized, "invalid email or password")
	}
	if acc.user.IsBlocked {
		return models.User{}, appErrors.Server(http.StatusForbidden, "user is blocked")
	}
	return acc.user, nil
}

// User returns the account with id.
func (s *Store) User(id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return models.User{}, appErrors.Server(http.StatusNotFound, "user not found")
	}
	return acc.user, nil
}

// UserByEmail returns the account registered under email.
func (s *Store) UserByEmail(email string) (models.User, error) {
	s.mu.RLock()
	id, ok := s.emails[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, appErrors.Server(http.StatusNotFound, "user not found")
	}
	return s.User(id)
}

// UpdateUser applies a profile patch.
func (s *Store) UpdateUser(id string, patch dto.ProfilePatch) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return models.User{}, appErrors.Server(http.StatusNotFound, "user not found")
	}
	updated := acc.user

	if patch.Email != nil && !strings.EqualFold(*patch.Email, updated.Email) {
		key := strings.ToLower(*patch.Email)
		if _, taken := s.emails[key]; taken {
			return models.User{}, appErrors.Server(http.StatusConflict, "user with this email already exists")
		}
		delete(s.emails, strings.ToLower(updated.Email))
		s.emails[key] = id
		updated.Email = *patch.Email
	}
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return models.User{}, appErrors.Server(http.StatusBadRequest, "full name must not be blank")
		}
		updated.FullName = name
	}
	if patch.Group != nil {
		g, ok := s.group(*patch.Group)
		if !ok {
			return models.User{}, appErrors.Server(http.StatusNotFound, "group not found")
		}
		updated.Group = g
	}

	acc.user = updated
	s.refreshRequester(updated)
	return updated, nil
}

func (s *Store) refreshRequester(user models.User) {
	for _, r := range s.requests {
		if r.User.ID == user.ID {
			r.User = summary(user)
		}
	}
}

// summary is the short requester DTO embedded in pass requests.
func summary(user models.User) models.User {
	return models.User{ID: user.ID, FullName: user.FullName, Role: user.Role, Group: user.Group}
}

// CreateRequest stores a new pending pass request for owner.
func (s *Store) CreateRequest(ownerID string, start, end time.Time, message *string, files []models.File) (models.PassRequest, error) {
	if end.Before(start) {
		return models.PassRequest{}, appErrors.Server(http.StatusBadRequest, "dateEnd must not be before dateStart")
	}
	if len(files) == 0 {
		return models.PassRequest{}, appErrors.Server(http.StatusBadRequest, "at least one file is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[ownerID]
	if !ok {
		return models.PassRequest{}, appErrors.Server(http.StatusNotFound, "user not found")
	}

	now := s.now()
	// creation times must be strictly ordered for newest-first listings
	for _, r := range s.requests {
		if !now.After(r.CreateTimestamp.Time) {
			now = r.CreateTimestamp.Add(time.Millisecond)
		}
	}

	req := &models.PassRequest{
		ID:                uuid.NewString(),
		User:              summary(acc.user),
		DateStart:         models.NewTimestamp(start.UTC()),
		DateEnd:           models.NewTimestamp(end.UTC()),
		Files:             stamp(files, now),
		ExtensionRequests: []models.ExtensionRequest{},
		CreateTimestamp:   models.NewTimestamp(now),
		Message:           message,
	}
	s.requests[req.ID] = req
	return *req, nil
}

// DeleteRequest removes a pending request owned by ownerID.
func (s *Store) DeleteRequest(ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.owned(ownerID, id)
	if err != nil {
		return err
	}
	if !req.Acceptance.IsPending() {
		return appErrors.Server(http.StatusBadRequest, "only pending requests can be deleted")
	}
	delete(s.requests, id)
	return nil
}

// ExtendRequest appends a pending extension to an accepted request.
func (s *Store) ExtendRequest(ownerID, id string, end time.Time, message *string, files []models.File) (models.PassRequest, error) {
	if len(files) == 0 {
		return models.PassRequest{}, appErrors.Server(http.StatusBadRequest, "at least one file is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.owned(ownerID, id)
	if err != nil {
		return models.PassRequest{}, err
	}
	if !req.Acceptance.IsAccepted() {
		return models.PassRequest{}, appErrors.Server(http.StatusBadRequest, "only accepted requests can be extended")
	}
	if !end.After(req.DateEnd.Time) {
		return models.PassRequest{}, appErrors.Server(http.StatusBadRequest, "new dateEnd must be after the current one")
	}

	now := s.now()
	req.ExtensionRequests = append(req.ExtensionRequests, models.ExtensionRequest{
		ID:              uuid.NewString(),
		PassRequestID:   req.ID,
		DateEnd:         models.NewTimestamp(end.UTC()),
		Files:           stamp(files, now),
		CreateTimestamp: models.NewTimestamp(now),
		Message:         message,
	})
	req.UpdateTimestamp = models.NewTimestamp(now)
	return *req, nil
}

func (s *Store) owned(ownerID, id string) (*models.PassRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, appErrors.Server(http.StatusNotFound, "pass request not found")
	}
	if req.User.ID != ownerID {
		return nil, appErrors.Server(http.StatusForbidden, "pass request belongs to another user")
	}
	return req, nil
}

// SetAcceptance records a review outcome. A nil decision resets to pending.
// When the request has a pending extension the decision applies to it and an
// accepted extension moves the request's end date.
func (s *Store) SetAcceptance(id string, decision *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return appErrors.Server(http.StatusNotFound, "pass request not found")
	}
	now := s.now()
	if n := len(req.ExtensionRequests); n > 0 && req.ExtensionRequests[n-1].Acceptance.IsPending() && decision != nil {
		ext := &req.ExtensionRequests[n-1]
		ext.Acceptance = models.AcceptanceOf(decision)
		ext.UpdateTimestamp = models.NewTimestamp(now)
		if *decision {
			req.DateEnd = ext.DateEnd
		}
	} else {
		req.Acceptance = models.AcceptanceOf(decision)
	}
	req.UpdateTimestamp = models.NewTimestamp(now)
	return nil
}

// Request returns one pass request.
func (s *Store) Request(id string) (models.PassRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return models.PassRequest{}, appErrors.Server(http.StatusNotFound, "pass request not found")
	}
	return *req, nil
}

// ListRequests filters, sorts by creation time and pages.
func (s *Store) ListRequests(q RequestQuery) models.Page[models.PassRequest] {
	s.mu.RLock()
	matched := make([]models.PassRequest, 0, len(s.requests))
	for _, r := range s.requests {
		if matches(*r, q) {
			matched = append(matched, *r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].CreateTimestamp.Time, matched[j].CreateTimestamp.Time
		if q.Ascending {
			return a.Before(b)
		}
		return a.After(b)
	})

	return paginate(matched, q.Page, q.Size)
}

func matches(r models.PassRequest, q RequestQuery) bool {
	if q.OwnerID != "" && r.User.ID != q.OwnerID {
		return false
	}
	if q.UserID != "" && r.User.ID != q.UserID {
		return false
	}
	if q.UserSearch != "" && !strings.Contains(strings.ToLower(r.User.FullName), strings.ToLower(q.UserSearch)) {
		return false
	}
	// overlap with [DateStart, DateEnd]
	if !q.DateStart.IsZero() && r.DateEnd.Before(q.DateStart) {
		return false
	}
	if !q.DateEnd.IsZero() && r.DateStart.After(q.DateEnd) {
		return false
	}
	if q.Accepted != nil {
		status := r.Acceptance.Bool()
		if status == nil || *status != *q.Accepted {
			return false
		}
	}
	return true
}

func paginate[T any](items []T, page, size int) models.Page[T] {
	if size <= 0 {
		size = 10
	}
	if page < 0 {
		page = 0
	}
	total := len(items)
	totalPages := (total + size - 1) / size

	from := page * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}
	content := items[from:to]

	return models.Page[T]{
		Content:          content,
		Number:           page,
		Size:             size,
		TotalElements:    int64(total),
		TotalPages:       totalPages,
		NumberOfElements: len(content),
		First:            page == 0,
		Last:             page >= totalPages-1,
		Empty:            len(content) == 0,
	}
}

func stamp(files []models.File, at time.Time) []models.File {
	out := make([]models.File, len(files))
	for i, f := range files {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		ts := models.NewTimestamp(at)
		f.UploadTime = &ts
		out[i] = f
	}
	return out
}
