package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/models"
	"github.com/noah-isme/pass-request-client/pkg/apiclient"
)

// GroupService lists study groups.
type GroupService struct {
	api    apiDoer
	logger *zap.Logger
}

// NewGroupService constructs a GroupService.
func NewGroupService(api apiDoer, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{api: api, logger: logger}
}

// ListGroups returns all groups ordered by number. Deleted groups are kept
// and flagged; use models.GroupList.Active to drop them.
func (s *GroupService) ListGroups(ctx context.Context) (models.GroupList, error) {
	var list models.GroupList
	if err := s.api.Do(ctx, apiclient.Request{Endpoint: "/group/list"}, &list); err != nil {
		return models.GroupList{}, err
	}
	sort.SliceStable(list.Groups, func(i, j int) bool {
		return list.Groups[i].GroupNumber < list.Groups[j].GroupNumber
	})
	return list, nil
}
