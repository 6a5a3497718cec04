package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"agora/api/internal/gate"
	"agora/api/internal/notify"
	"agora/api/internal/search"
	"agora/api/internal/store"
	"agora/api/internal/util"
)

// dataStore is the persistence surface the service depends on. Satisfied by
// store.PostgresStore in production and fakeStore in tests.
type dataStore interface {
	InsertChannel(ctx context.Context, channel store.Channel) error
	GetChannel(ctx context.Context, channelID string) (store.Channel, error)
	ListChannels(ctx context.Context) ([]store.Channel, error)

	InsertThread(ctx context.Context, thread store.Thread) error
	GetThread(ctx context.Context, threadID string) (store.Thread, error)
	ListThreads(ctx context.Context, channelID string) ([]store.Thread, error)

	InsertPost(ctx context.Context, post store.Post, poll *store.Poll, options []store.PollOption) error
	GetPost(ctx context.Context, postID string) (store.Post, error)
	GetPostAnyState(ctx context.Context, postID string) (store.Post, error)
	UpdatePostContent(ctx context.Context, postID, content string) (bool, error)
	SoftDeletePost(ctx context.Context, postID, deletedBy string) (bool, error)
	ListThreadPosts(ctx context.Context, threadID string) ([]store.Post, error)
	ListAuthorPosts(ctx context.Context, authorID string) ([]store.Post, error)

	TogglePostVote(ctx context.Context, postID, userID string, direction int) (string, error)
	ListPostVoteTotals(ctx context.Context, postIDs []string) (map[string]store.VoteTotals, error)
	ListViewerVotes(ctx context.Context, postIDs []string, userID string) (map[string]int, error)

	GetPollByPost(ctx context.Context, postID string) (*store.Poll, error)
	GetPoll(ctx context.Context, pollID string) (store.Poll, error)
	ListPollOptions(ctx context.Context, pollID string) ([]store.PollOption, error)
	GetPollOption(ctx context.Context, optionID string) (store.PollOption, error)
	CastPollVote(ctx context.Context, pollID, optionID, userID string, allowMultiple bool) (string, error)
	ListPollVoteCounts(ctx context.Context, pollID string) (map[string]int, int, error)
	ListViewerPollVotes(ctx context.Context, pollID, userID string) (map[string]bool, error)

	TogglePostReaction(ctx context.Context, postID, userID, emoji string) (string, error)
	ListPostReactionCounts(ctx context.Context, postIDs []string) ([]store.ReactionCount, error)
	ListViewerReactions(ctx context.Context, postIDs []string, userID string) (map[string][]string, error)

	InsertFlag(ctx context.Context, flag store.Flag) error
	CountFlags(ctx context.Context, targetID, targetType string) (int, error)
	ResolveFlag(ctx context.Context, flagID string) (bool, error)
	BuryPost(ctx context.Context, postID string) (bool, error)
	BuryThread(ctx context.Context, threadID string) (bool, error)

	ToggleThreadInteraction(ctx context.Context, threadID, userID, action string) (bool, error)
	ListInteractionThreadIDs(ctx context.Context, userID, action string) ([]string, error)

	Ping(ctx context.Context) error
}

// eventPublisher pushes engine events for downstream consumers.
type eventPublisher interface {
	Publish(ctx context.Context, event notify.Event)
}

// searchIndexer is the full-text search facade.
type searchIndexer interface {
	Search(q search.Query) search.Response
	IndexThread(t search.ThreadRecord)
	IndexPost(p search.PostRecord)
	DeleteThread(id string)
	DeletePost(id string)
}

// LocationAuthorizer asks the external location collaborator whether an
// actor may administer a location. A nil authorizer denies everything.
type LocationAuthorizer func(ctx context.Context, actorID, locationID string) (bool, error)

type Service struct {
	store             dataStore
	events            eventPublisher
	search            searchIndexer
	authorizeLocation LocationAuthorizer
	flagThreshold     int
}

func NewService(dataStore dataStore, events eventPublisher, searcher searchIndexer, authorizeLocation LocationAuthorizer, flagThreshold int) *Service {
	if flagThreshold <= 0 {
		flagThreshold = 3
	}
	return &Service{
		store:             dataStore,
		events:            events,
		search:            searcher,
		authorizeLocation: authorizeLocation,
		flagThreshold:     flagThreshold,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) publish(ctx context.Context, event notify.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event)
}

// mapGateErr converts permission gate sentinels into domain errors.
func mapGateErr(err error) error {
	if errors.Is(err, gate.ErrUnauthorized) {
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if errors.Is(err, gate.ErrForbidden) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return err
}

// ── Channel directory ──

func (s *Service) ListChannels(ctx context.Context) (map[string]any, error) {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	items := make([]map[string]any, 0, len(channels))
	for _, channel := range channels {
		items = append(items, channelView(channel))
	}
	return map[string]any{"channels": items}, nil
}

// GetChannelHierarchy builds the channel tree from the flat list in a single
// bucketing pass. A channel whose parent id points nowhere is treated as a
// root rather than dropped.
func (s *Service) GetChannelHierarchy(ctx context.Context) (map[string]any, error) {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	nodes := make(map[string]*store.ChannelNode, len(channels))
	for i := range channels {
		nodes[channels[i].ID] = &store.ChannelNode{Channel: channels[i]}
	}

	roots := make([]*store.ChannelNode, 0)
	for _, channel := range channels {
		node := nodes[channel.ID]
		if channel.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*channel.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	items := make([]map[string]any, 0, len(roots))
	for _, root := range roots {
		items = append(items, channelNodeView(root))
	}
	return map[string]any{"tree": items}, nil
}

// CreateSubChannel creates a child channel under parentID. The actor must be
// identified and approved by the external location authorizer for the
// parent's location. The child inherits the parent's location verbatim and
// can never itself spawn sub-channels.
func (s *Service) CreateSubChannel(ctx context.Context, parentID string, actor *gate.Actor, name, description string) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	parent, err := s.store.GetChannel(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.CanCreateSubchannels {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Channel does not allow sub-channels", nil)
	}

	if s.authorizeLocation == nil {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	allowed, err := s.authorizeLocation(ctx, actor.ID, parent.LocationID)
	if err != nil {
		return nil, fmt.Errorf("authorize location: %w", err)
	}
	if !allowed {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	child := store.Channel{
		ID:                   util.NewID("chan"),
		Name:                 name,
		Description:          strings.TrimSpace(description),
		Slug:                 subChannelSlug(parent, name),
		ParentID:             &parent.ID,
		LocationType:         parent.LocationType,
		LocationID:           parent.LocationID,
		Visibility:           parent.Visibility,
		AllowAnonymousPosts:  parent.AllowAnonymousPosts,
		MinRoleToPost:        parent.MinRoleToPost,
		CanCreateSubchannels: false,
	}
	if err := s.store.InsertChannel(ctx, child); err != nil {
		return nil, err
	}

	created, err := s.store.GetChannel(ctx, child.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"channel": channelView(created)}, nil
}

// subChannelSlug derives a unique slug from the parent's location and the
// child name, suffixed with a time component to dodge collisions.
func subChannelSlug(parent store.Channel, name string) string {
	parts := make([]string, 0, 3)
	if parent.LocationID != "" {
		parts = append(parts, normalizeSlug(parent.LocationID))
	}
	if normalized := normalizeSlug(name); normalized != "" {
		parts = append(parts, normalized)
	}
	parts = append(parts, util.TimeSuffix())
	return strings.Join(parts, "-")
}

func normalizeSlug(raw string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ── Search ──

func (s *Service) Search(ctx context.Context, q, filterType, channelID string, limit, offset int) (search.Response, error) {
	if filterType != "" && filterType != string(search.ResultThread) && filterType != string(search.ResultPost) {
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be 'thread' or 'post'", nil)
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q}, nil
	}
	return s.search.Search(search.Query{
		Text:            q,
		FilterType:      search.ResultType(filterType),
		FilterChannelID: channelID,
		Limit:           limit,
		Offset:          offset,
	}), nil
}

// ── Views ──

func channelView(channel store.Channel) map[string]any {
	return map[string]any{
		"id":                   channel.ID,
		"name":                 channel.Name,
		"description":          channel.Description,
		"slug":                 channel.Slug,
		"parentId":             channel.ParentID,
		"locationType":         channel.LocationType,
		"locationId":           channel.LocationID,
		"visibility":           channel.Visibility,
		"allowAnonymousPosts":  channel.AllowAnonymousPosts,
		"minRoleToPost":        channel.MinRoleToPost,
		"canCreateSubchannels": channel.CanCreateSubchannels,
		"createdAt":            channel.CreatedAt,
		"updatedAt":            channel.UpdatedAt,
	}
}

func channelNodeView(node *store.ChannelNode) map[string]any {
	children := make([]map[string]any, 0, len(node.Children))
	for _, child := range node.Children {
		children = append(children, channelNodeView(child))
	}
	view := channelView(node.Channel)
	view["children"] = children
	return view
}

func threadView(thread store.Thread) map[string]any {
	return map[string]any{
		"id":          thread.ID,
		"channelId":   thread.ChannelID,
		"title":       thread.Title,
		"creatorId":   thread.CreatorID,
		"isAnonymous": thread.IsAnonymous,
		"createdAt":   thread.CreatedAt,
		"updatedAt":   thread.UpdatedAt,
	}
}
