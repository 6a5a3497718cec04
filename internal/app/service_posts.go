package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"agora/api/internal/gate"
	"agora/api/internal/notify"
	"agora/api/internal/search"
	"agora/api/internal/store"
	"agora/api/internal/util"
)

type CreateThreadInput struct {
	Title     string `json:"title"`
	Anonymous bool   `json:"anonymous"`
}

type PollInput struct {
	Question           string     `json:"question"`
	Options            []string   `json:"options"`
	AllowMultipleVotes bool       `json:"allowMultipleVotes"`
	ExpiresAt          *time.Time `json:"expiresAt"`
}

type CreatePostInput struct {
	Content   string     `json:"content"`
	Anonymous bool       `json:"anonymous"`
	Poll      *PollInput `json:"poll"`
}

type EditPostInput struct {
	Content string `json:"content"`
}

// RequestMeta carries the transport metadata used for anonymous
// fingerprints. Never persisted raw.
type RequestMeta struct {
	RemoteAddr string
	UserAgent  string
}

// CreateThread opens a thread in a channel. Anonymous threads keep no
// creator reference at all.
func (s *Service) CreateThread(ctx context.Context, channelID string, actor *gate.Actor, input CreateThreadInput) (map[string]any, error) {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := gate.CanCreate(actor, channelPolicy(channel)); err != nil {
		return nil, mapGateErr(err)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	anonymous := actor == nil || input.Anonymous
	thread := store.Thread{
		ID:          util.NewID("thread"),
		ChannelID:   channel.ID,
		Title:       title,
		IsAnonymous: anonymous,
	}
	if !anonymous {
		thread.CreatorID = &actor.ID
	}
	if err := s.store.InsertThread(ctx, thread); err != nil {
		return nil, err
	}

	created, err := s.store.GetThread(ctx, thread.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:      notify.EventThreadCreated,
		TargetID:  created.ID,
		ActorID:   actorID(actor),
		ChannelID: channel.ID,
		ThreadID:  created.ID,
	})
	if s.search != nil {
		s.search.IndexThread(search.ThreadRecord{ID: created.ID, Title: created.Title, ChannelID: created.ChannelID})
	}

	return map[string]any{"thread": threadView(created)}, nil
}

func (s *Service) ListThreads(ctx context.Context, channelID string) (map[string]any, error) {
	if _, err := s.store.GetChannel(ctx, channelID); err != nil {
		return nil, err
	}
	threads, err := s.store.ListThreads(ctx, channelID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(threads))
	for _, thread := range threads {
		items = append(items, threadView(thread))
	}
	return map[string]any{"threads": items}, nil
}

// CreatePost appends a post to a thread, optionally with a poll. The poll is
// written in the same transaction as the post; a malformed poll payload is
// dropped and the post is still created. Anonymous posts store a fingerprint
// derived from request metadata instead of an author.
func (s *Service) CreatePost(ctx context.Context, threadID string, actor *gate.Actor, input CreatePostInput, meta RequestMeta) (map[string]any, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.BuriedAt != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	channel, err := s.store.GetChannel(ctx, thread.ChannelID)
	if err != nil {
		return nil, err
	}
	if err := gate.CanCreate(actor, channelPolicy(channel)); err != nil {
		return nil, mapGateErr(err)
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	anonymous := actor == nil || input.Anonymous
	post := store.Post{
		ID:          util.NewID("post"),
		ThreadID:    thread.ID,
		Content:     content,
		IsAnonymous: anonymous,
	}
	if anonymous {
		post.Fingerprint = gate.Fingerprint(meta.RemoteAddr, meta.UserAgent)
	} else {
		post.AuthorID = &actor.ID
	}

	poll, options := buildPoll(input.Poll, post.ID, post.AuthorID)
	if err := s.store.InsertPost(ctx, post, poll, options); err != nil {
		return nil, err
	}

	created, err := s.store.GetPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:      notify.EventPostCreated,
		TargetID:  created.ID,
		ActorID:   actorID(actor),
		ChannelID: channel.ID,
		ThreadID:  thread.ID,
	})
	if s.search != nil {
		s.search.IndexPost(search.PostRecord{ID: created.ID, Body: created.Content, ThreadID: thread.ID, ChannelID: channel.ID})
	}

	view := postView(created, store.VoteTotals{}, 0, []map[string]any{}, []string{})
	if poll != nil {
		pollPayload, err := s.pollView(ctx, *poll, actor)
		if err != nil {
			log.Printf("load poll view for post %s: %v", created.ID, err)
		} else {
			view["poll"] = pollPayload
		}
	}
	return map[string]any{"post": view}, nil
}

// buildPoll validates a poll payload. An invalid payload returns nil so the
// post is created without a poll rather than failing the whole request.
func buildPoll(input *PollInput, postID string, creatorID *string) (*store.Poll, []store.PollOption) {
	if input == nil {
		return nil, nil
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, nil
	}
	texts := make([]string, 0, len(input.Options))
	for _, raw := range input.Options {
		if text := strings.TrimSpace(raw); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) < 2 {
		return nil, nil
	}

	poll := &store.Poll{
		ID:                 util.NewID("poll"),
		PostID:             postID,
		Question:           question,
		AllowMultipleVotes: input.AllowMultipleVotes,
		ExpiresAt:          input.ExpiresAt,
		CreatorID:          creatorID,
	}
	options := make([]store.PollOption, 0, len(texts))
	for i, text := range texts {
		options = append(options, store.PollOption{
			ID:       util.NewID("opt"),
			PollID:   poll.ID,
			Text:     text,
			Position: i,
		})
	}
	return poll, options
}

// EditPost rewrites a post's content. Only the stored author may edit;
// anonymous posts are unownable and therefore uneditable.
func (s *Service) EditPost(ctx context.Context, postID string, actor *gate.Actor, input EditPostInput) (map[string]any, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := gate.CanModify(actor, post.AuthorID); err != nil {
		return nil, mapGateErr(err)
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	updated, err := s.store.UpdatePostContent(ctx, postID, content)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}

	fresh, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		thread, threadErr := s.store.GetThread(ctx, fresh.ThreadID)
		if threadErr == nil {
			s.search.IndexPost(search.PostRecord{ID: fresh.ID, Body: fresh.Content, ThreadID: fresh.ThreadID, ChannelID: thread.ChannelID})
		}
	}
	return map[string]any{"post": postView(fresh, store.VoteTotals{}, 0, []map[string]any{}, []string{})}, nil
}

// DeletePost soft-deletes a post. Owners delete their own; moderation
// deletes arrive with asModerator set by the surrounding layer and only
// require an identified actor.
func (s *Service) DeletePost(ctx context.Context, postID string, actor *gate.Actor, asModerator bool) (map[string]any, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if asModerator {
		if actor == nil {
			return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		}
	} else if err := gate.CanModify(actor, post.AuthorID); err != nil {
		return nil, mapGateErr(err)
	}

	deleted, err := s.store.SoftDeletePost(ctx, postID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}

	s.publish(ctx, notify.Event{
		Type:     notify.EventPostDeleted,
		TargetID: postID,
		ActorID:  actor.ID,
		ThreadID: post.ThreadID,
	})
	if s.search != nil {
		s.search.DeletePost(postID)
	}
	return map[string]any{"ok": true}, nil
}

// GetPostForModeration returns the post regardless of soft deletion or
// burial, including the deletion audit fields.
func (s *Service) GetPostForModeration(ctx context.Context, postID string, actor *gate.Actor) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	post, err := s.store.GetPostAnyState(ctx, postID)
	if err != nil {
		return nil, err
	}
	view := postView(post, store.VoteTotals{}, 0, []map[string]any{}, []string{})
	view["deletedAt"] = post.DeletedAt
	view["deletedBy"] = post.DeletedBy
	view["buriedAt"] = post.BuriedAt
	return map[string]any{"post": view}, nil
}

func (s *Service) ListThreadPosts(ctx context.Context, threadID string, viewer *gate.Actor) (map[string]any, error) {
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	posts, err := s.store.ListThreadPosts(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"posts": s.annotatePosts(ctx, posts, viewer)}, nil
}

func (s *Service) ListAuthorPosts(ctx context.Context, authorID string, viewer *gate.Actor) (map[string]any, error) {
	posts, err := s.store.ListAuthorPosts(ctx, authorID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"posts": s.annotatePosts(ctx, posts, viewer)}, nil
}

// annotatePosts merges vote totals, the viewer's own votes, reaction counts,
// the viewer's own reactions, and poll views into post views. Aggregate
// lookups degrade gracefully: on failure the posts are returned bare.
func (s *Service) annotatePosts(ctx context.Context, posts []store.Post, viewer *gate.Actor) []map[string]any {
	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}

	var (
		totals          map[string]store.VoteTotals
		viewerVotes     map[string]int
		reactionCounts  []store.ReactionCount
		viewerReactions map[string][]string
	)
	if len(ids) > 0 {
		var err error
		if totals, err = s.store.ListPostVoteTotals(ctx, ids); err != nil {
			log.Printf("annotate posts: vote totals: %v", err)
			totals = nil
		}
		if reactionCounts, err = s.store.ListPostReactionCounts(ctx, ids); err != nil {
			log.Printf("annotate posts: reaction counts: %v", err)
			reactionCounts = nil
		}
		if viewer != nil {
			if viewerVotes, err = s.store.ListViewerVotes(ctx, ids, viewer.ID); err != nil {
				log.Printf("annotate posts: viewer votes: %v", err)
				viewerVotes = nil
			}
			if viewerReactions, err = s.store.ListViewerReactions(ctx, ids, viewer.ID); err != nil {
				log.Printf("annotate posts: viewer reactions: %v", err)
				viewerReactions = nil
			}
		}
	}

	reactionsByPost := make(map[string][]map[string]any)
	for _, rc := range reactionCounts {
		reactionsByPost[rc.PostID] = append(reactionsByPost[rc.PostID], map[string]any{
			"emoji": rc.Emoji,
			"count": rc.Count,
		})
	}

	items := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		reactions := reactionsByPost[post.ID]
		if reactions == nil {
			reactions = []map[string]any{}
		}
		ownReactions := viewerReactions[post.ID]
		if ownReactions == nil {
			ownReactions = []string{}
		}
		view := postView(post, totals[post.ID], viewerVotes[post.ID], reactions, ownReactions)

		poll, err := s.store.GetPollByPost(ctx, post.ID)
		if err != nil {
			log.Printf("annotate posts: poll for %s: %v", post.ID, err)
		} else if poll != nil {
			pollPayload, pollErr := s.pollView(ctx, *poll, viewer)
			if pollErr != nil {
				log.Printf("annotate posts: poll view for %s: %v", post.ID, pollErr)
			} else {
				view["poll"] = pollPayload
			}
		}
		items = append(items, view)
	}
	return items
}

func postView(post store.Post, totals store.VoteTotals, viewerVote int, reactions []map[string]any, viewerReactions []string) map[string]any {
	return map[string]any{
		"id":              post.ID,
		"threadId":        post.ThreadID,
		"content":         post.Content,
		"authorId":        post.AuthorID,
		"isAnonymous":     post.IsAnonymous,
		"upvotes":         totals.Upvotes,
		"downvotes":       totals.Downvotes,
		"score":           totals.Upvotes - totals.Downvotes,
		"viewerVote":      viewerVote,
		"reactions":       reactions,
		"viewerReactions": viewerReactions,
		"createdAt":       post.CreatedAt,
		"updatedAt":       post.UpdatedAt,
	}
}

func channelPolicy(channel store.Channel) gate.ChannelPolicy {
	return gate.ChannelPolicy{
		AllowAnonymousPosts: channel.AllowAnonymousPosts,
		MinRoleToPost:       channel.MinRoleToPost,
	}
}

func actorID(actor *gate.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}
