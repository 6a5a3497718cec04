package app

import (
	"context"
	"net/http"
	"strings"

	"agora/api/internal/gate"
	"agora/api/internal/notify"
	"agora/api/internal/store"
	"agora/api/internal/util"
)

type VoteInput struct {
	Direction int `json:"direction"`
}

type ReactionInput struct {
	Emoji string `json:"emoji"`
}

type InteractionInput struct {
	Action string `json:"action"`
}

type FlagInput struct {
	Reason string `json:"reason"`
}

var interactionActions = map[string]bool{
	"follow": true,
	"save":   true,
	"hide":   true,
}

// Vote toggles an identified actor's vote on a post. Repeating the same
// direction retracts it; the opposite direction flips it in place.
func (s *Service) Vote(ctx context.Context, postID string, actor *gate.Actor, input VoteInput) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if input.Direction != 1 && input.Direction != -1 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "direction must be 1 or -1", nil)
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	action, err := s.store.TogglePostVote(ctx, post.ID, actor.ID, input.Direction)
	if err != nil {
		return nil, err
	}

	totals, err := s.store.ListPostVoteTotals(ctx, []string{post.ID})
	if err != nil {
		return nil, err
	}
	current := totals[post.ID]
	return map[string]any{
		"action":    action,
		"upvotes":   current.Upvotes,
		"downvotes": current.Downvotes,
		"score":     current.Upvotes - current.Downvotes,
	}, nil
}

// ToggleReaction flips an identified actor's emoji reaction on a post.
func (s *Service) ToggleReaction(ctx context.Context, postID string, actor *gate.Actor, input ReactionInput) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	emoji := strings.TrimSpace(input.Emoji)
	if emoji == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "emoji is required", nil)
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	action, err := s.store.TogglePostReaction(ctx, post.ID, actor.ID, emoji)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.ListPostReactionCounts(ctx, []string{post.ID})
	if err != nil {
		return nil, err
	}
	reactions := make([]map[string]any, 0, len(counts))
	for _, rc := range counts {
		reactions = append(reactions, map[string]any{"emoji": rc.Emoji, "count": rc.Count})
	}
	return map[string]any{"action": action, "reactions": reactions}, nil
}

// ToggleInteraction flips a follow/save/hide record for an identified actor
// and reports whether it is on afterwards. The three namespaces never
// interfere with each other.
func (s *Service) ToggleInteraction(ctx context.Context, threadID string, actor *gate.Actor, input InteractionInput) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if !interactionActions[input.Action] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "action must be follow, save, or hide", nil)
	}
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	active, err := s.store.ToggleThreadInteraction(ctx, thread.ID, actor.ID, input.Action)
	if err != nil {
		return nil, err
	}
	return map[string]any{"action": input.Action, "active": active}, nil
}

// ListInteractions returns the actor's thread ids for one interaction
// namespace, most recent first.
func (s *Service) ListInteractions(ctx context.Context, actor *gate.Actor, action string) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if !interactionActions[action] {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "action must be follow, save, or hide", nil)
	}
	threadIDs, err := s.store.ListInteractionThreadIDs(ctx, actor.ID, action)
	if err != nil {
		return nil, err
	}
	return map[string]any{"action": action, "threadIds": threadIDs}, nil
}

// Flag reports a post or thread. Once the target's flag count reaches the
// configured threshold it is buried; burial is idempotent and never undone
// by flag resolution.
func (s *Service) Flag(ctx context.Context, targetID, targetType string, actor *gate.Actor, input FlagInput) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if targetType != "post" && targetType != "thread" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "target type must be post or thread", nil)
	}

	var threadID string
	switch targetType {
	case "post":
		post, err := s.store.GetPostAnyState(ctx, targetID)
		if err != nil {
			return nil, err
		}
		threadID = post.ThreadID
	case "thread":
		thread, err := s.store.GetThread(ctx, targetID)
		if err != nil {
			return nil, err
		}
		threadID = thread.ID
	}

	flag := store.Flag{
		ID:         util.NewID("flag"),
		TargetID:   targetID,
		TargetType: targetType,
		ReporterID: actor.ID,
		Reason:     strings.TrimSpace(input.Reason),
	}
	if err := s.store.InsertFlag(ctx, flag); err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:       notify.EventPostFlagged,
		TargetID:   targetID,
		TargetType: targetType,
		ActorID:    actor.ID,
		ThreadID:   threadID,
	})

	count, err := s.store.CountFlags(ctx, targetID, targetType)
	if err != nil {
		return nil, err
	}

	buried := false
	if count >= s.flagThreshold {
		switch targetType {
		case "post":
			buried, err = s.store.BuryPost(ctx, targetID)
		case "thread":
			buried, err = s.store.BuryThread(ctx, targetID)
		}
		if err != nil {
			return nil, err
		}
		if buried {
			s.publish(ctx, notify.Event{
				Type:       notify.EventTargetBuried,
				TargetID:   targetID,
				TargetType: targetType,
				ThreadID:   threadID,
			})
			if s.search != nil {
				switch targetType {
				case "post":
					s.search.DeletePost(targetID)
				case "thread":
					s.search.DeleteThread(targetID)
				}
			}
		}
	}

	return map[string]any{
		"flagId":    flag.ID,
		"flagCount": count,
		"buried":    buried,
	}, nil
}

// ResolveFlag marks a flag handled for moderation tooling. The flag still
// counts toward the burial threshold and resolution never un-buries.
func (s *Service) ResolveFlag(ctx context.Context, flagID string, actor *gate.Actor) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	resolved, err := s.store.ResolveFlag(ctx, flagID)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	return map[string]any{"ok": true}, nil
}
