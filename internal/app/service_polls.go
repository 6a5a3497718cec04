package app

import (
	"context"
	"net/http"
	"time"

	"agora/api/internal/gate"
	"agora/api/internal/notify"
	"agora/api/internal/store"
)

type VotePollInput struct {
	OptionID string `json:"optionId"`
}

// VotePoll records an identified actor's poll vote. Single-vote polls
// replace the actor's previous choice; multi-vote polls toggle the option.
// Expired polls reject votes.
func (s *Service) VotePoll(ctx context.Context, pollID string, actor *gate.Actor, input VotePollInput) (map[string]any, error) {
	if actor == nil {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if input.OptionID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "optionId is required", nil)
	}

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.ExpiresAt != nil && !poll.ExpiresAt.After(time.Now()) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "poll has expired", nil)
	}

	option, err := s.store.GetPollOption(ctx, input.OptionID)
	if err != nil {
		return nil, err
	}
	if option.PollID != poll.ID {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "option does not belong to poll", nil)
	}

	action, err := s.store.CastPollVote(ctx, poll.ID, option.ID, actor.ID, poll.AllowMultipleVotes)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:     notify.EventPollVoted,
		TargetID: poll.ID,
		ActorID:  actor.ID,
	})

	view, err := s.pollView(ctx, poll, actor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"action": action, "poll": view}, nil
}

// pollView assembles the poll payload: options in stored order with live
// counts, percentages of total votes, and the viewer's own choices.
func (s *Service) pollView(ctx context.Context, poll store.Poll, viewer *gate.Actor) (map[string]any, error) {
	options, err := s.store.ListPollOptions(ctx, poll.ID)
	if err != nil {
		return nil, err
	}
	counts, total, err := s.store.ListPollVoteCounts(ctx, poll.ID)
	if err != nil {
		return nil, err
	}

	var viewerVotes map[string]bool
	if viewer != nil {
		if viewerVotes, err = s.store.ListViewerPollVotes(ctx, poll.ID, viewer.ID); err != nil {
			return nil, err
		}
	}

	optionViews := make([]map[string]any, 0, len(options))
	for _, option := range options {
		count := counts[option.ID]
		percentage := 0.0
		if total > 0 {
			percentage = float64(count) / float64(total) * 100
		}
		optionViews = append(optionViews, map[string]any{
			"id":         option.ID,
			"text":       option.Text,
			"position":   option.Position,
			"votes":      count,
			"percentage": percentage,
			"isVoted":    viewerVotes[option.ID],
		})
	}

	return map[string]any{
		"id":                 poll.ID,
		"postId":             poll.PostID,
		"question":           poll.Question,
		"allowMultipleVotes": poll.AllowMultipleVotes,
		"expiresAt":          poll.ExpiresAt,
		"totalVotes":         total,
		"options":            optionViews,
		"createdAt":          poll.CreatedAt,
	}, nil
}
