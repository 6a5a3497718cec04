package store

import (
	"context"
	"os"
	"testing"

	"agora/api/internal/util"
)

// The toggle tests need a real database because their semantics live in the
// SQL (ON CONFLICT upserts, delete-first toggles). Set TEST_DATABASE_URL to
// run them.
func openTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func seedPost(t *testing.T, ctx context.Context, s *PostgresStore) Post {
	t.Helper()
	channel := Channel{
		ID:            util.NewID("chan"),
		Name:          "Integration",
		Slug:          util.NewID("slug"),
		LocationType:  "central",
		Visibility:    "public",
		MinRoleToPost: "member",
	}
	if err := s.InsertChannel(ctx, channel); err != nil {
		t.Fatalf("insert channel: %v", err)
	}
	thread := Thread{ID: util.NewID("thread"), ChannelID: channel.ID, Title: "toggles"}
	if err := s.InsertThread(ctx, thread); err != nil {
		t.Fatalf("insert thread: %v", err)
	}
	post := Post{ID: util.NewID("post"), ThreadID: thread.ID, Content: "body"}
	if err := s.InsertPost(ctx, post, nil, nil); err != nil {
		t.Fatalf("insert post: %v", err)
	}
	return post
}

func TestTogglePostVoteLifecycle(t *testing.T) {
	s, ctx := openTestStore(t)
	post := seedPost(t, ctx, s)
	userID := util.NewID("user")

	action, err := s.TogglePostVote(ctx, post.ID, userID, 1)
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if action != VoteInserted {
		t.Fatalf("expected %s, got %s", VoteInserted, action)
	}

	action, err = s.TogglePostVote(ctx, post.ID, userID, -1)
	if err != nil {
		t.Fatalf("flip vote: %v", err)
	}
	if action != VoteUpdated {
		t.Fatalf("expected %s, got %s", VoteUpdated, action)
	}

	action, err = s.TogglePostVote(ctx, post.ID, userID, -1)
	if err != nil {
		t.Fatalf("retract vote: %v", err)
	}
	if action != VoteRemoved {
		t.Fatalf("expected %s, got %s", VoteRemoved, action)
	}

	totals, err := s.ListPostVoteTotals(ctx, []string{post.ID})
	if err != nil {
		t.Fatalf("vote totals: %v", err)
	}
	if got := totals[post.ID]; got.Upvotes != 0 || got.Downvotes != 0 {
		t.Fatalf("expected clean totals after retraction, got %+v", got)
	}
}

func TestTogglePostReactionLifecycle(t *testing.T) {
	s, ctx := openTestStore(t)
	post := seedPost(t, ctx, s)
	userID := util.NewID("user")

	action, err := s.TogglePostReaction(ctx, post.ID, userID, "🔥")
	if err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	if action != "added" {
		t.Fatalf("expected added, got %s", action)
	}

	action, err = s.TogglePostReaction(ctx, post.ID, userID, "🔥")
	if err != nil {
		t.Fatalf("remove reaction: %v", err)
	}
	if action != "removed" {
		t.Fatalf("expected removed, got %s", action)
	}

	// A different emoji from the same user is an independent row.
	if _, err := s.TogglePostReaction(ctx, post.ID, userID, "👀"); err != nil {
		t.Fatalf("second emoji: %v", err)
	}
	counts, err := s.ListPostReactionCounts(ctx, []string{post.ID})
	if err != nil {
		t.Fatalf("reaction counts: %v", err)
	}
	if len(counts) != 1 || counts[0].Emoji != "👀" {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestCastPollVoteSingleChoiceReplaces(t *testing.T) {
	s, ctx := openTestStore(t)
	post := seedPost(t, ctx, s)
	userID := util.NewID("user")

	pollPost := Post{ID: util.NewID("post"), ThreadID: post.ThreadID, Content: "poll host"}
	poll := Poll{ID: util.NewID("poll"), PostID: pollPost.ID, Question: "pick one"}
	options := []PollOption{
		{ID: util.NewID("opt"), PollID: poll.ID, Text: "red", Position: 0},
		{ID: util.NewID("opt"), PollID: poll.ID, Text: "blue", Position: 1},
	}
	if err := s.InsertPost(ctx, pollPost, &poll, options); err != nil {
		t.Fatalf("insert poll post: %v", err)
	}

	action, err := s.CastPollVote(ctx, poll.ID, options[0].ID, userID, false)
	if err != nil {
		t.Fatalf("first poll vote: %v", err)
	}
	if action != "voted" {
		t.Fatalf("expected voted, got %s", action)
	}

	action, err = s.CastPollVote(ctx, poll.ID, options[0].ID, userID, false)
	if err != nil {
		t.Fatalf("repeat poll vote: %v", err)
	}
	if action != "unchanged" {
		t.Fatalf("expected unchanged on repeat, got %s", action)
	}

	// Switching to another option must replace, never accumulate.
	if _, err := s.CastPollVote(ctx, poll.ID, options[1].ID, userID, false); err != nil {
		t.Fatalf("switch poll vote: %v", err)
	}
	counts, total, err := s.ListPollVoteCounts(ctx, poll.ID)
	if err != nil {
		t.Fatalf("poll vote counts: %v", err)
	}
	if total != 1 || counts[options[1].ID] != 1 || counts[options[0].ID] != 0 {
		t.Fatalf("expected a single vote on the new option, got %v (total %d)", counts, total)
	}
}

func TestBuryPostIsIdempotent(t *testing.T) {
	s, ctx := openTestStore(t)
	post := seedPost(t, ctx, s)

	buried, err := s.BuryPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("bury: %v", err)
	}
	if !buried {
		t.Fatal("expected first burial to report true")
	}

	buried, err = s.BuryPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("second bury: %v", err)
	}
	if buried {
		t.Fatal("expected repeated burial to be a no-op")
	}
}

func TestSoftDeletedPostHiddenFromReadsButNotModeration(t *testing.T) {
	s, ctx := openTestStore(t)
	post := seedPost(t, ctx, s)

	deleted, err := s.SoftDeletePost(ctx, post.ID, "moderator-1")
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report true")
	}

	if _, err := s.GetPost(ctx, post.ID); err == nil {
		t.Fatal("expected deleted post hidden from GetPost")
	}
	fetched, err := s.GetPostAnyState(ctx, post.ID)
	if err != nil {
		t.Fatalf("moderation fetch: %v", err)
	}
	if fetched.DeletedAt == nil || fetched.DeletedBy == nil || *fetched.DeletedBy != "moderator-1" {
		t.Fatalf("expected audit fields, got %+v", fetched)
	}
}
