package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	VoteInserted = "inserted"
	VoteUpdated  = "updated"
	VoteRemoved  = "removed"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) InsertChannel(ctx context.Context, channel Channel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, name, description, slug, parent_id, location_type, location_id, visibility, allow_anonymous_posts, min_role_to_post, can_create_subchannels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, channel.ID, channel.Name, channel.Description, channel.Slug, channel.ParentID, channel.LocationType, channel.LocationID, channel.Visibility, channel.AllowAnonymousPosts, channel.MinRoleToPost, channel.CanCreateSubchannels)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChannel(ctx context.Context, channelID string) (Channel, error) {
	var item Channel
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, slug, parent_id, location_type, location_id, visibility, allow_anonymous_posts, min_role_to_post, can_create_subchannels, created_at, updated_at
		FROM channels
		WHERE id=$1
	`, channelID).Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.Slug,
		&item.ParentID,
		&item.LocationType,
		&item.LocationID,
		&item.Visibility,
		&item.AllowAnonymousPosts,
		&item.MinRoleToPost,
		&item.CanCreateSubchannels,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Channel{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, slug, parent_id, location_type, location_id, visibility, allow_anonymous_posts, min_role_to_post, can_create_subchannels, created_at, updated_at
		FROM channels
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	items := make([]Channel, 0)
	for rows.Next() {
		var item Channel
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Description,
			&item.Slug,
			&item.ParentID,
			&item.LocationType,
			&item.LocationID,
			&item.Visibility,
			&item.AllowAnonymousPosts,
			&item.MinRoleToPost,
			&item.CanCreateSubchannels,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertThread(ctx context.Context, thread Thread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, channel_id, title, creator_id, is_anonymous)
		VALUES ($1, $2, $3, $4, $5)
	`, thread.ID, thread.ChannelID, thread.Title, thread.CreatorID, thread.IsAnonymous)
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (Thread, error) {
	var item Thread
	err := s.db.QueryRowContext(ctx, `
		SELECT id, channel_id, title, creator_id, is_anonymous, buried_at, created_at, updated_at
		FROM threads
		WHERE id=$1
	`, threadID).Scan(
		&item.ID,
		&item.ChannelID,
		&item.Title,
		&item.CreatorID,
		&item.IsAnonymous,
		&item.BuriedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Thread{}, err
	}
	return item, nil
}

// ListThreads returns a channel's threads for the default view; buried
// threads are filtered out, newest first.
func (s *PostgresStore) ListThreads(ctx context.Context, channelID string) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, title, creator_id, is_anonymous, buried_at, created_at, updated_at
		FROM threads
		WHERE channel_id=$1 AND buried_at IS NULL
		ORDER BY created_at DESC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	items := make([]Thread, 0)
	for rows.Next() {
		var item Thread
		if err := rows.Scan(
			&item.ID,
			&item.ChannelID,
			&item.Title,
			&item.CreatorID,
			&item.IsAnonymous,
			&item.BuriedAt,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return items, nil
}

// InsertPost writes a post and, when poll is non-nil, its poll and options
// in a single transaction so a partial failure cannot orphan a poll.
func (s *PostgresStore) InsertPost(ctx context.Context, post Post, poll *Poll, options []PollOption) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin post tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO posts (id, thread_id, content, author_id, is_anonymous, fingerprint)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`, post.ID, post.ThreadID, post.Content, post.AuthorID, post.IsAnonymous, post.Fingerprint); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert post: %w", err)
	}

	if poll != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO polls (id, post_id, question, allow_multiple_votes, expires_at, creator_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, poll.ID, poll.PostID, poll.Question, poll.AllowMultipleVotes, poll.ExpiresAt, poll.CreatorID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert poll: %w", err)
		}
		for _, option := range options {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO poll_options (id, poll_id, text, position)
				VALUES ($1, $2, $3, $4)
			`, option.ID, option.PollID, option.Text, option.Position); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert poll option: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit post tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	var item Post
	err := s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, content, author_id, is_anonymous, COALESCE(fingerprint, ''), deleted_at, deleted_by, buried_at, created_at, updated_at
		FROM posts
		WHERE id=$1 AND deleted_at IS NULL
	`, postID).Scan(
		&item.ID,
		&item.ThreadID,
		&item.Content,
		&item.AuthorID,
		&item.IsAnonymous,
		&item.Fingerprint,
		&item.DeletedAt,
		&item.DeletedBy,
		&item.BuriedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Post{}, err
	}
	return item, nil
}

// GetPostAnyState fetches a post regardless of soft deletion or burial,
// for moderation queries only.
func (s *PostgresStore) GetPostAnyState(ctx context.Context, postID string) (Post, error) {
	var item Post
	err := s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, content, author_id, is_anonymous, COALESCE(fingerprint, ''), deleted_at, deleted_by, buried_at, created_at, updated_at
		FROM posts
		WHERE id=$1
	`, postID).Scan(
		&item.ID,
		&item.ThreadID,
		&item.Content,
		&item.AuthorID,
		&item.IsAnonymous,
		&item.Fingerprint,
		&item.DeletedAt,
		&item.DeletedBy,
		&item.BuriedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Post{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdatePostContent(ctx context.Context, postID, content string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET content=$2, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL
	`, postID, content)
	if err != nil {
		return false, fmt.Errorf("update post content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update post content rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SoftDeletePost(ctx context.Context, postID, deletedBy string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET deleted_at=NOW(), deleted_by=$2
		WHERE id=$1 AND deleted_at IS NULL
	`, postID, deletedBy)
	if err != nil {
		return false, fmt.Errorf("soft delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete post rows: %w", err)
	}
	return affected > 0, nil
}

// ListThreadPosts is the default thread view: soft-deleted and buried posts
// excluded, ascending by creation time.
func (s *PostgresStore) ListThreadPosts(ctx context.Context, threadID string) ([]Post, error) {
	return s.listPosts(ctx, `
		SELECT id, thread_id, content, author_id, is_anonymous, COALESCE(fingerprint, ''), deleted_at, deleted_by, buried_at, created_at, updated_at
		FROM posts
		WHERE thread_id=$1 AND deleted_at IS NULL AND buried_at IS NULL
		ORDER BY created_at ASC
	`, threadID)
}

// ListAuthorPosts is the profile activity view, descending by creation time.
func (s *PostgresStore) ListAuthorPosts(ctx context.Context, authorID string) ([]Post, error) {
	return s.listPosts(ctx, `
		SELECT id, thread_id, content, author_id, is_anonymous, COALESCE(fingerprint, ''), deleted_at, deleted_by, buried_at, created_at, updated_at
		FROM posts
		WHERE author_id=$1 AND deleted_at IS NULL AND buried_at IS NULL
		ORDER BY created_at DESC
	`, authorID)
}

func (s *PostgresStore) listPosts(ctx context.Context, query string, arg any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		var item Post
		if err := rows.Scan(
			&item.ID,
			&item.ThreadID,
			&item.Content,
			&item.AuthorID,
			&item.IsAnonymous,
			&item.Fingerprint,
			&item.DeletedAt,
			&item.DeletedBy,
			&item.BuriedAt,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

// TogglePostVote applies the toggle/flip contract: same direction retracts,
// opposite direction flips in place, absence inserts. The write is a
// conflict-driven upsert so concurrent calls cannot produce duplicate rows.
func (s *PostgresStore) TogglePostVote(ctx context.Context, postID, userID string, direction int) (string, error) {
	var existing int
	err := s.db.QueryRowContext(ctx, `
		SELECT direction
		FROM post_votes
		WHERE post_id=$1 AND user_id=$2
	`, postID, userID).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup post vote: %w", err)
	}
	if err == nil && existing == direction {
		if _, delErr := s.db.ExecContext(ctx, `
			DELETE FROM post_votes
			WHERE post_id=$1 AND user_id=$2
		`, postID, userID); delErr != nil {
			return "", fmt.Errorf("delete post vote: %w", delErr)
		}
		return VoteRemoved, nil
	}
	action := VoteInserted
	if err == nil {
		action = VoteUpdated
	}
	if _, upsertErr := s.db.ExecContext(ctx, `
		INSERT INTO post_votes (post_id, user_id, direction)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id)
		DO UPDATE SET direction=EXCLUDED.direction, updated_at=NOW()
	`, postID, userID, direction); upsertErr != nil {
		return "", fmt.Errorf("upsert post vote: %w", upsertErr)
	}
	return action, nil
}

// ListPostVoteTotals aggregates live counts at read time; totals are never
// stored as counters.
func (s *PostgresStore) ListPostVoteTotals(ctx context.Context, postIDs []string) (map[string]VoteTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id,
			COUNT(*) FILTER (WHERE direction = 1)::int,
			COUNT(*) FILTER (WHERE direction = -1)::int
		FROM post_votes
		WHERE post_id = ANY($1)
		GROUP BY post_id
	`, postIDs)
	if err != nil {
		return nil, fmt.Errorf("list post vote totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]VoteTotals)
	for rows.Next() {
		var postID string
		var item VoteTotals
		if err := rows.Scan(&postID, &item.Upvotes, &item.Downvotes); err != nil {
			return nil, fmt.Errorf("scan post vote total: %w", err)
		}
		totals[postID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post vote totals: %w", err)
	}
	return totals, nil
}

func (s *PostgresStore) ListViewerVotes(ctx context.Context, postIDs []string, userID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, direction
		FROM post_votes
		WHERE post_id = ANY($1) AND user_id=$2
	`, postIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("list viewer votes: %w", err)
	}
	defer rows.Close()

	votes := make(map[string]int)
	for rows.Next() {
		var postID string
		var direction int
		if err := rows.Scan(&postID, &direction); err != nil {
			return nil, fmt.Errorf("scan viewer vote: %w", err)
		}
		votes[postID] = direction
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate viewer votes: %w", err)
	}
	return votes, nil
}

func (s *PostgresStore) GetPollByPost(ctx context.Context, postID string) (*Poll, error) {
	var item Poll
	err := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, question, allow_multiple_votes, expires_at, creator_id, created_at
		FROM polls
		WHERE post_id=$1
	`, postID).Scan(
		&item.ID,
		&item.PostID,
		&item.Question,
		&item.AllowMultipleVotes,
		&item.ExpiresAt,
		&item.CreatorID,
		&item.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get poll by post: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) GetPoll(ctx context.Context, pollID string) (Poll, error) {
	var item Poll
	err := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, question, allow_multiple_votes, expires_at, creator_id, created_at
		FROM polls
		WHERE id=$1
	`, pollID).Scan(
		&item.ID,
		&item.PostID,
		&item.Question,
		&item.AllowMultipleVotes,
		&item.ExpiresAt,
		&item.CreatorID,
		&item.CreatedAt,
	)
	if err != nil {
		return Poll{}, err
	}
	return item, nil
}

// ListPollOptions always returns options ascending by their stored position.
func (s *PostgresStore) ListPollOptions(ctx context.Context, pollID string) ([]PollOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, poll_id, text, position
		FROM poll_options
		WHERE poll_id=$1
		ORDER BY position ASC
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("list poll options: %w", err)
	}
	defer rows.Close()

	items := make([]PollOption, 0)
	for rows.Next() {
		var item PollOption
		if err := rows.Scan(&item.ID, &item.PollID, &item.Text, &item.Position); err != nil {
			return nil, fmt.Errorf("scan poll option: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poll options: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPollOption(ctx context.Context, optionID string) (PollOption, error) {
	var item PollOption
	err := s.db.QueryRowContext(ctx, `
		SELECT id, poll_id, text, position
		FROM poll_options
		WHERE id=$1
	`, optionID).Scan(&item.ID, &item.PollID, &item.Text, &item.Position)
	if err != nil {
		return PollOption{}, err
	}
	return item, nil
}

// CastPollVote records a poll vote. Single-vote polls replace the voter's
// previous choice; multi-vote polls toggle per option.
func (s *PostgresStore) CastPollVote(ctx context.Context, pollID, optionID, userID string, allowMultiple bool) (string, error) {
	if !allowMultiple {
		if _, err := s.db.ExecContext(ctx, `
			DELETE FROM poll_votes
			WHERE poll_id=$1 AND user_id=$2 AND option_id <> $3
		`, pollID, userID, optionID); err != nil {
			return "", fmt.Errorf("clear previous poll vote: %w", err)
		}
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO poll_votes (poll_id, option_id, user_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (poll_id, option_id, user_id) DO NOTHING
		`, pollID, optionID, userID)
		if err != nil {
			return "", fmt.Errorf("insert poll vote: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("insert poll vote rows: %w", err)
		}
		if affected > 0 {
			return "voted", nil
		}
		return "unchanged", nil
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM poll_votes
		WHERE poll_id=$1 AND option_id=$2 AND user_id=$3
	`, pollID, optionID, userID)
	if err != nil {
		return "", fmt.Errorf("delete poll vote: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("delete poll vote rows: %w", err)
	}
	if affected > 0 {
		return "removed", nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_votes (poll_id, option_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (poll_id, option_id, user_id) DO NOTHING
	`, pollID, optionID, userID); err != nil {
		return "", fmt.Errorf("insert poll vote: %w", err)
	}
	return "voted", nil
}

func (s *PostgresStore) ListPollVoteCounts(ctx context.Context, pollID string) (map[string]int, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT option_id, COUNT(*)::int
		FROM poll_votes
		WHERE poll_id=$1
		GROUP BY option_id
	`, pollID)
	if err != nil {
		return nil, 0, fmt.Errorf("list poll vote counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	total := 0
	for rows.Next() {
		var optionID string
		var count int
		if err := rows.Scan(&optionID, &count); err != nil {
			return nil, 0, fmt.Errorf("scan poll vote count: %w", err)
		}
		counts[optionID] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate poll vote counts: %w", err)
	}
	return counts, total, nil
}

func (s *PostgresStore) ListViewerPollVotes(ctx context.Context, pollID, userID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT option_id
		FROM poll_votes
		WHERE poll_id=$1 AND user_id=$2
	`, pollID, userID)
	if err != nil {
		return nil, fmt.Errorf("list viewer poll votes: %w", err)
	}
	defer rows.Close()

	voted := make(map[string]bool)
	for rows.Next() {
		var optionID string
		if err := rows.Scan(&optionID); err != nil {
			return nil, fmt.Errorf("scan viewer poll vote: %w", err)
		}
		voted[optionID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate viewer poll votes: %w", err)
	}
	return voted, nil
}

// TogglePostReaction deletes first and inserts only when nothing was
// deleted, so repeated identical calls alternate added/removed.
func (s *PostgresStore) TogglePostReaction(ctx context.Context, postID, userID, emoji string) (string, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM post_reactions
		WHERE post_id=$1 AND user_id=$2 AND emoji=$3
	`, postID, userID, emoji)
	if err != nil {
		return "", fmt.Errorf("delete post reaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("delete post reaction rows: %w", err)
	}
	if affected > 0 {
		return "removed", nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO post_reactions (post_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id, emoji) DO NOTHING
	`, postID, userID, emoji); err != nil {
		return "", fmt.Errorf("insert post reaction: %w", err)
	}
	return "added", nil
}

func (s *PostgresStore) ListPostReactionCounts(ctx context.Context, postIDs []string) ([]ReactionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, emoji, COUNT(*)::int
		FROM post_reactions
		WHERE post_id = ANY($1)
		GROUP BY post_id, emoji
		ORDER BY post_id ASC, emoji ASC
	`, postIDs)
	if err != nil {
		return nil, fmt.Errorf("list post reaction counts: %w", err)
	}
	defer rows.Close()

	items := make([]ReactionCount, 0)
	for rows.Next() {
		var item ReactionCount
		if err := rows.Scan(&item.PostID, &item.Emoji, &item.Count); err != nil {
			return nil, fmt.Errorf("scan post reaction count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post reaction counts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListViewerReactions(ctx context.Context, postIDs []string, userID string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, emoji
		FROM post_reactions
		WHERE post_id = ANY($1) AND user_id=$2
		ORDER BY post_id ASC, emoji ASC
	`, postIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("list viewer reactions: %w", err)
	}
	defer rows.Close()

	reactions := make(map[string][]string)
	for rows.Next() {
		var postID, emoji string
		if err := rows.Scan(&postID, &emoji); err != nil {
			return nil, fmt.Errorf("scan viewer reaction: %w", err)
		}
		reactions[postID] = append(reactions[postID], emoji)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate viewer reactions: %w", err)
	}
	return reactions, nil
}

func (s *PostgresStore) InsertFlag(ctx context.Context, flag Flag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flags (id, target_id, target_type, reporter_id, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, flag.ID, flag.TargetID, flag.TargetType, flag.ReporterID, flag.Reason)
	if err != nil {
		return fmt.Errorf("insert flag: %w", err)
	}
	return nil
}

// CountFlags counts every flag row for the target, resolved or not.
func (s *PostgresStore) CountFlags(ctx context.Context, targetID, targetType string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM flags WHERE target_id=$1 AND target_type=$2
	`, targetID, targetType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count flags: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ResolveFlag(ctx context.Context, flagID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE flags SET resolved=TRUE WHERE id=$1 AND resolved=FALSE
	`, flagID)
	if err != nil {
		return false, fmt.Errorf("resolve flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve flag rows: %w", err)
	}
	return affected > 0, nil
}

// BuryPost sets buried_at only when it is still null, making burial
// idempotent and one-directional.
func (s *PostgresStore) BuryPost(ctx context.Context, postID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts SET buried_at=NOW() WHERE id=$1 AND buried_at IS NULL
	`, postID)
	if err != nil {
		return false, fmt.Errorf("bury post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bury post rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) BuryThread(ctx context.Context, threadID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE threads SET buried_at=NOW() WHERE id=$1 AND buried_at IS NULL
	`, threadID)
	if err != nil {
		return false, fmt.Errorf("bury thread: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bury thread rows: %w", err)
	}
	return affected > 0, nil
}

// ToggleThreadInteraction flips a (thread, user, action) record and reports
// whether it is on after the call. The three action namespaces are
// independent relations in one table keyed by the action column.
func (s *PostgresStore) ToggleThreadInteraction(ctx context.Context, threadID, userID, action string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM thread_interactions
		WHERE thread_id=$1 AND user_id=$2 AND action=$3
	`, threadID, userID, action)
	if err != nil {
		return false, fmt.Errorf("delete thread interaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete thread interaction rows: %w", err)
	}
	if affected > 0 {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_interactions (thread_id, user_id, action)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id, user_id, action) DO NOTHING
	`, threadID, userID, action); err != nil {
		return false, fmt.Errorf("insert thread interaction: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListInteractionThreadIDs(ctx context.Context, userID, action string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id
		FROM thread_interactions
		WHERE user_id=$1 AND action=$2
		ORDER BY created_at DESC
	`, userID, action)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	items := make([]string, 0)
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		items = append(items, threadID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
