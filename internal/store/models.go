package store

import "time"

type Channel struct {
	ID                   string
	Name                 string
	Description          string
	Slug                 string
	ParentID             *string
	LocationType         string
	LocationID           string
	Visibility           string
	AllowAnonymousPosts  bool
	MinRoleToPost        string
	CanCreateSubchannels bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ChannelNode is a channel plus its direct children in the directory tree.
type ChannelNode struct {
	Channel
	Children []*ChannelNode
}

type Thread struct {
	ID          string
	ChannelID   string
	Title       string
	CreatorID   *string
	IsAnonymous bool
	BuriedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Post struct {
	ID          string
	ThreadID    string
	Content     string
	AuthorID    *string
	IsAnonymous bool
	Fingerprint string
	DeletedAt   *time.Time
	DeletedBy   *string
	BuriedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Vote struct {
	PostID    string
	UserID    string
	Direction int
	CreatedAt time.Time
}

type VoteTotals struct {
	Upvotes   int
	Downvotes int
}

type Poll struct {
	ID                 string
	PostID             string
	Question           string
	AllowMultipleVotes bool
	ExpiresAt          *time.Time
	CreatorID          *string
	CreatedAt          time.Time
}

type PollOption struct {
	ID       string
	PollID   string
	Text     string
	Position int
}

type PollVote struct {
	PollID    string
	OptionID  string
	UserID    string
	CreatedAt time.Time
}

type ReactionCount struct {
	PostID string
	Emoji  string
	Count  int
}

type Flag struct {
	ID         string
	TargetID   string
	TargetType string
	ReporterID string
	Reason     string
	Resolved   bool
	CreatedAt  time.Time
}

type Interaction struct {
	ThreadID  string
	UserID    string
	Action    string
	CreatedAt time.Time
}
