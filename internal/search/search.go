package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultThread ResultType = "thread"
	ResultPost   ResultType = "post"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ThreadID  string     `json:"threadId"`
	ChannelID string     `json:"channelId"`
}

// Query describes a search request.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterChannelID string
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ThreadRecord is the data we index for a thread.
type ThreadRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ChannelID string `json:"channelId"`
}

// PostRecord is the data we index for a post.
type PostRecord struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	ThreadID  string `json:"threadId"`
	ChannelID string `json:"channelId"`
}
