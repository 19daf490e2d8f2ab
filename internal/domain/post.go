package domain

// Post represents a single community forum post as delivered by the fetch
// client. It is the raw input to the demand extraction pipeline and is
// treated as read-only by everything downstream.
type Post struct {
	ID          string  `json:"id"`
	SourceGroup string  `json:"source_group"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	SortSource  string  `json:"sort_source"`
}
