package model

import "time"

// ResultKind names the call site that produced a RemoteResult.
type ResultKind string

const (
	KindCareer    ResultKind = "career"
	KindBusiness  ResultKind = "business"
	KindChild     ResultKind = "child"
	KindSports    ResultKind = "sports"
	KindQuiz      ResultKind = "quiz"
	KindTestSetup ResultKind = "test_setup"
	KindProfile   ResultKind = "profile"
)

type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
}

type Section struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points"`
}

// Document is a drill-down payload (detail, roadmap, interview prep, deep dive).
type Document struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// RemoteResult is never patched after it is built; a new request replaces it.
type RemoteResult struct {
	Kind       ResultKind
	Items      []Recommendation
	Summary    string
	ReceivedAt time.Time
}

// Empty reports whether the result carries nothing to render.
func (r RemoteResult) Empty() bool {
	return len(r.Items) == 0 && r.Summary == ""
}
