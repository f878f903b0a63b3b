package questionnaire

import (
	"errors"
	"strings"
	"time"

	"CareerBot/model"
)

// ErrInvalidView is returned for an explorer move the state table does not allow.
var ErrInvalidView = errors.New("invalid explorer transition")

// View is an explorer sub-state.
type View string

const (
	ViewList         View = "list"
	ViewDetail       View = "detail"
	ViewRoadmap      View = "roadmap"
	ViewInterview    View = "interview"
	ViewDeepDive     View = "deepdive"
	ViewConsultation View = "consultation"
)

var viewLabels = map[View]string{
	ViewList:         "results",
	ViewDetail:       "details",
	ViewRoadmap:      "roadmap",
	ViewInterview:    "interview preparation",
	ViewDeepDive:     "deep dive",
	ViewConsultation: "consultation",
}

func (v View) Label() string {
	return viewLabels[v]
}

// IsLeaf reports whether v hangs below the detail view.
func (v View) IsLeaf() bool {
	return v == ViewRoadmap || v == ViewInterview || v == ViewDeepDive || v == ViewConsultation
}

type memoKey struct {
	view View
	item int
}

// Explorer is the nested results state machine:
//
//	list -> detail -> (roadmap | interview | deepdive | consultation)
//
// Sub-state payloads are memoized for the lifetime of the RemoteResult.
// Its state is guarded by the owning session's lock.
type Explorer struct {
	s     *Session
	view  View
	item  int
	memo  map[memoKey]model.Document
	saved map[int]model.SavedArtifact
}

func newExplorer(s *Session) *Explorer {
	return &Explorer{
		s:     s,
		view:  ViewList,
		item:  -1,
		memo:  make(map[memoKey]model.Document),
		saved: make(map[int]model.SavedArtifact),
	}
}

func (e *Explorer) allowed(target View, item int) bool {
	if e.s.result == nil || item < 0 || item >= len(e.s.result.Items) {
		return false
	}
	switch {
	case target == ViewDetail:
		return e.view == ViewList || e.item == item
	case target.IsLeaf():
		return (e.view == ViewDetail || e.view.IsLeaf()) && e.item == item
	}
	return false
}

func (e *Explorer) canEnter(target View, item int) bool {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.allowed(target, item)
}

func (e *Explorer) enterCached(target View, item int) (model.Document, bool) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if !e.allowed(target, item) {
		return model.Document{}, false
	}
	doc, ok := e.memo[memoKey{target, item}]
	if ok {
		e.view, e.item = target, item
		e.s.alert = ""
	}
	return doc, ok
}

// store is called with the session lock held.
func (e *Explorer) store(target View, item int, doc model.Document) {
	e.memo[memoKey{target, item}] = doc
	e.view, e.item = target, item
}

// Back climbs one level: leaf -> detail -> list.
func (e *Explorer) Back() View {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	switch {
	case e.view.IsLeaf():
		e.view = ViewDetail
	case e.view == ViewDetail:
		e.view = ViewList
		e.item = -1
	}
	return e.view
}

// Current returns the sub-state, the selected item and the memoized payload for it.
func (e *Explorer) Current() (View, int, *model.Document) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if doc, ok := e.memo[memoKey{e.view, e.item}]; ok {
		return e.view, e.item, &doc
	}
	return e.view, e.item, nil
}

// Item returns the recommendation at index i of the current result.
func (e *Explorer) Item(i int) (model.Recommendation, bool) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if e.s.result == nil || i < 0 || i >= len(e.s.result.Items) {
		return model.Recommendation{}, false
	}
	return e.s.result.Items[i], true
}

// ArtifactFor returns the saved-artifact form of item. The id is assigned on
// first use so saving the same item twice toggles the same entry; the payload
// is rebuilt on every call so views explored later are carried along.
func (e *Explorer) ArtifactFor(item int, now time.Time) (model.SavedArtifact, bool) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if e.s.result == nil || item < 0 || item >= len(e.s.result.Items) {
		return model.SavedArtifact{}, false
	}
	a, ok := e.saved[item]
	if !ok {
		ts := now
		for e.idTaken(model.NewArtifactID(ts)) {
			ts = ts.Add(time.Millisecond)
		}
		rec := e.s.result.Items[item]
		a = model.SavedArtifact{
			ID:          model.NewArtifactID(ts),
			Type:        string(e.s.result.Kind),
			Title:       rec.Title,
			Description: rec.Description,
			SavedAt:     now,
		}
	}
	a.Data = e.artifactData(item, a.Data)
	e.saved[item] = a
	return a, true
}

// artifactData overlays the item's current highlights and explored views on
// the previously stored payload.
func (e *Explorer) artifactData(item int, prev map[string]string) map[string]string {
	rec := e.s.result.Items[item]
	data := make(map[string]string, len(prev))
	for k, v := range prev {
		data[k] = v
	}
	for i, h := range rec.Highlights {
		data["highlight_"+formatNumber(float64(i+1))] = h
	}
	if doc, ok := e.memo[memoKey{ViewRoadmap, item}]; ok {
		for _, sec := range doc.Sections {
			data["roadmap_"+sec.Heading] = strings.Join(sec.Points, "; ")
		}
	}
	return data
}

func (e *Explorer) idTaken(id string) bool {
	for _, a := range e.saved {
		if a.ID == id {
			return true
		}
	}
	return false
}
