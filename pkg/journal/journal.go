// Package journal persists the lifecycle state of each download lineage.
// A lineage is the chain of requests that follows an automatic
// incremental-to-full fallback for one logical install or update.
package journal

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"acquire/pkg/common"
	"acquire/pkg/lazyjson"

	"github.com/google/uuid"
)

// State is the position of a lineage in its lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateInstalling State = "installing"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateNotified   State = "notified-done"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateNotified
}

var allowed = map[State][]State{
	StatePending:    {StatePending, StateInstalling, StateDone, StateFailed},
	StateInstalling: {StateDone, StateNotified, StateFailed},
}

// ErrTerminal is returned when moving a lineage out of a terminal state.
var ErrTerminal = errors.New("lineage already settled")

// ErrInvalidTransition is returned for transitions the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid lineage transition")

// Entry is the persisted record of one lineage.
type Entry struct {
	Lineage   uuid.UUID     `json:"lineage"`
	GameID    int64         `json:"game_id"`
	Title     string        `json:"title"`
	Reason    common.Reason `json:"reason"`
	State     State         `json:"state"`
	Requests  []uuid.UUID   `json:"requests"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type document struct {
	Lineages map[uuid.UUID]*Entry `json:"lineages"`
}

// Journal is a JSON-file backed lineage store. It is safe for concurrent use.
type Journal struct {
	store *lazyjson.Manager[document]
	now   func() time.Time
}

// Open returns the journal stored at path. The file is created on first write.
func Open(path string) *Journal {
	return &Journal{
		store: lazyjson.New(path, lazyjson.WithDefaultValue(func() *document {
			return &document{Lineages: map[uuid.UUID]*Entry{}}
		})),
		now: time.Now,
	}
}

// Transition moves the lineage of req to state `to`, recording req as part of it.
func (j *Journal) Transition(req common.DownloadRequest, to State, note string) error {
	return j.store.Update(func(doc *document) error {
		if doc.Lineages == nil {
			doc.Lineages = map[uuid.UUID]*Entry{}
		}
		now := j.now().UTC()
		e, ok := doc.Lineages[req.Lineage]
		if !ok {
			e = &Entry{
				Lineage:   req.Lineage,
				GameID:    req.GameID,
				Title:     req.Game.Title,
				Reason:    req.Reason,
				State:     StatePending,
				CreatedAt: now,
			}
		}
		if e.State.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, req.Lineage, e.State)
		}
		if !permitted(e.State, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.State, to)
		}

		if !slices.Contains(e.Requests, req.ID) {
			e.Requests = append(e.Requests, req.ID)
		}
		e.State = to
		e.Note = note
		e.UpdatedAt = now
		doc.Lineages[req.Lineage] = e
		return nil
	})
}

// Get returns a copy of the entry for lineage.
func (j *Journal) Get(lineage uuid.UUID) (Entry, bool, error) {
	var (
		out   Entry
		found bool
	)
	err := j.store.View(func(doc *document) error {
		if e, ok := doc.Lineages[lineage]; ok {
			out, found = *e, true
			out.Requests = append([]uuid.UUID(nil), e.Requests...)
		}
		return nil
	})
	return out, found, err
}

// List returns all entries, oldest first.
func (j *Journal) List() ([]Entry, error) {
	var out []Entry
	err := j.store.View(func(doc *document) error {
		for _, e := range doc.Lineages {
			c := *e
			c.Requests = append([]uuid.UUID(nil), e.Requests...)
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].Lineage.String() < out[b].Lineage.String()
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, err
}

func permitted(from, to State) bool {
	return slices.Contains(allowed[from], to)
}
