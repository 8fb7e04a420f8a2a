package wizard

import (
	"maps"
	"slices"
	"strings"
)

// DetailsSuffix is appended to a step id to key its free-text supplement.
const DetailsSuffix = "_details"

// Answer is a stored value. Single selections, free text and upload paths
// use Text; multi-select steps use Set in selection order.
type Answer struct {
	Text string   `json:"text,omitempty"`
	Set  []string `json:"set,omitempty"`
}

// Empty reports whether the answer counts as unanswered.
func (a Answer) Empty() bool {
	return strings.TrimSpace(a.Text) == "" && len(a.Set) == 0
}

// Contains reports whether label is the selected value or part of the set.
func (a Answer) Contains(label string) bool {
	return a.Text == label || slices.Contains(a.Set, label)
}

// AnswerStore accumulates the answers of one wizard session.
type AnswerStore struct {
	values  map[string]Answer
	details map[string]string
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		values:  make(map[string]Answer),
		details: make(map[string]string),
	}
}

// Set replaces the value for id.
func (s *AnswerStore) Set(id, text string) {
	s.values[id] = Answer{Text: text}
}

// Toggle adds label to the set for id, or removes it when already there.
// Adding beyond limit is ignored. It reports whether the set changed.
func (s *AnswerStore) Toggle(id, label string, limit int) bool {
	current := s.values[id].Set
	if i := slices.Index(current, label); i >= 0 {
		next := slices.Delete(slices.Clone(current), i, i+1)
		if len(next) == 0 {
			delete(s.values, id)
		} else {
			s.values[id] = Answer{Set: next}
		}
		return true
	}
	if len(current) >= limit {
		return false
	}
	next := append(slices.Clone(current), label)
	s.values[id] = Answer{Set: next}
	return true
}

func (s *AnswerStore) Get(id string) (Answer, bool) {
	a, ok := s.values[id]
	return a, ok
}

// Answered reports whether id holds a non-empty value.
func (s *AnswerStore) Answered(id string) bool {
	a, ok := s.values[id]
	return ok && !a.Empty()
}

func (s *AnswerStore) SetDetails(id, text string) {
	s.details[id] = text
}

func (s *AnswerStore) Details(id string) (string, bool) {
	d, ok := s.details[id]
	return d, ok
}

func (s *AnswerStore) Clone() *AnswerStore {
	out := &AnswerStore{
		values:  make(map[string]Answer, len(s.values)),
		details: maps.Clone(s.details),
	}
	if out.details == nil {
		out.details = make(map[string]string)
	}
	for id, a := range s.values {
		out.values[id] = Answer{Text: a.Text, Set: slices.Clone(a.Set)}
	}
	return out
}

// Flatten builds the request body for the catalog: single values as
// strings, sets as ordered label lists, supplements under id_details.
// Local and unanswered steps are left out.
func (s *AnswerStore) Flatten(c *Catalog) map[string]any {
	body := make(map[string]any)
	for i := 0; i < c.Len(); i++ {
		for _, d := range c.answerable(i) {
			if d.Local {
				continue
			}
			if a, ok := s.values[d.ID]; ok && !a.Empty() {
				if d.Kind == KindMultiSelect {
					body[d.ID] = slices.Clone(a.Set)
				} else {
					body[d.ID] = a.Text
				}
			}
			if d.Kind == KindSingleSpecify {
				if text, ok := s.details[d.ID]; ok && strings.TrimSpace(text) != "" {
					body[d.ID+DetailsSuffix] = text
				}
			}
		}
	}
	return body
}
