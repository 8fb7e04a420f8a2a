// Package session holds the logged-in user's credentials between runs.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zdunecki/internnav/pkg/wizard"
)

// ErrNoSession is returned when nobody is logged in.
var ErrNoSession = errors.New("not logged in: run `internnav login` first")

type Session struct {
	Token           string `yaml:"token"`
	Name            string `yaml:"name"`
	Email           string `yaml:"email"`
	ProfileComplete bool   `yaml:"profile_complete"`
	QuizTaken       bool   `yaml:"quiz_taken"`
}

func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.Email != ""
}

func (s *Session) MarkProfileComplete() { s.ProfileComplete = true }

func (s *Session) MarkQuizTaken() { s.QuizTaken = true }

// Rename updates the display name after a profile edit. Blank names are
// ignored.
func (s *Session) Rename(name string) {
	if name != "" {
		s.Name = name
	}
}

// Record notes how a wizard ended and reports whether the session
// changed. Onboarding is done once completed or skipped; the quiz only
// when completed.
func (s *Session) Record(catalog string, state wizard.State) bool {
	switch catalog {
	case wizard.OnboardingCatalog:
		switch state.(type) {
		case wizard.Completed, wizard.Skipped:
			if !s.ProfileComplete {
				s.MarkProfileComplete()
				return true
			}
		}
	case wizard.QuizCatalog:
		if _, ok := state.(wizard.Completed); ok && !s.QuizTaken {
			s.MarkQuizTaken()
			return true
		}
	}
	return false
}

// Store persists a Session as a YAML file readable only by the owner.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load returns ErrNoSession when the file is missing or holds no token.
func (st *Store) Load() (*Session, error) {
	data, err := os.ReadFile(st.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s Session
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", st.Path, err)
	}
	if !s.Valid() {
		return nil, ErrNoSession
	}
	return &s, nil
}

func (st *Store) Save(s *Session) error {
	if !s.Valid() {
		return errors.New("refusing to save a session without token and email")
	}
	if err := os.MkdirAll(filepath.Dir(st.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	tmp := st.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, st.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Destroy logs out. Removing a missing session is not an error.
func (st *Store) Destroy() error {
	err := os.Remove(st.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
