// Package auth runs the login and signup flows against the backend.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/zdunecki/internnav/pkg/api"
	"github.com/zdunecki/internnav/pkg/session"
)

// ErrIncomplete rejects a signup before any request is made.
var ErrIncomplete = errors.New("signup incomplete: fill all fields and meet the password requirements")

// IncompleteMessage is what the user is shown for ErrIncomplete.
const IncompleteMessage = "Please fill all fields and meet password requirements."

// MinPasswordLength is the shortest password signup accepts.
const MinPasswordLength = 8

// Password rules, in the order they are reported.
const (
	RuleLength  = "at least 8 characters"
	RuleUpper   = "an uppercase letter"
	RuleLower   = "a lowercase letter"
	RuleDigit   = "a number"
	RuleSpecial = "a special character"
)

// ValidatePassword returns the rules pw does not meet. An empty result
// means the password is acceptable.
func ValidatePassword(pw string) []string {
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	var unmet []string
	if len([]rune(pw)) < MinPasswordLength {
		unmet = append(unmet, RuleLength)
	}
	if !upper {
		unmet = append(unmet, RuleUpper)
	}
	if !lower {
		unmet = append(unmet, RuleLower)
	}
	if !digit {
		unmet = append(unmet, RuleDigit)
	}
	if !special {
		unmet = append(unmet, RuleSpecial)
	}
	return unmet
}

type Service struct {
	Client *api.Client
	Logger *zap.Logger
}

func NewService(client *api.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Client: client, Logger: logger}
}

// Login exchanges credentials for a Session. Nothing is persisted here.
func (s *Service) Login(ctx context.Context, email, password string) (*session.Session, error) {
	email = strings.TrimSpace(email)
	res, err := s.Client.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		s.Logger.Info("login failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if res.Token == "" {
		return nil, &api.Error{Message: "Failed to login.", Err: errors.New("response carried no token")}
	}
	s.Logger.Info("logged in", zap.String("email", email))
	return &session.Session{
		Token:           res.Token,
		Name:            res.Name,
		Email:           email,
		ProfileComplete: res.ProfileComplete,
		QuizTaken:       res.QuizTaken,
	}, nil
}

// Signup creates an account. Input is checked locally first; the user
// logs in afterwards.
func (s *Service) Signup(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || len(ValidatePassword(password)) > 0 {
		return ErrIncomplete
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrIncomplete
	}
	if err := s.Client.Signup(ctx, api.SignupRequest{Name: name, Email: email, Password: password}); err != nil {
		s.Logger.Info("signup failed", zap.String("email", email), zap.Error(err))
		return err
	}
	s.Logger.Info("account created", zap.String("email", email))
	return nil
}
