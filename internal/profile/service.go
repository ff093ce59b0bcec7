// Package profile keeps the player's display name and preferences.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/quiz"
	"github.com/gokatarajesh/smart-quiz/internal/storage"
)

var ErrEmptyName = errors.New("please enter a name")

type kvStore interface {
	Load(ctx context.Context, key string, dst any) bool
	LoadString(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value any)
	Remove(ctx context.Context, key string)
}

// Profile is what the client needs on load.
type Profile struct {
	User     string `json:"user,omitempty"`
	DarkMode bool   `json:"darkMode"`
}

// Service reads and writes the profile keys.
type Service struct {
	store  kvStore
	logger zerolog.Logger
}

func NewService(store kvStore, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "profile").Logger(),
	}
}

// Get returns the stored profile.
func (s *Service) Get(ctx context.Context) Profile {
	var p Profile
	p.User, _ = s.store.LoadString(ctx, storage.KeyUser)
	s.store.Load(ctx, storage.KeyDarkMode, &p.DarkMode)
	return p
}

// SetUser stores the trimmed display name.
func (s *Service) SetUser(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	s.store.Set(ctx, storage.KeyUser, name)
	s.logger.Info().Str("user", name).Msg("display name set")
	return name, nil
}

// Logout forgets the user and any unfinished run.
func (s *Service) Logout(ctx context.Context) {
	s.store.Remove(ctx, storage.KeyUser)
	s.store.Remove(ctx, storage.KeySessionState)
	s.logger.Info().Msg("user logged out")
}

// SetDarkMode stores the theme preference.
func (s *Service) SetDarkMode(ctx context.Context, enabled bool) {
	s.store.Set(ctx, storage.KeyDarkMode, enabled)
}

// LastSettings returns the settings of the previous start, if any.
func (s *Service) LastSettings(ctx context.Context) (quiz.Settings, bool) {
	var settings quiz.Settings
	ok := s.store.Load(ctx, storage.KeyLastSettings, &settings)
	return settings, ok
}
