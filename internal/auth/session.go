package auth

import (
	"context"
	"sync"
)

// Provider is the slice of Service the client-side session needs.
type Provider interface {
	Register(ctx context.Context, email, password string) (User, error)
	SignIn(ctx context.Context, email, password string) (User, error)
}

// Session tracks the current signed-in user for one client and notifies
// observers when it changes. Observers receive nil on sign-out, mirroring
// the provider's "current user changed" callback contract.
type Session struct {
	provider Provider

	mu        sync.Mutex
	current   *User
	observers map[int64]func(*User)
	nextID    int64
}

// NewSession wraps an auth provider in a client session.
func NewSession(provider Provider) *Session {
	return &Session{
		provider:  provider,
		observers: make(map[int64]func(*User)),
	}
}

// OnUserChange registers a callback invoked with the new identity (or nil)
// after every sign-in and sign-out. The returned function removes it.
func (s *Session) OnUserChange(observer func(*User)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers[id] = observer
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Current returns the signed-in identity, or nil.
func (s *Session) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	user := *s.current
	return &user
}

// SignIn authenticates and, on success, publishes the new identity.
func (s *Session) SignIn(ctx context.Context, email, password string) (User, error) {
	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	s.setCurrent(&user)
	return user, nil
}

// Register creates an account and signs the new user in.
func (s *Session) Register(ctx context.Context, email, password string) (User, error) {
	user, err := s.provider.Register(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	s.setCurrent(&user)
	return user, nil
}

// SignOut clears the current identity and publishes nil.
func (s *Session) SignOut() {
	s.setCurrent(nil)
}

func (s *Session) setCurrent(user *User) {
	s.mu.Lock()
	s.current = user
	observers := make([]func(*User), 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.mu.Unlock()

	for _, observer := range observers {
		var copied *User
		if user != nil {
			value := *user
			copied = &value
		}
		observer(copied)
	}
}
