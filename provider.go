package authstate

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

var _ Auth = (*Provider)(nil)

// Provider owns the session and profile state for the subtree it is
// attached to, and republishes every change to its subscribers.
type Provider struct {
	verifier       TokenVerifier
	api            ProfileAPI
	logger         Logger
	loggerProvider LoggerProvider
	onProfileError func(userID string, err error)

	mu         sync.Mutex
	state      State
	fetchedFor string
	fetchSeq   uint64
	subs       []subscription
	closed     bool
	stopParent func() bool

	notifyMu   sync.Mutex
	pending    State
	delivered  uint64
	delivering bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mountOnce sync.Once
	ready     chan struct{}
	readyOnce sync.Once
}

type subscription struct {
	id uuid.UUID
	fn func(State)
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithLogger sets the logger used by the provider
func WithLogger(logger Logger) ProviderOption {
	return func(p *Provider) {
		p.loggerProvider, p.logger = ResolveLogger("authstate.provider", nil, logger)
	}
}

// WithLoggerProvider resolves the provider logger by name from lp
func WithLoggerProvider(lp LoggerProvider) ProviderOption {
	return func(p *Provider) {
		p.loggerProvider, p.logger = ResolveLogger("authstate.provider", lp, p.logger)
	}
}

// WithProfileErrorHandler registers fn to be called when a profile fetch fails.
// fn runs on the fetching goroutine, after the state has been updated.
func WithProfileErrorHandler(fn func(userID string, err error)) ProviderOption {
	return func(p *Provider) {
		p.onProfileError = fn
	}
}

// NewProvider creates a provider in the loading state. Call Mount to
// start token verification.
func NewProvider(verifier TokenVerifier, api ProfileAPI, opts ...ProviderOption) *Provider {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		verifier: verifier,
		api:      api,
		state:    initialState(),
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.logger == nil {
		p.loggerProvider, p.logger = ResolveLogger("authstate.provider", p.loggerProvider, nil)
	}

	return p
}

// Mount starts token verification. Only the first call has any effect.
// Cancelling ctx unmounts the provider: the last state stays readable but
// no further updates are applied.
func (p *Provider) Mount(ctx context.Context) {
	p.mountOnce.Do(func() {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		if ctx != nil {
			p.stopParent = context.AfterFunc(ctx, p.Unmount)
		}
		p.wg.Add(1)
		p.mu.Unlock()

		go p.validateToken()
	})
}

// Unmount cancels in-flight work, waits for it, and drops all subscribers.
// Late results are discarded. The provider cannot be mounted again.
// It is safe to call from a subscriber or the profile error handler.
func (p *Provider) Unmount() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.subs = nil
	stop := p.stopParent
	p.mu.Unlock()

	p.cancel()
	if stop != nil {
		stop()
	}
	p.wg.Wait()
	p.markReady()
}

// Ready is closed once token verification has settled, or the provider
// was unmounted.
func (p *Provider) Ready() <-chan struct{} {
	return p.ready
}

// WaitReady blocks until verification settles or ctx is done
func (p *Provider) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-p.ready:
		return p.State(), nil
	case <-ctx.Done():
		return p.State(), ctx.Err()
	}
}

// WaitSettled blocks until verification and the profile fetch it led to
// have both finished, or ctx is done.
func (p *Provider) WaitSettled(ctx context.Context) (State, error) {
	if _, err := p.WaitReady(ctx); err != nil {
		return p.State(), err
	}

	settled := make(chan State, 1)
	unsubscribe := p.Subscribe(func(s State) {
		if !s.ProfileLoading {
			select {
			case settled <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if s := p.State(); !s.ProfileLoading {
		return s, nil
	}

	select {
	case s := <-settled:
		return s, nil
	case <-ctx.Done():
		return p.State(), ctx.Err()
	case <-p.ctx.Done():
		return p.State(), p.ctx.Err()
	}
}

func (p *Provider) markReady() {
	p.readyOnce.Do(func() {
		close(p.ready)
	})
}

// Workers release wg before publishing so that Unmount called from a
// subscriber or handler does not wait on its own goroutine.
func (p *Provider) validateToken() {
	defer p.markReady()

	identity, err := verifyIdentity(p.ctx, p.verifier)
	if p.ctx.Err() != nil {
		p.wg.Done()
		p.logger.Debug("discarding token verification result, provider unmounted")
		return
	}

	if err != nil {
		p.logger.Debug("session verification failed", "error", err)
	} else {
		p.logger.Debug("session verified", "user_id", identity.ID, "role", identity.Role.String())
	}

	snapshot, ok := p.apply(func(s *State) {
		if err != nil {
			s.IsAuthenticated = false
			s.Role = RoleNone
			s.UserID = ""
		} else {
			s.IsAuthenticated = true
			s.Role = identity.Role
			s.UserID = identity.ID
		}
		s.IsLoading = false
	})
	p.wg.Done()

	if ok {
		p.publish(snapshot)
	}
}

// Login marks the session as authenticated. The caller is trusted: no
// validation and no network call happen here. The profile fetch for id
// follows from the id change.
func (p *Provider) Login(role Role, id string) {
	p.update(func(s *State) {
		s.Role = role
		s.UserID = id
		s.IsAuthenticated = true
	})
}

// Logout ends the backend session and, once the backend confirms, resets
// the local session. The profile, its loading flag and its error are cleared
// along with role, id and the authenticated flag, so a later login never
// shows the previous user's data. When the backend call fails the state is
// left as is and the failure is returned.
func (p *Provider) Logout(ctx context.Context) error {
	userID := p.UserID()

	if p.api == nil {
		return wrapError(ErrLogoutFailed, nil, map[string]any{"user_id": userID, "reason": "no backend"})
	}

	if err := p.api.Logout(ctx); err != nil {
		p.logger.Error("Logout error", "error", err)
		return wrapError(ErrLogoutFailed, err, map[string]any{"user_id": userID})
	}

	p.update(func(s *State) {
		s.IsAuthenticated = false
		s.Role = RoleNone
		s.UserID = ""
		s.Student = Profile{}
		s.ProfileLoading = false
		s.ProfileErr = nil
	})

	return nil
}

// update applies fn under the lock, starts a profile fetch when the user id
// changed, and publishes the result. Updates after Unmount are ignored.
func (p *Provider) update(fn func(*State)) {
	if snapshot, ok := p.apply(fn); ok {
		p.publish(snapshot)
	}
}

// apply is update without publishing. It reports false after Unmount.
func (p *Provider) apply(fn func(*State)) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return State{}, false
	}
	fn(&p.state)
	p.syncProfileLocked()
	p.state.Version++
	return p.state, true
}

// syncProfileLocked starts a fetch whenever the user id moves to a non-empty
// value it has not been fetched for.
func (p *Provider) syncProfileLocked() {
	id := p.state.UserID
	if id == "" {
		p.fetchedFor = ""
		return
	}
	if id == p.fetchedFor {
		return
	}
	if p.api == nil {
		return
	}

	p.fetchedFor = id
	p.fetchSeq++
	p.state.ProfileLoading = true
	p.state.ProfileErr = nil

	p.wg.Add(1)
	go p.fetchProfile(id, p.fetchSeq)
}

func (p *Provider) fetchProfile(id string, seq uint64) {
	profile, err := p.api.FetchProfile(p.ctx, id)
	if p.ctx.Err() != nil {
		p.wg.Done()
		return
	}

	p.mu.Lock()
	if p.closed || seq != p.fetchSeq || p.state.UserID != id {
		p.mu.Unlock()
		p.wg.Done()
		p.logger.Debug("discarding stale profile", "user_id", id)
		return
	}

	p.state.ProfileLoading = false
	if err != nil {
		err = wrapError(ErrProfileFetchFailed, err, map[string]any{"user_id": id})
		p.state.ProfileErr = err
	} else {
		p.state.ProfileErr = nil
		p.state.Student = Profile{
			ID:             profile.ID,
			RegistrationID: profile.RegistrationID,
			Name:           profile.Name,
			Email:          profile.Email,
			BirthDate:      profile.BirthDate,
			SupportCenter: SupportCenter{
				ID:   profile.SupportCenter.ID,
				Name: profile.SupportCenter.Name,
			},
		}
	}
	p.state.Version++
	snapshot := p.state
	handler := p.onProfileError
	p.mu.Unlock()
	p.wg.Done()

	if err != nil {
		p.logger.Error("profile fetch failed", "user_id", id, "error", err)
	}

	p.publish(snapshot)

	if err != nil && handler != nil {
		handler(id, err)
	}
}

// publish delivers snapshot to subscribers. Only one goroutine delivers at a
// time; updates arriving meanwhile, including ones made from inside a
// subscriber, are coalesced and delivered by that goroutine in version order.
func (p *Provider) publish(snapshot State) {
	p.notifyMu.Lock()
	if snapshot.Version > p.pending.Version {
		p.pending = snapshot
	}
	if p.delivering {
		p.notifyMu.Unlock()
		return
	}
	p.delivering = true

	for p.pending.Version > p.delivered {
		next := p.pending
		p.delivered = next.Version
		p.notifyMu.Unlock()

		for _, sub := range p.subscribers() {
			sub.fn(next)
		}

		p.notifyMu.Lock()
	}

	p.delivering = false
	p.notifyMu.Unlock()
}

func (p *Provider) subscribers() []subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]subscription(nil), p.subs...)
}

// Subscribe registers fn to receive a snapshot after every change.
// Subscribers are called in registration order.
func (p *Provider) Subscribe(fn func(State)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	id := uuid.New()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return func() {}
	}
	p.subs = append(p.subs, subscription{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, sub := range p.subs {
				if sub.id == id {
					p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// State returns a copy of the current state
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Student returns the current profile
func (p *Provider) Student() Profile {
	return p.State().Student
}

// Role returns the current role
func (p *Provider) Role() Role {
	return p.State().Role
}

// UserID returns the current user id, empty when unauthenticated
func (p *Provider) UserID() string {
	return p.State().UserID
}

// IsAuthenticated reports whether the session is authenticated
func (p *Provider) IsAuthenticated() bool {
	return p.State().IsAuthenticated
}

// IsLoading reports whether token verification is still pending
func (p *Provider) IsLoading() bool {
	return p.State().IsLoading
}
