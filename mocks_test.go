package authstate_test

import (
	"context"
	"sync"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/stretchr/testify/mock"
)

// MockVerifier implements authstate.TokenVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context) (authstate.VerifiedIdentity, error) {
	args := m.Called(ctx)
	return args.Get(0).(authstate.VerifiedIdentity), args.Error(1)
}

// MockProfileAPI implements authstate.ProfileAPI
type MockProfileAPI struct {
	mock.Mock
}

func (m *MockProfileAPI) FetchProfile(ctx context.Context, userID string) (authstate.Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(authstate.Profile), args.Error(1)
}

func (m *MockProfileAPI) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// gatedAPI holds every profile fetch until the test releases it
type gatedAPI struct {
	mu       sync.Mutex
	gates    map[string]chan fetchResult
	calls    []string
	started  chan string
	logoutFn func(ctx context.Context) error
}

type fetchResult struct {
	profile authstate.Profile
	err     error
}

func newGatedAPI() *gatedAPI {
	return &gatedAPI{
		gates:   map[string]chan fetchResult{},
		started: make(chan string, 16),
	}
}

func (g *gatedAPI) gate(userID string) chan fetchResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[userID]
	if !ok {
		ch = make(chan fetchResult, 1)
		g.gates[userID] = ch
	}
	return ch
}

func (g *gatedAPI) release(userID string, profile authstate.Profile, err error) {
	g.gate(userID) <- fetchResult{profile: profile, err: err}
}

func (g *gatedAPI) FetchProfile(ctx context.Context, userID string) (authstate.Profile, error) {
	g.mu.Lock()
	g.calls = append(g.calls, userID)
	g.mu.Unlock()
	g.started <- userID

	select {
	case res := <-g.gate(userID):
		return res.profile, res.err
	case <-ctx.Done():
		return authstate.Profile{}, ctx.Err()
	}
}

func (g *gatedAPI) Logout(ctx context.Context) error {
	if g.logoutFn != nil {
		return g.logoutFn(ctx)
	}
	return nil
}

func (g *gatedAPI) fetchCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) byLevel(level string) []logCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logCall
	for _, c := range l.calls {
		if c.level == level {
			out = append(out, c)
		}
	}
	return out
}

func (l *captureLogger) Trace(message string, args ...any) { l.record("trace", message, args...) }
func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }
func (l *captureLogger) Fatal(message string, args ...any) { l.record("fatal", message, args...) }
func (l *captureLogger) WithContext(context.Context) authstate.Logger {
	return l
}

type loggerProviderSpy struct {
	logger authstate.Logger
	names  []string
}

func (p *loggerProviderSpy) GetLogger(name string) authstate.Logger {
	p.names = append(p.names, name)
	return p.logger
}

func sampleProfile(id string) authstate.Profile {
	return authstate.Profile{
		ID:             id,
		RegistrationID: "RA-" + id,
		Name:           "Ana Souza",
		Email:          "ana@example.com",
		BirthDate:      "2001-04-12",
		SupportCenter: authstate.SupportCenter{
			ID:   "sc-1",
			Name: "Polo Centro",
		},
	}
}
