package testhelpers

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/echotype/echotype/pkg/commands"
	"github.com/echotype/echotype/pkg/dispatch"
	"github.com/echotype/echotype/pkg/input"
	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/metrics"
	"github.com/echotype/echotype/pkg/network"
	"github.com/echotype/echotype/pkg/phrases"
	"github.com/echotype/echotype/pkg/session"
)

// DesktopID is the device identity used by test daemons
const DesktopID = "desktop-test"

// IntegrationSuite wires a full daemon pipeline against ephemeral ports:
// transport server, session manager, dispatcher and a capturing injector.
type IntegrationSuite struct {
	T         *testing.T
	Logger    *logger.Logger
	Ctx       context.Context
	Cancel    context.CancelFunc
	Manager   *session.Manager
	Metrics   *metrics.Collector
	Phrases   *phrases.Store
	Injector  *CapturingInjector
	Server    *network.Server
	Dispatch  *dispatch.Dispatcher
	MockPhone *MockPhone
}

// CapturingInjector records injected input instead of performing it
type CapturingInjector struct {
	mu    sync.Mutex
	typed []string
	keys  []input.Key
	ch    chan struct{}
}

// NewCapturingInjector creates an empty capturing injector
func NewCapturingInjector() *CapturingInjector {
	return &CapturingInjector{ch: make(chan struct{}, 64)}
}

// TypeText records typed text
func (c *CapturingInjector) TypeText(text string) error {
	c.mu.Lock()
	c.typed = append(c.typed, text)
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

// PressKey records a key press
func (c *CapturingInjector) PressKey(key input.Key) error {
	c.mu.Lock()
	c.keys = append(c.keys, key)
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

// KeyCombo records a modifier combination
func (c *CapturingInjector) KeyCombo(mods []input.Modifier, key input.Key) error {
	c.mu.Lock()
	c.keys = append(c.keys, key)
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

// Typed returns recorded text injections
func (c *CapturingInjector) Typed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.typed...)
}

// Keys returns recorded key injections
func (c *CapturingInjector) Keys() []input.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]input.Key(nil), c.keys...)
}

// WaitForInjection blocks until one injection happens or the timeout expires
func (c *CapturingInjector) WaitForInjection(timeout time.Duration) bool {
	select {
	case <-c.ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// NewIntegrationSuite builds and starts the pipeline. Components run until
// Cleanup is called.
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	log := logger.New(logger.Config{Level: "error", Output: io.Discard})

	store, err := phrases.NewStore(nil, log)
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	matcher := commands.NewMatcher(store, log)
	buffer := commands.NewWordBuffer(matcher, log)
	injector := NewCapturingInjector()
	collector := metrics.NewCollector()
	manager := session.NewManager()
	events := make(chan session.Event, 64)

	dispatcher := dispatch.New(events, matcher, buffer, injector, store, log, collector)
	go func() { _ = dispatcher.Run(ctx) }()

	server := network.NewServer(
		network.Config{Host: "127.0.0.1", Port: 0},
		DesktopID, manager, events, collector, log,
	)
	go func() { _ = server.Start(ctx) }()

	select {
	case <-server.Started():
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("transport server did not start")
	}

	return &IntegrationSuite{
		T:        t,
		Logger:   log,
		Ctx:      ctx,
		Cancel:   cancel,
		Manager:  manager,
		Metrics:  collector,
		Phrases:  store,
		Injector: injector,
		Server:   server,
		Dispatch: dispatcher,
	}
}

// ConnectPhone dials the transport with a fresh mock phone
func (s *IntegrationSuite) ConnectPhone(deviceID, deviceName string) *MockPhone {
	s.T.Helper()
	phone := NewMockPhone(deviceID, deviceName)
	if err := phone.Connect(s.Server.Addr().String()); err != nil {
		s.T.Fatalf("connect phone: %v", err)
	}
	s.MockPhone = phone
	return phone
}

// PairPhone runs the full handshake, approving on the desktop side once the
// pairing request lands.
func (s *IntegrationSuite) PairPhone(deviceID, deviceName string) *MockPhone {
	s.T.Helper()
	phone := s.ConnectPhone(deviceID, deviceName)
	err := phone.Pair(func() error {
		if !s.WaitFor(func() bool {
			return s.Manager.Status().PendingPair != nil
		}, 2*time.Second, "pairing request pending") {
			s.T.Fatal("pairing request never arrived")
		}
		return s.Manager.Approve()
	})
	if err != nil {
		s.T.Fatalf("pairing failed: %v", err)
	}
	return phone
}

// Cleanup tears down the pipeline
func (s *IntegrationSuite) Cleanup() {
	if s.MockPhone != nil {
		_ = s.MockPhone.Close()
	}
	s.Cancel()
}

// WaitFor polls a condition until it holds or the timeout expires
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}

// AssertEventually fails the test if the condition never holds
func (s *IntegrationSuite) AssertEventually(condition func() bool, timeout time.Duration, message string) {
	if !s.WaitFor(condition, timeout, message) {
		s.T.Errorf("Assertion failed: %s", message)
	}
}
