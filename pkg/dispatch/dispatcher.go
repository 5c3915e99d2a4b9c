package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/echotype/echotype/pkg/commands"
	"github.com/echotype/echotype/pkg/database"
	"github.com/echotype/echotype/pkg/input"
	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/metrics"
	"github.com/echotype/echotype/pkg/phrases"
	"github.com/echotype/echotype/pkg/session"
)

// FlushInterval is the word buffer flush cadence. It must stay strictly
// shorter than the look-ahead timeout to bound two-word command latency.
const FlushInterval = commands.LookAheadTimeout / 2

// HistoryStore persists dictation history. *database.HistoryRepository
// satisfies it; nil disables history.
type HistoryStore interface {
	Create(entry *database.HistoryEntry) error
}

// DeviceStore persists paired devices. *database.DeviceRepository satisfies
// it; nil disables device persistence.
type DeviceStore interface {
	Upsert(device *database.PairedDevice) error
	TouchLastSeen(deviceID string, at time.Time) error
}

// Dispatcher is the single event-processing actor. It exclusively owns the
// word buffer, the matcher and the recording state: all connection events
// funnel through one channel into one goroutine, so transport callbacks
// never touch shared mutable dictation state.
type Dispatcher struct {
	events   <-chan session.Event
	matcher  *commands.Matcher
	buffer   *commands.WordBuffer
	injector input.Injector
	phrases  *phrases.Store
	history  HistoryStore
	devices  DeviceStore
	metrics  *metrics.Collector
	log      *logger.Logger

	// recording mode: the next TEXT message becomes a custom phrase
	recordingMu  sync.Mutex
	recordingFor *commands.Code

	// eventHook is invoked for every consumed event (the web layer's
	// broadcast). Runs on the dispatch goroutine; must not block.
	eventHook func(session.Event)
}

// New creates a dispatcher consuming the given event channel
func New(events <-chan session.Event, matcher *commands.Matcher, buffer *commands.WordBuffer, injector input.Injector, store *phrases.Store, log *logger.Logger, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		events:   events,
		matcher:  matcher,
		buffer:   buffer,
		injector: injector,
		phrases:  store,
		metrics:  collector,
		log:      log.WithComponent("dispatch"),
	}
}

// WithHistory enables dictation history persistence
func (d *Dispatcher) WithHistory(store HistoryStore) *Dispatcher {
	d.history = store
	return d
}

// WithDevices enables paired device persistence
func (d *Dispatcher) WithDevices(store DeviceStore) *Dispatcher {
	d.devices = store
	return d
}

// SetEventHook sets the per-event callback used for UI broadcasting
func (d *Dispatcher) SetEventHook(hook func(session.Event)) {
	d.eventHook = hook
}

// StartRecording arms recording mode: the next TEXT message is stored as
// the custom phrase for the given command instead of being typed.
func (d *Dispatcher) StartRecording(code commands.Code) {
	d.recordingMu.Lock()
	defer d.recordingMu.Unlock()
	d.recordingFor = &code

	d.log.Info("phrase recording armed", logger.String("command", string(code)))
}

// CancelRecording disarms recording mode
func (d *Dispatcher) CancelRecording() {
	d.recordingMu.Lock()
	defer d.recordingMu.Unlock()
	d.recordingFor = nil
}

// Recording returns the command being recorded for, if any
func (d *Dispatcher) Recording() (commands.Code, bool) {
	d.recordingMu.Lock()
	defer d.recordingMu.Unlock()

	if d.recordingFor == nil {
		return "", false
	}
	return *d.recordingFor, true
}

// takeRecording disarms and returns the armed command atomically
func (d *Dispatcher) takeRecording() (commands.Code, bool) {
	d.recordingMu.Lock()
	defer d.recordingMu.Unlock()

	if d.recordingFor == nil {
		return "", false
	}
	code := *d.recordingFor
	d.recordingFor = nil
	return code, true
}

// Run consumes events until the context ends. The flush ticker runs here
// too, so every mutation of the word buffer happens on this goroutine.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	d.log.Info("dispatcher running")

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopping")
			return ctx.Err()
		case ev := <-d.events:
			d.handleEvent(ev)
		case <-ticker.C:
			d.flush()
		}
	}
}

func (d *Dispatcher) handleEvent(ev session.Event) {
	switch ev.Type {
	case session.EventConnected:
		d.buffer.Reset()
		d.rememberDevice(ev.DeviceID, ev.DeviceName)
	case session.EventDisconnected:
		d.buffer.Reset()
	case session.EventTextReceived:
		d.handleText(ev)
	case session.EventWordReceived:
		d.handleWord(ev)
	case session.EventCommandReceived:
		d.handleCommand(ev)
	case session.EventPairRequested, session.EventError:
		// Broadcast only; the approval surface acts on these
	}

	if d.eventHook != nil {
		d.eventHook(ev)
	}
}

// handleText resolves a full dictated utterance: recording mode captures
// it, otherwise command words execute and everything else is typed with
// its original spacing.
func (d *Dispatcher) handleText(ev session.Event) {
	if code, armed := d.takeRecording(); armed {
		if err := d.phrases.Set(code, ev.Text); err != nil {
			d.log.Warn("failed to record phrase", logger.Error(err))
			return
		}
		d.log.Info("custom phrase recorded",
			logger.String("command", string(code)))
		return
	}

	result := d.matcher.Match(ev.Text)
	switch result.Kind {
	case commands.MatchNone:
		d.typeText(ev, ev.Text)
	case commands.MatchExact:
		d.executeCommand(ev, result.Exact)
	case commands.MatchSegments:
		for _, segment := range result.Segments {
			if segment.IsCommand {
				d.executeCommand(ev, segment.Command)
			} else {
				d.typeText(ev, segment.Text)
			}
		}
	}
	d.touchDevice(ev.DeviceID)
}

func (d *Dispatcher) handleWord(ev session.Event) {
	hadPending := d.buffer.HasPending()
	items := d.buffer.ProcessWord(ev.Word.Word, ev.Word.Session)
	if len(items) == 0 && d.buffer.HasPending() && !hadPending {
		d.metrics.WordBuffered()
	}
	d.applyItems(ev, items)
	d.touchDevice(ev.DeviceID)
}

func (d *Dispatcher) handleCommand(ev session.Event) {
	code, ok := commands.ParseCode(ev.Command)
	if !ok {
		d.log.Warn("unknown command code", logger.String("command", ev.Command))
		return
	}
	d.executeCommand(ev, code)
	d.touchDevice(ev.DeviceID)
}

func (d *Dispatcher) flush() {
	items := d.buffer.FlushPending(commands.LookAheadTimeout)
	if len(items) == 0 {
		return
	}
	d.metrics.WordFlushed()
	d.applyItems(session.Event{}, items)
}

func (d *Dispatcher) applyItems(ev session.Event, items []commands.Item) {
	for _, item := range items {
		if item.IsCommand {
			d.executeCommand(ev, item.Command)
		} else {
			d.typeText(ev, item.Text)
		}
	}
}

func (d *Dispatcher) typeText(ev session.Event, text string) {
	if text == "" {
		return
	}
	if err := d.injector.TypeText(text); err != nil {
		d.log.Warn("text injection failed", logger.Error(err))
		return
	}
	d.metrics.TextTyped()
	d.recordHistory(database.EntryText, text, ev)
}

func (d *Dispatcher) executeCommand(ev session.Event, code commands.Code) {
	if err := commands.Execute(code, d.injector); err != nil {
		d.log.Warn("command execution failed",
			logger.String("command", string(code)),
			logger.Error(err))
		return
	}
	d.metrics.CommandExecuted()
	d.log.Debug("command executed", logger.String("command", string(code)))
	d.recordHistory(database.EntryCommand, string(code), ev)
}

func (d *Dispatcher) recordHistory(kind, content string, ev session.Event) {
	if d.history == nil {
		return
	}
	entry := &database.HistoryEntry{
		Kind:      kind,
		Content:   content,
		DeviceID:  ev.DeviceID,
		SessionID: ev.Word.Session,
	}
	if err := d.history.Create(entry); err != nil {
		d.log.Warn("failed to record history", logger.Error(err))
	}
}

func (d *Dispatcher) rememberDevice(deviceID, deviceName string) {
	if d.devices == nil || deviceID == "" {
		return
	}
	err := d.devices.Upsert(&database.PairedDevice{
		DeviceID:   deviceID,
		DeviceName: deviceName,
		LastSeenAt: time.Now(),
	})
	if err != nil {
		d.log.Warn("failed to persist paired device", logger.Error(err))
	}
}

func (d *Dispatcher) touchDevice(deviceID string) {
	if d.devices == nil || deviceID == "" {
		return
	}
	if err := d.devices.TouchLastSeen(deviceID, time.Now()); err != nil {
		d.log.Warn("failed to update device last seen", logger.Error(err))
	}
}
