package metrics

import (
	"sync"
)

// Collector collects EchoType metrics
type Collector struct {
	mu sync.RWMutex

	// Connection metrics
	totalConnections  uint64
	activeConnections map[string]bool

	// Message metrics by type
	messagesReceived map[string]uint64
	messagesSent     map[string]uint64

	// Drop metrics
	framingDrops   uint64
	decodeDrops    uint64
	integrityDrops uint64
	decryptDrops   uint64
	preAuthDrops   uint64

	// Pairing metrics
	pairRequests  uint64
	pairApprovals uint64
	pairRejects   uint64

	// Dictation metrics
	wordsBuffered    uint64
	wordsFlushed     uint64
	textTyped        uint64
	commandsExecuted uint64
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		activeConnections: make(map[string]bool),
		messagesReceived:  make(map[string]uint64),
		messagesSent:      make(map[string]uint64),
	}
}

// ConnectionOpened records a new transport connection
func (c *Collector) ConnectionOpened(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalConnections++
	c.activeConnections[connID] = true
}

// ConnectionClosed records a connection teardown
func (c *Collector) ConnectionClosed(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.activeConnections, connID)
}

// MessageReceived records a received message by type
func (c *Collector) MessageReceived(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messagesReceived[msgType]++
}

// MessageSent records a sent message by type
func (c *Collector) MessageSent(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messagesSent[msgType]++
}

// FramingDrop records a packet discarded by the reassembler
func (c *Collector) FramingDrop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.framingDrops++
}

// DecodeDrop records a malformed envelope
func (c *Collector) DecodeDrop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.decodeDrops++
}

// IntegrityDrop records a checksum mismatch
func (c *Collector) IntegrityDrop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.integrityDrops++
}

// DecryptDrop records a decryption failure
func (c *Collector) DecryptDrop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.decryptDrops++
}

// PreAuthDrop records a sensitive message discarded before authentication
func (c *Collector) PreAuthDrop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.preAuthDrops++
}

// PairRequested records an incoming pairing request
func (c *Collector) PairRequested() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pairRequests++
}

// PairApproved records an approved pairing
func (c *Collector) PairApproved() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pairApprovals++
}

// PairRejected records a rejected pairing
func (c *Collector) PairRejected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pairRejects++
}

// WordBuffered records a word held for two-word look-ahead
func (c *Collector) WordBuffered() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wordsBuffered++
}

// WordFlushed records a buffered word flushed by timeout
func (c *Collector) WordFlushed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wordsFlushed++
}

// TextTyped records one text injection
func (c *Collector) TextTyped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.textTyped++
}

// CommandExecuted records one executed voice command
func (c *Collector) CommandExecuted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commandsExecuted++
}

// Reset resets per-connection state (useful for testing)
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeConnections = make(map[string]bool)
	// Cumulative counters are intentionally kept
}

// Getters for metrics

// GetTotalConnections returns total connections accepted
func (c *Collector) GetTotalConnections() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalConnections
}

// GetActiveConnections returns the number of live connections
func (c *Collector) GetActiveConnections() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.activeConnections)
}

// GetMessagesReceived returns received message count for a type
func (c *Collector) GetMessagesReceived(msgType string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messagesReceived[msgType]
}

// GetMessagesSent returns sent message count for a type
func (c *Collector) GetMessagesSent(msgType string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messagesSent[msgType]
}

// MessageTypesSeen returns every message type with traffic in either direction
func (c *Collector) MessageTypesSeen() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	for t := range c.messagesReceived {
		seen[t] = true
	}
	for t := range c.messagesSent {
		seen[t] = true
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	return types
}

// GetFramingDrops returns reassembler discards
func (c *Collector) GetFramingDrops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.framingDrops
}

// GetDecodeDrops returns malformed envelope drops
func (c *Collector) GetDecodeDrops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.decodeDrops
}

// GetIntegrityDrops returns checksum mismatch drops
func (c *Collector) GetIntegrityDrops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.integrityDrops
}

// GetDecryptDrops returns decryption failure drops
func (c *Collector) GetDecryptDrops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.decryptDrops
}

// GetPreAuthDrops returns pre-authentication drops
func (c *Collector) GetPreAuthDrops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preAuthDrops
}

// GetPairRequests returns total pairing requests
func (c *Collector) GetPairRequests() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pairRequests
}

// GetPairApprovals returns total approved pairings
func (c *Collector) GetPairApprovals() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pairApprovals
}

// GetPairRejects returns total rejected pairings
func (c *Collector) GetPairRejects() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pairRejects
}

// GetWordsBuffered returns words held for look-ahead
func (c *Collector) GetWordsBuffered() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wordsBuffered
}

// GetWordsFlushed returns words flushed by timeout
func (c *Collector) GetWordsFlushed() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wordsFlushed
}

// GetTextTyped returns total text injections
func (c *Collector) GetTextTyped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.textTyped
}

// GetCommandsExecuted returns total executed commands
func (c *Collector) GetCommandsExecuted() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commandsExecuted
}
