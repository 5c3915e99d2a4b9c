package session

import (
	"sync"
	"time"
)

// Manager tracks the active device connection. Only one device session is
// live at a time; a new physical connection replaces the previous one as
// the target of approval calls.
type Manager struct {
	mu      sync.RWMutex
	current *Connection
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{}
}

// SetCurrent makes conn the connection approval calls act on
func (m *Manager) SetCurrent(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = conn
}

// ClearCurrent forgets conn if it is still the active one
func (m *Manager) ClearCurrent(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == conn {
		m.current = nil
	}
}

// Current returns the active connection, or nil
func (m *Manager) Current() *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Approve approves the pending pairing on the active connection
func (m *Manager) Approve() error {
	conn := m.Current()
	if conn == nil {
		return ErrNoPendingPairing
	}
	return conn.Approve()
}

// Reject rejects the pending pairing on the active connection
func (m *Manager) Reject(reason string) error {
	conn := m.Current()
	if conn == nil {
		return ErrNoPendingPairing
	}
	return conn.Reject(reason)
}

// Status is a point-in-time snapshot of the active session
type Status struct {
	Connected   bool       `json:"connected"`
	State       string     `json:"state"`
	DeviceID    string     `json:"device_id,omitempty"`
	PendingPair *PairBrief `json:"pending_pair,omitempty"`
}

// PairBrief summarizes a pending pairing request for status reporting
type PairBrief struct {
	DeviceID    string    `json:"device_id"`
	DeviceName  string    `json:"device_name,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Status reports the state of the active connection
func (m *Manager) Status() Status {
	conn := m.Current()
	if conn == nil {
		return Status{State: StateDisconnected.String()}
	}

	status := Status{
		Connected: true,
		State:     conn.State().String(),
		DeviceID:  conn.PeerID(),
	}
	if pending := conn.Pending(); pending != nil {
		status.PendingPair = &PairBrief{
			DeviceID:    pending.DeviceID,
			DeviceName:  pending.DeviceName,
			RequestedAt: pending.RequestedAt,
		}
	}
	return status
}
