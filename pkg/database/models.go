package database

import (
	"time"

	"gorm.io/gorm"
)

// VoicePhrase is a persisted custom phrase mapping for a command
type VoicePhrase struct {
	Command   string    `gorm:"primarykey;size:20" json:"command"`
	Phrase    string    `gorm:"index;size:100;not null" json:"phrase"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for VoicePhrase
func (VoicePhrase) TableName() string {
	return "voice_phrases"
}

// History entry kinds
const (
	EntryText    = "text"
	EntryCommand = "command"
)

// HistoryEntry records one piece of dictated text or one executed command
type HistoryEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Kind      string    `gorm:"index;size:10;not null" json:"kind"`
	Content   string    `gorm:"not null" json:"content"`
	DeviceID  string    `gorm:"index;size:64" json:"device_id"`
	SessionID string    `gorm:"index;size:64" json:"session_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for HistoryEntry
func (HistoryEntry) TableName() string {
	return "history_entries"
}

// BeforeCreate hook to ensure CreatedAt is set
func (h *HistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	return nil
}

// PairedDevice records a mobile device that completed pairing
type PairedDevice struct {
	DeviceID   string    `gorm:"primarykey;size:64" json:"device_id"`
	DeviceName string    `gorm:"size:100" json:"device_name"`
	PairedAt   time.Time `gorm:"not null" json:"paired_at"`
	LastSeenAt time.Time `gorm:"index" json:"last_seen_at"`
}

// TableName specifies the table name for PairedDevice
func (PairedDevice) TableName() string {
	return "paired_devices"
}

// BeforeCreate hook to ensure PairedAt is set
func (p *PairedDevice) BeforeCreate(tx *gorm.DB) error {
	if p.PairedAt.IsZero() {
		p.PairedAt = time.Now()
	}
	if p.LastSeenAt.IsZero() {
		p.LastSeenAt = p.PairedAt
	}
	return nil
}
