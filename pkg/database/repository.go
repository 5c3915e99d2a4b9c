package database

import (
	"time"

	"github.com/echotype/echotype/pkg/commands"
	"github.com/echotype/echotype/pkg/phrases"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PhraseRepository persists custom phrase mappings. It implements
// phrases.Repository.
type PhraseRepository struct {
	db *gorm.DB
}

// NewPhraseRepository creates a new phrase repository
func NewPhraseRepository(db *gorm.DB) *PhraseRepository {
	return &PhraseRepository{db: db}
}

// LoadAll returns every stored custom mapping
func (r *PhraseRepository) LoadAll() ([]phrases.Mapping, error) {
	var rows []VoicePhrase
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	mappings := make([]phrases.Mapping, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, phrases.Mapping{
			Command:   commands.Code(row.Command),
			Phrase:    row.Phrase,
			CreatedAt: row.CreatedAt,
		})
	}
	return mappings, nil
}

// Save upserts the mapping for a command
func (r *PhraseRepository) Save(m phrases.Mapping) error {
	row := VoicePhrase{
		Command:   string(m.Command),
		Phrase:    m.Phrase,
		CreatedAt: m.CreatedAt,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "command"}},
		DoUpdates: clause.AssignmentColumns([]string{"phrase", "updated_at"}),
	}).Create(&row).Error
}

// Delete removes the mapping for a command
func (r *PhraseRepository) Delete(command commands.Code) error {
	return r.db.Delete(&VoicePhrase{}, "command = ?", string(command)).Error
}

// HistoryRepository handles dictation history operations
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create adds a history entry
func (r *HistoryRepository) Create(entry *HistoryEntry) error {
	return r.db.Create(entry).Error
}

// GetRecent retrieves the most recent N entries
func (r *HistoryRepository) GetRecent(limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := r.db.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// GetRecentPaginated retrieves entries with pagination
func (r *HistoryRepository) GetRecentPaginated(page, perPage int) ([]HistoryEntry, int64, error) {
	var entries []HistoryEntry
	var total int64

	if err := r.db.Model(&HistoryEntry{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	err := r.db.Order("created_at DESC").
		Offset(offset).
		Limit(perPage).
		Find(&entries).Error

	return entries, total, err
}

// GetBySession retrieves entries for a dictation session
func (r *HistoryRepository) GetBySession(sessionID string, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// DeleteOlderThan deletes entries older than the given time
func (r *HistoryRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&HistoryEntry{})
	return result.RowsAffected, result.Error
}

// DeviceRepository handles paired device records
type DeviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert records a device pairing, updating the name on re-pair
func (r *DeviceRepository) Upsert(device *PairedDevice) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_name", "last_seen_at"}),
	}).Create(device).Error
}

// TouchLastSeen updates the last-seen timestamp for a device
func (r *DeviceRepository) TouchLastSeen(deviceID string, at time.Time) error {
	return r.db.Model(&PairedDevice{}).
		Where("device_id = ?", deviceID).
		Update("last_seen_at", at).Error
}

// Get retrieves one device record
func (r *DeviceRepository) Get(deviceID string) (*PairedDevice, error) {
	var device PairedDevice
	err := r.db.First(&device, "device_id = ?", deviceID).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// List retrieves all paired devices, most recently seen first
func (r *DeviceRepository) List() ([]PairedDevice, error) {
	var devices []PairedDevice
	err := r.db.Order("last_seen_at DESC").Find(&devices).Error
	return devices, err
}

// Delete removes a device record
func (r *DeviceRepository) Delete(deviceID string) error {
	return r.db.Delete(&PairedDevice{}, "device_id = ?", deviceID).Error
}
