// Package audit records every state-changing ledger and marketplace
// operation to an append-only trail. The trail is observability only:
// the authoritative state lives in the services, and a failed audit
// write never fails the operation.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, actor string, action Action, payload any)
}

// GormRecorder persists entries through gorm.
type GormRecorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormRecorder creates a recorder writing to db and migrates the
// audit table.
func NewGormRecorder(db *gorm.DB, logger *zap.Logger) (*GormRecorder, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &GormRecorder{db: db, logger: logger}, nil
}

// Record appends one entry. Failures are logged and swallowed.
func (r *GormRecorder) Record(ctx context.Context, actor string, action Action, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("Failed to encode audit payload",
			zap.String("action", string(action)),
			zap.Error(err))
		return
	}
	entry := &Entry{
		ID:        uuid.New(),
		Actor:     actor,
		Action:    action,
		Payload:   raw,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.Warn("Failed to write audit entry",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// MemoryRecorder keeps entries in memory. Used in tests and when the
// service runs without a database.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends one entry.
func (r *MemoryRecorder) Record(_ context.Context, actor string, action Action, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{
		ID:        uuid.New(),
		Actor:     actor,
		Action:    action,
		Payload:   raw,
		CreatedAt: time.Now(),
	})
}

// Entries returns a copy of the recorded entries.
func (r *MemoryRecorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
