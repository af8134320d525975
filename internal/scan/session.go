package scan

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/gradecart/gradecart/internal/errors"
)

// KV is the durable key-value capability the session state is mirrored to.
// The manager treats it as best-effort: a failing store degrades the app to
// in-memory operation instead of failing requests.
type KV interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

// HistorySink receives finalized list snapshots
type HistorySink interface {
	Append(entry HistoryEntry) error
	List(limit int) ([]HistoryEntry, error)
}

const (
	keyScannedItems = "scannedItems"
	keySchoolInfo   = "schoolInfo"
)

// ItemPatch is a partial update to a cart item; nil fields are untouched
type ItemPatch struct {
	InCart   *bool `json:"inCart"`
	Quantity *int  `json:"quantity"`
}

// Manager owns the single active scanning session. All mutation goes
// through it under one lock, so handlers never share mutable state.
type Manager struct {
	mu      sync.Mutex
	school  SchoolInfo
	items   []CartItem
	pending *Resolution
	kv      KV
	history HistorySink
	logger  *zap.Logger
}

// NewManager creates a session manager and restores any persisted session
func NewManager(kv KV, history HistorySink, logger *zap.Logger) *Manager {
	m := &Manager{
		kv:      kv,
		history: history,
		logger:  logger,
	}
	m.restore()
	return m
}

func (m *Manager) restore() {
	if m.kv == nil {
		return
	}
	if data, err := m.kv.Get(keyScannedItems); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &m.items); err != nil {
			m.logger.Warn("Discarding unreadable persisted items", zap.Error(err))
			m.items = nil
		}
	}
	if data, err := m.kv.Get(keySchoolInfo); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &m.school); err != nil {
			m.logger.Warn("Discarding unreadable persisted school info", zap.Error(err))
			m.school = SchoolInfo{}
		}
	}
	if len(m.items) > 0 {
		m.logger.Info("Restored session", zap.Int("items", len(m.items)))
	}
}

// persist mirrors the current session to the KV store, best effort
func (m *Manager) persist() {
	if m.kv == nil {
		return
	}
	if data, err := json.Marshal(m.items); err == nil {
		if err := m.kv.Set(keyScannedItems, data); err != nil {
			m.logger.Warn("Failed to persist items", zap.Error(err))
		}
	}
	if data, err := json.Marshal(m.school); err == nil {
		if err := m.kv.Set(keySchoolInfo, data); err != nil {
			m.logger.Warn("Failed to persist school info", zap.Error(err))
		}
	}
}

// BeginResolution stages an extraction result awaiting grade selection
func (m *Manager) BeginResolution(res *Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = res
}

// PendingOptions lists the grade choices of the staged extraction
func (m *Manager) PendingOptions() ([]GradeOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil, apperrors.ErrNoActiveScan
	}
	return m.pending.Options(), nil
}

// SelectPending picks a grade from the staged extraction and activates it.
// An out-of-range index leaves the staged extraction untouched so the
// shopper can pick again.
func (m *Manager) SelectPending(index int) ([]CartItem, SchoolInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return nil, SchoolInfo{}, apperrors.ErrNoActiveScan
	}

	list, err := m.pending.Select(index)
	if err != nil {
		return nil, SchoolInfo{}, err
	}

	result := m.pending.Result()
	m.school = SchoolInfo{
		SchoolName:  result.SchoolName,
		Grade:       list.Grade,
		TeacherName: result.TeacherName,
		Year:        result.Year,
	}
	m.items = Normalize(list)
	m.pending = nil
	m.persist()
	m.appendHistory()

	return m.copyItems(), m.school, nil
}

// Activate replaces the session with a freshly normalized list
func (m *Manager) Activate(school SchoolInfo, items []CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.school = school
	m.items = make([]CartItem, len(items))
	copy(m.items, items)
	m.pending = nil
	m.persist()
	m.appendHistory()
}

func (m *Manager) appendHistory() {
	if m.history == nil || len(m.items) == 0 {
		return
	}
	entry := HistoryEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		SchoolName:  m.school.SchoolName,
		Grade:       m.school.Grade,
		TeacherName: m.school.TeacherName,
		Year:        m.school.Year,
		ItemCount:   len(m.items),
		Items:       m.copyItems(),
	}
	if err := m.history.Append(entry); err != nil {
		m.logger.Warn("Failed to record list history", zap.Error(err))
	}
}

// Items returns a copy of the active cart candidates
func (m *Manager) Items() []CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyItems()
}

// School returns the active session's school record
func (m *Manager) School() SchoolInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.school
}

// UpdateItem applies a partial update to one item by local id
func (m *Manager) UpdateItem(id string, patch ItemPatch) (CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.items {
		if m.items[i].ID != id {
			continue
		}
		if patch.InCart != nil {
			m.items[i].InCart = *patch.InCart
		}
		if patch.Quantity != nil {
			quantity := *patch.Quantity
			if quantity < 1 {
				quantity = 1
			}
			m.items[i].RequestedQuantity = quantity
		}
		m.persist()
		return m.items[i], nil
	}
	return CartItem{}, apperrors.New(apperrors.ErrNotFound.Code, "item not found: "+id)
}

// SetMatched overwrites the active items with their catalog-matched forms
func (m *Manager) SetMatched(items []CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]CartItem, len(items))
	copy(m.items, items)
	m.persist()
}

// Selected returns the items currently marked for purchase
func (m *Manager) Selected() []CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	selected := make([]CartItem, 0, len(m.items))
	for _, item := range m.items {
		if item.InCart {
			selected = append(selected, item)
		}
	}
	return selected
}

// Reset clears the session and its persisted mirror
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = nil
	m.school = SchoolInfo{}
	m.pending = nil
	if m.kv != nil {
		if err := m.kv.Delete(keyScannedItems); err != nil {
			m.logger.Warn("Failed to clear persisted items", zap.Error(err))
		}
		if err := m.kv.Delete(keySchoolInfo); err != nil {
			m.logger.Warn("Failed to clear persisted school info", zap.Error(err))
		}
	}
}

// History returns the most recent finalized lists
func (m *Manager) History(limit int) ([]HistoryEntry, error) {
	if m.history == nil {
		return nil, apperrors.ErrStorageUnavailable
	}
	return m.history.List(limit)
}

func (m *Manager) copyItems() []CartItem {
	items := make([]CartItem, len(m.items))
	copy(items, m.items)
	return items
}
