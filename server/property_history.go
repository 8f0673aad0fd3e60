package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"msiec-ctl/protocol"
)

// ChangeOrigin identifies how a history entry was produced.
type ChangeOrigin string

const (
	// ChangeOriginNotification indicates that the entry came from a monitor change notification.
	ChangeOriginNotification ChangeOrigin = "notification"
	// ChangeOriginSet indicates that the entry came from a successful set_properties operation.
	ChangeOriginSet ChangeOrigin = "set"
)

// PropertyChangeRecord represents a single history item for a property.
type PropertyChangeRecord struct {
	Time     time.Time              `json:"time"`
	Property protocol.PropertyData  `json:"property"`
	Previous *protocol.PropertyData `json:"previous,omitempty"`
	Origin   ChangeOrigin           `json:"origin"`
}

// HistoryQuery specifies filters applied when fetching history entries.
type HistoryQuery struct {
	Name  string // Property name (empty = all properties)
	Since time.Time
	Limit int
}

// HistoryOptions configures the behaviour of the history store.
type HistoryOptions struct {
	PerPropertyLimit int
	HistoryFilePath  string // Path to history file for persistence (empty = disabled)
}

// DefaultHistoryOptions returns the default options used when none are provided.
func DefaultHistoryOptions() HistoryOptions {
	return HistoryOptions{
		PerPropertyLimit: 200,
		HistoryFilePath:  "",
	}
}

// PropertyHistoryStore keeps an in-memory log of property changes, keyed by
// property name. Each property keeps at most perPropertyLimit entries.
type PropertyHistoryStore struct {
	mu               sync.RWMutex
	perPropertyLimit int
	data             map[string][]PropertyChangeRecord
	now              func() time.Time
}

// NewPropertyHistoryStore constructs an in-memory store.
func NewPropertyHistoryStore(opts HistoryOptions) *PropertyHistoryStore {
	options := DefaultHistoryOptions()
	if opts.PerPropertyLimit > 0 {
		options.PerPropertyLimit = opts.PerPropertyLimit
	}

	return &PropertyHistoryStore{
		perPropertyLimit: options.PerPropertyLimit,
		data:             make(map[string][]PropertyChangeRecord),
		now:              time.Now,
	}
}

// Record appends an entry for rec.Property.Name, dropping the oldest entries
// once the per-property cap is exceeded.
func (s *PropertyHistoryStore) Record(rec PropertyChangeRecord) {
	name := rec.Property.Name
	if name == "" {
		return
	}
	if rec.Time.IsZero() {
		rec.Time = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.data[name], rec)
	if limit := s.perPropertyLimit; limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	s.data[name] = entries
}

// Query returns matching entries ordered newest first.
func (s *PropertyHistoryStore) Query(query HistoryQuery) []PropertyChangeRecord {
	s.mu.RLock()
	var entries []PropertyChangeRecord
	if query.Name != "" {
		entries = append(entries, s.data[query.Name]...)
	} else {
		for _, propEntries := range s.data {
			entries = append(entries, propEntries...)
		}
	}
	s.mu.RUnlock()

	if len(entries) == 0 {
		return nil
	}

	// 各プロパティのログは時系列順なので、全体を新しい順に並べ替える
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.After(entries[j].Time)
	})

	limit := query.Limit
	if limit <= 0 {
		limit = len(entries)
	}

	result := make([]PropertyChangeRecord, 0, min(limit, len(entries)))
	for _, entry := range entries {
		if !query.Since.IsZero() && entry.Time.Before(query.Since) {
			continue
		}
		result = append(result, entry)
		if len(result) >= limit {
			break
		}
	}

	return result
}

// Clear removes all entries for the given property name.
func (s *PropertyHistoryStore) Clear(name string) {
	s.mu.Lock()
	delete(s.data, name)
	s.mu.Unlock()
}

// PerPropertyLimit returns the configured per-property entry cap.
func (s *PropertyHistoryStore) PerPropertyLimit() int {
	return s.perPropertyLimit
}

// IsDuplicateOfSet checks if there is a recent set entry for the same property
// and value. The monitor notices register changes made through set_properties
// as well, so without this check every set would be recorded twice.
func (s *PropertyHistoryStore) IsDuplicateOfSet(value protocol.PropertyData, within time.Duration) bool {
	s.mu.RLock()
	entries, ok := s.data[value.Name]
	s.mu.RUnlock()

	if !ok || len(entries) == 0 {
		return false
	}

	cutoff := s.now().Add(-within)

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.Time.Before(cutoff) {
			break
		}
		if entry.Origin == ChangeOriginSet && propertyDataEqual(entry.Property, value) {
			return true
		}
	}

	return false
}

// propertyDataEqual compares two PropertyData values for equality
func propertyDataEqual(a, b protocol.PropertyData) bool {
	if a.Name != b.Name || a.Value != b.Value || a.Raw != b.Raw {
		return false
	}
	if (a.Number == nil) != (b.Number == nil) {
		return false
	}
	if a.Number != nil && b.Number != nil && *a.Number != *b.Number {
		return false
	}
	return a.Known == b.Known
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// HistoryLoadFilter specifies filters applied when loading history from file
type HistoryLoadFilter struct {
	Since            time.Duration // Load entries from this duration ago
	PerPropertyLimit int           // Maximum number of entries per property to load
}

// DefaultHistoryLoadFilter returns the default filter settings for loading history
func DefaultHistoryLoadFilter() HistoryLoadFilter {
	return HistoryLoadFilter{
		Since:            7 * 24 * time.Hour,
		PerPropertyLimit: 100,
	}
}

// historyFileFormat represents the JSON structure for persisting history data
type historyFileFormat struct {
	Version int                               `json:"version"`
	Data    map[string][]PropertyChangeRecord `json:"data"`
}

const currentHistoryFileVersion = 1

// SaveToFile saves the history data to a JSON file
func (s *PropertyHistoryStore) SaveToFile(filename string) error {
	s.mu.RLock()
	fileData := historyFileFormat{
		Version: currentHistoryFileVersion,
		Data:    make(map[string][]PropertyChangeRecord, len(s.data)),
	}
	for name, entries := range s.data {
		fileData.Data[name] = append([]PropertyChangeRecord(nil), entries...)
	}
	s.mu.RUnlock()

	data, err := json.Marshal(fileData)
	if err != nil {
		return fmt.Errorf("failed to marshal history data: %w", err)
	}

	// Write to temporary file, then rename (atomic operation)
	tempFilename := filename + ".tmp"
	if err := os.WriteFile(tempFilename, data, 0644); err != nil {
		return fmt.Errorf("failed to write to temporary file %s: %w", tempFilename, err)
	}
	if err := os.Rename(tempFilename, filename); err != nil {
		_ = os.Remove(tempFilename)
		return fmt.Errorf("failed to rename temporary file %s to %s: %w", tempFilename, filename, err)
	}

	slog.Info("History data saved successfully", "filename", filename, "propertyCount", len(fileData.Data))
	return nil
}

// LoadFromFile loads the history data from a JSON file with filtering
func (s *PropertyHistoryStore) LoadFromFile(filename string, filter HistoryLoadFilter) error {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		slog.Info("History file does not exist, starting with empty history", "filename", filename)
		return nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read history file %s: %w", filename, err)
	}

	var fileData historyFileFormat
	if err := json.Unmarshal(data, &fileData); err != nil {
		return fmt.Errorf("failed to unmarshal history file %s: %w", filename, err)
	}

	if fileData.Version != currentHistoryFileVersion {
		slog.Warn("History file version mismatch, attempting to load anyway",
			"filename", filename,
			"fileVersion", fileData.Version,
			"expectedVersion", currentHistoryFileVersion)
	}

	cutoffTime := s.now().Add(-filter.Since)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]PropertyChangeRecord)

	totalLoaded := 0
	totalFiltered := 0

	for name, entries := range fileData.Data {
		// Keep the newest entries within the time window, up to the per-property limit
		filtered := make([]PropertyChangeRecord, 0, min(len(entries), filter.PerPropertyLimit))
		for i := len(entries) - 1; i >= 0 && len(filtered) < filter.PerPropertyLimit; i-- {
			entry := entries[i]
			if entry.Time.Before(cutoffTime) {
				totalFiltered++
				continue
			}
			if entry.Property.Name == "" {
				totalFiltered++
				continue
			}
			filtered = append(filtered, entry)
			totalLoaded++
		}

		// Restore chronological order (oldest first)
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}

		if len(filtered) > 0 {
			s.data[name] = filtered
		}
	}

	slog.Info("History data loaded successfully",
		"filename", filename,
		"totalLoaded", totalLoaded,
		"totalFiltered", totalFiltered,
		"propertyCount", len(s.data))

	return nil
}
