package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"msiec-ctl/msiec"
	"msiec-ctl/msiec/handler"
	"msiec-ctl/protocol"
)

const (
	// proxyHistoryLimit bounds the in-memory change history kept for the session.
	proxyHistoryLimit = 200

	// setEchoWindow is how long after a successful set the monitor's
	// notification for the same value counts as an echo of that set.
	setEchoWindow = 2 * time.Second
)

// ECClientProxy は、同一プロセス内の ECHandler を直接使う ECClient の実装
type ECClientProxy struct {
	ctx     context.Context
	handler *handler.ECHandler
	table   msiec.PropertyTable

	watching      bool
	watchingMutex sync.RWMutex

	// セッション内の変化履歴（時系列順に追記）
	history      []protocol.ChangeHistoryEntryData
	historyMutex sync.Mutex

	lastSet      map[string]setMark
	lastSetMutex sync.Mutex
}

// setMark remembers a recent successful set for echo detection.
type setMark struct {
	time  time.Time
	value protocol.PropertyData
}

// NewECClientProxy creates an ECClient that calls the handler directly.
// It consumes the handler's notification channels for the life of ctx.
func NewECClientProxy(ctx context.Context, h *handler.ECHandler) ECClient {
	c := &ECClientProxy{
		ctx:     ctx,
		handler: h,
		table:   h.Table(),
		lastSet: make(map[string]setMark),
	}
	go c.consumeNotifications()
	return c
}

// Close implements ECClient. The handler is owned by the caller and closed there.
func (c *ECClientProxy) Close() error {
	return nil
}

func (c *ECClientProxy) IsDebug() bool {
	return c.handler.IsDebug()
}

func (c *ECClientProxy) SetDebug(debug bool) {
	c.handler.SetDebug(debug)
}

// IsWatching returns whether change notifications are printed
func (c *ECClientProxy) IsWatching() bool {
	c.watchingMutex.RLock()
	defer c.watchingMutex.RUnlock()
	return c.watching
}

// SetWatch starts or stops the handler's register monitor along with the
// printing of change notifications.
func (c *ECClientProxy) SetWatch(enabled bool) {
	c.watchingMutex.Lock()
	changed := c.watching != enabled
	c.watching = enabled
	c.watchingMutex.Unlock()

	if !changed {
		return
	}
	if enabled {
		c.handler.StartMonitoring()
	} else {
		c.handler.StopMonitoring()
	}
}

// consumeNotifications drains the handler's notification channels so the
// monitor never finds them full.
func (c *ECClientProxy) consumeNotifications() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case n, ok := <-c.handler.TransportCh:
			if !ok {
				return
			}
			switch n.Type {
			case handler.TransportFault:
				fmt.Printf("[TRANSPORT] %s: %v\n", protocol.TransportStatusFault, n.Error)
			case handler.TransportRecovered:
				fmt.Printf("[TRANSPORT] %s\n", protocol.TransportStatusRecovered)
			}
		case n, ok := <-c.handler.PropertyChangeCh:
			if !ok {
				return
			}
			c.recordChange(n)
		}
	}
}

// recordChange records a monitor notification in the session history and
// prints it when watching.
func (c *ECClientProxy) recordChange(n handler.PropertyChangeNotification) {
	property := c.makePropertyData(n.Property)
	previous := c.makePropertyData(n.Previous)

	if !c.isEchoOfSet(property) {
		c.historyMutex.Lock()
		c.history = append(c.history, protocol.ChangeHistoryEntryData{
			Time:     time.Now(),
			Property: property,
			Previous: &previous,
			Origin:   "notification",
		})
		c.trimHistoryLocked()
		c.historyMutex.Unlock()
	}

	if c.IsWatching() {
		fmt.Printf("[CHANGE] %s: %s (was %s)\n", property.Name, property.Value, previous.Value)
	}
}

// isEchoOfSet checks whether the notification matches a recent SetProperties
// call. The monitor notices register changes made through SetProperties as
// well, so without this check every set would appear in the history twice.
func (c *ECClientProxy) isEchoOfSet(property protocol.PropertyData) bool {
	c.lastSetMutex.Lock()
	defer c.lastSetMutex.Unlock()

	mark, ok := c.lastSet[property.Name]
	if !ok {
		return false
	}
	if time.Since(mark.time) > setEchoWindow {
		delete(c.lastSet, property.Name)
		return false
	}
	// Raw が一致すれば同じ変化とみなす（他のフィールドは Raw から決まる）
	if mark.value.Raw != property.Raw {
		return false
	}
	delete(c.lastSet, property.Name)
	return true
}

// recordSet records a SetProperties result in the session history and
// remembers it for echo detection.
func (c *ECClientProxy) recordSet(data protocol.PropertyData) {
	now := time.Now()

	c.historyMutex.Lock()
	c.history = append(c.history, protocol.ChangeHistoryEntryData{
		Time:     now,
		Property: data,
		Origin:   "set",
	})
	c.trimHistoryLocked()
	c.historyMutex.Unlock()

	c.lastSetMutex.Lock()
	c.lastSet[data.Name] = setMark{time: now, value: data}
	c.lastSetMutex.Unlock()
}

// trimHistoryLocked drops the oldest entries beyond proxyHistoryLimit.
// Callers must hold historyMutex.
func (c *ECClientProxy) trimHistoryLocked() {
	if len(c.history) > proxyHistoryLimit {
		c.history = c.history[len(c.history)-proxyHistoryLimit:]
	}
}

// makePropertyData converts a decoded property value to its wire representation.
func (c *ECClientProxy) makePropertyData(value msiec.PropertyValue) protocol.PropertyData {
	if desc, ok := c.table.Find(value.Name); ok {
		return protocol.MakePropertyData(desc, value)
	}
	return protocol.PropertyData{Name: value.Name, Value: value.Value, Known: value.Known}
}

// GetProperties reads the named properties in request order
func (c *ECClientProxy) GetProperties(names []string) ([]PropertyData, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no property names specified")
	}

	properties := make([]PropertyData, 0, len(names))
	for _, name := range names {
		value, err := c.handler.GetProperty(name)
		if err != nil {
			return nil, err
		}
		properties = append(properties, c.makePropertyData(value))
	}
	return properties, nil
}

// SetProperties writes the given properties and returns the read-back values
// in name order
func (c *ECClientProxy) SetProperties(values map[string]string) ([]PropertyData, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no properties specified")
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	properties := make([]PropertyData, 0, len(names))
	for _, name := range names {
		result, err := c.handler.SetProperty(name, values[name])
		if err != nil {
			return nil, err
		}

		data := c.makePropertyData(result)
		properties = append(properties, data)
		c.recordSet(data)
	}
	return properties, nil
}

// ListProperties reads every property of the given group. An empty group
// lists the whole table.
func (c *ECClientProxy) ListProperties(group string) (*ListResult, error) {
	if group != "" && !slices.Contains(c.table.Groups(), group) {
		return nil, fmt.Errorf("unknown property group: %s", group)
	}

	results := c.handler.ListProperties(group)
	entries := make([]ListEntry, 0, len(results))
	for _, result := range results {
		entries = append(entries, protocol.MakeListEntry(c.table, result))
	}

	return &ListResult{
		Model:   c.table.Model,
		Entries: entries,
	}, nil
}

// GetPropertyDescription returns the static description of a property
func (c *ECClientProxy) GetPropertyDescription(name string) (*PropertyDescription, error) {
	desc, ok := c.table.Find(name)
	if !ok {
		return nil, &handler.PropertyNotFoundError{Name: name}
	}
	description := protocol.MakePropertyDescription(desc)
	return &description, nil
}

// GetChangeHistory returns matching session history entries ordered newest first
func (c *ECClientProxy) GetChangeHistory(opts ChangeHistoryOptions) ([]ChangeHistoryEntry, error) {
	if opts.Name != "" {
		if _, ok := c.table.Find(opts.Name); !ok {
			return nil, &handler.PropertyNotFoundError{Name: opts.Name}
		}
	}

	c.historyMutex.Lock()
	entries := make([]ChangeHistoryEntry, len(c.history))
	copy(entries, c.history)
	c.historyMutex.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = len(entries)
	}

	// 追記順に保持しているので、後ろから辿ると新しい順になる
	result := make([]ChangeHistoryEntry, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if opts.Name != "" && entry.Property.Name != opts.Name {
			continue
		}
		if !opts.Since.IsZero() && entry.Time.Before(opts.Since) {
			continue
		}
		result = append(result, entry)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// ReadRegister reads a single register byte (debug)
func (c *ECClientProxy) ReadRegister(addr string) (*RegisterValue, error) {
	parsed, err := msiec.ParseRegisterAddr(addr)
	if err != nil {
		return nil, err
	}

	value, err := c.handler.ReadRegister(parsed)
	if err != nil {
		return nil, err
	}

	return &RegisterValue{
		Addr:  parsed.String(),
		Value: fmt.Sprintf("0x%02x", value),
	}, nil
}

// WriteRegister writes a single register byte (debug)
func (c *ECClientProxy) WriteRegister(addr string, value string) (*RegisterValue, error) {
	parsed, err := msiec.ParseRegisterAddr(addr)
	if err != nil {
		return nil, err
	}

	parsedValue, err := msiec.ParseByteValue(value)
	if err != nil {
		return nil, err
	}

	if err := c.handler.WriteRegister(parsed, parsedValue); err != nil {
		return nil, err
	}

	return &RegisterValue{
		Addr:  parsed.String(),
		Value: fmt.Sprintf("0x%02x", parsedValue),
	}, nil
}

// DumpRegisters reads the whole register space (debug)
func (c *ECClientProxy) DumpRegisters() ([]byte, error) {
	return c.handler.DumpRegisters()
}

func (c *ECClientProxy) PropertyNames() []string {
	return c.table.Names()
}

func (c *ECClientProxy) PropertyGroups() []string {
	return c.table.Groups()
}

func (c *ECClientProxy) ValueCandidates(name string) []string {
	desc, ok := c.table.Find(name)
	if !ok {
		return nil
	}
	return desc.ValueCandidates()
}
