package client

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"msiec-ctl/protocol"
)

// GetProperties sends a get_properties message and returns the values in
// request order.
func (c *WebSocketClient) GetProperties(names []string) ([]PropertyData, error) {
	payload := protocol.GetPropertiesPayload{Names: names}

	response, err := c.sendRequest(protocol.MessageTypeGetProperties, payload)
	if err != nil {
		return nil, err
	}

	data, err := commandResultData(response)
	if err != nil {
		return nil, fmt.Errorf("error getting properties: %v", err)
	}

	var result protocol.PropertiesResultData
	if data != nil {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("error parsing properties data: %v", err)
		}
	}

	ordered := make([]PropertyData, 0, len(names))
	for _, name := range names {
		if property, ok := result.Properties[name]; ok {
			ordered = append(ordered, property)
		}
	}

	c.storeProperties(ordered)
	return ordered, nil
}

// SetProperties sends a set_properties message and returns the read-back
// values in name order.
func (c *WebSocketClient) SetProperties(values map[string]string) ([]PropertyData, error) {
	payload := protocol.SetPropertiesPayload{Properties: values}

	response, err := c.sendRequest(protocol.MessageTypeSetProperties, payload)
	if err != nil {
		return nil, err
	}

	data, err := commandResultData(response)
	if err != nil {
		return nil, fmt.Errorf("error setting properties: %v", err)
	}

	var result protocol.PropertiesResultData
	if data != nil {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("error parsing properties data: %v", err)
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make([]PropertyData, 0, len(names))
	for _, name := range names {
		if property, ok := result.Properties[name]; ok {
			ordered = append(ordered, property)
		}
	}

	c.storeProperties(ordered)
	return ordered, nil
}

// ListProperties sends a list_properties message for the given group.
// An empty group lists every property the server knows.
func (c *WebSocketClient) ListProperties(group string) (*ListResult, error) {
	payload := protocol.ListPropertiesPayload{Group: group}

	response, err := c.sendRequest(protocol.MessageTypeListProperties, payload)
	if err != nil {
		return nil, err
	}

	data, err := commandResultData(response)
	if err != nil {
		return nil, fmt.Errorf("error listing properties: %v", err)
	}

	var result protocol.ListPropertiesResultData
	if data != nil {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("error parsing list data: %v", err)
		}
	}

	for _, entry := range result.Entries {
		if entry.Error == nil {
			c.storeProperties([]PropertyData{entry.Property})
		}
	}

	return &result, nil
}

// GetPropertyDescription sends a get_property_description message
func (c *WebSocketClient) GetPropertyDescription(name string) (*PropertyDescription, error) {
	payload := protocol.GetPropertyDescriptionPayload{Name: name}

	response, err := c.sendRequest(protocol.MessageTypeGetPropertyDescription, payload)
	if err != nil {
		return nil, err
	}

	data, err := commandResultData(response)
	if err != nil {
		return nil, fmt.Errorf("error getting property description: %v", err)
	}

	var result protocol.PropertyDescriptionData
	if data != nil {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("error parsing description data: %v", err)
		}
	}

	return &result, nil
}

// GetChangeHistory retrieves property change history entries from the server
func (c *WebSocketClient) GetChangeHistory(opts ChangeHistoryOptions) ([]ChangeHistoryEntry, error) {
	payload := protocol.GetChangeHistoryPayload{
		Name:  opts.Name,
		Limit: opts.Limit,
	}
	if !opts.Since.IsZero() {
		payload.Since = opts.Since.UTC()
	}

	response, err := c.sendRequest(protocol.MessageTypeGetChangeHistory, payload)
	if err != nil {
		return nil, err
	}

	data, err := commandResultData(response)
	if err != nil {
		return nil, fmt.Errorf("error getting change history: %v", err)
	}

	if data == nil {
		return []ChangeHistoryEntry{}, nil
	}

	var result protocol.ChangeHistoryResultData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("error parsing history data: %v", err)
	}

	return result.Entries, nil
}

// ReadRegister sends a debug_read_register message for the given address
// ("0x2e" or decimal).
func (c *WebSocketClient) ReadRegister(addr string) (*RegisterValue, error) {
	payload := protocol.DebugReadRegisterPayload{Addr: addr}

	response, err := c.sendRequest(protocol.MessageTypeDebugReadRegister, payload)
	if err != nil {
		return nil, err
	}

	data, err := commandResultData(response)
	if err != nil {
		return nil, fmt.Errorf("error reading register: %v", err)
	}

	var result protocol.RegisterData
	if data != nil {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("error parsing register data: %v", err)
		}
	}

	return &result, nil
}

// WriteRegister sends a debug_write_register message
func (c *WebSocketClient) WriteRegister(addr string, value string) (*RegisterValue, error) {
	payload := protocol.DebugWriteRegisterPayload{Addr: addr, Value: value}

	response, err := c.sendRequest(protocol.MessageTypeDebugWriteRegister, payload)
	if err != nil {
		return nil, err
	}

	data, err := commandResultData(response)
	if err != nil {
		return nil, fmt.Errorf("error writing register: %v", err)
	}

	var result protocol.RegisterData
	if data != nil {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("error parsing register data: %v", err)
		}
	}

	return &result, nil
}

// DumpRegisters sends a dump_registers message and returns the raw register image
func (c *WebSocketClient) DumpRegisters() ([]byte, error) {
	response, err := c.sendRequest(protocol.MessageTypeDumpRegisters, protocol.DumpRegistersPayload{})
	if err != nil {
		return nil, err
	}

	data, err := commandResultData(response)
	if err != nil {
		return nil, fmt.Errorf("error dumping registers: %v", err)
	}

	var result protocol.DumpData
	if data != nil {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("error parsing dump data: %v", err)
		}
	}

	image, err := hex.DecodeString(result.Registers)
	if err != nil {
		return nil, fmt.Errorf("error decoding register image: %v", err)
	}

	return image, nil
}

// ServerStartupTime returns the startup time reported in initial_state
func (c *WebSocketClient) ServerStartupTime() time.Time {
	c.propertiesMutex.RLock()
	defer c.propertiesMutex.RUnlock()
	return c.serverStartupTime
}
