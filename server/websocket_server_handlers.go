package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/exp/slices"

	"msiec-ctl/msiec"
	"msiec-ctl/protocol"
)

// errorResult builds a failed command_result payload.
func errorResult(code protocol.ErrorCode, format string, args ...interface{}) protocol.CommandResultPayload {
	return protocol.CommandResultPayload{
		Success: false,
		Error: &protocol.Error{
			Code:    code,
			Message: fmt.Sprintf(format, args...),
		},
	}
}

// domainErrorResult builds a failed command_result payload from a register
// access error, mapping the error type to the matching protocol error code.
func domainErrorResult(err error) protocol.CommandResultPayload {
	return protocol.CommandResultPayload{
		Success: false,
		Error:   protocol.ErrorFromDomain(err),
	}
}

// successResult builds a successful command_result payload carrying data.
func successResult(data interface{}) protocol.CommandResultPayload {
	if data == nil {
		return protocol.CommandResultPayload{Success: true}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		slog.Error("Error marshaling result data", "err", err)
		return errorResult(protocol.ErrorCodeInternalServerError, "Error marshaling result data: %v", err)
	}
	return protocol.CommandResultPayload{
		Success: true,
		Data:    dataJSON,
	}
}

// parseOptionalPayload parses the payload when present. Messages whose
// parameters are all optional may omit the payload entirely.
func parseOptionalPayload(msg *protocol.Message, payload interface{}) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	return protocol.ParsePayload(msg, payload)
}

// handleGetPropertiesFromClient handles a get_properties message from a client
func (ws *WebSocketServer) handleGetPropertiesFromClient(msg *protocol.Message) protocol.CommandResultPayload {
	var payload protocol.GetPropertiesPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		slog.Error("Error parsing get_properties payload", "err", err)
		return errorResult(protocol.ErrorCodeInvalidRequestFormat, "Error parsing get_properties payload: %v", err)
	}

	if len(payload.Names) == 0 {
		return errorResult(protocol.ErrorCodeInvalidParameters, "No property names specified")
	}

	properties := make(map[string]protocol.PropertyData, len(payload.Names))
	for _, name := range payload.Names {
		value, err := ws.handler.GetProperty(name)
		if err != nil {
			slog.Error("Error getting property", "property", name, "err", err)
			return domainErrorResult(err)
		}
		properties[name] = ws.makePropertyData(value)
	}

	return successResult(protocol.PropertiesResultData{Properties: properties})
}

// handleSetPropertiesFromClient handles a set_properties message from a client
func (ws *WebSocketServer) handleSetPropertiesFromClient(msg *protocol.Message) protocol.CommandResultPayload {
	var payload protocol.SetPropertiesPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		slog.Error("Error parsing set_properties payload", "err", err)
		return errorResult(protocol.ErrorCodeInvalidRequestFormat, "Error parsing set_properties payload: %v", err)
	}

	if len(payload.Properties) == 0 {
		return errorResult(protocol.ErrorCodeInvalidParameters, "No properties specified")
	}

	properties := make(map[string]protocol.PropertyData, len(payload.Properties))
	for name, value := range payload.Properties {
		result, err := ws.handler.SetProperty(name, value)
		if err != nil {
			slog.Error("Error setting property", "property", name, "value", value, "err", err)
			return domainErrorResult(err)
		}

		data := ws.makePropertyData(result)
		properties[name] = data
		ws.history.Record(PropertyChangeRecord{
			Property: data,
			Origin:   ChangeOriginSet,
		})
	}

	return successResult(protocol.PropertiesResultData{Properties: properties})
}

// handleListPropertiesFromClient handles a list_properties message from a client
func (ws *WebSocketServer) handleListPropertiesFromClient(msg *protocol.Message) protocol.CommandResultPayload {
	var payload protocol.ListPropertiesPayload
	if err := parseOptionalPayload(msg, &payload); err != nil {
		slog.Error("Error parsing list_properties payload", "err", err)
		return errorResult(protocol.ErrorCodeInvalidRequestFormat, "Error parsing list_properties payload: %v", err)
	}

	if payload.Group != "" && !slices.Contains(ws.table.Groups(), payload.Group) {
		return errorResult(protocol.ErrorCodeInvalidParameters, "Unknown property group: %s", payload.Group)
	}

	results := ws.handler.ListProperties(payload.Group)
	entries := make([]protocol.ListEntry, 0, len(results))
	for _, result := range results {
		entries = append(entries, protocol.MakeListEntry(ws.table, result))
	}

	return successResult(protocol.ListPropertiesResultData{
		Model:   ws.model,
		Entries: entries,
	})
}

// handleGetPropertyDescriptionFromClient handles a get_property_description message from a client
func (ws *WebSocketServer) handleGetPropertyDescriptionFromClient(msg *protocol.Message) protocol.CommandResultPayload {
	var payload protocol.GetPropertyDescriptionPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		slog.Error("Error parsing get_property_description payload", "err", err)
		return errorResult(protocol.ErrorCodeInvalidRequestFormat, "Error parsing get_property_description payload: %v", err)
	}

	if payload.Name == "" {
		return errorResult(protocol.ErrorCodeInvalidParameters, "No property name specified")
	}

	desc, ok := ws.table.Find(payload.Name)
	if !ok {
		return errorResult(protocol.ErrorCodePropertyNotFound, "Property not found: %s", payload.Name)
	}

	return successResult(protocol.MakePropertyDescription(desc))
}

// handleGetChangeHistoryFromClient handles a get_change_history message from a client
func (ws *WebSocketServer) handleGetChangeHistoryFromClient(msg *protocol.Message) protocol.CommandResultPayload {
	var payload protocol.GetChangeHistoryPayload
	if err := parseOptionalPayload(msg, &payload); err != nil {
		slog.Error("Error parsing get_change_history payload", "err", err)
		return errorResult(protocol.ErrorCodeInvalidRequestFormat, "Error parsing get_change_history payload: %v", err)
	}

	if payload.Name != "" {
		if _, ok := ws.table.Find(payload.Name); !ok {
			return errorResult(protocol.ErrorCodePropertyNotFound, "Property not found: %s", payload.Name)
		}
	}

	records := ws.history.Query(HistoryQuery{
		Name:  payload.Name,
		Since: payload.Since,
		Limit: payload.Limit,
	})

	entries := make([]protocol.ChangeHistoryEntryData, 0, len(records))
	for _, record := range records {
		entries = append(entries, protocol.ChangeHistoryEntryData{
			Time:     record.Time,
			Property: record.Property,
			Previous: record.Previous,
			Origin:   string(record.Origin),
		})
	}

	return successResult(protocol.ChangeHistoryResultData{Entries: entries})
}

// handleDebugReadRegisterFromClient handles a debug_read_register message from a client
func (ws *WebSocketServer) handleDebugReadRegisterFromClient(msg *protocol.Message) protocol.CommandResultPayload {
	var payload protocol.DebugReadRegisterPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		slog.Error("Error parsing debug_read_register payload", "err", err)
		return errorResult(protocol.ErrorCodeInvalidRequestFormat, "Error parsing debug_read_register payload: %v", err)
	}

	addr, err := msiec.ParseRegisterAddr(payload.Addr)
	if err != nil {
		return errorResult(protocol.ErrorCodeInvalidParameters, "Invalid register address: %v", err)
	}

	value, err := ws.handler.ReadRegister(addr)
	if err != nil {
		slog.Error("Error reading register", "addr", addr, "err", err)
		return domainErrorResult(err)
	}

	return successResult(protocol.RegisterData{
		Addr:  addr.String(),
		Value: fmt.Sprintf("0x%02x", value),
	})
}

// handleDebugWriteRegisterFromClient handles a debug_write_register message from a client
func (ws *WebSocketServer) handleDebugWriteRegisterFromClient(msg *protocol.Message) protocol.CommandResultPayload {
	var payload protocol.DebugWriteRegisterPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		slog.Error("Error parsing debug_write_register payload", "err", err)
		return errorResult(protocol.ErrorCodeInvalidRequestFormat, "Error parsing debug_write_register payload: %v", err)
	}

	addr, err := msiec.ParseRegisterAddr(payload.Addr)
	if err != nil {
		return errorResult(protocol.ErrorCodeInvalidParameters, "Invalid register address: %v", err)
	}

	value, err := msiec.ParseByteValue(payload.Value)
	if err != nil {
		return errorResult(protocol.ErrorCodeInvalidParameters, "Invalid register value: %v", err)
	}

	if err := ws.handler.WriteRegister(addr, value); err != nil {
		slog.Error("Error writing register", "addr", addr, "value", value, "err", err)
		return domainErrorResult(err)
	}

	return successResult(protocol.RegisterData{
		Addr:  addr.String(),
		Value: fmt.Sprintf("0x%02x", value),
	})
}

// handleDumpRegistersFromClient handles a dump_registers message from a client
func (ws *WebSocketServer) handleDumpRegistersFromClient(msg *protocol.Message) protocol.CommandResultPayload {
	var payload protocol.DumpRegistersPayload
	if err := parseOptionalPayload(msg, &payload); err != nil {
		slog.Error("Error parsing dump_registers payload", "err", err)
		return errorResult(protocol.ErrorCodeInvalidRequestFormat, "Error parsing dump_registers payload: %v", err)
	}

	image, err := ws.handler.DumpRegisters()
	if err != nil {
		slog.Error("Error dumping registers", "err", err)
		return domainErrorResult(err)
	}

	return successResult(protocol.DumpData{Registers: hex.EncodeToString(image)})
}
