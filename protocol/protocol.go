package protocol

import (
	"encoding/json"
	"time"
)

// PropertyData represents the data for a single property, including its raw
// register bytes and decoded string representation.
type PropertyData struct {
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`  // Decoded string representation
	Raw    string `json:"raw,omitempty"`    // Hex encoded register bytes, omitted if empty
	Number *int   `json:"number,omitempty"` // Numeric value, omitted if nil. Only usable when the property converts to an integer.
	Known  bool   `json:"known"`            // Whether the raw value is within the known vocabulary/range
}

// MessageType defines the type of message being sent between client and server
type MessageType string

const (
	// Server -> Client message types
	MessageTypeInitialState          MessageType = "initial_state"
	MessageTypePropertyChanged       MessageType = "property_changed"
	MessageTypeTransportNotification MessageType = "transport_notification"
	MessageTypeErrorNotification     MessageType = "error_notification"
	MessageTypeLogNotification       MessageType = "log_notification"
	MessageTypeCommandResult         MessageType = "command_result"

	// Client -> Server message types
	MessageTypeGetProperties          MessageType = "get_properties"
	MessageTypeSetProperties          MessageType = "set_properties"
	MessageTypeListProperties         MessageType = "list_properties"
	MessageTypeGetPropertyDescription MessageType = "get_property_description"
	MessageTypeGetChangeHistory       MessageType = "get_change_history"
	MessageTypeDebugReadRegister      MessageType = "debug_read_register"
	MessageTypeDebugWriteRegister     MessageType = "debug_write_register"
	MessageTypeDumpRegisters          MessageType = "dump_registers"
)

// TransportStatus describes the EC link state carried by transport_notification
type TransportStatus string

const (
	TransportStatusFault     TransportStatus = "fault"
	TransportStatusRecovered TransportStatus = "recovered"
)

// ErrorCode defines error codes for error messages
type ErrorCode string

// Client Request Related
const (
	ErrorCodeInvalidRequestFormat ErrorCode = "INVALID_REQUEST_FORMAT"
	ErrorCodeInvalidParameters    ErrorCode = "INVALID_PARAMETERS"
	ErrorCodePropertyNotFound     ErrorCode = "PROPERTY_NOT_FOUND"
	ErrorCodeInvalidValue         ErrorCode = "INVALID_VALUE"
	ErrorCodeAccessDenied         ErrorCode = "ACCESS_DENIED" // not used
)

// EC/Communication Related
const (
	ErrorCodeOutOfRange          ErrorCode = "OUT_OF_RANGE"
	ErrorCodeTransportError      ErrorCode = "TRANSPORT_ERROR"
	ErrorCodeInternalServerError ErrorCode = "INTERNAL_SERVER_ERROR"
)

// Message is the base structure for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"requestId,omitempty"`
}

// Error represents an error in the WebSocket protocol
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// InitialStatePayload is the payload for the initial_state message
type InitialStatePayload struct {
	Model             string                  `json:"model"`
	Properties        map[string]PropertyData `json:"properties"`
	ServerStartupTime time.Time               `json:"serverStartupTime"`
}

// PropertyChangedPayload is the payload for the property_changed message
type PropertyChangedPayload struct {
	Property PropertyData  `json:"property"`
	Previous *PropertyData `json:"previous,omitempty"`
}

// TransportNotificationPayload is the payload for the transport_notification message
type TransportNotificationPayload struct {
	Status  TransportStatus `json:"status"`
	Message string          `json:"message,omitempty"`
}

// ErrorNotificationPayload is the payload for the error_notification message
type ErrorNotificationPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// LogNotificationPayload is the payload for the log_notification message,
// which relays warning and error level server logs to clients.
type LogNotificationPayload struct {
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Time       time.Time              `json:"time"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// CommandResultPayload is the payload for the command_result message
type CommandResultPayload struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// GetPropertiesPayload is the payload for the get_properties message
type GetPropertiesPayload struct {
	Names []string `json:"names"`
}

// SetPropertiesPayload is the payload for the set_properties message.
// Values are the decoded string representations, e.g. "on" or "60".
type SetPropertiesPayload struct {
	Properties map[string]string `json:"properties"`
}

// ListPropertiesPayload is the payload for the list_properties message
type ListPropertiesPayload struct {
	Group string `json:"group,omitempty"` // Property group to filter (optional)
}

// GetPropertyDescriptionPayload is the payload for the get_property_description message
type GetPropertyDescriptionPayload struct {
	Name string `json:"name"`
}

// GetChangeHistoryPayload is the payload for the get_change_history message
type GetChangeHistoryPayload struct {
	Name  string    `json:"name,omitempty"`  // Property name to filter (empty = all properties)
	Since time.Time `json:"since,omitempty"` // Only entries at or after this time
	Limit int       `json:"limit,omitempty"` // Maximum number of entries (0 = no limit)
}

// DebugReadRegisterPayload is the payload for the debug_read_register message
type DebugReadRegisterPayload struct {
	Addr string `json:"addr"` // Register address in hex format (e.g. "0x2e")
}

// DebugWriteRegisterPayload is the payload for the debug_write_register message
type DebugWriteRegisterPayload struct {
	Addr  string `json:"addr"`
	Value string `json:"value"` // Byte value in hex format (e.g. "0x4a")
}

// DumpRegistersPayload is the payload for the dump_registers message
type DumpRegistersPayload struct {
	// Empty payload
}

// PropertiesResultData is the data for the command_result message for
// get_properties and set_properties requests
type PropertiesResultData struct {
	Properties map[string]PropertyData `json:"properties"`
}

// ListEntry is a single entry of a list_properties result. Either Property
// carries a decoded value or Error explains why the read failed.
type ListEntry struct {
	Property PropertyData `json:"property"`
	Error    *Error       `json:"error,omitempty"`
}

// ListPropertiesResultData is the data for the command_result message for
// list_properties requests
type ListPropertiesResultData struct {
	Model   string      `json:"model"`
	Entries []ListEntry `json:"entries"`
}

// PropertyDescriptionData is the data for the command_result message for
// get_property_description requests
type PropertyDescriptionData struct {
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Access     string   `json:"access"`               // "rw", "ro" or "wo"
	Registers  []string `json:"registers"`            // Register runs, e.g. ["0xac+8", "0xb4+8"]
	Candidates []string `json:"candidates,omitempty"` // Accepted set values (optional)
}

// ChangeHistoryEntryData is a single entry of a get_change_history result
type ChangeHistoryEntryData struct {
	Time     time.Time     `json:"time"`
	Property PropertyData  `json:"property"`
	Previous *PropertyData `json:"previous,omitempty"`
	Origin   string        `json:"origin"` // "set" or "notification"
}

// ChangeHistoryResultData is the data for the command_result message for
// get_change_history requests. Entries are ordered newest first.
type ChangeHistoryResultData struct {
	Entries []ChangeHistoryEntryData `json:"entries"`
}

// RegisterData is the data for the command_result message for
// debug_read_register and debug_write_register requests
type RegisterData struct {
	Addr  string `json:"addr"`
	Value string `json:"value"`
}

// DumpData is the data for the command_result message for dump_registers requests
type DumpData struct {
	Registers string `json:"registers"` // Hex encoded 256 byte register image
}

// CreateMessage creates a new Message with the given type and payload
func CreateMessage(msgType MessageType, payload interface{}, requestID string) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	msg := Message{
		Type:      msgType,
		Payload:   payloadBytes,
		RequestID: requestID,
	}

	return json.Marshal(msg)
}

// ParseMessage parses a JSON message into a Message struct
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ParsePayload parses the payload of a message into the given struct
func ParsePayload(msg *Message, payload interface{}) error {
	return json.Unmarshal(msg.Payload, payload)
}
