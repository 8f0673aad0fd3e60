package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"

	"msiec-ctl/msiec"
	"msiec-ctl/msiec/handler"
)

// MakePropertyData は PropertyValue を wire 表現に変換する
func MakePropertyData(desc msiec.PropertyDesc, value msiec.PropertyValue) PropertyData {
	var number *int
	if n, ok := desc.ToInt(value.Raw); ok {
		number = &n
	}

	return PropertyData{
		Name:   value.Name,
		Value:  value.Value,
		Raw:    hex.EncodeToString(value.Raw),
		Number: number, // omitempty により、nilの場合はJSONに出力されない
		Known:  value.Known,
	}
}

// MakePropertyDescription は PropertyDesc を wire 表現に変換する
func MakePropertyDescription(desc msiec.PropertyDesc) PropertyDescriptionData {
	runs := desc.RegisterRuns()
	registers := make([]string, len(runs))
	for i, run := range runs {
		registers[i] = run.String()
	}

	return PropertyDescriptionData{
		Name:       desc.Name,
		Group:      desc.Group,
		Access:     desc.Access.String(),
		Registers:  registers,
		Candidates: desc.ValueCandidates(),
	}
}

// MakeListEntry は 1 件の読み出し結果を wire 表現に変換する
func MakeListEntry(table msiec.PropertyTable, result handler.PropertyReadResult) ListEntry {
	entry := ListEntry{}
	if result.Err != nil {
		entry.Property = PropertyData{Name: result.Value.Name}
		entry.Error = ErrorFromDomain(result.Err)
		return entry
	}
	desc, _ := table.Find(result.Value.Name)
	entry.Property = MakePropertyData(desc, result.Value)
	return entry
}

// ErrorFromDomain は、ハンドラ層のエラーをプロトコルのエラーコードに対応付ける
func ErrorFromDomain(err error) *Error {
	var notFound *handler.PropertyNotFoundError
	var invalid *msiec.InvalidValueError
	var outOfRange *msiec.OutOfRangeError
	var transportErr *msiec.TransportError

	switch {
	case errors.As(err, &notFound):
		return &Error{Code: ErrorCodePropertyNotFound, Message: err.Error()}
	case errors.As(err, &invalid):
		return &Error{Code: ErrorCodeInvalidValue, Message: err.Error()}
	case errors.As(err, &outOfRange):
		return &Error{Code: ErrorCodeOutOfRange, Message: err.Error()}
	case errors.As(err, &transportErr):
		return &Error{Code: ErrorCodeTransportError, Message: err.Error()}
	default:
		return &Error{Code: ErrorCodeInternalServerError, Message: err.Error()}
	}
}

// Error は error インターフェースを実装する
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
