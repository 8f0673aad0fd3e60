package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"msiec-ctl/protocol"
)

// BroadcastHandler はWarn/Errorレベルのログを接続中のクライアントにもブロードキャストするslogハンドラー
type BroadcastHandler struct {
	inner     slog.Handler
	transport WebSocketTransport
	minLevel  slog.Level
}

// NewBroadcastHandler creates a new BroadcastHandler
func NewBroadcastHandler(inner slog.Handler, transport WebSocketTransport, minLevel slog.Level) *BroadcastHandler {
	return &BroadcastHandler{
		inner:     inner,
		transport: transport,
		minLevel:  minLevel,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle handles the Record by passing it to the inner handler and broadcasting if needed.
func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.minLevel && h.transport != nil {
		h.broadcastLog(r)
	}

	return nil
}

// WithAttrs returns a new Handler whose attributes consist of both the receiver's attributes and the arguments.
func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BroadcastHandler{
		inner:     h.inner.WithAttrs(attrs),
		transport: h.transport,
		minLevel:  h.minLevel,
	}
}

// WithGroup returns a new Handler with the given group appended to the receiver's existing groups.
func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	return &BroadcastHandler{
		inner:     h.inner.WithGroup(name),
		transport: h.transport,
		minLevel:  h.minLevel,
	}
}

// formatAttributeValue formats a slog.Value for JSON serialization
func formatAttributeValue(v slog.Value) interface{} {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		anyValue := v.Any()
		if anyValue == nil {
			return nil
		}
		if err, ok := anyValue.(error); ok {
			return err.Error()
		}
		if str := v.String(); str != "" && str != "{}" {
			return str
		}
		return fmt.Sprintf("[%T: %+v]", anyValue, anyValue)
	default:
		if str := v.String(); str != "" && str != "{}" {
			return str
		}
		return "[Unknown]"
	}
}

// broadcastLog sends the log record to all connected WebSocket clients
func (h *BroadcastHandler) broadcastLog(r slog.Record) {
	attrs := make(map[string]interface{})
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = formatAttributeValue(a.Value)
		return true
	})

	payload := protocol.LogNotificationPayload{
		Level:      r.Level.String(),
		Message:    r.Message,
		Time:       r.Time,
		Attributes: attrs,
	}

	data, err := protocol.CreateMessage(protocol.MessageTypeLogNotification, payload, "")
	if err != nil {
		// Cannot log here as it might cause infinite loop
		return
	}

	_ = h.transport.BroadcastMessage(data)
}
