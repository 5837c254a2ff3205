package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// ConnID records a per-connection identifier under the key "conn_id".
func ConnID(id string) slog.Attr {
	return slog.String("conn_id", id)
}

// Component records the emitting component under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RemoteAddr records the peer address under the key "remote_addr".
func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}
