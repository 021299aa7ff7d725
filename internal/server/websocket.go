package server

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Limits for browser connections. Commands are small; frames are pushed
// by the server, never received.
const (
	wsReadLimit    = 64 << 10
	wsWriteTimeout = 5 * time.Second
)

// WebSocketConn is the part of *websocket.Conn the connection goroutines use.
type WebSocketConn interface {
	io.Closer
	WriteJSON(v any) error
	ReadJSON(v any) error
	SetWriteDeadline(t time.Time) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     checkOrigin,
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
}

// checkOrigin admits same-origin pages and pages served from the local
// network. Browsers omit Origin on same-origin requests.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}
	if host := u.Hostname(); localOrigin(host, r.Host) {
		return true
	}
	slog.Warn("rejected WebSocket connection", "origin", origin, "host", r.Host)
	return false
}

// localOrigin reports whether host is the served host itself, localhost, or
// a loopback or private address.
func localOrigin(host, served string) bool {
	if h, _, err := net.SplitHostPort(served); err == nil {
		served = h
	}
	if host == served || host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}

// UpgradeConnection upgrades an HTTP connection to WebSocket.
func UpgradeConnection(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(wsReadLimit)
	return conn, nil
}

// WriteJSON writes v with a bounded deadline so a stalled client cannot
// hold the writer goroutine.
func WriteJSON(conn WebSocketConn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
