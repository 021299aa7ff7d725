package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
	"github.com/oszuidwest/zwfm-voicenote/internal/server"
	"github.com/oszuidwest/zwfm-voicenote/internal/types"
)

const (
	sendQueue      = 64
	levelsInterval = 100 * time.Millisecond
	statusInterval = 3 * time.Second
)

// handleWebSocket serves one browser. Three goroutines share the
// connection: writePump owns writes, readPump owns reads and dispatches
// commands, and pushLoop (this goroutine) produces periodic pushes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	c := s.hub.add(make(chan any, sendQueue))
	gone := make(chan struct{})
	go writePump(conn, c.send)
	go s.readPump(conn, c, gone)
	s.pushLoop(c, gone)
}

// writePump drains send until it is closed or a write fails.
func writePump(conn server.WebSocketConn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := server.WriteJSON(conn, msg); err != nil {
			slog.Debug("WebSocket write failed", "error", err)
			return
		}
	}
}

// readPump dispatches commands until the connection fails, then closes gone.
func (s *Server) readPump(conn server.WebSocketConn, c *client, gone chan<- struct{}) {
	defer close(gone)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
	}()

	refresh := func() {
		select {
		case c.status <- struct{}{}:
		default:
		}
	}
	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, c.send, refresh)
	}
}

// pushLoop sends a status on connect, on request and every statusInterval,
// and meter levels while recording. It owns c.send and closes it on exit.
func (s *Server) pushLoop(c *client, gone <-chan struct{}) {
	levels := time.NewTicker(levelsInterval)
	status := time.NewTicker(statusInterval)
	defer func() {
		levels.Stop()
		status.Stop()
		s.hub.remove(c)
		close(c.send)
	}()

	push := func(msg any) bool {
		select {
		case c.send <- msg:
			return true
		case <-gone:
			return false
		}
	}

	for ok := push(s.buildWSStatus()); ok; {
		select {
		case <-gone:
			return
		case <-c.status:
			ok = push(s.buildWSStatus())
		case <-status.C:
			ok = push(s.buildWSStatus())
		case <-levels.C:
			if s.recorder.Status() == recorder.StatusRecording {
				ok = push(types.WSLevelsResponse{Type: "levels", Levels: s.currentLevels()})
			}
		}
	}
}
