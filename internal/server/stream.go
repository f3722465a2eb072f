package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strataview/strataview/internal/orchestrator"
	"github.com/strataview/strataview/internal/profile"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const streamWriteTimeout = 10 * time.Second

// streamFrame is one websocket message: progress frames while the
// computation runs, then exactly one result or error frame.
type streamFrame struct {
	Type    string          `json:"type"` // "progress", "result" or "error"
	Stage   string          `json:"stage,omitempty"`
	Percent float64         `json:"percent,omitempty"`
	Result  *profile.Result `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// handleProfileStream upgrades to a websocket, reads one configuration
// message, and streams weighted progress while the profile is computed.
// Cache hits skip straight to the result frame.
func (s *Server) handleProfileStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already replied
	}
	defer conn.Close()

	send := func(f streamFrame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(f)
	}

	var cfg profile.Configuration
	if err := conn.ReadJSON(&cfg); err != nil {
		_ = send(streamFrame{Type: "error", Error: "invalid configuration message: " + err.Error()})
		return
	}
	s.applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		_ = send(streamFrame{Type: "error", Error: err.Error()})
		return
	}
	src, err := s.datasets.Resolve(cfg)
	if err != nil {
		_ = send(streamFrame{Type: "error", Error: err.Error()})
		return
	}

	// cancel the computation when the viewer disconnects mid-stream
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	res, err := s.cache.GetOrCompute(ctx, cfg, func(cctx context.Context) (*profile.Result, error) {
		return s.orch.Compute(cctx, cfg, src, func(p orchestrator.Progress) {
			_ = send(streamFrame{Type: "progress", Stage: p.Stage, Percent: p.Percent})
		})
	})
	if err != nil {
		_ = send(streamFrame{Type: "error", Error: err.Error()})
		return
	}
	_ = send(streamFrame{Type: "result", Result: res})
}
