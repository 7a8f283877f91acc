// Command target is a local WebSocket server for trying wsbench by hand.
//
//	go run ./scripts/testservers/target -mode echo -port 8080
//	wsbench -a ws://localhost:8080/ws -c 10 -m 1000 -s 0.01
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type serverMode string

const (
	modeEcho serverMode = "echo" // reply with every frame
	modeSink serverMode = "sink" // read and discard
	modeJSON serverMode = "json" // reply with {"seq":n,"data":"..."} for --sample-json-path
)

func main() {
	mode := flag.String("mode", string(modeEcho), "Server mode: echo, sink, json")
	port := flag.Int("port", 8080, "Listening port")
	rejectEvery := flag.Int("reject-every", 0, "Refuse every Nth handshake with 403 (0 disables)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	handler, err := newHandler(serverMode(*mode), *rejectEvery, logger)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("target server listening", zap.String("addr", addr), zap.String("mode", *mode))
	logger.Fatal("server stopped", zap.Error(http.ListenAndServe(addr, mux)))
}

type handler struct {
	mode        serverMode
	rejectEvery int64
	attempts    atomic.Int64
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

func newHandler(mode serverMode, rejectEvery int, logger *zap.Logger) (*handler, error) {
	switch mode {
	case modeEcho, modeSink, modeJSON:
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if rejectEvery < 0 {
		return nil, fmt.Errorf("reject-every must be >= 0")
	}
	return &handler{
		mode:        mode,
		rejectEvery: int64(rejectEvery),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:      logger,
	}, nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.attempts.Add(1)
	if h.rejectEvery > 0 && n%h.rejectEvery == 0 {
		http.Error(w, "handshake refused", http.StatusForbidden)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	go h.serveConn(conn)
}

func (h *handler) serveConn(conn *websocket.Conn) {
	defer conn.Close()
	var seq int64
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		seq++
		switch h.mode {
		case modeSink:
			continue
		case modeJSON:
			data, _ = json.Marshal(struct {
				Seq  int64  `json:"seq"`
				Data string `json:"data"`
			}{seq, string(data)})
			msgType = websocket.TextMessage
		}
		if err := conn.WriteMessage(msgType, data); err != nil {
			return
		}
	}
}
