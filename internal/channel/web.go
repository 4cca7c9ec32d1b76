package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nanoagent/internal/domain"
)

// WSMessage is the JSON frame exchanged with web clients.
type WSMessage struct {
	Type    string `json:"type"` // "message" | "status"
	Content string `json:"content,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Web serves a WebSocket endpoint for browser clients. Each connection is
// keyed by its chat_id query parameter; replies go to every connection on
// the same chat.
type Web struct {
	addr  string
	path  string
	allow *Allowlist

	server *http.Server
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	conn   *websocket.Conn
	chatID string
	mu     sync.Mutex
}

type WebConfig struct {
	Addr      string // default :8081
	Path      string // default /ws
	AllowFrom []string
	Logger    *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Addr == "" {
		cfg.Addr = ":8081"
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	return &Web{
		addr:    cfg.Addr,
		path:    cfg.Path,
		allow:   NewAllowlist(cfg.AllowFrom),
		logger:  cfg.Logger,
		clients: make(map[string]*wsClient),
	}
}

func (w *Web) Name() string { return "web" }

func (w *Web) Start(ctx context.Context, b domain.MessageBus) error {
	mux := http.NewServeMux()
	mux.HandleFunc(w.path, func(rw http.ResponseWriter, r *http.Request) {
		w.handleUpgrade(rw, r, b)
	})

	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	w.logger.Info("web channel listening", "addr", w.addr, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (w *Web) Stop() error { return nil }

// Send delivers content to every connection on chatID.
func (w *Web) Send(_ context.Context, chatID, content string) error {
	frame, err := json.Marshal(WSMessage{Type: "message", Content: content, ChatID: chatID})
	if err != nil {
		return err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, client := range w.clients {
		if client.chatID != chatID {
			continue
		}
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, frame)
		client.mu.Unlock()
		if err != nil {
			w.logger.Debug("web write failed", "chat_id", chatID, "err", err)
		}
	}
	return nil
}

func (w *Web) handleUpgrade(rw http.ResponseWriter, r *http.Request, b domain.MessageBus) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = fmt.Sprintf("web-%d", time.Now().UnixNano())
	}

	client := &wsClient{conn: conn, chatID: chatID}
	clientID := fmt.Sprintf("%s-%p", chatID, conn)

	w.mu.Lock()
	w.clients[clientID] = client
	w.mu.Unlock()
	w.logger.Info("web client connected", "client_id", clientID)

	client.write(WSMessage{Type: "status", Content: "connected", ChatID: chatID})

	defer func() {
		w.mu.Lock()
		delete(w.clients, clientID)
		w.mu.Unlock()
		conn.Close()
		w.logger.Info("web client disconnected", "client_id", clientID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Error("web read error", "err", err)
			}
			return
		}

		var frame WSMessage
		if err := json.Unmarshal(raw, &frame); err != nil {
			w.logger.Warn("invalid web frame", "err", err)
			continue
		}
		if frame.Type != "message" || frame.Content == "" {
			continue
		}
		if !w.allow.Allowed(frame.UserID) {
			client.write(WSMessage{Type: "status", Content: "unauthorized", ChatID: chatID})
			continue
		}

		err = b.PublishInbound(domain.InboundMessage{
			Channel:   "web",
			ChatID:    chatID,
			SenderID:  frame.UserID,
			Content:   frame.Content,
			Timestamp: time.Now(),
		})
		if err != nil {
			w.logger.Error("web inbound publish failed", "err", err)
			return
		}
	}
}

func (c *wsClient) write(msg WSMessage) {
	data, _ := json.Marshal(msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *Web) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, client := range w.clients {
		client.conn.Close()
		delete(w.clients, id)
	}
}
