package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/videoflix/backend/internal/model"
	"github.com/videoflix/backend/internal/transcode"
)

// Client represents a WebSocket client. Send is never closed; the hub
// closes done when it drops the client and the writer owns the shutdown.
type Client struct {
	VideoID int64
	Conn    *websocket.Conn
	Send    chan []byte

	done chan struct{}
}

func NewClient(videoID int64, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		VideoID: videoID,
		Conn:    conn,
		Send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
}

// Done is closed once the hub no longer delivers to the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Offer queues data without blocking. It reports false when the queue is
// full or the client was dropped.
func (c *Client) Offer(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub fans conversion progress out to the clients watching a video.
type Hub struct {
	// Clients grouped by video ID
	clients map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	// closed when Run returns
	stopped chan struct{}

	mu  sync.RWMutex
	log zerolog.Logger
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	VideoID int64
	Message []byte
}

// NewHub creates a new Hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		stopped:    make(chan struct{}),
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.VideoID] == nil {
				h.clients[client.VideoID] = make(map[*Client]bool)
			}
			h.clients[client.VideoID][client] = true
			h.mu.Unlock()
			h.log.Debug().Int64("video_id", client.VideoID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.log.Debug().Int64("video_id", client.VideoID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.VideoID] {
				if !client.Offer(msg.Message) {
					// slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.VideoID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.done)
	if len(clients) == 0 {
		delete(h.clients, client.VideoID)
	}
}

// Subscribers returns the number of clients watching videoID.
func (h *Hub) Subscribers(videoID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[videoID])
}

// Register adds a new client. After Run has returned the client is dropped
// right away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		h.mu.Lock()
		select {
		case <-client.done:
		default:
			close(client.done)
		}
		h.mu.Unlock()
	}
}

// Unregister removes a client. It does not block once Run has returned.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// publish never blocks the caller; workers must not stall on slow sockets.
func (h *Hub) publish(videoID int64, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal message")
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{VideoID: videoID, Message: data}:
	default:
		h.log.Warn().Int64("video_id", videoID).Msg("broadcast queue full, dropping message")
	}
}

// Progress implements transcode.Observer.
func (h *Hub) Progress(e transcode.Event) {
	h.publish(e.VideoID, model.WSProgressMessage{
		Type:       model.WSMessageTypeProgress,
		VideoID:    e.VideoID,
		Stage:      e.Stage,
		Resolution: e.Resolution,
		Progress:   e.Progress,
		Status:     e.Status,
	})
}

// Completed implements transcode.Observer.
func (h *Hub) Completed(videoID int64, renditions []string) {
	h.publish(videoID, model.WSCompleteMessage{
		Type:        model.WSMessageTypeComplete,
		VideoID:     videoID,
		Resolutions: renditions,
	})
}

// Failed implements transcode.Observer.
func (h *Hub) Failed(videoID int64, kind transcode.ErrorKind, err error) {
	msg := "conversion failed"
	if err != nil {
		msg = err.Error()
	}
	h.publish(videoID, model.WSErrorMessage{
		Type:    model.WSMessageTypeError,
		VideoID: videoID,
		Error: model.WSError{
			Code:    string(kind),
			Message: msg,
		},
	})
}

// HandleConnection serves one subscriber until either side goes away.
func (h *Hub) HandleConnection(c *websocket.Conn, videoID int64) {
	client := NewClient(videoID, c, 256)

	h.Register(client)
	defer h.Unregister(client)

	quit := make(chan struct{})
	defer close(quit)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message := <-client.Send:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-client.Done():
				// dropped by the hub; unblock the reader
				_ = c.WriteMessage(websocket.CloseMessage, []byte{})
				_ = c.Close()
				return

			case <-quit:
				return

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Int64("video_id", videoID).Msg("websocket error")
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.Offer(data)
		}
	}
}
