package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Same policy as the CORS middleware
		return true
	},
}

// Hub рассылает события модальностей всех идущих оценок клиентам
// мониторинга на /ws/events. Реализует service.Sink
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu sync.RWMutex

	sent    atomic.Int64
	dropped atomic.Int64
}

// Client - один подписчик /ws/events
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Only events of this assessment are forwarded when set
	assessmentID string
}

// NewHub создает хаб. Рассылка начинается после вызова Run
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run обслуживает подписки и рассылку до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WEBSOCKET] Client registered: %p, assessment filter: %q", client, client.assessmentID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WEBSOCKET] Client unregistered: %p", client)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) deliver(message []byte) {
	var probe struct {
		AssessmentID string `json:"assessment_id"`
	}
	_ = json.Unmarshal(message, &probe)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.assessmentID != "" && client.assessmentID != probe.AssessmentID {
			continue
		}
		select {
		case client.send <- message:
			h.sent.Add(1)
		default:
			delete(h.clients, client)
			close(client.send)
			h.dropped.Add(1)
		}
	}
}

// Consume ставит e в очередь рассылки и никогда не блокирует оценку
func (h *Hub) Consume(ctx context.Context, e models.ModalityEvent) error {
	message, err := json.Marshal(e)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
		log.Printf("[WARN] Broadcast channel full, dropping %s event for %s", e.Modality, e.AssessmentID)
	}
	return nil
}

// ClientCount возвращает число подключенных подписчиков
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetStats возвращает статистику хаба для /debug/stats
func (h *Hub) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"clients": h.ClientCount(),
		"sent":    h.sent.Load(),
		"dropped": h.dropped.Load(),
	}
}

// HandleWebSocket подписывает клиента на события модальностей.
// Необязательный параметр assessment_id оставляет события одной оценки.
// ID генерируется сервером, если клиент не передал свой assessment_id
// в POST /api/assessments или в StreamRequest, поэтому для фильтрации
// до старта оценки клиент задает UUID сам.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, 256),
		assessmentID: r.URL.Query().Get("assessment_id"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump только ждет закрытия, подписчики ничего не шлют
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ERROR] WebSocket error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("[ERROR] Failed to write message: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
