package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/adlaunch/backend/internal/auth"
	"github.com/adlaunch/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// wsClient serializes writes; the websocket connection is not safe for concurrent writers.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub pushes ad and connection events to the owner of the affected campaign.
type WSHub struct {
	jwtSecret  string
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	clients    map[uuid.UUID][]*wsClient
}

func NewWSHub(jwtSecret string, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		jwtSecret:  jwtSecret,
		subscriber: subscriber,
		log:        log,
		clients:    make(map[uuid.UUID][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	for _, stream := range []string{events.StreamAds, events.StreamConnections} {
		if err := h.subscriber.Subscribe(ctx, stream, h.route); err != nil {
			return err
		}
	}
	return nil
}

func (h *WSHub) route(event events.Event) {
	ownerID, err := uuid.Parse(event.OwnerID())
	if err != nil {
		h.log.Debug("event without owner dropped", zap.String("type", event.Type))
		return
	}
	h.SendToUser(ownerID, event)
}

func (h *WSHub) SendToUser(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := append([]*wsClient(nil), h.clients[userID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("ws write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
}

// Connected reports how many sockets a user has open.
func (h *WSHub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.jwtSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	userID := claims.UserID
	client := &wsClient{conn: conn}
	h.register(userID, client)
	defer func() {
		h.unregister(userID, client)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *WSHub) register(userID uuid.UUID, c *wsClient) {
	h.mu.Lock()
	h.clients[userID] = append(h.clients[userID], c)
	h.mu.Unlock()
}

func (h *WSHub) unregister(userID uuid.UUID, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[userID]
	for i, existing := range clients {
		if existing == c {
			h.clients[userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}
