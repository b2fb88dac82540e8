package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refermart/refermart_backend/models"
)

// Notification types pushed by the compensation engine.
const (
	NotificationTypeEarningCredited = "earning_credited"
	NotificationTypeStageAdvanced   = "stage_advanced"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	MemberID primitive.ObjectID
	Conn     *websocket.Conn
}

// Hub maintains the set of active clients and pushes engine events to them.
type Hub struct {
	clients    map[primitive.ObjectID]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.MemberID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.MemberID]; ok {
				delete(h.clients, client.MemberID)
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// SendToMember sends a message to a specific member
func (h *Hub) SendToMember(memberID primitive.ObjectID, notification Notification) error {
	h.mu.RLock()
	client, ok := h.clients[memberID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("member not connected")
	}

	return client.Conn.WriteJSON(notification)
}

// NotifyEarningCredited pushes a bonus credit to its beneficiary. Implements
// the compensation service's Notifier; a disconnected member is not an error.
func (h *Hub) NotifyEarningCredited(memberID primitive.ObjectID, credit models.CreditedAncestor) {
	h.SendToMember(memberID, Notification{
		Type:    NotificationTypeEarningCredited,
		Message: fmt.Sprintf("You earned a level %d referral bonus", credit.Level),
		Data:    credit,
	})
}

// NotifyStageAdvanced tells a member their matrix completed and they moved up.
func (h *Hub) NotifyStageAdvanced(memberID primitive.ObjectID, transition models.StageTransition) {
	h.SendToMember(memberID, Notification{
		Type:    NotificationTypeStageAdvanced,
		Message: fmt.Sprintf("You advanced from %s to %s", transition.FromStage, transition.ToStage),
		Data:    transition,
	})
}
