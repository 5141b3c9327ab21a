package websocket

import "github.com/user/darkpool/backend/internal/models"

// Event is the envelope sent to feed subscribers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// EngineSink adapts the hub to the engine's event interface.
type EngineSink struct {
	Hub *Hub
}

func (s EngineSink) TradeExecuted(trade models.Trade) {
	s.Hub.Broadcast(Event{Type: "trade", Data: trade})
}

func (s EngineSink) RevealCompleted(result models.RevealResult) {
	s.Hub.Broadcast(Event{Type: "reveal", Data: result})
}
