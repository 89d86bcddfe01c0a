package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"autotrader/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEvent struct {
	Event   events.Event `json:"event"`
	At      time.Time    `json:"at"`
	Payload any          `json:"payload"`
}

// websocket streams session and execution events to the client.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := []events.Event{
		events.EventSessionStarted,
		events.EventSessionStopped,
		events.EventExecution,
		events.EventPositionClosed,
		events.EventSignal,
	}

	merged := make(chan wsEvent, 100)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range topics {
		stream, unsub := s.Bus.Subscribe(topic, 100)
		defer unsub()
		go func() {
			for msg := range stream {
				select {
				case merged <- wsEvent{Event: msg.Topic, At: msg.At, Payload: msg.Payload}:
				case <-done:
					return
				}
			}
		}()
	}

	for ev := range merged {
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug().Err(err).Msg("ws write failed, closing")
			return
		}
	}
}
