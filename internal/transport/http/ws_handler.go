package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-contest-service/internal/app"
)

// WSHandler streams live leaderboard updates for a contest over a websocket.
// Clients receive the current standings on connect and a fresh frame after
// every successful submission.
type WSHandler struct {
	results  *app.ResultsService
	feed     *app.LeaderboardFeed
	upgrader websocket.Upgrader
}

func NewWSHandler(results *app.ResultsService, feed *app.LeaderboardFeed) *WSHandler {
	return &WSHandler{
		results: results,
		feed:    feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeLive upgrades the request and wires the connection into the feed.
func (h *WSHandler) ServeLive(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	// Resolve before upgrading so unknown slugs get a proper 404.
	initial, err := h.results.Leaderboard(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe(initial.ContestID)
	defer cancel()

	if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: initial}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain inbound frames just to notice the peer going away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
