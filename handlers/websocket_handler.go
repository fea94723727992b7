package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/matchday-app/matchday-system/realtime"
	"github.com/matchday-app/matchday-system/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to trusted origins before exposing publicly.
		return true
	},
}

type WebSocketHandler struct {
	hub          *realtime.Hub
	matchService services.MatchService
}

func NewWebSocketHandler(hub *realtime.Hub, matchService services.MatchService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, matchService: matchService}
}

// ServeWs subscribes the client to live events for one match.
// Clients connect to /ws/matches/{matchID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.matchService.GetMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		log.Printf("websocket upgrade failed for match %d: %v", matchID, err)
		return
	}

	client := &realtime.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: services.MatchRoomID(matchID),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
