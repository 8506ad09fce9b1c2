package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/elobot/ladder-system/realtime"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin,
		// чтобы разрешать подключения только с доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub *realtime.Hub
}

func NewWebSocketHandler(hub *realtime.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// ServePlayer подключает игрока к его персональной комнате уведомлений:
// создание матча, ходы драфта, судьба результата.
func (h *WebSocketHandler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	nickname := chi.URLParam(r, "nickname")
	if nickname == "" {
		http.Error(w, "Missing nickname", http.StatusBadRequest)
		return
	}

	h.serve(w, r, realtime.PlayerRoom(nickname))
}

// ServeModerator подключает модератора к общей комнате эскалаций.
// Маршрут закрыт JWT-middleware.
func (h *WebSocketHandler) ServeModerator(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, realtime.RoomModerator)
}

// ServeTournament транслирует события сетки конкретного турнира.
func (h *WebSocketHandler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	tournamentIDStr := chi.URLParam(r, "tournamentID")
	tournamentID, err := strconv.Atoi(tournamentIDStr)
	if err != nil || tournamentID <= 0 {
		http.Error(w, "Invalid tournamentID", http.StatusBadRequest)
		return
	}

	h.serve(w, r, realtime.TournamentRoom(tournamentID))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, roomID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту.
		log.Printf("Failed to upgrade connection for room %s: %v", roomID, err)
		return
	}

	client := &realtime.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: roomID,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Printf("Client registered in room %s", roomID)
}
