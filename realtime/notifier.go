package realtime

import "strconv"

// Room name prefixes. Handlers use the same scheme when subscribing.
const (
	RoomModerator        = "moderator"
	RoomPlayerPrefix     = "player_"
	RoomTournamentPrefix = "tournament_"
)

func PlayerRoom(nickname string) string {
	return RoomPlayerPrefix + nickname
}

func TournamentRoom(tournamentID int) string {
	return RoomTournamentPrefix + strconv.Itoa(tournamentID)
}

// HubNotifier доставляет события сервисов в комнаты websocket-хаба.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyPlayer(nickname string, event string, payload interface{}) {
	room := PlayerRoom(nickname)
	n.hub.BroadcastToRoom(room, Message{Type: event, Payload: payload, RoomID: room})
}

func (n *HubNotifier) NotifyModerators(event string, payload interface{}) {
	n.hub.BroadcastToRoom(RoomModerator, Message{Type: event, Payload: payload, RoomID: RoomModerator})
}

func (n *HubNotifier) NotifyTournament(tournamentID int, event string, payload interface{}) {
	room := TournamentRoom(tournamentID)
	n.hub.BroadcastToRoom(room, Message{Type: event, Payload: payload, RoomID: room})
}
