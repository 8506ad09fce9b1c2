package models

import "time"

// Participant — слот сетки. Пустые слоты (bye) имеют PlayerID == 0 и
// синтетический никнейм emptyslotN.
type Participant struct {
	PlayerID int    `json:"player_id"`
	Nickname string `json:"nickname"`
}

// IsBye reports whether the slot is a placeholder rather than a real player.
func (p Participant) IsBye() bool {
	return p.PlayerID == 0
}

// Tournament — турнир на выбывание с фиксированным числом слотов
// (степень двойки).
type Tournament struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Slots     int       `json:"slots"`
	Started   bool      `json:"started"`
	CreatedAt time.Time `json:"created_at"`
}

// RoundMatch — матч текущего раунда в памяти координатора сетки.
type RoundMatch struct {
	MatchID  int          `json:"match_id"`
	Player1  Participant  `json:"player1"`
	Player2  Participant  `json:"player2"`
	Winner   *Participant `json:"winner,omitempty"`
	Finished bool         `json:"finished"`
}

// BracketState — сериализуемое состояние активной сетки. Сохраняется
// после каждой мутации, чтобы турнир переживал рестарт процесса.
type BracketState struct {
	TournamentID int           `json:"tournament_id"`
	CurrentRound int           `json:"current_round"`
	Participants []Participant `json:"participants"`
	Winners      []Participant `json:"winners"`
	Matches      []RoundMatch  `json:"matches"`
}
