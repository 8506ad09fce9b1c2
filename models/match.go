package models

import "time"

type MatchStatus string

const (
	// Матч создан, результат ещё не отправлен.
	MatchStatusInProgress MatchStatus = "in_progress"
	// Результат отправлен, ждём подтверждения соперника.
	MatchStatusAwaitingConfirmation MatchStatus = "awaiting_confirmation"
	// Матч заморожен репортом до решения модератора.
	MatchStatusFrozen MatchStatus = "frozen"
	// Терминальное состояние: рейтинги применены, матч закрыт.
	MatchStatusVerified MatchStatus = "verified"
)

type MatchType int

const (
	MatchTypeLadder     MatchType = 1
	MatchTypeTournament MatchType = 2
)

// Match — постоянная запись матча. Никогда не удаляется (кроме purge
// игрока): это журнал для изменений рейтинга и споров.
type Match struct {
	ID           int         `json:"id"`
	Mode         Mode        `json:"mode"`
	Player1      string      `json:"player1"`
	Player2      string      `json:"player2"`
	Status       MatchStatus `json:"status"`
	Player1Score *int        `json:"player1_score,omitempty"`
	Player2Score *int        `json:"player2_score,omitempty"`
	Map          *string     `json:"map,omitempty"`
	// Применённые изменения рейтинга. Заполняются при верификации и
	// нужны для точного отката при техническом поражении.
	RatingDelta1 *int      `json:"rating_delta1,omitempty"`
	RatingDelta2 *int      `json:"rating_delta2,omitempty"`
	StartTime    time.Time `json:"start_time"`
	Type         MatchType `json:"match_type"`
	TournamentID *int      `json:"tournament_id,omitempty"`
	Round        *int      `json:"round,omitempty"`
}

func (m *Match) HasParticipant(nickname string) bool {
	return m.Player1 == nickname || m.Player2 == nickname
}

// Opponent returns the other participant, or "" if nickname is not one of
// the two players.
func (m *Match) Opponent(nickname string) string {
	switch nickname {
	case m.Player1:
		return m.Player2
	case m.Player2:
		return m.Player1
	default:
		return ""
	}
}

// Winner returns the higher-scoring participant. Empty for draws and for
// matches without a recorded score.
func (m *Match) Winner() string {
	if m.Player1Score == nil || m.Player2Score == nil {
		return ""
	}
	switch {
	case *m.Player1Score > *m.Player2Score:
		return m.Player1
	case *m.Player2Score > *m.Player1Score:
		return m.Player2
	default:
		return ""
	}
}

// Unresolved reports whether the match still blocks its participants
// (ladder queueing, bracket progression).
func (m *Match) Unresolved() bool {
	return m.Status != MatchStatusVerified
}
