package models

// DraftSession — состояние черкания карт для одного матча.
// Эфемерно: уничтожается при выборе финальной карты.
type DraftSession struct {
	ID      int
	MatchID int
	Player1 string
	Player2 string
	// Ordered pool of maps still in play. The last surviving entry is the
	// selected map.
	RemainingMaps []string
	// Whose turn it is to strike a map.
	CurrentPlayer string
}

func (s *DraftSession) OtherPlayer(nickname string) string {
	if nickname == s.Player1 {
		return s.Player2
	}
	return s.Player1
}

// Resolved reports whether exactly one map survived the draft.
func (s *DraftSession) Resolved() bool {
	return len(s.RemainingMaps) <= 1
}
