package models

import "time"

const DefaultRating = 1000

// Player — запись игрока лестницы. Создаётся при верификации,
// жёстко удаляется только модераторским purge.
type Player struct {
	ID         int    `json:"id"`
	Nickname   string `json:"nickname"`
	ExternalID string `json:"external_id"`

	CurrentElo   int `json:"current_elo"`
	EloStation5F int `json:"elo_station5f"`
	EloMotS      int `json:"elo_mots"`
	Elo12Min     int `json:"elo_12min"`

	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Ties   int `json:"ties"`

	WinsStation5F   int `json:"wins_station5f"`
	LossesStation5F int `json:"losses_station5f"`
	TiesStation5F   int `json:"ties_station5f"`
	WinsMotS        int `json:"wins_mots"`
	LossesMotS      int `json:"losses_mots"`
	TiesMotS        int `json:"ties_mots"`
	Wins12Min       int `json:"wins_12min"`
	Losses12Min     int `json:"losses_12min"`
	Ties12Min       int `json:"ties_12min"`

	InQueue       bool      `json:"in_queue"`
	IsBanned      bool      `json:"is_banned"`
	IsBlacklisted bool      `json:"is_blacklisted"`
	CreatedAt     time.Time `json:"created_at"`
}

// ModeRating returns the player's rating for a concrete mode.
// For ModeAny the aggregate rating is used as the pairing key.
func (p *Player) ModeRating(mode Mode) int {
	switch mode {
	case ModeStation5F:
		return p.EloStation5F
	case ModeMotS:
		return p.EloMotS
	case Mode12Min:
		return p.Elo12Min
	default:
		return p.CurrentElo
	}
}
