package models

import "time"

// PendingResult — отправленный, но ещё не подтверждённый результат.
// Не более одного на матч; новая отправка возможна только после
// разрешения предыдущей.
type PendingResult struct {
	MatchID     int       `json:"match_id"`
	Submitter   string    `json:"submitter"`
	Opponent    string    `json:"opponent"`
	Score1      int       `json:"score1"` // score of Match.Player1
	Score2      int       `json:"score2"` // score of Match.Player2
	EvidenceURL string    `json:"evidence_url,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	// Escalated is set once the result reached moderator adjudication
	// (dispute or lapsed confirmation window).
	Escalated bool `json:"escalated"`
}

// PendingReport — жалоба участника, замораживающая матч до решения
// модератора.
type PendingReport struct {
	MatchID  int       `json:"match_id"`
	Reporter string    `json:"reporter"`
	Violator string    `json:"violator"`
	Reason   string    `json:"reason"`
	FiledAt  time.Time `json:"filed_at"`
}

// ModeratorDecision — варианты решения модератора по результату.
type ModeratorDecision string

const (
	DecisionConfirm       ModeratorDecision = "confirm"
	DecisionReject        ModeratorDecision = "reject"
	DecisionTechnicalLoss ModeratorDecision = "technical_loss"
)
