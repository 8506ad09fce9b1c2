package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ошибки валидации и бизнес-правил
	ErrValidationFailed  = errors.New("validation failed") // Общая ошибка валидации
	ErrInvalidMode       = errors.New("unknown game mode")
	ErrScoresEqual       = errors.New("match score cannot be a tie")
	ErrNegativeScore     = errors.New("match score cannot be negative")
	ErrNoEvidence        = errors.New("result evidence screenshot is required")
	ErrMapNotInPool      = errors.New("map is not in the remaining pool")
	ErrInvalidSlotCount  = errors.New("slot count must be a power of two between 2 and 64")
	ErrPasswordTooShort  = errors.New("password is too short")
	ErrInvalidCredential = errors.New("invalid username or password")

	// Ошибки состояния очереди и матчей
	ErrAlreadyQueued     = errors.New("player is already in the queue")
	ErrActiveMatchExists = errors.New("player already has an unresolved ladder match")
	ErrMatchFrozen       = errors.New("match is frozen by a pending report")
	ErrMatchFinished     = errors.New("match is already verified")
	ErrNotAParticipant   = errors.New("player is not a participant of this match")
	ErrNotOpponent       = errors.New("only the opponent can act on this result")
	ErrNotYourTurn       = errors.New("it is not this player's turn to strike")
	ErrNoActiveDraft     = errors.New("no active map draft for this match")
	ErrNoPendingResult   = errors.New("no pending result for this match")
	ErrNoPendingReport   = errors.New("no pending report for this match")
	ErrReportPending     = errors.New("a report is already pending for this match")
	ErrResultPending     = errors.New("a result is already awaiting confirmation")

	// Ошибки турниров
	ErrTournamentFull       = errors.New("tournament registration is full")
	ErrTournamentStarted    = errors.New("tournament has already started")
	ErrTournamentNotStarted = errors.New("tournament has not started yet")
	ErrAlreadyRegistered    = errors.New("player is already registered for this tournament")
	ErrNotRegistered        = errors.New("player is not registered for this tournament")
	ErrTournamentBanned     = errors.New("player is banned from this tournament")
	ErrNotTournamentMatch   = errors.New("match does not belong to this tournament")
	ErrWinnerNotParticipant = errors.New("winner is not a participant of this match")
	ErrRoundMatchFinished   = errors.New("bracket match already has a winner")

	// Ошибки конфликтов
	ErrNicknameConflict       = errors.New("nickname is already in use")
	ErrExternalIDConflict     = errors.New("external account is already linked to a player")
	ErrUsernameConflict       = errors.New("moderator username is already in use")
	ErrTournamentNameConflict = errors.New("tournament name already exists")

	// Ошибки доступа
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
	ErrPlayerBanned       = errors.New("player is banned from the ladder")
	ErrPlayerBlacklisted  = errors.New("player is blacklisted")

	// Ошибки, специфичные для сущностей
	ErrPlayerNotFound     = errors.New("player not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrModeratorNotFound  = errors.New("moderator not found")
)
