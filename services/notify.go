package services

// Notifier рассылает события заинтересованным сторонам. Доставка
// fire-and-forget: сервисы не ждут подтверждения и не откатывают
// операции из-за недоставленных уведомлений.
type Notifier interface {
	NotifyPlayer(nickname string, event string, payload interface{})
	NotifyModerators(event string, payload interface{})
	NotifyTournament(tournamentID int, event string, payload interface{})
}

// Имена событий, отправляемых через Notifier.
const (
	EventMatchCreated     = "match_created"
	EventDraftTurn        = "draft_turn"
	EventDraftResolved    = "draft_resolved"
	EventResultSubmitted  = "result_submitted"
	EventResultConfirmed  = "result_confirmed"
	EventResultRejected   = "result_rejected"
	EventResultEscalated  = "result_escalated"
	EventReportFiled      = "report_filed"
	EventReportResolved   = "report_resolved"
	EventMatchExpired     = "match_expired"
	EventTournamentRound  = "tournament_round"
	EventTournamentWinner = "tournament_winner"
)

// NopNotifier отбрасывает все уведомления. Используется, когда хаб не поднят.
type NopNotifier struct{}

func (NopNotifier) NotifyPlayer(string, string, interface{})  {}
func (NopNotifier) NotifyModerators(string, interface{})      {}
func (NopNotifier) NotifyTournament(int, string, interface{}) {}
