package handlers

import (
	"errors"
	"net/http"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/services"
)

// ModeratorHandler — панель модератора: очередь эскалированных
// результатов и жалоб, ручные решения по матчам.
type ModeratorHandler struct {
	resultService services.ResultService
}

func NewModeratorHandler(rs services.ResultService) *ModeratorHandler {
	return &ModeratorHandler{
		resultService: rs,
	}
}

func (h *ModeratorHandler) PendingResults(w http.ResponseWriter, r *http.Request) {
	results := h.resultService.PendingResults()

	response := jsonResponse{
		"pending_results": results,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ModeratorHandler) PendingReports(w http.ResponseWriter, r *http.Request) {
	reports := h.resultService.PendingReports()

	response := jsonResponse{
		"pending_reports": reports,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Resolve применяет решение модератора к спорному результату:
// confirm, reject или technical_loss.
func (h *ModeratorHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	matchID, err := getMatchIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Decision models.ModeratorDecision `json:"decision"`
		// Offender обязателен только для technical_loss.
		Offender string `json:"offender,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	switch input.Decision {
	case models.DecisionConfirm:
		err = h.resultService.ModeratorConfirm(r.Context(), matchID)
	case models.DecisionReject:
		err = h.resultService.ModeratorReject(r.Context(), matchID)
	case models.DecisionTechnicalLoss:
		if input.Offender == "" {
			badRequestResponse(w, r, errors.New("offender is required for a technical loss"))
			return
		}
		err = h.resultService.ApplyTechnicalLoss(r.Context(), matchID, input.Offender)
	default:
		badRequestResponse(w, r, errors.New("decision must be confirm, reject or technical_loss"))
		return
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id": matchID,
		"decision": input.Decision,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveReport закрывает жалобу: accept — техническое поражение
// нарушителю, reject — матч размораживается.
func (h *ModeratorHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	matchID, err := getMatchIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Accept bool `json:"accept"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.resultService.ResolveReport(r.Context(), matchID, input.Accept); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id": matchID,
		"accepted": input.Accept,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
