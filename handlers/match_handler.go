package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/elobot/ladder-system/services"

	"github.com/go-chi/chi/v5"
)

type MatchHandler struct {
	resultService   services.ResultService
	draftService    services.DraftCoordinator
	evidenceService services.EvidenceService
}

func NewMatchHandler(
	rs services.ResultService,
	ds services.DraftCoordinator,
	es services.EvidenceService,
) *MatchHandler {
	return &MatchHandler{
		resultService:   rs,
		draftService:    ds,
		evidenceService: es,
	}
}

// SubmitResult принимает multipart-форму: nickname, own_score,
// opponent_score и файл evidence со скриншотом результата.
func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getMatchIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		badRequestResponse(w, r, errors.New("invalid multipart form"))
		return
	}

	nickname := r.FormValue("nickname")
	if nickname == "" {
		badRequestResponse(w, r, errors.New("nickname is required"))
		return
	}

	ownScore, err := strconv.Atoi(r.FormValue("own_score"))
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid own_score value"))
		return
	}
	opponentScore, err := strconv.Atoi(r.FormValue("opponent_score"))
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid opponent_score value"))
		return
	}

	// Для турнирных матчей скриншот не обязателен, решает сервис.
	var evidenceURL string
	if file, header, err := r.FormFile("evidence"); err == nil {
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			badRequestResponse(w, r, errors.New("evidence content type required"))
			return
		}

		evidenceURL, err = h.evidenceService.Upload(r.Context(), matchID, contentType, file)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
	}

	err = h.resultService.Submit(r.Context(), matchID, nickname, ownScore, opponentScore, evidenceURL)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id":     matchID,
		"evidence_url": evidenceURL,
		"message":      "result submitted, awaiting opponent confirmation",
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ConfirmResult(w http.ResponseWriter, r *http.Request) {
	h.opponentAction(w, r, h.resultService.Confirm, "result confirmed")
}

func (h *MatchHandler) DisputeResult(w http.ResponseWriter, r *http.Request) {
	h.opponentAction(w, r, h.resultService.Dispute, "result disputed, escalated to moderators")
}

func (h *MatchHandler) opponentAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, matchID int, nickname string) error,
	message string,
) {
	matchID, err := getMatchIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Nickname string `json:"nickname"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Nickname == "" {
		badRequestResponse(w, r, errors.New("nickname is required"))
		return
	}

	if err := action(r.Context(), matchID, input.Nickname); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id": matchID,
		"message":  message,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// FileReport — жалоба на нарушение правил в матче. Замораживает матч до
// решения модератора.
func (h *MatchHandler) FileReport(w http.ResponseWriter, r *http.Request) {
	matchID, err := getMatchIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Nickname string `json:"nickname"`
		Reason   string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Nickname == "" || input.Reason == "" {
		badRequestResponse(w, r, errors.New("nickname and reason are required"))
		return
	}

	if err := h.resultService.FileReport(r.Context(), matchID, input.Nickname, input.Reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id": matchID,
		"message":  "report filed, match frozen until moderator review",
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StrikeMap — ход в драфте карт: игрок вычёркивает карту из пула.
func (h *MatchHandler) StrikeMap(w http.ResponseWriter, r *http.Request) {
	matchID, err := getMatchIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Nickname string `json:"nickname"`
		Map      string `json:"map"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Nickname == "" || input.Map == "" {
		badRequestResponse(w, r, errors.New("nickname and map are required"))
		return
	}

	session, err := h.draftService.Strike(r.Context(), matchID, input.Nickname, input.Map)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match_id": matchID,
	}
	if len(session.RemainingMaps) <= 1 {
		response["message"] = "draft resolved"
		if len(session.RemainingMaps) == 1 {
			response["map"] = session.RemainingMaps[0]
		}
	} else {
		response["remaining_maps"] = session.RemainingMaps
		response["current_player"] = session.CurrentPlayer
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	matchID, err := getMatchIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	session, ok := h.draftService.Session(matchID)
	if !ok {
		mapServiceErrorToHTTP(w, r, services.ErrNoActiveDraft)
		return
	}

	response := jsonResponse{
		"match_id":       matchID,
		"remaining_maps": session.RemainingMaps,
		"current_player": session.CurrentPlayer,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func getMatchIDFromURL(r *http.Request) (int, error) {
	idStr := chi.URLParam(r, "matchID")
	if idStr == "" {
		return 0, errors.New("missing match ID in URL path")
	}

	matchID, err := strconv.Atoi(idStr)
	if err != nil || matchID <= 0 {
		return 0, errors.New("invalid match ID value")
	}

	return matchID, nil
}
