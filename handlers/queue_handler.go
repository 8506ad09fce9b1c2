package handlers

import (
	"errors"
	"net/http"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/services"
)

type QueueHandler struct {
	queueService services.QueueService
}

func NewQueueHandler(qs services.QueueService) *QueueHandler {
	return &QueueHandler{
		queueService: qs,
	}
}

func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Nickname  string `json:"nickname"`
		Mode      int    `json:"mode"`
		ChannelID string `json:"channel_id"`
	}

	err := readJSON(w, r, &input)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if input.Nickname == "" {
		badRequestResponse(w, r, errors.New("nickname is required"))
		return
	}

	mode := models.Mode(input.Mode)
	if !mode.Valid() {
		badRequestResponse(w, r, errors.New("invalid mode value"))
		return
	}

	err = h.queueService.Enqueue(r.Context(), input.Nickname, mode, input.ChannelID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"nickname": input.Nickname,
		"mode":     mode.String(),
	}

	err = writeJSON(w, http.StatusCreated, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *QueueHandler) Dequeue(w http.ResponseWriter, r *http.Request) {
	nickname, err := getNicknameFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	err = h.queueService.Dequeue(r.Context(), nickname)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"message": "player removed from the queue",
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Depths отдаёт текущую глубину очереди по каждому режиму.
func (h *QueueHandler) Depths(w http.ResponseWriter, r *http.Request) {
	depths := h.queueService.Depths()

	byName := make(map[string]int, len(depths))
	for mode, depth := range depths {
		byName[mode.String()] = depth
	}

	response := jsonResponse{
		"queues": byName,
	}

	err := writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}
