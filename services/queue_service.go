package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/repositories"
)

// QueueService держит очереди ожидания по режимам и периодически
// составляет пары. Очереди живут в памяти процесса, в базе хранится
// только флаг in_queue для восстановления после рестарта.
type QueueService interface {
	Enqueue(ctx context.Context, nickname string, mode models.Mode, channelID string) error
	Dequeue(ctx context.Context, nickname string) error
	Depths() map[models.Mode]int
	RunPairingPass(ctx context.Context) ([]*models.Match, error)
}

type queueService struct {
	playerRepo repositories.PlayerRepository
	matchRepo  repositories.MatchRepository
	draft      DraftCoordinator
	notifier   Notifier
	logger     *slog.Logger

	mu     sync.Mutex
	queues map[models.Mode][]*models.QueueEntry
	rng    *rand.Rand
}

func NewQueueService(
	playerRepo repositories.PlayerRepository,
	matchRepo repositories.MatchRepository,
	draft DraftCoordinator,
	notifier Notifier,
	logger *slog.Logger,
) QueueService {
	queues := make(map[models.Mode][]*models.QueueEntry)
	queues[models.ModeAny] = nil
	for _, mode := range models.ConcreteModes {
		queues[mode] = nil
	}
	return &queueService{
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		draft:      draft,
		notifier:   notifier,
		logger:     logger,
		queues:     queues,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *queueService) Enqueue(ctx context.Context, nickname string, mode models.Mode, channelID string) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}

	player, err := s.playerRepo.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to load player for enqueue: %w", err)
	}
	if player.IsBanned {
		return ErrPlayerBanned
	}
	if player.IsBlacklisted {
		return ErrPlayerBlacklisted
	}

	hasActive, err := s.matchRepo.HasUnresolvedLadderMatch(ctx, nickname)
	if err != nil {
		return fmt.Errorf("failed to check active matches: %w", err)
	}
	if hasActive {
		return ErrActiveMatchExists
	}

	// Для any-режима ключом подбора служит суммарный рейтинг,
	// для остальных — рейтинг конкретного режима.
	rating := player.CurrentElo
	if mode != models.ModeAny {
		rating = player.ModeRating(mode)
	}

	s.mu.Lock()
	if s.findEntryLocked(nickname) != nil {
		s.mu.Unlock()
		return ErrAlreadyQueued
	}
	entry := &models.QueueEntry{
		Nickname:  nickname,
		Mode:      mode,
		Rating:    rating,
		JoinedAt:  time.Now(),
		ChannelID: channelID,
	}
	s.queues[mode] = append(s.queues[mode], entry)
	s.mu.Unlock()

	if err := s.playerRepo.SetInQueue(ctx, nickname, true); err != nil {
		s.logger.Warn("failed to persist in_queue flag", slog.String("player", nickname), slog.Any("error", err))
	}
	return nil
}

// Dequeue убирает игрока из всех очередей. Идемпотентна: повторный
// вызов для того же игрока ничего не меняет и не считается ошибкой.
func (s *queueService) Dequeue(ctx context.Context, nickname string) error {
	s.mu.Lock()
	for mode, entries := range s.queues {
		for i, e := range entries {
			if e.Nickname == nickname {
				s.queues[mode] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if err := s.playerRepo.SetInQueue(ctx, nickname, false); err != nil && !errors.Is(err, repositories.ErrPlayerNotFound) {
		s.logger.Warn("failed to clear in_queue flag", slog.String("player", nickname), slog.Any("error", err))
	}
	return nil
}

func (s *queueService) Depths() map[models.Mode]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	depths := make(map[models.Mode]int, len(s.queues))
	for mode, entries := range s.queues {
		depths[mode] = len(entries)
	}
	return depths
}

// RunPairingPass составляет не больше одной пары на конкретный режим
// за проход плюс одну пару с участием any-очереди. Any-очередь — мост
// между режимами: конкретные режимы между собой не смешиваются.
func (s *queueService) RunPairingPass(ctx context.Context) ([]*models.Match, error) {
	active, err := s.activeLadderPlayers(ctx)
	if err != nil {
		return nil, err
	}

	var created []*models.Match

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mode := range models.ConcreteModes {
		eligible := s.eligibleLocked(mode, active)
		if len(eligible) < 2 {
			continue
		}
		head := eligible[0]
		partner := closestByRating(head, eligible[1:])
		if partner == nil {
			continue
		}
		match := s.createLadderMatchLocked(ctx, mode, head, partner)
		if match != nil {
			created = append(created, match)
			active[head.Nickname] = true
			active[partner.Nickname] = true
		}
	}

	anyEligible := s.eligibleLocked(models.ModeAny, active)
	if len(anyEligible) > 0 {
		head := anyEligible[0]

		// Сначала ищем партнёра в конкретных очередях.
		var partner *models.QueueEntry
		bestDiff := 0
		for _, mode := range models.ConcreteModes {
			for _, e := range s.eligibleLocked(mode, active) {
				diff := abs(head.Rating - e.Rating)
				if partner == nil || diff < bestDiff {
					partner = e
					bestDiff = diff
				}
			}
		}

		if partner != nil {
			match := s.createLadderMatchLocked(ctx, partner.Mode, head, partner)
			if match != nil {
				created = append(created, match)
			}
		} else if len(anyEligible) >= 2 {
			partner = closestByRating(head, anyEligible[1:])
			mode := models.ConcreteModes[s.rng.Intn(len(models.ConcreteModes))]
			match := s.createLadderMatchLocked(ctx, mode, head, partner)
			if match != nil {
				created = append(created, match)
			}
		}
	}

	return created, nil
}

func (s *queueService) activeLadderPlayers(ctx context.Context) (map[string]bool, error) {
	matches, err := s.matchRepo.ListUnresolvedByType(ctx, models.MatchTypeLadder)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved ladder matches: %w", err)
	}
	active := make(map[string]bool, len(matches)*2)
	for _, m := range matches {
		active[m.Player1] = true
		active[m.Player2] = true
	}
	return active, nil
}

// eligibleLocked возвращает записи очереди режима без игроков с
// активным ладдерным матчем, отсортированные по времени входа.
func (s *queueService) eligibleLocked(mode models.Mode, active map[string]bool) []*models.QueueEntry {
	entries := make([]*models.QueueEntry, 0, len(s.queues[mode]))
	for _, e := range s.queues[mode] {
		if !active[e.Nickname] {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})
	return entries
}

// closestByRating выбирает запись с минимальной разницей рейтинга.
// При равенстве выигрывает более ранний вход (строгое сравнение при
// переборе в порядке времени).
func closestByRating(head *models.QueueEntry, candidates []*models.QueueEntry) *models.QueueEntry {
	var best *models.QueueEntry
	bestDiff := 0
	for _, c := range candidates {
		diff := abs(head.Rating - c.Rating)
		if best == nil || diff < bestDiff {
			best = c
			bestDiff = diff
		}
	}
	return best
}

// createLadderMatchLocked создаёт матч для пары, убирает обе записи из
// очередей и запускает черкание карт для режимов, где оно требуется.
// При ошибке создания обе записи возвращаются в свои очереди.
func (s *queueService) createLadderMatchLocked(ctx context.Context, mode models.Mode, e1, e2 *models.QueueEntry) *models.Match {
	s.removeEntryLocked(e1)
	s.removeEntryLocked(e2)

	match := &models.Match{
		Mode:      mode,
		Player1:   e1.Nickname,
		Player2:   e2.Nickname,
		Status:    models.MatchStatusInProgress,
		Type:      models.MatchTypeLadder,
		StartTime: time.Now(),
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		s.logger.Error("failed to create ladder match",
			slog.String("player1", e1.Nickname),
			slog.String("player2", e2.Nickname),
			slog.Any("error", err))
		s.queues[e1.Mode] = append(s.queues[e1.Mode], e1)
		s.queues[e2.Mode] = append(s.queues[e2.Mode], e2)
		return nil
	}

	for _, nickname := range []string{e1.Nickname, e2.Nickname} {
		if err := s.playerRepo.SetInQueue(ctx, nickname, false); err != nil {
			s.logger.Warn("failed to clear in_queue flag", slog.String("player", nickname), slog.Any("error", err))
		}
	}

	s.notifier.NotifyPlayer(e1.Nickname, EventMatchCreated, matchFoundPayload(match, e2.Nickname))
	s.notifier.NotifyPlayer(e2.Nickname, EventMatchCreated, matchFoundPayload(match, e1.Nickname))

	s.logger.Info("ladder match created",
		slog.Int("match_id", match.ID),
		slog.String("mode", mode.String()),
		slog.String("player1", match.Player1),
		slog.String("player2", match.Player2))

	if mode.RequiresMapDraft() {
		if err := s.draft.Start(ctx, match); err != nil {
			s.logger.Error("failed to start map draft", slog.Int("match_id", match.ID), slog.Any("error", err))
		}
	}
	return match
}

func (s *queueService) findEntryLocked(nickname string) *models.QueueEntry {
	for _, entries := range s.queues {
		for _, e := range entries {
			if e.Nickname == nickname {
				return e
			}
		}
	}
	return nil
}

func (s *queueService) removeEntryLocked(target *models.QueueEntry) {
	entries := s.queues[target.Mode]
	for i, e := range entries {
		if e.Nickname == target.Nickname {
			s.queues[target.Mode] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func matchFoundPayload(match *models.Match, opponent string) map[string]interface{} {
	return map[string]interface{}{
		"match_id": match.ID,
		"mode":     match.Mode.String(),
		"opponent": opponent,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
