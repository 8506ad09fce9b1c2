package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/repositories"
)

// DraftCoordinator ведёт черкание карт: игроки по очереди вычеркивают
// карты из пула, пока не останется одна. Просроченный ход вычеркивает
// случайную карту, так что черкание всегда завершается не более чем за
// N-1 ходов.
type DraftCoordinator interface {
	Start(ctx context.Context, match *models.Match) error
	Strike(ctx context.Context, matchID int, nickname, mapName string) (*models.DraftSession, error)
	Session(matchID int) (*models.DraftSession, bool)
	Cancel(matchID int)
}

type draftRun struct {
	session *models.DraftSession
	turn    int
	timer   *time.Timer
}

type draftCoordinator struct {
	matchRepo   repositories.MatchRepository
	notifier    Notifier
	logger      *slog.Logger
	turnTimeout time.Duration

	mu     sync.Mutex
	drafts map[int]*draftRun
	rng    *rand.Rand
	nextID int
}

func NewDraftCoordinator(
	matchRepo repositories.MatchRepository,
	notifier Notifier,
	logger *slog.Logger,
	turnTimeout time.Duration,
) DraftCoordinator {
	return &draftCoordinator{
		matchRepo:   matchRepo,
		notifier:    notifier,
		logger:      logger,
		turnTimeout: turnTimeout,
		drafts:      make(map[int]*draftRun),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *draftCoordinator) Start(ctx context.Context, match *models.Match) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.drafts[match.ID]; ok {
		return fmt.Errorf("map draft already active for match %d", match.ID)
	}

	pool := make([]string, len(models.MapPool))
	copy(pool, models.MapPool)

	c.nextID++
	run := &draftRun{
		session: &models.DraftSession{
			ID:            c.nextID,
			MatchID:       match.ID,
			Player1:       match.Player1,
			Player2:       match.Player2,
			RemainingMaps: pool,
			CurrentPlayer: match.Player1,
		},
	}
	c.drafts[match.ID] = run
	c.scheduleTurnLocked(run)
	c.notifyTurnLocked(run)
	return nil
}

// Strike вычеркивает карту вручную. Ходить может только участник
// матча и только в свой ход.
func (c *draftCoordinator) Strike(ctx context.Context, matchID int, nickname, mapName string) (*models.DraftSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.drafts[matchID]
	if !ok {
		return nil, ErrNoActiveDraft
	}
	sess := run.session
	if nickname != sess.Player1 && nickname != sess.Player2 {
		return nil, ErrNotAParticipant
	}
	if nickname != sess.CurrentPlayer {
		return nil, ErrNotYourTurn
	}
	if !removeMap(sess, mapName) {
		return nil, ErrMapNotInPool
	}

	c.advanceLocked(ctx, run)
	return sess, nil
}

func (c *draftCoordinator) Session(matchID int) (*models.DraftSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.drafts[matchID]
	if !ok {
		return nil, false
	}
	copied := *run.session
	copied.RemainingMaps = append([]string(nil), run.session.RemainingMaps...)
	return &copied, true
}

// Cancel снимает активное черкание, например когда матч заморожен
// жалобой. Отсутствие сессии не ошибка.
func (c *draftCoordinator) Cancel(matchID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run, ok := c.drafts[matchID]; ok {
		if run.timer != nil {
			run.timer.Stop()
		}
		delete(c.drafts, matchID)
	}
}

// advanceLocked фиксирует вычеркнутую карту: либо завершает черкание,
// либо передаёт ход второму игроку и перезапускает таймер.
func (c *draftCoordinator) advanceLocked(ctx context.Context, run *draftRun) {
	sess := run.session
	run.turn++
	if run.timer != nil {
		run.timer.Stop()
	}

	if sess.Resolved() {
		c.resolveLocked(ctx, run)
		return
	}

	sess.CurrentPlayer = sess.OtherPlayer(sess.CurrentPlayer)
	c.scheduleTurnLocked(run)
	c.notifyTurnLocked(run)
}

func (c *draftCoordinator) resolveLocked(ctx context.Context, run *draftRun) {
	sess := run.session
	delete(c.drafts, sess.MatchID)

	selected := ""
	if len(sess.RemainingMaps) > 0 {
		selected = sess.RemainingMaps[0]
	}

	if err := c.matchRepo.SetMap(ctx, sess.MatchID, selected); err != nil {
		c.logger.Error("failed to persist drafted map",
			slog.Int("match_id", sess.MatchID),
			slog.String("map", selected),
			slog.Any("error", err))
	}

	c.notifier.NotifyPlayer(sess.Player1, EventDraftResolved, map[string]interface{}{
		"match_id": sess.MatchID,
		"map":      selected,
		"opponent": sess.Player2,
	})
	c.notifier.NotifyPlayer(sess.Player2, EventDraftResolved, map[string]interface{}{
		"match_id": sess.MatchID,
		"map":      selected,
		"opponent": sess.Player1,
	})

	c.logger.Info("map draft resolved", slog.Int("match_id", sess.MatchID), slog.String("map", selected))
}

// scheduleTurnLocked взводит таймер хода. Сработавший таймер сверяет
// номер хода: если черкание уже продвинулось или завершилось, он
// ничего не делает.
func (c *draftCoordinator) scheduleTurnLocked(run *draftRun) {
	matchID := run.session.MatchID
	turn := run.turn
	run.timer = time.AfterFunc(c.turnTimeout, func() {
		c.autoStrike(matchID, turn)
	})
}

func (c *draftCoordinator) autoStrike(matchID, turn int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.drafts[matchID]
	if !ok || run.turn != turn {
		return
	}
	sess := run.session
	if len(sess.RemainingMaps) == 0 {
		return
	}

	struck := sess.RemainingMaps[c.rng.Intn(len(sess.RemainingMaps))]
	removeMap(sess, struck)

	c.logger.Info("draft turn timed out, map struck automatically",
		slog.Int("match_id", matchID),
		slog.String("player", sess.CurrentPlayer),
		slog.String("map", struck))

	c.advanceLocked(context.Background(), run)
}

func (c *draftCoordinator) notifyTurnLocked(run *draftRun) {
	sess := run.session
	payload := map[string]interface{}{
		"match_id":       sess.MatchID,
		"remaining_maps": append([]string(nil), sess.RemainingMaps...),
		"current_player": sess.CurrentPlayer,
	}
	c.notifier.NotifyPlayer(sess.CurrentPlayer, EventDraftTurn, payload)
	c.notifier.NotifyPlayer(sess.OtherPlayer(sess.CurrentPlayer), EventDraftTurn, payload)
}

func removeMap(sess *models.DraftSession, mapName string) bool {
	for i, m := range sess.RemainingMaps {
		if m == mapName {
			sess.RemainingMaps = append(sess.RemainingMaps[:i], sess.RemainingMaps[i+1:]...)
			return true
		}
	}
	return false
}
