package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeNotifier копит отправленные уведомления для проверок в тестах.
type fakeNotifier struct {
	mu             sync.Mutex
	player         map[string][]string // nickname -> events
	playerPayloads map[string][]interface{}
	moderators     []string
	tournament     map[int][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		player:         make(map[string][]string),
		playerPayloads: make(map[string][]interface{}),
		tournament:     make(map[int][]string),
	}
}

func (n *fakeNotifier) NotifyPlayer(nickname, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.player[nickname] = append(n.player[nickname], event)
	n.playerPayloads[nickname] = append(n.playerPayloads[nickname], payload)
}

func (n *fakeNotifier) NotifyModerators(event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.moderators = append(n.moderators, event)
}

func (n *fakeNotifier) NotifyTournament(tournamentID int, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tournament[tournamentID] = append(n.tournament[tournamentID], event)
}

func (n *fakeNotifier) playerEvents(nickname string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.player[nickname]...)
}

func (n *fakeNotifier) moderatorEvents() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.moderators...)
}

// lastPlayerPayload возвращает payload последнего уведомления игрока.
func (n *fakeNotifier) lastPlayerPayload(nickname string) interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	payloads := n.playerPayloads[nickname]
	if len(payloads) == 0 {
		return nil
	}
	return payloads[len(payloads)-1]
}

// fakeDraft записывает запуски и отмены черкания.
type fakeDraft struct {
	mu        sync.Mutex
	started   []int
	cancelled []int
}

func (d *fakeDraft) Start(ctx context.Context, match *models.Match) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = append(d.started, match.ID)
	return nil
}

func (d *fakeDraft) Strike(ctx context.Context, matchID int, nickname, mapName string) (*models.DraftSession, error) {
	return nil, ErrNoActiveDraft
}

func (d *fakeDraft) Session(matchID int) (*models.DraftSession, bool) {
	return nil, false
}

func (d *fakeDraft) Cancel(matchID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled = append(d.cancelled, matchID)
}

func (d *fakeDraft) startedMatches() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.started...)
}

// fakePlayerRepo — игроки в памяти, с той же семантикой рейтингов и
// счётчиков, что и SQL-реализация.
type fakePlayerRepo struct {
	mu      sync.Mutex
	players map[string]*models.Player
	nextID  int
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[string]*models.Player)}
}

func (r *fakePlayerRepo) addPlayer(nickname string, ratings map[models.Mode]int) *models.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	p := &models.Player{
		ID:           r.nextID,
		Nickname:     nickname,
		ExternalID:   nickname + "-ext",
		EloStation5F: models.DefaultRating,
		EloMotS:      models.DefaultRating,
		Elo12Min:     models.DefaultRating,
		CreatedAt:    time.Now(),
	}
	for mode, rating := range ratings {
		switch mode {
		case models.ModeStation5F:
			p.EloStation5F = rating
		case models.ModeMotS:
			p.EloMotS = rating
		case models.Mode12Min:
			p.Elo12Min = rating
		}
	}
	p.CurrentElo = p.EloStation5F + p.EloMotS + p.Elo12Min
	r.players[nickname] = p
	return p
}

func (r *fakePlayerRepo) Create(ctx context.Context, player *models.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[player.Nickname]; ok {
		return repositories.ErrPlayerNicknameConflict
	}
	r.nextID++
	player.ID = r.nextID
	player.CreatedAt = time.Now()
	copied := *player
	r.players[player.Nickname] = &copied
	return nil
}

func (r *fakePlayerRepo) GetByNickname(ctx context.Context, nickname string) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[nickname]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePlayerRepo) GetByExternalID(ctx context.Context, externalID string) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.ExternalID == externalID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (r *fakePlayerRepo) UpdateModeRating(ctx context.Context, nickname string, mode models.Mode, newRating int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[nickname]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	switch mode {
	case models.ModeStation5F:
		p.EloStation5F = newRating
	case models.ModeMotS:
		p.EloMotS = newRating
	case models.Mode12Min:
		p.Elo12Min = newRating
	}
	p.CurrentElo = p.EloStation5F + p.EloMotS + p.Elo12Min
	return nil
}

func (r *fakePlayerRepo) AdjustRecord(ctx context.Context, nickname string, mode models.Mode, wins, losses, ties int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[nickname]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.Wins += wins
	p.Losses += losses
	p.Ties += ties
	switch mode {
	case models.ModeStation5F:
		p.WinsStation5F += wins
		p.LossesStation5F += losses
		p.TiesStation5F += ties
	case models.ModeMotS:
		p.WinsMotS += wins
		p.LossesMotS += losses
		p.TiesMotS += ties
	case models.Mode12Min:
		p.Wins12Min += wins
		p.Losses12Min += losses
		p.Ties12Min += ties
	}
	return nil
}

func (r *fakePlayerRepo) SetInQueue(ctx context.Context, nickname string, inQueue bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[nickname]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.InQueue = inQueue
	return nil
}

func (r *fakePlayerRepo) ClearAllInQueue(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		p.InQueue = false
	}
	return nil
}

func (r *fakePlayerRepo) SetBanned(ctx context.Context, nickname string, banned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[nickname]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.IsBanned = banned
	return nil
}

func (r *fakePlayerRepo) SetBlacklisted(ctx context.Context, nickname string, blacklisted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[nickname]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.IsBlacklisted = blacklisted
	return nil
}

func (r *fakePlayerRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, nickname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[nickname]; !ok {
		return repositories.ErrPlayerNotFound
	}
	delete(r.players, nickname)
	return nil
}

func (r *fakePlayerRepo) Leaderboard(ctx context.Context, mode models.Mode, limit int) ([]*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Player, 0, len(r.players))
	for _, p := range r.players {
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if mode == models.ModeAny {
			return out[i].CurrentElo > out[j].CurrentElo
		}
		return out[i].ModeRating(mode) > out[j].ModeRating(mode)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeMatchRepo — матчи в памяти. GetByID возвращает копию, как и SQL
// реализация.
type fakeMatchRepo struct {
	mu        sync.Mutex
	matches   map[int]*models.Match
	nextID    int
	createErr error // если задана, Create возвращает её
}

func (r *fakeMatchRepo) failCreates(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) Create(ctx context.Context, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	match.ID = r.nextID
	copied := *match
	r.matches[match.ID] = &copied
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, id int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) SetResult(ctx context.Context, id int, score1, score2, delta1, delta2 int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Player1Score, m.Player2Score = &score1, &score2
	m.RatingDelta1, m.RatingDelta2 = &delta1, &delta2
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) SetMap(ctx context.Context, id int, mapName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Map = &mapName
	return nil
}

func (r *fakeMatchRepo) ListUnresolvedByType(ctx context.Context, matchType models.MatchType) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.matches {
		if m.Type == matchType && m.Status != models.MatchStatusVerified {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListExpiredLadder(ctx context.Context, before time.Time) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.matches {
		if m.Type == models.MatchTypeLadder && m.Status == models.MatchStatusInProgress && m.StartTime.Before(before) {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.matches {
		if m.Status == status {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.matches {
		if m.TournamentID != nil && *m.TournamentID == tournamentID {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) HasUnresolvedLadderMatch(ctx context.Context, nickname string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.Type == models.MatchTypeLadder && m.Status != models.MatchStatusVerified && m.HasParticipant(nickname) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMatchRepo) DeleteByPlayer(ctx context.Context, exec repositories.SQLExecutor, nickname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.matches {
		if m.HasParticipant(nickname) {
			delete(r.matches, id)
		}
	}
	return nil
}

// fakeTournamentRepo — турниры, участники, баны и сериализованные сетки
// в памяти.
type fakeTournamentRepo struct {
	mu           sync.Mutex
	tournaments  map[int]*models.Tournament
	participants map[int][]models.Participant
	bans         map[int]map[int]bool
	brackets     map[int]*models.BracketState
	nextID       int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{
		tournaments:  make(map[int]*models.Tournament),
		participants: make(map[int][]models.Participant),
		bans:         make(map[int]map[int]bool),
		brackets:     make(map[int]*models.BracketState),
	}
}

func (r *fakeTournamentRepo) Create(ctx context.Context, tournament *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tournaments {
		if t.Name == tournament.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	r.nextID++
	tournament.ID = r.nextID
	copied := *tournament
	r.tournaments[tournament.ID] = &copied
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) GetByName(ctx context.Context, name string) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tournaments {
		if t.Name == name {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r *fakeTournamentRepo) SetStarted(ctx context.Context, id int, started bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Started = started
	return nil
}

func (r *fakeTournamentRepo) AddParticipant(ctx context.Context, tournamentID, playerID int, nickname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[tournamentID] = append(r.participants[tournamentID], models.Participant{
		PlayerID: playerID,
		Nickname: nickname,
	})
	return nil
}

func (r *fakeTournamentRepo) RemoveParticipant(ctx context.Context, tournamentID, playerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.participants[tournamentID]
	for i, p := range entries {
		if p.PlayerID == playerID {
			r.participants[tournamentID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return repositories.ErrTournamentNotFound
}

func (r *fakeTournamentRepo) ListParticipants(ctx context.Context, tournamentID int) ([]models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Participant(nil), r.participants[tournamentID]...), nil
}

func (r *fakeTournamentRepo) AddBan(ctx context.Context, tournamentID, playerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bans[tournamentID] == nil {
		r.bans[tournamentID] = make(map[int]bool)
	}
	r.bans[tournamentID][playerID] = true
	return nil
}

func (r *fakeTournamentRepo) IsBanned(ctx context.Context, tournamentID, playerID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bans[tournamentID][playerID], nil
}

func (r *fakeTournamentRepo) SaveBracketState(ctx context.Context, state *models.BracketState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *state
	copied.Participants = append([]models.Participant(nil), state.Participants...)
	copied.Winners = append([]models.Participant(nil), state.Winners...)
	copied.Matches = append([]models.RoundMatch(nil), state.Matches...)
	r.brackets[state.TournamentID] = &copied
	return nil
}

func (r *fakeTournamentRepo) LoadBracketState(ctx context.Context, tournamentID int) (*models.BracketState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.brackets[tournamentID]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return state, nil
}

func (r *fakeTournamentRepo) ListBracketStates(ctx context.Context) ([]*models.BracketState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.BracketState, 0, len(r.brackets))
	for _, state := range r.brackets {
		out = append(out, state)
	}
	return out, nil
}

func (r *fakeTournamentRepo) DeleteBracketState(ctx context.Context, tournamentID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.brackets, tournamentID)
	return nil
}
