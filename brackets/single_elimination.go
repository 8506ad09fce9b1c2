// Package brackets держит логику посева и составления пар для
// single elimination сетки. Сетка строится раунд за раундом: пары
// следующего раунда составляются только после завершения текущего.
package brackets

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/elobot/ladder-system/models"
)

var (
	ErrNotEnoughParticipants = errors.New("not enough participants to seed a bracket (minimum 2)")
	ErrSlotsNotPowerOfTwo    = errors.New("slot count must be a power of two")
	ErrTooManyParticipants   = errors.New("more participants than bracket slots")
)

// Pair — одна пара раунда. Если один из участников bye, матч не
// играется: реальный игрок проходит дальше автоматически.
type Pair struct {
	Player1 models.Participant
	Player2 models.Participant
}

// Walkover reports whether the pair resolves without a played match.
func (p Pair) Walkover() bool {
	return p.Player1.IsBye() || p.Player2.IsBye()
}

// WalkoverWinner returns the advancing side of a walkover pair.
func (p Pair) WalkoverWinner() models.Participant {
	if p.Player1.IsBye() {
		return p.Player2
	}
	return p.Player1
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Seed дополняет список участников пустыми слотами до размера сетки и
// перемешивает его. Пустые слоты получают нулевой идентификатор, из-за
// чего в одном раунде в пару может попасть не больше одного bye.
func Seed(participants []models.Participant, slots int, rng *rand.Rand) ([]models.Participant, error) {
	if !IsPowerOfTwo(slots) {
		return nil, ErrSlotsNotPowerOfTwo
	}
	if len(participants) < 2 {
		return nil, ErrNotEnoughParticipants
	}
	if len(participants) > slots {
		return nil, ErrTooManyParticipants
	}

	seeded := make([]models.Participant, 0, slots)
	seeded = append(seeded, participants...)
	for i := len(participants); i < slots; i++ {
		seeded = append(seeded, models.Participant{
			PlayerID: 0,
			Nickname: fmt.Sprintf("emptyslot%d", i-len(participants)+1),
		})
	}

	rng.Shuffle(len(seeded), func(i, j int) {
		seeded[i], seeded[j] = seeded[j], seeded[i]
	})
	return seeded, nil
}

// PairRound перемешивает участников раунда и разбивает их на пары.
// Каждый идентификатор участвует не больше одного раза: лишние bye
// выпадают из раунда, а реальный игрок, оставшийся без соперника,
// проходит дальше без матча.
func PairRound(pool []models.Participant, rng *rand.Rand) (pairs []Pair, advanced []models.Participant) {
	shuffled := append([]models.Participant(nil), pool...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	used := make(map[int]bool, len(shuffled))

	for i := 0; i < len(shuffled); i++ {
		p1 := shuffled[i]
		if used[p1.PlayerID] {
			continue
		}
		used[p1.PlayerID] = true

		paired := false
		for j := i + 1; j < len(shuffled); j++ {
			p2 := shuffled[j]
			if used[p2.PlayerID] {
				continue
			}
			used[p2.PlayerID] = true
			pairs = append(pairs, Pair{Player1: p1, Player2: p2})
			paired = true
			break
		}

		if !paired && !p1.IsBye() {
			advanced = append(advanced, p1)
		}
	}
	return pairs, advanced
}
