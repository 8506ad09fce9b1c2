package models

// Mode — игровой режим. Значения совпадают с кодами режимов бота.
type Mode int

const (
	ModeAny       Mode = 0
	ModeStation5F Mode = 1
	ModeMotS      Mode = 2
	Mode12Min     Mode = 3
)

// ConcreteModes are the modes an actual match can be played in.
// ModeAny is a queue bridge only and never appears on a match record.
var ConcreteModes = []Mode{ModeStation5F, ModeMotS, Mode12Min}

var modeNames = map[Mode]string{
	ModeAny:       "Any",
	ModeStation5F: "Station 5 flags",
	ModeMotS:      "MotS Solo",
	Mode12Min:     "12min",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "Unknown"
}

func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// RequiresMapDraft reports whether matches in this mode start with a map
// elimination draft before play.
func (m Mode) RequiresMapDraft() bool {
	return m == ModeMotS || m == Mode12Min
}

// MapPool — фиксированный пул карт для черкания.
var MapPool = []string{"Бумбокс", "Дуалити", "Зона", "Сандал", "Станция", "Мостик", "Магадан"}
