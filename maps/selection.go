package maps

import (
	"errors"

	"wanderplan/models"
)

// MaxSelected is the size of a point-to-point selection.
const MaxSelected = 2

var (
	ErrNotLocated    = errors.New("该活动没有位置信息")
	ErrIncomplete    = errors.New("请选择两个活动")
	errSelectionFull = errors.New("selection full")
	errAlreadyChosen = errors.New("already selected")
)

// Leg is a start/end pair handed to an external turn-by-turn renderer.
type Leg struct {
	Start Marker `json:"start"`
	End   Marker `json:"end"`
}

// Selection collects the two activities of a point-to-point route.
type Selection struct {
	picked []Marker
}

// Add selects a located activity. Once two are selected further adds are
// ignored and report false.
func (s *Selection) Add(day int, a models.Activity) (bool, error) {
	if err := s.add(day, a); err != nil {
		if errors.Is(err, errSelectionFull) || errors.Is(err, errAlreadyChosen) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Selection) add(day int, a models.Activity) error {
	if !a.Located() {
		return ErrNotLocated
	}
	if len(s.picked) >= MaxSelected {
		return errSelectionFull
	}
	m := Marker{Day: day, Time: a.Time, Type: a.Type, Description: a.Description, Address: a.Address, Position: *a.Coordinates}
	for _, p := range s.picked {
		if p == m {
			return errAlreadyChosen
		}
	}
	s.picked = append(s.picked, m)
	return nil
}

func (s *Selection) Len() int { return len(s.picked) }

func (s *Selection) Clear() { s.picked = nil }

func (s *Selection) Selected() []Marker {
	return append([]Marker(nil), s.picked...)
}

// Route orders the pair by day then time; the earlier one is the start.
func (s *Selection) Route() (Leg, error) {
	if len(s.picked) != MaxSelected {
		return Leg{}, ErrIncomplete
	}
	a, b := s.picked[0], s.picked[1]
	if b.Day < a.Day || (b.Day == a.Day && b.Time < a.Time) {
		a, b = b, a
	}
	return Leg{Start: a, End: b}, nil
}
