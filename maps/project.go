// Package maps projects itineraries onto map primitives: markers, per-day
// routes and a two-point route for turn-by-turn rendering.
package maps

import (
	"wanderplan/models"
)

// Marker represents one located activity.
type Marker struct {
	Day         int                `json:"day"`
	Time        string             `json:"time"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Address     string             `json:"address,omitempty"`
	Position    models.Coordinates `json:"position"`
}

// Route connects the located activities of one day in activity order.
type Route struct {
	Day  int                  `json:"day"`
	Path []models.Coordinates `json:"path"`
}

type Projection struct {
	Markers []Marker `json:"markers"`
	Routes  []Route  `json:"routes"`
}

// Empty reports whether nothing in the itinerary was located.
func (p Projection) Empty() bool {
	return len(p.Markers) == 0
}

// Project emits a marker for every activity with coordinates and one route
// for each day holding two or more of them. Activities without coordinates
// are skipped.
func Project(it models.Itinerary) Projection {
	p := Projection{Markers: []Marker{}, Routes: []Route{}}
	for i, day := range it.DailyPlans {
		n := day.Day
		if n == 0 {
			n = i + 1
		}
		var path []models.Coordinates
		for _, a := range day.Activities {
			if !a.Located() {
				continue
			}
			p.Markers = append(p.Markers, Marker{
				Day:         n,
				Time:        a.Time,
				Type:        a.Type,
				Description: a.Description,
				Address:     a.Address,
				Position:    *a.Coordinates,
			})
			path = append(path, *a.Coordinates)
		}
		if len(path) >= 2 {
			p.Routes = append(p.Routes, Route{Day: n, Path: path})
		}
	}
	return p
}
