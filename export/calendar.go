package export

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"wanderplan/models"

	ics "github.com/arran4/golang-ical"
	"github.com/ringsaturn/tzf"
)

const (
	DefaultTimezone = "Asia/Shanghai"
	defaultStart    = "09:00"
	eventLength     = time.Hour
)

var (
	finderOnce sync.Once
	finder     tzf.F
)

// zoneAt looks up the IANA zone for a coordinate. The finder is built on
// first use; "" means unknown.
func zoneAt(c models.Coordinates) string {
	finderOnce.Do(func() {
		f, err := tzf.NewDefaultFinder()
		if err != nil {
			log.Printf("⚠️ timezone finder unavailable: %v", err)
			return
		}
		finder = f
	})
	if finder == nil {
		return ""
	}
	return finder.GetTimezoneName(c.Lng, c.Lat)
}

type CalendarOptions struct {
	// Start is the date of day 1; only its calendar date is used.
	Start time.Time
	// DefaultTimezone applies to activities without coordinates.
	DefaultTimezone string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// Calendar builds an iCalendar with one event per activity. Each event
// lasts until the next activity of the same day, or one hour.
func Calendar(plan models.SavedPlan, opts CalendarOptions) (*ics.Calendar, error) {
	fallback, err := loadZone(opts.DefaultTimezone)
	if err != nil {
		return nil, err
	}
	if opts.Start.IsZero() {
		return nil, fmt.Errorf("calendar: start date required")
	}
	stamp := opts.Now
	if stamp.IsZero() {
		stamp = time.Now()
	}
	it, _ := plan.Itinerary()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//wanderplan//plan export//ZH")
	cal.SetXWRCalName(plan.PlanName)

	for i, day := range it.DailyPlans {
		n := day.Day
		if n == 0 {
			n = i + 1
		}
		date := opts.Start.AddDate(0, 0, n-1)
		if d, err := time.Parse(time.DateOnly, day.Date); err == nil {
			date = d
		}

		for j, a := range day.Activities {
			loc := fallback
			if a.Located() {
				if name := zoneAt(*a.Coordinates); name != "" {
					if z, err := time.LoadLocation(name); err == nil {
						loc = z
					}
				}
			}
			start := at(date, a.Time, loc)
			end := start.Add(eventLength)
			if j+1 < len(day.Activities) {
				if next := at(date, day.Activities[j+1].Time, loc); next.After(start) {
					end = next
				}
			}

			ev := cal.AddEvent(fmt.Sprintf("%s-d%d-a%d@wanderplan", plan.ID, n, j))
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(start)
			ev.SetEndAt(end)
			ev.SetSummary(summary(a))
			ev.SetDescription(strings.TrimSpace(a.Description + "\n" + a.Budget))
			if a.Address != "" {
				ev.SetLocation(a.Address)
			}
			if a.Located() {
				ev.SetProperty(ics.ComponentPropertyGeo, fmt.Sprintf("%f;%f", a.Coordinates.Lat, a.Coordinates.Lng))
			}
		}
	}
	return cal, nil
}

// WriteCalendar serializes the plan's calendar to w.
func WriteCalendar(w io.Writer, plan models.SavedPlan, opts CalendarOptions) error {
	cal, err := Calendar(plan, opts)
	if err != nil {
		return err
	}
	return cal.SerializeTo(w)
}

func loadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("calendar: timezone %q: %w", name, err)
	}
	return loc, nil
}

// at combines a date with an "HH:MM" time. Unreadable times start at 09:00.
func at(date time.Time, hhmm string, loc *time.Location) time.Time {
	clock, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		clock, _ = time.Parse("15:04", defaultStart)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}

func summary(a models.Activity) string {
	title, _, _ := strings.Cut(a.Description, "：")
	if a.Type == "" {
		return title
	}
	return "[" + a.Type + "] " + title
}
