package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"wanderplan/models"

	ics "github.com/arran4/golang-ical"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedPlan() models.SavedPlan {
	days := []models.DayPlan{
		{Day: 1, Activities: []models.Activity{
			{Time: "09:00", Type: models.ActivitySight, Description: "Forbidden City", Budget: "60元",
				Coordinates: &models.Coordinates{Lat: 39.916, Lng: 116.397}, Address: "Jingshan Front St"},
			{Time: "12:30", Type: models.ActivityDining, Description: "Lunch"},
		}},
		{Day: 2, Activities: []models.Activity{
			{Time: "late", Type: models.ActivitySight, Description: "Great Wall：Mutianyu"},
		}},
	}
	return models.SavedPlan{
		ID:             "p1",
		PlanName:       "Beijing trip",
		Destination:    "Beijing",
		Duration:       2,
		Travelers:      2,
		Budget:         decimal.NewFromInt(5000),
		Accommodation:  models.ParsedValue(models.TextDetail("Wangfujing hotel")),
		Transportation: models.ParsedValue(models.TextDetail("Subway")),
		DailyPlans:     models.ParsedValue(days),
		Tips:           models.ParsedValue([]string{"Bring water"}),
	}
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, savedPlan(), PDFOptions{PlanURL: "https://example.com/plans/p1"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestPDFMissingFont(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, PDF(&buf, savedPlan(), PDFOptions{FontPath: "/nonexistent/font.ttf"}))
}

func TestPDFRawFields(t *testing.T) {
	p := savedPlan()
	p.DailyPlans = models.RawValue[[]models.DayPlan]("not json")
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, p, PDFOptions{}))
}

func TestCalendar(t *testing.T) {
	start := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, WriteCalendar(&buf, savedPlan(), CalendarOptions{Start: start, Now: start}))

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 3)

	shanghai, _ := time.LoadLocation("Asia/Shanghai")

	first, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, first.Equal(time.Date(2025, 3, 9, 9, 0, 0, 0, shanghai)), first)
	end, err := events[0].GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2025, 3, 9, 12, 30, 0, 0, shanghai)), end)
	assert.Equal(t, "[景点] Forbidden City", events[0].GetProperty(ics.ComponentPropertySummary).Value)

	last, err := events[2].GetStartAt()
	require.NoError(t, err)
	assert.True(t, last.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, shanghai)), last)
	assert.Equal(t, "[景点] Great Wall", events[2].GetProperty(ics.ComponentPropertySummary).Value)
}

func TestCalendarNeedsStart(t *testing.T) {
	_, err := Calendar(savedPlan(), CalendarOptions{})
	assert.Error(t, err)
	_, err = Calendar(savedPlan(), CalendarOptions{Start: time.Now(), DefaultTimezone: "Mars/Base"})
	assert.Error(t, err)
}

func TestZoneAt(t *testing.T) {
	assert.Equal(t, "Asia/Shanghai", zoneAt(models.Coordinates{Lat: 39.916, Lng: 116.397}))
	assert.Equal(t, "Asia/Tokyo", zoneAt(models.Coordinates{Lat: 35.68, Lng: 139.76}))
}
