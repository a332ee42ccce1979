package normalize

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"wanderplan/models"

	"github.com/shopspring/decimal"
)

// legacyWire is the layout the planner prompt asks for.
type legacyWire struct {
	Destination    flexString    `json:"destination"`
	Duration       flexInt       `json:"duration"`
	Travelers      flexInt       `json:"travelers"`
	Budget         flexDecimal   `json:"budget"`
	Accommodation  models.Detail `json:"accommodation"`
	Transportation models.Detail `json:"transportation"`
	DailyPlans     []legacyDay   `json:"dailyPlans"`
	Tips           flexStrings   `json:"tips"`
}

type legacyDay struct {
	Day        flexInt          `json:"day"`
	Date       flexString       `json:"date"`
	Activities []legacyActivity `json:"activities"`
}

type legacyActivity struct {
	Time        flexString          `json:"time"`
	Type        flexString          `json:"type"`
	Description flexString          `json:"description"`
	Budget      flexString          `json:"budget"`
	Coordinates *models.Coordinates `json:"coordinates"`
	Address     flexString          `json:"address"`
}

func (w legacyWire) canonical() models.Itinerary {
	it := models.Itinerary{
		Destination:    string(w.Destination),
		Duration:       int(w.Duration),
		Travelers:      int(w.Travelers),
		Budget:         decimal.Decimal(w.Budget),
		Accommodation:  w.Accommodation,
		Transportation: w.Transportation,
		Tips:           []string(w.Tips),
	}
	if w.DailyPlans != nil {
		it.DailyPlans = make([]models.DayPlan, len(w.DailyPlans))
	}
	for i, d := range w.DailyPlans {
		day := models.DayPlan{Day: int(d.Day), Date: string(d.Date)}
		if day.Day == 0 {
			day.Day = i + 1
		}
		if d.Activities != nil {
			day.Activities = make([]models.Activity, len(d.Activities))
		}
		for j, a := range d.Activities {
			day.Activities[j] = models.Activity{
				Time:        string(a.Time),
				Type:        string(a.Type),
				Description: string(a.Description),
				Budget:      string(a.Budget),
				Coordinates: a.Coordinates,
				Address:     string(a.Address),
			}
		}
		it.DailyPlans[i] = day
	}
	return it
}

// overviewWire is the layout some models (and the mock service) answer with.
type overviewWire struct {
	Overview struct {
		Title       flexString  `json:"title"`
		Destination flexString  `json:"destination"`
		Duration    flexInt     `json:"duration"`
		Travelers   flexInt     `json:"travelers"`
		TotalBudget flexDecimal `json:"totalBudget"`
		Budget      flexDecimal `json:"budget"`
	} `json:"overview"`
	Accommodation  models.Detail `json:"accommodation"`
	Transportation models.Detail `json:"transportation"`
	Itinerary      []overviewDay `json:"itinerary"`
	Tips           flexStrings   `json:"tips"`
}

type overviewDay struct {
	Day        flexInt            `json:"day"`
	Date       flexString         `json:"date"`
	Theme      flexString         `json:"theme"`
	Activities []overviewActivity `json:"activities"`
}

type overviewActivity struct {
	Time        flexString          `json:"time"`
	Title       flexString          `json:"title"`
	Type        flexString          `json:"type"`
	Description flexString          `json:"description"`
	Location    flexString          `json:"location"`
	Price       flexString          `json:"price"`
	Coordinates *models.Coordinates `json:"coordinates"`
}

func (w overviewWire) canonical() models.Itinerary {
	ov := w.Overview
	it := models.Itinerary{
		Destination:    string(ov.Destination),
		Duration:       int(ov.Duration),
		Travelers:      int(ov.Travelers),
		Budget:         decimal.Decimal(ov.TotalBudget),
		Accommodation:  w.Accommodation,
		Transportation: w.Transportation,
		Tips:           []string(w.Tips),
		DailyPlans:     make([]models.DayPlan, len(w.Itinerary)),
	}
	if it.Destination == "" {
		it.Destination = destinationFromTitle(string(ov.Title))
	}
	if it.Budget.IsZero() {
		it.Budget = decimal.Decimal(ov.Budget)
	}
	if it.Duration == 0 {
		it.Duration = len(w.Itinerary)
	}

	for i, d := range w.Itinerary {
		day := models.DayPlan{
			Day:        int(d.Day),
			Date:       string(d.Date),
			Activities: make([]models.Activity, 0, len(d.Activities)),
		}
		if day.Day == 0 {
			day.Day = i + 1
		}
		for _, a := range d.Activities {
			title := strings.TrimSpace(string(a.Title))
			desc := strings.TrimSpace(string(a.Description))
			switch {
			case title == "":
				// keep desc
			case desc == "":
				desc = title
			default:
				desc = title + "：" + desc
			}
			kind := string(a.Type)
			if kind == "" {
				kind = classify(title + desc)
			}
			day.Activities = append(day.Activities, models.Activity{
				Time:        startTime(string(a.Time)),
				Type:        kind,
				Description: desc,
				Budget:      string(a.Price),
				Coordinates: a.Coordinates,
				Address:     string(a.Location),
			})
		}
		it.DailyPlans[i] = day
	}
	return it
}

// destinationFromTitle reads "模拟旅行计划 - 北京三日游" as "北京三日游".
func destinationFromTitle(title string) string {
	if i := strings.LastIndex(title, "-"); i >= 0 {
		return strings.TrimSpace(title[i+1:])
	}
	return strings.TrimSpace(title)
}

// startTime keeps the start of a "08:30-09:30" range.
func startTime(s string) string {
	s = strings.TrimSpace(s)
	for _, sep := range []string{"-", "~", "～", "—", "至"} {
		if i := strings.Index(s, sep); i > 0 {
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}

var typeKeywords = []struct {
	kind  string
	words []string
}{
	{models.ActivityDining, []string{"餐", "饭", "美食", "小吃", "咖啡", "茶"}},
	{models.ActivityTransport, []string{"交通", "机场", "车站", "高铁", "地铁", "航班", "出发", "返程", "打车"}},
	{models.ActivityShopping, []string{"购物", "商场", "特产", "集市", "市集"}},
}

func classify(text string) string {
	for _, k := range typeKeywords {
		for _, w := range k.words {
			if strings.Contains(text, w) {
				return k.kind
			}
		}
	}
	return models.ActivitySight
}

var (
	intPattern    = regexp.MustCompile(`\d+`)
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// flexInt accepts 3, 3.0, "3" and "3天".
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = flexInt(int(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if m := intPattern.FindString(s); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			*n = flexInt(v)
		}
	}
	return nil
}

// flexDecimal accepts 5000, "5000" and "约¥2,000/人".
type flexDecimal decimal.Decimal

func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	m := numberPattern.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return nil
	}
	if v, err := decimal.NewFromString(m); err == nil {
		*d = flexDecimal(v)
	}
	return nil
}

// flexString accepts strings and renders numbers or other JSON as text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err == nil {
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

// flexStrings accepts a list of strings or a single string.
type flexStrings []string

func (l *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var items []flexString
	if err := json.Unmarshal(data, &items); err == nil {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = string(it)
		}
		*l = out
		return nil
	}
	var one flexString
	if err := json.Unmarshal(data, &one); err != nil {
		return nil
	}
	if one != "" {
		*l = []string{string(one)}
	}
	return nil
}
