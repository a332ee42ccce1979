package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MockProvider fabricates an answer from the prompt itself. It needs no
// credentials and is meant for development (LLM_MOCK=true).
type MockProvider struct {
	Delay time.Duration
}

var (
	mockStructuredDest = regexp.MustCompile(`请帮我生成一个详细的(\S+?)旅行计划`)
	mockFreeDest       = regexp.MustCompile(`(?:去|到|游)([^\s，,。.！!、\d]{2,8}?)(?:[，,。.！!\s\d]|玩|旅|游|$)`)
	mockDays           = regexp.MustCompile(`(\d+)\s*天`)
	mockBudget         = regexp.MustCompile(`预算[：:]?\s*(\d+)`)
	mockPeople         = regexp.MustCompile(`(\d+)\s*人`)
	mockPrefs          = regexp.MustCompile(`旅行偏好：([^\n]+)`)
	mockDates          = regexp.MustCompile(`旅行日期：从(\d{4}-\d{2}-\d{2})到`)
	mockRequest        = regexp.MustCompile(`(?s)请根据以下旅行需求生成一份详细的旅行计划：\s*(.*?)\s*要求：`)
)

func (m *MockProvider) Complete(ctx context.Context, _ Settings, _, user string) (string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", &UpstreamError{Err: ctx.Err()}
		}
	}

	// Only look at the user's own words in free-text prompts; the schema
	// example below them contains digits too.
	text := user
	if sub := mockRequest.FindStringSubmatch(user); sub != nil {
		text = sub[1]
	}

	destination := firstGroup(mockStructuredDest, text)
	if destination == "" {
		destination = firstGroup(mockFreeDest, text)
	}
	if destination == "" {
		b, err := json.Marshal(sampleOverview())
		return string(b), err
	}

	days := atoiOr(firstGroup(mockDays, text), 3)
	budget := atoiOr(firstGroup(mockBudget, text), 10000)
	people := atoiOr(firstGroup(mockPeople, text), 2)
	var prefs []string
	if p := firstGroup(mockPrefs, text); p != "" && p != "无特别偏好" {
		prefs = strings.Split(p, "、")
	}
	var start time.Time
	if d := firstGroup(mockDates, text); d != "" {
		start, _ = time.Parse("2006-01-02", d)
	}

	b, err := json.Marshal(mockPlan(destination, days, budget, people, prefs, start))
	return string(b), err
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func atoiOr(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}

type mockActivity struct {
	Time        string `json:"time"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Budget      string `json:"budget"`
}

type mockDay struct {
	Day        int            `json:"day"`
	Date       string         `json:"date"`
	Activities []mockActivity `json:"activities"`
}

func mockPlan(dest string, days, budget, people int, prefs []string, start time.Time) map[string]any {
	plans := make([]mockDay, days)
	for i := range plans {
		date := ""
		if !start.IsZero() {
			date = start.AddDate(0, 0, i).Format("2006-01-02")
		}
		sight := dest + "主要景点游览"
		if slices.Contains(prefs, "动漫") {
			sight = dest + "动漫主题公园"
		}
		afternoon := dest + "历史文化景点"
		if i%2 == 1 {
			afternoon = dest + "自然风光"
		}
		evening := mockActivity{Time: "19:30", Type: "其他", Description: dest + "夜景游览", Budget: "免费"}
		if slices.Contains(prefs, "购物") {
			evening = mockActivity{Time: "19:30", Type: "购物", Description: dest + "购物区", Budget: "300元"}
		}
		plans[i] = mockDay{
			Day:  i + 1,
			Date: date,
			Activities: []mockActivity{
				{Time: "09:00", Type: "餐饮", Description: dest + "特色早餐，品尝当地美食", Budget: "30元"},
				{Time: "10:00", Type: "景点", Description: sight, Budget: "100元"},
				{Time: "12:30", Type: "餐饮", Description: dest + "当地特色餐厅，品尝正宗美食", Budget: "80元"},
				{Time: "14:00", Type: "景点", Description: afternoon, Budget: "60元"},
				{Time: "17:30", Type: "餐饮", Description: dest + "人气餐厅，体验地道风味", Budget: "120元"},
				evening,
			},
		}
	}
	return map[string]any{
		"destination":    dest,
		"duration":       fmt.Sprintf("%d天", days),
		"travelers":      strconv.Itoa(people),
		"budget":         fmt.Sprintf("%d元", budget),
		"accommodation":  dest + "市中心推荐酒店，交通便利",
		"transportation": "建议选择" + dest + "公共交通或包车服务",
		"dailyPlans":     plans,
		"tips": []string{
			"记得提前了解" + dest + "的天气情况",
			"准备好常用药品和转换插头",
			"下载离线地图以便导航",
			"尊重当地文化和风俗习惯",
		},
	}
}

// sampleOverview is answered when nothing can be read from the prompt. It
// uses the overview layout on purpose so both decoders get exercised.
func sampleOverview() map[string]any {
	type act struct {
		Time        string `json:"time"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Location    string `json:"location,omitempty"`
		Price       string `json:"price,omitempty"`
	}
	type day struct {
		Day        string `json:"day"`
		Activities []act  `json:"activities"`
	}
	return map[string]any{
		"overview": map[string]any{
			"title":       "模拟旅行计划 - 北京",
			"duration":    "3天2晚",
			"totalBudget": "约¥2000/人",
			"summary":     "包含故宫、长城、天坛等著名景点以及当地特色美食。",
		},
		"accommodation": []map[string]any{{
			"name":       "北京王府井希尔顿酒店",
			"location":   "东城区王府井东街8号",
			"priceRange": "¥1000-1500/晚",
		}},
		"transportation": []string{
			"机场至市区：乘坐机场快轨，约30分钟，票价¥25",
			"市内交通：建议购买北京交通卡，可乘坐地铁和公交",
		},
		"itinerary": []day{
			{Day: "第1天", Activities: []act{
				{Time: "08:30-09:00", Title: "早餐", Description: "酒店内享用早餐"},
				{Time: "09:30-13:00", Title: "故宫博物院", Description: "参观紫禁城", Location: "东城区景山前街4号", Price: "¥60"},
				{Time: "13:30-14:30", Title: "午餐 - 全聚德烤鸭店", Description: "品尝北京特色烤鸭", Location: "前门大街30号", Price: "¥200/人"},
			}},
			{Day: "第2天", Activities: []act{
				{Time: "07:30-08:00", Title: "早餐", Description: "酒店内享用早餐"},
				{Time: "08:30-16:00", Title: "八达岭长城", Description: "游览万里长城", Location: "延庆区八达岭", Price: "¥40"},
			}},
			{Day: "第3天", Activities: []act{
				{Time: "09:00-11:30", Title: "天坛公园", Description: "明清皇帝祭天场所", Location: "东城区天坛路甲1号", Price: "¥15"},
				{Time: "12:00-13:00", Title: "午餐 - 簋街", Description: "品尝麻辣小龙虾", Location: "东直门内大街"},
			}},
		},
		"tips": []string{"提前网上预约故宫门票", "长城建议穿舒适的运动鞋"},
	}
}
