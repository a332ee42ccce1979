// Package prompt turns a trip request into the instruction sent to the
// language model.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"wanderplan/models"
)

const DateLayout = "2006-01-02"

// SystemMessage is sent ahead of every prompt.
const SystemMessage = "你是一位专业的旅行规划师，擅长根据用户需求制定详细的旅行计划。请严格按照用户要求的JSON格式返回结果。"

const schemaTemplate = `{
  "destination": "目的地名称",
  "duration": 天数（整数）,
  "travelers": 同行人数（整数）,
  "budget": 总预算（数字，单位：元）,
  "accommodation": "住宿建议",
  "transportation": "交通建议",
  "dailyPlans": [
    {
      "day": 1,
      "date": "%s",
      "activities": [
        {
          "time": "09:00",
          "type": "活动类型（景点、餐饮、交通、购物、其他）",
          "description": "活动描述",
          "budget": "60元"
        }
      ]
    }
  ],
  "tips": ["提示1", "提示2"]
}`

// Duration counts both endpoints: the 1st through the 3rd is three days.
func Duration(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

// Build validates the request and renders the prompt. It has no side
// effects.
func Build(req models.TripRequest) (string, error) {
	if req.Structured() {
		return buildStructured(req)
	}
	text := strings.TrimSpace(req.FreeText)
	if text == "" {
		return "", models.Invalid("freeText", "请输入您的旅行需求")
	}
	return buildFreeText(text), nil
}

func buildFreeText(text string) string {
	var b strings.Builder
	b.WriteString("请根据以下旅行需求生成一份详细的旅行计划：\n\n")
	b.WriteString(text)
	b.WriteString("\n\n要求：\n")
	b.WriteString("1. 从需求中识别目的地、旅行天数、预算和同行人数；未提及人数时按1人计算。\n")
	b.WriteString("2. 每天安排具体活动，包括时间、活动类型、活动描述和预算。\n")
	b.WriteString("3. 覆盖行程的每一天，不要遗漏任何一天，dailyPlans 的数量必须等于 duration。\n")
	b.WriteString("4. 不要输出真实的日历日期，date 字段一律为空字符串。\n")
	b.WriteString("5. 提供住宿建议、交通建议和实用的旅行小贴士。\n\n")
	b.WriteString("请严格按照以下JSON格式返回，不要输出JSON以外的任何内容：\n")
	b.WriteString(fmt.Sprintf(schemaTemplate, ""))
	b.WriteString("\n")
	return b.String()
}

func buildStructured(req models.TripRequest) (string, error) {
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return "", models.Invalid("destination", "请输入目的地")
	}
	if req.StartDate == "" || req.EndDate == "" {
		return "", models.Invalid("startDate", "请选择出发和返回日期")
	}
	start, err := time.Parse(DateLayout, req.StartDate)
	if err != nil {
		return "", models.Invalid("startDate", "日期格式应为YYYY-MM-DD")
	}
	end, err := time.Parse(DateLayout, req.EndDate)
	if err != nil {
		return "", models.Invalid("endDate", "日期格式应为YYYY-MM-DD")
	}
	if end.Before(start) {
		return "", models.Invalid("endDate", "返回日期不能早于出发日期")
	}
	if req.Budget.IsNegative() {
		return "", models.Invalid("budget", "预算不能为负数")
	}
	if req.PeopleCount < 0 {
		return "", models.Invalid("peopleCount", "同行人数不能为负数")
	}

	people := req.PeopleCount
	if people == 0 {
		people = 1
	}
	preferences := "无特别偏好"
	if len(req.Preferences) > 0 {
		preferences = strings.Join(req.Preferences, "、")
	}
	days := Duration(start, end)

	var b strings.Builder
	fmt.Fprintf(&b, "请帮我生成一个详细的%s旅行计划，满足以下要求：\n\n", destination)
	fmt.Fprintf(&b, "旅行天数：%d天\n", days)
	fmt.Fprintf(&b, "旅行日期：从%s到%s\n", req.StartDate, req.EndDate)
	fmt.Fprintf(&b, "预算：%s元\n", req.Budget.String())
	fmt.Fprintf(&b, "同行人数：%d人\n", people)
	fmt.Fprintf(&b, "旅行偏好：%s\n\n", preferences)
	b.WriteString("请提供以下内容：\n")
	b.WriteString("1. 住宿建议：推荐适合的酒店或民宿\n")
	b.WriteString("2. 交通建议：如何在目的地内移动\n")
	b.WriteString("3. 每日行程安排：每天的详细活动，包括时间、地点、活动内容\n")
	b.WriteString("4. 美食推荐：当地特色餐厅和美食\n")
	b.WriteString("5. 购物建议：适合购买的特产或纪念品\n")
	b.WriteString("6. 旅行小贴士：注意事项和实用建议\n\n")
	b.WriteString("请严格按照JSON格式返回，确保格式正确，可以被直接解析。JSON结构如下：\n")
	b.WriteString(fmt.Sprintf(schemaTemplate, "YYYY-MM-DD"))
	fmt.Fprintf(&b, "\n旅行天数包含开始日期和结束日期这两天，共%d天。请不要少写任何一天。\n", days)
	return b.String(), nil
}
