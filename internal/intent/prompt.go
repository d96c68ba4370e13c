package intent

import (
	"strings"
)

// BuildPrompt renders the fixed structured-output instruction for query.
func BuildPrompt(query string) string {
	names := make([]string, 0, len(stepNames))
	for _, s := range AllSteps() {
		names = append(names, s.String())
	}

	var b strings.Builder
	b.WriteString("너는 한국어 업무 요청을 최소 JSON으로 구조분해하는 라우터다.\n")
	b.WriteString("규칙:\n")
	b.WriteString("1) JSON 객체 하나만 출력한다. 설명, 코드블록, 주석은 출력하지 않는다.\n")
	b.WriteString("2) 키 이름은 아래 스키마와 정확히 같아야 한다.\n")
	b.WriteString("3) 입력에 없는 정보는 추측하지 않는다.\n")
	b.WriteString("4) steps 값은 허용 목록에서만 고른다.\n")
	b.WriteString("5) summary_line_target은 입력에 'N줄'이 있을 때만 N, 없으면 5.\n")
	b.WriteString("6) 날짜 표현이 없으면 date_filter.mode는 none.\n")
	b.WriteString("7) 회의실 예약 요청이면 missing_slots에 date, start_time, end_time, attendee_count 중 빠진 값을 넣는다.\n\n")
	b.WriteString("허용 steps: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\n출력 스키마:\n")
	b.WriteString("{\n")
	b.WriteString(`  "original_query": "",` + "\n")
	b.WriteString(`  "steps": [],` + "\n")
	b.WriteString(`  "summary_line_target": 5,` + "\n")
	b.WriteString(`  "date_filter": {"mode": "none|relative|absolute", "relative": "", "start": "", "end": ""},` + "\n")
	b.WriteString(`  "missing_slots": []` + "\n")
	b.WriteString("}\n\n")
	b.WriteString("사용자 입력: ")
	b.WriteString(query)
	b.WriteString("\n출력: JSON 객체 1개")
	return b.String()
}
