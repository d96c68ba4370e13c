// Package evaluation scores the intent parser against a fixed set of edge
// case utterances.
package evaluation

import "fmt"

// ExpectedDateFilter is compared field by field; empty fields are ignored.
type ExpectedDateFilter struct {
	Mode     string `json:"mode"`
	Relative string `json:"relative,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
}

type Case struct {
	ID                int                `json:"case_id"`
	Utterance         string             `json:"utterance"`
	Pattern           string             `json:"pattern"`
	Steps             []string           `json:"expected_steps"`
	SummaryLineTarget int                `json:"expected_summary_line_target"`
	DateFilter        ExpectedDateFilter `json:"expected_date_filter"`
	MissingSlots      []string           `json:"expected_missing_slots"`
}

var (
	allBookingSlots = []string{"attendee_count", "date", "end_time", "start_time"}
	none            = ExpectedDateFilter{Mode: "none"}
)

func relative(token string) ExpectedDateFilter {
	return ExpectedDateFilter{Mode: "relative", Relative: token}
}

// EdgeCases returns the fixture set. Month/day ranges resolve in year.
func EdgeCases(year int) []Case {
	return []Case{
		{1, `  "ESG 메일 찾아줘"  `, "앞뒤 공백/따옴표 정제",
			[]string{"read_current_mail"}, 5, none, []string{}},
		{2, "메일 0줄로 요약해", "요약 줄수 하한 보정",
			[]string{"read_current_mail", "summarize_mail"}, 5, none, []string{}},
		{3, "메일 30줄로 요약해", "요약 줄수 상한 보정",
			[]string{"read_current_mail", "summarize_mail"}, 20, none, []string{}},
		{4, "이번주 메일 보고서로 정리해줘", "붙여쓰기 상대날짜 + 요약",
			[]string{"read_current_mail", "summarize_mail"}, 5, relative("this_week"), []string{}},
		{5, "오늘 받은 메일 핵심만 뽑아줘", "상대날짜 + 핵심 추출",
			[]string{"read_current_mail", "extract_key_facts"}, 5, relative("today"), []string{}},
		{6, "내일 오전 9시 회의 잡아줘", "예약 슬롯 일부 충족",
			[]string{"book_meeting_room"}, 5, relative("tomorrow"), []string{"attendee_count", "end_time"}},
		{7, "2026-03-01부터 2026-03-07까지 메일 찾아줘", "ISO 절대날짜 범위",
			[]string{"read_current_mail"}, 5,
			ExpectedDateFilter{Mode: "absolute", Start: "2026-03-01", End: "2026-03-07"}, []string{}},
		{8, "3월 1일부터 3월 7일까지 메일 찾아줘", "한글 절대날짜 범위",
			[]string{"read_current_mail"}, 5,
			ExpectedDateFilter{
				Mode:  "absolute",
				Start: fmt.Sprintf("%04d-03-01", year),
				End:   fmt.Sprintf("%04d-03-07", year),
			}, []string{}},
		{9, "2주 전부터 지난 주까지 메일 요약해줘", "N주 전부터 지난 주까지",
			[]string{"read_current_mail", "summarize_mail"}, 5, relative("2_weeks_ago_to_last_week"), []string{}},
		{10, "최근 메일 액션아이템 정리", "최근 + 요약 + 추출",
			[]string{"read_current_mail", "summarize_mail", "extract_key_facts"}, 5, relative("recent"), []string{}},
		{11, "수신자 정보랑 중요한 내용 추출해줘", "메일 키워드 없는 추출",
			[]string{"extract_key_facts", "extract_recipients"}, 5, none, []string{}},
		{12, "이번 주 회의 일정 알려주고 요약해줘", "일정 조회 + 요약",
			[]string{"summarize_mail", "search_meeting_schedule"}, 5, relative("this_week"), []string{}},
		{13, "메일 요약하고 회의실 예약해줘", "요약 + 예약 슬롯 전부 누락",
			[]string{"read_current_mail", "summarize_mail", "book_meeting_room"}, 5, none, allBookingSlots},
		{14, "내일 오후 2시 5명 회의 예약해줘", "예약 슬롯 대부분 충족",
			[]string{"book_meeting_room"}, 5, relative("tomorrow"), []string{"end_time"}},
		{15, "받는 사람 추출하고 4줄 요약해", "수신자 + 줄수",
			[]string{"summarize_mail", "extract_recipients"}, 4, none, []string{}},
		{16, "지난주 메일 찾아서 보고서로", "지난주 + 보고서",
			[]string{"read_current_mail", "summarize_mail"}, 5, relative("last_week"), []string{}},
		{17, "메일 찾아줘 그리고 회의 잡아줘", "접속사 복합 요청",
			[]string{"read_current_mail", "book_meeting_room"}, 5, none, allBookingSlots},
		{18, "어제 메일 2줄 요약하고 수신자 추출", "상대날짜 + 줄수 + 수신자",
			[]string{"read_current_mail", "summarize_mail", "extract_recipients"}, 2, relative("yesterday"), []string{}},
		{19, "회의 일정", "최소 일정 조회",
			[]string{"search_meeting_schedule"}, 5, none, []string{}},
		{20, "예약", "최소 예약",
			[]string{"book_meeting_room"}, 5, none, allBookingSlots},
	}
}
