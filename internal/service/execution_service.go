package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"moldubot/internal/intent"
	"moldubot/internal/model"
	"moldubot/pkg/logger"
	"moldubot/pkg/metrics"
)

const (
	DefaultStartTime     = "14:00"
	DefaultAttendeeCount = 4

	keyFactLimit   = 5
	recipientLimit = 10
	roomPreviewMax = 3

	autoBookingSubject = "자동 예약"
)

var (
	bookingHourPattern     = regexp.MustCompile(`(오전|오후)?\s*(\d{1,2})\s*시`)
	bookingDatePattern     = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	bookingAttendeePattern = regexp.MustCompile(`(\d+)\s*명`)
)

// MailReader is the mail side of step execution.
type MailReader interface {
	ReadCurrentMail(ctx context.Context) (*model.Mail, error)
	Summarize(ctx context.Context, lineTarget int) ([]string, error)
	KeyFacts(ctx context.Context, limit int) ([]string, error)
	Recipients(ctx context.Context, limit int) ([]string, error)
}

// RoomBooker is the meeting side of step execution.
type RoomBooker interface {
	SearchRooms(ctx context.Context, f RoomFilter) ([]model.Room, error)
	Book(ctx context.Context, req model.BookingRequest) (*model.Booking, error)
}

// ExecutionService runs the steps of a decomposition against the mail and
// meeting services and renders the answer shown to the user.
type ExecutionService struct {
	mail    MailReader
	meeting RoomBooker
	logger  *zap.Logger
	now     func() time.Time
}

func NewExecutionService(mail MailReader, meeting RoomBooker, logger *zap.Logger) *ExecutionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutionService{mail: mail, meeting: meeting, logger: logger, now: time.Now}
}

// WithClock fixes the clock used for 오늘/내일.
func (s *ExecutionService) WithClock(now func() time.Time) *ExecutionService {
	s.now = now
	return s
}

// Execute runs steps in a fixed order (mail read, summary, key facts,
// recipients, schedule search, booking) regardless of their order in d.
// Only infrastructure failures are returned as errors; missing data is
// rendered into the answer.
func (s *ExecutionService) Execute(ctx context.Context, d intent.Decomposition, userMessage string) (string, error) {
	log := logger.WithTrace(ctx, s.logger)
	var lines []string

	if d.HasStep(intent.StepReadCurrentMail) {
		m, err := s.mail.ReadCurrentMail(ctx)
		if errors.Is(err, ErrNoCurrentMail) {
			metrics.RecordStepExecution(intent.StepReadCurrentMail.String(), "empty")
			return "현재 메일을 찾지 못했습니다. 메일 동기화 상태를 확인해 주세요.", nil
		}
		if err != nil {
			return s.fail(intent.StepReadCurrentMail, err)
		}
		lines = append(lines, fmt.Sprintf("현재 메일: [%s] / 발신자: %s / 수신시각: %s", m.Subject, m.FromAddress, m.ReceivedDate))
		metrics.RecordStepExecution(intent.StepReadCurrentMail.String(), "ok")
	}

	if d.HasStep(intent.StepSummarizeMail) {
		summary, err := s.mail.Summarize(ctx, d.SummaryLineTarget())
		if err != nil {
			return s.fail(intent.StepSummarizeMail, err)
		}
		lines = append(lines, "메일 요약:")
		for i, item := range summary {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
		}
		metrics.RecordStepExecution(intent.StepSummarizeMail.String(), "ok")
	}

	if d.HasStep(intent.StepExtractKeyFacts) {
		facts, err := s.mail.KeyFacts(ctx, keyFactLimit)
		if err != nil {
			return s.fail(intent.StepExtractKeyFacts, err)
		}
		lines = append(lines, "중요 내용:")
		for _, item := range facts {
			lines = append(lines, "- "+item)
		}
		metrics.RecordStepExecution(intent.StepExtractKeyFacts.String(), "ok")
	}

	if d.HasStep(intent.StepExtractRecipients) {
		recipients, err := s.mail.Recipients(ctx, recipientLimit)
		if err != nil {
			return s.fail(intent.StepExtractRecipients, err)
		}
		lines = append(lines, "수신자 정보: "+strings.Join(recipients, ", "))
		metrics.RecordStepExecution(intent.StepExtractRecipients.String(), "ok")
	}

	if d.HasStep(intent.StepSearchMeetingSchedule) {
		lines = append(lines, "회의 일정 조회는 아직 캘린더 연동 전입니다. 대신 회의실 가용 목록을 확인합니다.")
		rooms, err := s.meeting.SearchRooms(ctx, RoomFilter{})
		if err != nil {
			return s.fail(intent.StepSearchMeetingSchedule, err)
		}
		if len(rooms) > 0 {
			preview := make([]string, 0, roomPreviewMax)
			for _, room := range rooms[:min(len(rooms), roomPreviewMax)] {
				preview = append(preview, room.Label())
			}
			lines = append(lines, "가용 회의실 예시: "+strings.Join(preview, ", "))
		}
		metrics.RecordStepExecution(intent.StepSearchMeetingSchedule.String(), "ok")
	}

	if d.HasStep(intent.StepBookMeetingRoom) {
		missing := d.MissingSlots()
		if len(missing) > 0 && !CanAutoCompleteBooking(missing) {
			lines = append(lines,
				"회의실 예약에 필요한 정보가 부족합니다.",
				"추가 필요 슬롯: "+strings.Join(d.MissingSlotNames(), ", "),
			)
			metrics.RecordStepExecution(intent.StepBookMeetingRoom.String(), "needs_slots")
		} else {
			line, err := s.bookBestEffort(ctx, userMessage)
			if err != nil {
				return s.fail(intent.StepBookMeetingRoom, err)
			}
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		log.Info("no executable steps", zap.Strings("steps", d.StepNames()))
		return "요청을 처리할 실행 단계를 찾지 못했습니다.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (s *ExecutionService) fail(step intent.Step, err error) (string, error) {
	metrics.RecordStepExecution(step.String(), "error")
	return "", fmt.Errorf("execute %s: %w", step, err)
}

// bookBestEffort fills the booking from the message text and books the first
// room that fits. Rejections become the answer line; store failures are
// returned.
func (s *ExecutionService) bookBestEffort(ctx context.Context, userMessage string) (string, error) {
	step := intent.StepBookMeetingRoom.String()

	date := InferBookingDate(userMessage, s.now())
	start := ExtractStartTime(userMessage)
	end := PlusOneHour(start)
	attendees := ExtractAttendeeCount(userMessage)

	candidates, err := s.meeting.SearchRooms(ctx, RoomFilter{AttendeeCount: attendees})
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		metrics.RecordStepExecution(step, "no_room")
		return "수용 인원에 맞는 가용 회의실을 찾지 못했습니다.", nil
	}
	room := candidates[0]

	b, err := s.meeting.Book(ctx, model.BookingRequest{
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		AttendeeCount: attendees,
		Building:      room.Building,
		Floor:         room.Floor,
		RoomName:      room.RoomName,
		Subject:       autoBookingSubject,
	})
	if err != nil {
		if reason, ok := BookingRejection(err); ok {
			metrics.RecordStepExecution(step, "rejected")
			return "회의실 예약 실패: " + reason, nil
		}
		return "", err
	}

	metrics.RecordStepExecution(step, "ok")
	return fmt.Sprintf("회의실 예약 완료: %s %s-%s %s %d층 %s",
		b.Date, b.StartTime, b.EndTime, b.Building, b.Floor, b.RoomName), nil
}

// BookingRejection maps a rejected booking to the user-facing reason.
func BookingRejection(err error) (string, bool) {
	for _, sentinel := range []error{model.ErrInvalidSchedule, model.ErrBookingConflict, model.ErrRoomNotFound} {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

// CanAutoCompleteBooking reports whether only end_time is missing, the one
// slot that may be defaulted.
func CanAutoCompleteBooking(missing []intent.Slot) bool {
	for _, slot := range missing {
		if slot != intent.SlotEndTime {
			return false
		}
	}
	return true
}

// ExtractStartTime reads "(오전|오후) N시" as HH:00, 14:00 when absent.
func ExtractStartTime(text string) string {
	m := bookingHourPattern.FindStringSubmatch(text)
	if m == nil {
		return DefaultStartTime
	}
	hour, _ := strconv.Atoi(m[2])
	switch {
	case m[1] == "오후" && hour < 12:
		hour += 12
	case m[1] == "오전" && hour == 12:
		hour = 0
	}
	return fmt.Sprintf("%02d:00", hour)
}

// PlusOneHour adds an hour to HH:MM, wrapping 23 to 00. Unparseable input
// is returned unchanged.
func PlusOneHour(start string) string {
	h, m, ok := strings.Cut(start, ":")
	if !ok {
		return start
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil {
		return start
	}
	return fmt.Sprintf("%02d:%02d", (hour+1)%24, minute)
}

// InferBookingDate returns the first ISO date in text (zero padded), else
// tomorrow for 내일, else today.
func InferBookingDate(text string, now time.Time) string {
	if m := bookingDatePattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}
	if strings.Contains(text, "내일") {
		return now.AddDate(0, 0, 1).Format(model.DateLayout)
	}
	return now.Format(model.DateLayout)
}

// ExtractAttendeeCount reads "N명", 4 when absent or zero.
func ExtractAttendeeCount(text string) int {
	m := bookingAttendeePattern.FindStringSubmatch(text)
	if m == nil {
		return DefaultAttendeeCount
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultAttendeeCount
	}
	return n
}
