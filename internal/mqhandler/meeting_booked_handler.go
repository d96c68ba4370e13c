package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	mqcontract "moldubot/contracts/mq"
	"moldubot/internal/model"
	"moldubot/pkg/logger"
	"moldubot/pkg/mq"
)

const (
	bookingNotificationHandler = "meeting_booked_notification"
	notificationTypeBooking    = "meeting_booked"
	unknownBooker              = "anonymous"
)

// NotificationStore is implemented by *repository.NotificationRepository.
type NotificationStore interface {
	Insert(ctx context.Context, n *model.Notification) error
}

type MeetingBookedHandler struct {
	store  NotificationStore
	guard  *Guard
	logger *zap.Logger
}

func NewMeetingBookedHandler(store NotificationStore, guard *Guard, logger *zap.Logger) *MeetingBookedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewGuard(nil, nil, 0, logger)
	}
	return &MeetingBookedHandler{store: store, guard: guard, logger: logger}
}

// Handle 为预约人写入站内通知
func (h *MeetingBookedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mqcontract.MeetingBookedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal meeting.booked payload", zap.Error(err))
		return mq.Permanent(err)
	}
	if p.BookingID == 0 {
		return mq.Permanent(fmt.Errorf("meeting.booked without booking_id"))
	}

	user := p.BookedBy
	if user == "" {
		user = unknownBooker
	}
	id := strconv.FormatInt(p.BookingID, 10)
	n := &model.Notification{
		UserID:  user,
		Type:    notificationTypeBooking,
		Content: BookingNotice(p),
		EventID: mqcontract.RoutingKeyMeetingBooked + ":" + id,
	}

	return h.guard.Run(ctx, bookingNotificationHandler, id, func(ctx context.Context) error {
		if err := h.store.Insert(ctx, n); err != nil {
			return fmt.Errorf("insert notification for booking %s: %w", id, err)
		}
		log.Info("Booking notification created",
			zap.Int64("booking_id", p.BookingID),
			zap.String("user_id", user),
		)
		return nil
	})
}

// BookingNotice renders the notification body.
func BookingNotice(p mqcontract.MeetingBookedPayload) string {
	return fmt.Sprintf("회의실 예약 완료: %s %s-%s %s %d층 %s",
		p.Date, p.StartTime, p.EndTime, p.Building, p.Floor, p.RoomName)
}
