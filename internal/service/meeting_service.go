package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"moldubot/internal/model"
	"moldubot/pkg/logger"
	"moldubot/pkg/metrics"
)

// MeetingStore is the room catalogue and booking ledger. CreateBooking must
// reject overlapping bookings of the same room atomically.
type MeetingStore interface {
	ListRooms(ctx context.Context) ([]model.Room, error)
	CreateBooking(ctx context.Context, req model.BookingRequest) (*model.Booking, error)
}

// RoomFilter narrows a room search. Zero values do not filter; Floor is a
// pointer because floor 0 is a real floor.
type RoomFilter struct {
	AttendeeCount int
	Building      string
	Floor         *int
}

type MeetingService struct {
	store  MeetingStore
	logger *zap.Logger
}

func NewMeetingService(store MeetingStore, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{store: store, logger: logger}
}

// SearchRooms keeps the store order.
func (s *MeetingService) SearchRooms(ctx context.Context, f RoomFilter) ([]model.Room, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	building := strings.TrimSpace(f.Building)

	out := make([]model.Room, 0, len(rooms))
	for _, room := range rooms {
		if f.AttendeeCount > 0 && room.Capacity < f.AttendeeCount {
			continue
		}
		if building != "" && strings.TrimSpace(room.Building) != building {
			continue
		}
		if f.Floor != nil && room.Floor != *f.Floor {
			continue
		}
		out = append(out, room)
	}
	return out, nil
}

func (s *MeetingService) ListBuildings(ctx context.Context) ([]string, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, room := range rooms {
		name := strings.TrimSpace(room.Building)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MeetingService) ListFloors(ctx context.Context, building string) ([]int, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	building = strings.TrimSpace(building)
	seen := make(map[int]bool)
	var out []int
	for _, room := range rooms {
		if strings.TrimSpace(room.Building) != building || seen[room.Floor] {
			continue
		}
		seen[room.Floor] = true
		out = append(out, room.Floor)
	}
	sort.Ints(out)
	return out, nil
}

// Book validates the schedule and creates the booking. Returns
// model.ErrInvalidSchedule, model.ErrBookingConflict or model.ErrRoomNotFound
// for rejected requests.
func (s *MeetingService) Book(ctx context.Context, req model.BookingRequest) (*model.Booking, error) {
	log := logger.WithTrace(ctx, s.logger).With(
		zap.String("room", req.Building+"/"+req.RoomName),
		zap.String("date", req.Date),
		zap.String("start", req.StartTime),
		zap.String("end", req.EndTime),
	)

	if _, _, err := req.Schedule(); err != nil {
		metrics.RecordMeetingBooking("invalid")
		log.Info("booking rejected", zap.Error(err))
		return nil, err
	}

	b, err := s.store.CreateBooking(ctx, req)
	switch {
	case err == nil:
		metrics.RecordMeetingBooking("booked")
		log.Info("meeting room booked", zap.Int64("booking_id", b.ID))
		return b, nil
	case errors.Is(err, model.ErrBookingConflict):
		metrics.RecordMeetingBooking("conflict")
		log.Info("booking conflict")
	case errors.Is(err, model.ErrRoomNotFound):
		metrics.RecordMeetingBooking("invalid")
		log.Info("booking for unknown room")
	default:
		metrics.RecordMeetingBooking("failed")
		log.Error("booking failed", zap.Error(err))
	}
	return nil, err
}
