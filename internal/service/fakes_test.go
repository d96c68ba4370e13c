package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"moldubot/internal/model"
)

type memMailStore struct {
	mail  *model.Mail
	err   error
	calls int
}

func (s *memMailStore) LatestMail(context.Context) (*model.Mail, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.mail == nil {
		return nil, pgx.ErrNoRows
	}
	return s.mail, nil
}

// memMeetingStore mirrors the repository's overlap check in memory.
type memMeetingStore struct {
	mu       sync.Mutex
	rooms    []model.Room
	bookings []model.Booking
	listErr  error
	bookErr  error
}

func (s *memMeetingStore) ListRooms(context.Context) ([]model.Room, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]model.Room(nil), s.rooms...), nil
}

func (s *memMeetingStore) CreateBooking(_ context.Context, req model.BookingRequest) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookErr != nil {
		return nil, s.bookErr
	}

	found := false
	for _, room := range s.rooms {
		if room.Building == req.Building && room.Floor == req.Floor && room.RoomName == req.RoomName {
			found = true
			break
		}
	}
	if !found {
		return nil, model.ErrRoomNotFound
	}

	start, end, err := req.Schedule()
	if err != nil {
		return nil, err
	}
	for _, b := range s.bookings {
		if !b.SameRoom(req) || b.Date != req.Date {
			continue
		}
		bs, be, _ := b.Schedule()
		if model.Overlaps(start, end, bs, be) {
			return nil, model.ErrBookingConflict
		}
	}

	b := model.Booking{ID: int64(len(s.bookings) + 1), BookingRequest: req, CreatedAt: time.Now()}
	s.bookings = append(s.bookings, b)
	return &b, nil
}

func sampleRooms() []model.Room {
	return []model.Room{
		{ID: 1, Building: "본관", Floor: 3, RoomName: "소회의실", Capacity: 4},
		{ID: 2, Building: "본관", Floor: 3, RoomName: "중회의실", Capacity: 8},
		{ID: 3, Building: "본관", Floor: 5, RoomName: "대회의실", Capacity: 20},
		{ID: 4, Building: "별관", Floor: 1, RoomName: "라운지", Capacity: 6},
		{ID: 5, Building: "별관", Floor: 0, RoomName: "지하회의실", Capacity: 10},
	}
}

const sampleBody = "안녕하세요. 다음 주 회의 일정 확인 부탁드립니다.\n" +
	"예산안은 금요일까지 공유해 주세요. 감사합니다.\n" +
	"To: kim@example.com; lee@example.com, kim@example.com\n" +
	"Cc: park@example.com"

func sampleMail() *model.Mail {
	return &model.Mail{
		MessageID:    "<m-1@example.com>",
		Subject:      "주간 회의 안내",
		FromAddress:  "boss@example.com",
		ReceivedDate: "2026-03-02 09:00",
		BodyText:     sampleBody,
	}
}
