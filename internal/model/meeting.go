package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04"
	scheduleLayout = DateLayout + " " + ClockLayout
)

var (
	ErrInvalidSchedule = errors.New("date/time 형식이 유효하지 않습니다.")
	ErrBookingConflict = errors.New("동일 시간대 예약이 이미 존재합니다.")
	ErrRoomNotFound    = errors.New("회의실을 찾지 못했습니다.")
)

type Room struct {
	ID       int64  `json:"-"`
	Building string `json:"building"`
	Floor    int    `json:"floor"`
	RoomName string `json:"room_name"`
	Capacity int    `json:"capacity"`
}

// Label renders "<building> <floor>층 <room>".
func (r Room) Label() string {
	return fmt.Sprintf("%s %d층 %s", r.Building, r.Floor, r.RoomName)
}

type BookingRequest struct {
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	AttendeeCount int    `json:"attendee_count"`
	Building      string `json:"building"`
	Floor         int    `json:"floor"`
	RoomName      string `json:"room_name"`
	Subject       string `json:"subject"`
	BookedBy      string `json:"booked_by,omitempty"`
}

type Booking struct {
	ID int64 `json:"id"`
	BookingRequest
	CreatedAt time.Time `json:"created_at"`
}

// Schedule parses date + start/end. End must be strictly after start on the
// same day.
func (r BookingRequest) Schedule() (start, end time.Time, err error) {
	start, err = time.Parse(scheduleLayout, r.Date+" "+r.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	end, err = time.Parse(scheduleLayout, r.Date+" "+r.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidSchedule, r.EndTime, r.StartTime)
	}
	return start, end, nil
}

// SameRoom reports whether both requests target the same room.
func (r BookingRequest) SameRoom(o BookingRequest) bool {
	return r.Building == o.Building && r.Floor == o.Floor && r.RoomName == o.RoomName
}

// Overlaps is the half-open interval check used for conflicts: touching
// slots (10:00-11:00, 11:00-12:00) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
