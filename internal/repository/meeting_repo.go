package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mqcontracts "moldubot/contracts/mq"
	"moldubot/internal/model"
	"moldubot/pkg/otel"
	"moldubot/pkg/outbox"
	"moldubot/pkg/trace"
)

type MeetingRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
}

func NewMeetingRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository) *MeetingRepository {
	return &MeetingRepository{db: db, outbox: outboxRepo}
}

// ListRooms returns every room ordered by building, floor, name.
func (r *MeetingRepository) ListRooms(ctx context.Context) ([]model.Room, error) {
	ctx, span := otel.DBSpan(ctx, "select", "meeting_rooms")
	rows, err := r.db.Query(ctx, `
        SELECT id, building, floor, room_name, capacity
        FROM meeting_rooms
        ORDER BY building, floor, room_name
    `)
	if err != nil {
		otel.EndDBSpan(span, err)
		return nil, err
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Room, error) {
		var room model.Room
		err := row.Scan(&room.ID, &room.Building, &room.Floor, &room.RoomName, &room.Capacity)
		return room, err
	})
	otel.EndDBSpan(span, err)
	return rooms, err
}

// CreateBooking locks the room row, rejects overlapping bookings and writes
// the booking together with its meeting.booked outbox event.
func (r *MeetingRepository) CreateBooking(ctx context.Context, req model.BookingRequest) (*model.Booking, error) {
	ctx, span := otel.DBSpan(ctx, "insert", "meeting_bookings")

	booking, err := r.createBooking(ctx, req)
	otel.EndDBSpan(span, err)
	return booking, err
}

func (r *MeetingRepository) createBooking(ctx context.Context, req model.BookingRequest) (*model.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var roomID int64
	err = tx.QueryRow(ctx, `
        SELECT id FROM meeting_rooms
        WHERE building = $1 AND floor = $2 AND room_name = $3
        FOR UPDATE
    `, req.Building, req.Floor, req.RoomName).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock room: %w", err)
	}

	var conflicts int
	err = tx.QueryRow(ctx, `
        SELECT count(*) FROM meeting_bookings
        WHERE room_id = $1
          AND booking_date = $2::date
          AND start_time < $4::time
          AND end_time > $3::time
    `, roomID, req.Date, req.StartTime, req.EndTime).Scan(&conflicts)
	if err != nil {
		return nil, fmt.Errorf("check conflicts: %w", err)
	}
	if conflicts > 0 {
		return nil, model.ErrBookingConflict
	}

	b := &model.Booking{BookingRequest: req}
	err = tx.QueryRow(ctx, `
        INSERT INTO meeting_bookings (room_id, booking_date, start_time, end_time, attendee_count, subject, booked_by, created_at)
        VALUES ($1, $2::date, $3::time, $4::time, $5, $6, $7, NOW())
        RETURNING id, created_at
    `, roomID, req.Date, req.StartTime, req.EndTime, req.AttendeeCount, req.Subject, req.BookedBy).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	payload := mqcontracts.MeetingBookedPayload{
		BookingID:     b.ID,
		TraceID:       trace.FromContext(ctx),
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Building:      req.Building,
		Floor:         req.Floor,
		RoomName:      req.RoomName,
		AttendeeCount: req.AttendeeCount,
		Subject:       req.Subject,
		BookedBy:      req.BookedBy,
		CreatedAt:     b.CreatedAt,
	}
	if _, err := outbox.InsertEventInTx(ctx, tx, r.outbox, "meeting_booking", fmt.Sprint(b.ID), mqcontracts.RoutingKeyMeetingBooked, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}
	return b, nil
}
