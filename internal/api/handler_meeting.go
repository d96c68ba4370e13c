package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moldubot/internal/model"
	"moldubot/internal/service"
	"moldubot/pkg/logger"
)

// RoomCatalog is implemented by *service.MeetingService.
type RoomCatalog interface {
	SearchRooms(ctx context.Context, f service.RoomFilter) ([]model.Room, error)
	ListBuildings(ctx context.Context) ([]string, error)
	ListFloors(ctx context.Context, building string) ([]int, error)
	Book(ctx context.Context, req model.BookingRequest) (*model.Booking, error)
}

type MeetingHandler struct {
	rooms  RoomCatalog
	logger *zap.Logger
}

func NewMeetingHandler(rooms RoomCatalog, logger *zap.Logger) *MeetingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingHandler{rooms: rooms, logger: logger}
}

// ListRooms handles GET /api/meeting-rooms?building=&floor=
// Without building it lists buildings, without floor the floors of the
// building, otherwise the rooms on that floor.
func (h *MeetingHandler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	building := strings.TrimSpace(c.Query("building"))
	floorParam := strings.TrimSpace(c.Query("floor"))

	if building == "" {
		names, err := h.rooms.ListBuildings(ctx)
		if err != nil {
			h.internalError(c, "list buildings failed", err)
			return
		}
		items := make([]gin.H, 0, len(names))
		for _, name := range names {
			items = append(items, gin.H{"building": name})
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
		return
	}

	if floorParam == "" {
		floors, err := h.rooms.ListFloors(ctx, building)
		if err != nil {
			h.internalError(c, "list floors failed", err)
			return
		}
		items := make([]gin.H, 0, len(floors))
		for _, floor := range floors {
			items = append(items, gin.H{"building": building, "floor": floor})
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
		return
	}

	floor, err := strconv.Atoi(floorParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid floor parameter"})
		return
	}
	rooms, err := h.rooms.SearchRooms(ctx, service.RoomFilter{Building: building, Floor: &floor})
	if err != nil {
		h.internalError(c, "search rooms failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rooms, "count": len(rooms)})
}

type bookRequest struct {
	Building      string `json:"building" binding:"required"`
	Floor         int    `json:"floor"`
	RoomName      string `json:"room_name" binding:"required"`
	Subject       string `json:"subject"`
	Date          string `json:"date" binding:"required"`
	StartTime     string `json:"start_time" binding:"required"`
	EndTime       string `json:"end_time" binding:"required"`
	AttendeeCount int    `json:"attendee_count"`
}

// Book handles POST /api/meeting-rooms/book
func (h *MeetingHandler) Book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	b, err := h.rooms.Book(c.Request.Context(), model.BookingRequest{
		Date:          strings.TrimSpace(req.Date),
		StartTime:     strings.TrimSpace(req.StartTime),
		EndTime:       strings.TrimSpace(req.EndTime),
		AttendeeCount: req.AttendeeCount,
		Building:      strings.TrimSpace(req.Building),
		Floor:         req.Floor,
		RoomName:      strings.TrimSpace(req.RoomName),
		Subject:       req.Subject,
		BookedBy:      c.GetString(ctxUserID),
	})
	if err != nil {
		if reason, ok := service.BookingRejection(err); ok {
			c.JSON(http.StatusConflict, gin.H{
				"status": "rejected",
				"answer": "회의실 예약 실패: " + reason,
			})
			return
		}
		h.internalError(c, "booking failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "completed",
		"answer": fmt.Sprintf("%s %s-%s %s %d층 %s 예약 요청을 접수했습니다.",
			b.Date, b.StartTime, b.EndTime, b.Building, b.Floor, b.RoomName),
		"booking": b,
	})
}

func (h *MeetingHandler) internalError(c *gin.Context, msg string, err error) {
	logger.WithTrace(c.Request.Context(), h.logger).Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
