package roomhandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pokerplan/internal/services/room"
)

type Handler struct {
	svc room.IRoomService
}

func New(svc room.IRoomService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/api/rooms", h.create)
	r.GET("/api/rooms/:id", h.get)
}

// @Summary		Create a room
// @Description	Allocates an empty estimation room; the first participant to join becomes host.
// @Tags			Rooms
// @Success		200	{object}	CreateRoomResponse
// @Router			/api/rooms [post]
func (h *Handler) create(c *gin.Context) {
	roomID := h.svc.CreateRoom()
	c.JSON(http.StatusOK, CreateRoomResponse{Success: true, RoomID: roomID})
}

// @Summary		Get room state
// @Description	Returns the authoritative snapshot of a room, for initial sync and polling.
// @Tags			Rooms
// @Param			id	path		string	true	"Room ID"	default(room_4f9a1c2d3)
// @Success		200	{object}	GetRoomResponse
// @Failure		404	{object}	GetRoomResponse
// @Router			/api/rooms/{id} [get]
func (h *Handler) get(c *gin.Context) {
	snap, err := h.svc.GetRoom(c.Param("id"))
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, GetRoomResponse{Success: false, Message: "Room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, GetRoomResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GetRoomResponse{Success: true, Room: snap})
}
