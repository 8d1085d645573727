package roomhandler

import "pokerplan/internal/services/room"

type CreateRoomResponse struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId" example:"room_4f9a1c2d3"`
} // @name CreateRoomResponse

type GetRoomResponse struct {
	Success bool       `json:"success"`
	Room    *room.Room `json:"room,omitempty"`
	Message string     `json:"message,omitempty" example:"Room not found"`
} // @name GetRoomResponse
