package transport

// GetRoomRequest represents the request to read one room's roster (from URL param)
type GetRoomRequest struct {
	// Room: 3-64 characters (letters, numbers, hyphens, underscores) - required
	Room string `uri:"room" binding:"required,roomkey"`
}
