package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidUsername = errors.New("username must not be empty")
	ErrInvalidCategory = errors.New("category needs a shortcode and at least two teams")
	ErrPlayerBanned    = errors.New("player is banned")
	ErrPlayerBusy      = errors.New("player already has an active match")
)
