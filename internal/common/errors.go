package common

import "errors"

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Message errors
	ErrMessageNotFound = errors.New("message not found")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)
