package model

import "errors"

var (
	// ErrInvalidEventRange is returned when an event does not end strictly
	// after it starts.
	ErrInvalidEventRange = errors.New("model: event end must be after start")
	// ErrMissingTitle is returned for events without a display title.
	ErrMissingTitle = errors.New("model: event title is required")
	// ErrUnknownViewMode is returned when a view mode string is not recognised.
	ErrUnknownViewMode = errors.New("model: unknown view mode")
	// ErrNoEventSelected is returned when editing is requested without an event.
	ErrNoEventSelected = errors.New("model: no event selected")
	// ErrEventNotFound is returned by collection lookups.
	ErrEventNotFound = errors.New("model: event not found")
)
