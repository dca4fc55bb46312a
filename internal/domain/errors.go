package domain

import "errors"

var (
	ErrSlotNotFound      = errors.New("slot not found")
	ErrInvalidTransition = errors.New("invalid entry state transition")
)
