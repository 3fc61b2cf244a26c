package domain

import "errors"

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrUnreadableTicket  = errors.New("unreadable_ticket")
	ErrDuplicateTicket   = errors.New("duplicate_ticket")
	ErrNotFound          = errors.New("not_found")
	ErrInvalidCursor     = errors.New("invalid_cursor")
	ErrNotSendable       = errors.New("not_sendable")
	ErrNumberingConflict = errors.New("numbering_conflict")
)
