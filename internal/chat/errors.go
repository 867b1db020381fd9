package chat

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotInRoom      = errors.New("not in room")
	ErrRoomClosed     = errors.New("chat has ended")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyInRoom  = errors.New("already in room")
	ErrAlreadyQueued  = errors.New("already queued")
	ErrNotQueued      = errors.New("not queued")
	ErrAlreadyWaiting = errors.New("already waiting for a message")
	ErrPartnerLeft    = errors.New("partner left the chat")
	ErrInvalidMessage = errors.New("invalid message")
)

// Kind is the machine-checkable name of a failure, stable on the wire.
type Kind string

const (
	KindClientNotFound Kind = "client_not_found"
	KindRoomNotFound   Kind = "room_not_found"
	KindNotInRoom      Kind = "not_in_room"
	KindRoomClosed     Kind = "room_closed"
	KindRoomFull       Kind = "room_full"
	KindAlreadyInRoom  Kind = "already_in_room"
	KindAlreadyQueued  Kind = "already_queued"
	KindNotQueued      Kind = "not_queued"
	KindAlreadyWaiting Kind = "already_waiting"
	KindPartnerLeft    Kind = "partner_left"
	KindInvalidMessage Kind = "invalid_message"
	KindCanceled       Kind = "canceled"
	KindInternal       Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrClientNotFound, KindClientNotFound},
	{ErrRoomNotFound, KindRoomNotFound},
	{ErrNotInRoom, KindNotInRoom},
	{ErrRoomClosed, KindRoomClosed},
	{ErrRoomFull, KindRoomFull},
	{ErrAlreadyInRoom, KindAlreadyInRoom},
	{ErrAlreadyQueued, KindAlreadyQueued},
	{ErrNotQueued, KindNotQueued},
	{ErrAlreadyWaiting, KindAlreadyWaiting},
	{ErrPartnerLeft, KindPartnerLeft},
	{ErrInvalidMessage, KindInvalidMessage},
}

// KindOf reports the failure kind of err. Errors that do not wrap one of the
// package sentinels are reported as KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if isCanceled(err) {
		return KindCanceled
	}
	return KindInternal
}

// Error ties a sentinel failure to the operation that produced it.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func wrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ErrorFor returns the sentinel behind kind k, or nil when k does not name
// one. Remote callers use it to restore errors.Is checks.
func ErrorFor(k Kind) error {
	for _, e := range kinds {
		if e.kind == k {
			return e.err
		}
	}
	return nil
}
