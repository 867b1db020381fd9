package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/protocol"
)

const (
	kindBadRequest  chat.Kind = "bad_request"
	kindUnknownTool chat.Kind = "unknown_tool"

	// statusClientClosedRequest is reported when the caller went away
	// before a blocking call finished.
	statusClientClosedRequest = 499
)

var (
	errBadRequest  = errors.New("malformed request")
	errUnknownTool = errors.New("unknown tool")
)

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// errorBody maps err to an HTTP status and a wire error.
func errorBody(err error) (int, protocol.ErrorBody) {
	kind := chat.KindOf(err)
	switch {
	case errors.Is(err, errBadRequest):
		kind = kindBadRequest
	case errors.Is(err, errUnknownTool):
		kind = kindUnknownTool
	}
	return statusFor(kind), protocol.ErrorBody{Kind: string(kind), Message: err.Error()}
}

func statusFor(kind chat.Kind) int {
	switch kind {
	case chat.KindClientNotFound, chat.KindRoomNotFound, chat.KindNotQueued, kindUnknownTool:
		return http.StatusNotFound
	case chat.KindAlreadyInRoom, chat.KindAlreadyQueued, chat.KindAlreadyWaiting,
		chat.KindRoomFull, chat.KindNotInRoom:
		return http.StatusConflict
	case chat.KindRoomClosed, chat.KindPartnerLeft:
		return http.StatusGone
	case chat.KindInvalidMessage, kindBadRequest:
		return http.StatusBadRequest
	case chat.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
