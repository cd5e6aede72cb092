package bus

import (
	"errors"
	"fmt"

	"github.com/trackerd/trackerd/internal/livesearch"
	"github.com/trackerd/trackerd/internal/query"
)

// Custom tool-error codes, grounded on the teacher's MCP error code table
// but renumbered for this domain's error set.
const (
	ErrCodeUnknownService = -32001
	ErrCodeUnknownSession = -32002
	ErrCodeUnknownSearch  = -32003
	ErrCodeSearchClosed   = -32004
	ErrCodeNotActive      = -32005

	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// ToolError is a JSON-RPC-shaped error a tool handler returns.
type ToolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("bus error %d: %s", e.Code, e.Message)
}

// mapError translates an internal/query or internal/livesearch error into
// a ToolError a client can act on.
func mapError(err error) *ToolError {
	if err == nil {
		return nil
	}

	var unknownService *query.UnknownServiceError
	switch {
	case errors.As(err, &unknownService):
		return &ToolError{Code: ErrCodeUnknownService, Message: err.Error()}
	case errors.Is(err, livesearch.ErrUnknownSession):
		return &ToolError{Code: ErrCodeUnknownSession, Message: "unknown session"}
	case errors.Is(err, livesearch.ErrUnknownSearch):
		return &ToolError{Code: ErrCodeUnknownSearch, Message: "unknown search"}
	case errors.Is(err, livesearch.ErrSearchClosed):
		return &ToolError{Code: ErrCodeSearchClosed, Message: "search is closed"}
	case errors.Is(err, livesearch.ErrNotActive):
		return &ToolError{Code: ErrCodeNotActive, Message: "search is not active"}
	default:
		return &ToolError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func newInvalidParamsError(msg string) *ToolError {
	return &ToolError{Code: ErrCodeInvalidParams, Message: msg}
}
