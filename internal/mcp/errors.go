// Package mcp implements the Model Context Protocol tool surface: search,
// reindex, get_chunk, get_file, and index_status, bridging AI clients to
// the search service, indexer, and store.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/riffluxdb/rifflux/internal/errs"
)

// Standard JSON-RPC error codes, plus a block of rifflux-specific codes
// mirroring the errs.Kind taxonomy.
const (
	ErrCodeInvalidParams  = -32602
	ErrCodeMethodNotFound = -32601
	ErrCodeInternalError  = -32603

	ErrCodeNotFound            = -32001
	ErrCodeEmbedderUnavailable = -32002
	ErrCodeTransient           = -32003
	ErrCodeSchema              = -32004
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// MapError converts a core error into a transport-appropriate MCPError,
// classifying by errs.Kind. Empty results are never an error and never
// reach this function.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case errs.NotFound:
			return &MCPError{Code: ErrCodeNotFound, Message: e.Message}
		case errs.InvalidInput:
			return &MCPError{Code: ErrCodeInvalidParams, Message: e.Message}
		case errs.EmbedderUnavailable:
			return &MCPError{Code: ErrCodeEmbedderUnavailable, Message: e.Message}
		case errs.Transient:
			return &MCPError{Code: ErrCodeTransient, Message: e.Message}
		case errs.Schema:
			return &MCPError{Code: ErrCodeSchema, Message: e.Message}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: e.Message}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &MCPError{Code: ErrCodeTransient, Message: "request canceled or timed out"}
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}

// NewInvalidParamsError builds an MCPError for a malformed tool call.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}
