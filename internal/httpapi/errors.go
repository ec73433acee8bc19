package httpapi

import (
	"context"
	"errors"

	"github.com/valyala/fasthttp"

	corechess "github.com/park285/cheese-engine-player/internal/chess"
	svcchess "github.com/park285/cheese-engine-player/internal/service/chess"
	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

// apiError is a request problem detected by the transport itself.
type apiError struct {
	code    string
	message string
	status  int
}

func (e *apiError) Error() string { return e.message }

func badRequest(code, message string) error {
	return &apiError{code: code, message: message, status: fasthttp.StatusBadRequest}
}

// dataError carries template data for the catalog message.
type dataError struct {
	err  error
	data map[string]any
}

func (e *dataError) Error() string { return e.err.Error() }
func (e *dataError) Unwrap() error { return e.err }

func withData(err error, data map[string]any) error {
	if err == nil {
		return nil
	}
	return &dataError{err: err, data: data}
}

type errorMapping struct {
	target    error
	code      string
	key       string
	status    int
	retryable bool
}

var errorMappings = []errorMapping{
	{svcchess.ErrInvalidMove, "invalid_move", "errors.invalid_move", fasthttp.StatusBadRequest, false},
	{svcchess.ErrInvalidSquare, "invalid_square", "errors.invalid_square", fasthttp.StatusBadRequest, false},
	{svcchess.ErrInvalidPiece, "invalid_piece", "errors.invalid_piece", fasthttp.StatusBadRequest, false},
	{svcchess.ErrGameNotFound, "game_not_found", "errors.game_not_found", fasthttp.StatusNotFound, false},
	{svcchess.ErrNoSavedSession, "no_saved_session", "errors.no_saved_session", fasthttp.StatusNotFound, false},
	{svcchess.ErrEngineUnavailable, "engine_unavailable", "errors.engine_unavailable", fasthttp.StatusServiceUnavailable, true},
}

// mapError turns err into the response body and status.
func (s *Server) mapError(err error) (chessdto.DomainError, int) {
	var api *apiError
	if errors.As(err, &api) {
		return chessdto.DomainError{Code: api.code, Message: api.message}, api.status
	}

	var perr *corechess.PositionError
	if errors.As(err, &perr) {
		return chessdto.DomainError{Code: "invalid_position", Message: perr.Reason}, fasthttp.StatusUnprocessableEntity
	}

	var data map[string]any
	var derr *dataError
	if errors.As(err, &derr) {
		data = derr.data
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return chessdto.DomainError{
				Code:      m.code,
				Message:   s.render(m.key, data, err.Error()),
				Retryable: m.retryable,
			}, m.status
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return chessdto.DomainError{Code: "timeout", Message: "Request timed out.", Retryable: true}, fasthttp.StatusGatewayTimeout
	}
	return chessdto.DomainError{
		Code:    "internal",
		Message: s.render("errors.internal", nil, "internal error"),
	}, fasthttp.StatusInternalServerError
}

// Describe maps err the same way responses do. data fills the catalog
// template, e.g. {"Move": "e2e5"}.
func (s *Server) Describe(err error, data map[string]any) chessdto.DomainError {
	derr, _ := s.mapError(withData(err, data))
	return derr
}

func (s *Server) render(key string, data map[string]any, fallback string) string {
	if s.messages == nil {
		return fallback
	}
	text, err := s.messages.Render(key, data)
	if err != nil || text == "" {
		return fallback
	}
	return text
}
