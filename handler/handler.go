// Package handler adapts API Gateway events to the conversation use case.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"vision-concierge/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Converser is the use case surface the handler depends on.
type Converser interface {
	Converse(ctx context.Context, in usecase.ConverseInput) (usecase.ConverseOutput, error)
}

type Handler struct {
	uc Converser
}

func NewHandler(uc Converser) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

type converseRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type converseResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
	Step      string `json:"step"`
	OrderID   string `json:"orderId,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle processes one conversation turn delivered over API Gateway.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(event.Headers)

	var req converseRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return errorResponseFor(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "malformed_body"}, correlationID), nil
	}

	out, err := h.uc.Converse(ctx, usecase.ConverseInput{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Message:   req.Message,
	})
	if err != nil {
		return errorResponseFor(err, correlationID), nil
	}

	return jsonResponse(http.StatusOK, converseResponse{
		Reply:     out.Reply,
		SessionID: out.SessionID,
		Step:      string(out.Step),
		OrderID:   out.OrderID,
	}, correlationID), nil
}

func errorResponseFor(err error, correlationID string) events.APIGatewayProxyResponse {
	code := usecase.ErrorInternal
	reason := ""

	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		code = ucErr.Code
		reason = ucErr.Reason
	}

	status := http.StatusInternalServerError
	switch code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorOrderCreation:
		status = http.StatusServiceUnavailable
	}

	return jsonResponse(status, errorResponse{Error: string(code), Reason: reason}, correlationID)
}

func jsonResponse(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    responseHeaders(correlationID),
			Body:       `{"error":"INTERNAL_ERROR"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    responseHeaders(correlationID),
		Body:       string(raw),
	}
}

func responseHeaders(correlationID string) map[string]string {
	return map[string]string{
		"Content-Type":    "application/json",
		correlationHeader: correlationID,
	}
}

// correlationIDFrom reuses the caller's correlation id when present,
// matching header names case-insensitively, and mints one otherwise.
func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == correlationHeader && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
