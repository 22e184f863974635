// Package rest содержит HTTP-слой сервиса: chi-роутер и обработчики.
// Слой тонкий: разбор запроса, вызов сервиса, маппинг доменных ошибок
// в статусы. Бизнес-логики здесь нет.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// errorBody — единый формат ошибки для всех ответов API.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeDomainError переводит доменную ошибку в HTTP-статус.
// Клиентские ошибки отличимы от сбоев зависимостей: невалидный вход и
// бизнес-отказы дают 4xx, недоступность каталога или провайдера — 502.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCheckoutInvalid),
		errors.Is(err, domain.ErrCartEmpty),
		errors.Is(err, domain.ErrCartOwnerMismatch),
		errors.Is(err, domain.ErrLineQtyInvalid):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrCatalogUnavailable),
		errors.Is(err, domain.ErrGateway),
		errors.Is(err, domain.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
