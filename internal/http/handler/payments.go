package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"chatpay/internal/core"
	"chatpay/internal/http/handler/middleware"
	"chatpay/internal/http/payload"

	"go.uber.org/zap"
)

var (
	Authenticate    = "POST /pay/authenticate"
	MakeTransaction = "POST /pay/transaction"
	MakeSwap        = "POST /pay/swap"
	GetBalance      = "GET /pay/balance/{address}"
	GetNetworks     = "GET /pay/networks"
	GetPrices       = "GET /pay/prices"
	GetTransactions = "GET /pay/transactions/{wallet}"
)

type PaymentHandler struct {
	logs             *zap.SugaredLogger
	requestValidator RequestValidator
	payments         PaymentService
	defaultChainID   int64
}

func NewPaymentHandler(logger *zap.SugaredLogger, requestValidator RequestValidator, paymentService PaymentService, defaultChainID int64) *PaymentHandler {
	return &PaymentHandler{
		logs:             logger,
		requestValidator: requestValidator,
		payments:         paymentService,
		defaultChainID:   defaultChainID,
	}
}

func (h *PaymentHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	var authReq payload.AuthRequest
	err := h.requestValidator.DecodeAndValidateJSONPayload(r, &authReq)
	if err != nil {
		h.respond(w, Response{
			Message: "Could not authenticate",
			Error:   fmt.Errorf("invalid request payload: %w", err).Error(),
		}, http.StatusBadRequest,
			requestId)
		h.logs.Errorw("failed to decode and validate request payload",
			"error", err,
			"handler", Authenticate,
			"request_id", requestId)
		return
	}

	token, err := h.payments.Authenticate(r.Context(), authReq.ToMessage())
	if err != nil {
		resp := Response{
			Message: "Login failed",
		}
		httpCode := http.StatusInternalServerError
		if errors.Is(err, core.ErrAccountNotFound) || errors.Is(err, core.ErrIncorrectPassword) {
			httpCode = http.StatusUnauthorized
			resp.Error = err.Error()
		} else {
			resp.Error = "unexpected error occurred"
		}

		h.respond(w, resp, httpCode, requestId)
		h.logs.Errorw("authentication failed",
			"error", err,
			"handler", Authenticate,
			"request_id", requestId)
		return
	}

	resp := map[string]string{
		"token": token,
	}
	h.respond(w, resp, http.StatusOK, requestId)
}

func (h *PaymentHandler) HandleMakeTransaction(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	if !h.authorized(w, r, MakeTransaction, requestId) {
		return
	}

	var txReq payload.TransactionRequest
	err := h.requestValidator.DecodeAndValidateJSONPayload(r, &txReq)
	if err != nil {
		h.respond(w, Response{
			Message: "Could not start transfer",
			Error:   fmt.Errorf("invalid request payload: %w", err).Error(),
		}, http.StatusBadRequest,
			requestId)
		h.logs.Errorw("failed to decode and validate request payload",
			"error", err,
			"handler", MakeTransaction,
			"request_id", requestId)
		return
	}

	h.logs.Infow("transfer request received",
		"channel_user_id", txReq.ChannelUserID,
		"token", txReq.Token,
		"handler", MakeTransaction,
		"request_id", requestId)

	ack, err := h.payments.SubmitTransfer(r.Context(), txReq.ToMessage(h.defaultChainID))
	if err != nil {
		h.respondSubmitError(w, err, "Could not start transfer", MakeTransaction, requestId)
		return
	}

	h.respond(w, Response{Message: ack.Message}, http.StatusOK, requestId)
}

func (h *PaymentHandler) HandleMakeSwap(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	if !h.authorized(w, r, MakeSwap, requestId) {
		return
	}

	var swapReq payload.SwapRequest
	err := h.requestValidator.DecodeAndValidateJSONPayload(r, &swapReq)
	if err != nil {
		h.respond(w, Response{
			Message: "Could not start swap",
			Error:   fmt.Errorf("invalid request payload: %w", err).Error(),
		}, http.StatusBadRequest,
			requestId)
		h.logs.Errorw("failed to decode and validate request payload",
			"error", err,
			"handler", MakeSwap,
			"request_id", requestId)
		return
	}

	h.logs.Infow("swap request received",
		"channel_user_id", swapReq.ChannelUserID,
		"input", swapReq.InputCurrency,
		"output", swapReq.OutputCurrency,
		"handler", MakeSwap,
		"request_id", requestId)

	ack, err := h.payments.SubmitSwap(r.Context(), swapReq.ToMessage(h.defaultChainID))
	if err != nil {
		h.respondSubmitError(w, err, "Could not start swap", MakeSwap, requestId)
		return
	}

	h.respond(w, Response{Message: ack.Message}, http.StatusOK, requestId)
}

func (h *PaymentHandler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	address := r.PathValue("address")
	network := r.URL.Query().Get("network")

	balances, err := h.payments.ListBalances(r.Context(), address, network)
	if err != nil {
		httpCode := http.StatusInternalServerError
		if errors.Is(err, core.ErrInvalidAddress) || errors.Is(err, core.ErrUnknownNetwork) {
			httpCode = http.StatusBadRequest
		}
		h.respond(w, Response{
			Message: "Could not retrieve balances",
			Error:   err.Error(),
		}, httpCode,
			requestId)
		h.logs.Errorw("failed to list balances",
			"error", err,
			"handler", GetBalance,
			"request_id", requestId)
		return
	}

	resp := map[string][]core.AddressBalance{
		"balances": balances,
	}
	h.respond(w, resp, http.StatusOK, requestId)
}

func (h *PaymentHandler) HandleGetNetworks(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	networks := h.payments.ListNetworks()

	type tokenEntry struct {
		Address  string `json:"address"`
		Decimals uint8  `json:"decimals"`
	}
	type networkEntry struct {
		ChainID  int64                 `json:"chainId"`
		Explorer string                `json:"explorer"`
		Logo     string                `json:"logo"`
		Tokens   map[string]tokenEntry `json:"tokens"`
	}

	resp := make(map[string]networkEntry, len(networks))
	for _, network := range networks {
		tokens := make(map[string]tokenEntry, len(network.Tokens))
		for symbol, token := range network.Tokens {
			tokens[symbol] = tokenEntry{
				Address:  token.Address.Hex(),
				Decimals: token.Decimals,
			}
		}
		resp[network.Name] = networkEntry{
			ChainID:  network.ChainID,
			Explorer: network.Explorer,
			Logo:     network.Logo,
			Tokens:   tokens,
		}
	}

	h.respond(w, resp, http.StatusOK, requestId)
}

func (h *PaymentHandler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	prices := h.payments.ListPrices(r.Context())
	h.respond(w, prices, http.StatusOK, requestId)
}

func (h *PaymentHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	requestId := requestID(r)

	wallet := r.PathValue("wallet")

	records, err := h.payments.GetWalletTransactions(r.Context(), wallet)
	if err != nil {
		httpCode := http.StatusInternalServerError
		if errors.Is(err, core.ErrInvalidAddress) {
			httpCode = http.StatusBadRequest
		}
		h.respond(w, Response{
			Message: "Could not retrieve transactions",
			Error:   err.Error(),
		}, httpCode,
			requestId)
		h.logs.Errorw("failed to get wallet transactions",
			"error", err,
			"handler", GetTransactions,
			"request_id", requestId)
		return
	}

	h.respond(w, map[string]any{"transactions": records}, http.StatusOK, requestId)
}

// authorized enforces the AUTH_TOKEN header on monetary endpoints.
func (h *PaymentHandler) authorized(w http.ResponseWriter, r *http.Request, route, requestId string) bool {
	authToken := r.Header.Get("AUTH_TOKEN")
	if authToken == "" {
		h.respond(w, Response{
			Message: "Authentication failed",
			Error:   "AUTH_TOKEN header is required",
		}, http.StatusUnauthorized,
			requestId)
		h.logs.Errorw("missing AUTH_TOKEN header", "handler", route, "request_id", requestId)
		return false
	}

	if err := h.payments.ValidateToken(authToken); err != nil {
		h.respond(w, Response{
			Message: "Authentication failed",
			Error:   "invalid AUTH_TOKEN",
		}, http.StatusUnauthorized,
			requestId)
		h.logs.Errorw("invalid AUTH_TOKEN", "error", err, "handler", route, "request_id", requestId)
		return false
	}

	return true
}

// respondSubmitError maps saga submission errors: semantic validation errors
// are client errors, everything else is internal. A held lock never lands
// here; it comes back as a success-shaped ack.
func (h *PaymentHandler) respondSubmitError(w http.ResponseWriter, err error, message, route, requestId string) {
	httpCode := http.StatusInternalServerError
	if errors.Is(err, core.ErrUnknownNetwork) ||
		errors.Is(err, core.ErrUnknownToken) ||
		errors.Is(err, core.ErrSelfTransfer) {
		httpCode = http.StatusBadRequest
	}

	h.respond(w, Response{
		Message: message,
		Error:   err.Error(),
	}, httpCode,
		requestId)
	h.logs.Errorw("failed to submit operation",
		"error", err,
		"handler", route,
		"request_id", requestId)
}

func (h *PaymentHandler) respond(w http.ResponseWriter, resp any, code int, requestId string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, oopsErr, http.StatusInternalServerError)
		h.logs.Errorw("failed to encode response",
			"error", err,
			"request_id", requestId)
	}
}

func requestID(r *http.Request) string {
	if val := r.Context().Value(middleware.RequestIDKey); val != nil {
		return val.(string)
	}
	return ""
}
