package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/native/presale"
)

const maxBodyBytes = 1 << 16

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// writeError maps ledger errors onto HTTP statuses. Policy violations carry
// their stable code; internal failures never leak their text.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: strings.TrimPrefix(err.Error(), errBadRequest.Error()+": ")})
	case errors.Is(err, presale.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: presale.ErrorCode(err)})
	case presale.IsPolicyViolation(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: presale.ErrorCode(err)})
	case errors.Is(err, presale.ErrNotInitialized):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: presale.ErrorCode(err)})
	default:
		logger.Error("request failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return badRequest("invalid body: %v", err)
	}
	return nil
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, badRequest("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// parseOptionalAddress treats an empty value as the zero address.
func parseOptionalAddress(raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, nil
	}
	return parseAddress(raw)
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || trimmed == "" {
		return nil, badRequest("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, badRequest("amount must not be negative")
	}
	return value, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
