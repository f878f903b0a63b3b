package api

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

func success(result interface{}) Response {
	return Response{Status: statusOK, Result: result}
}

func failure(message string) Response {
	return Response{Status: statusError, Message: message}
}

var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = sonic.Marshal(failure("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("failed to marshal fallback error response: %v", err))
	}
}

// writeJSON marshals before touching headers so a bad payload still yields a valid reply.
func writeJSON(w http.ResponseWriter, code int, resp Response) {
	data, err := sonic.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling response")
		data = fallbackErrorResponse
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Msg("error writing response")
	}
}
