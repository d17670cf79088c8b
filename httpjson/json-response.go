package httpjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/programme-lv/contest-client/srvcerror"
)

// JsonResponse is the envelope used by newer backend routes. Older routes
// return the bare payload on success and {"error": "..."} on failure, so
// ErrorBody keeps both spellings of the message.
type JsonResponse struct {
	Status  string          `json:"status"` // "success" or "error"
	Data    json.RawMessage `json:"data,omitempty"`
	ErrCode string          `json:"code,omitempty"`
	ErrMsg  string          `json:"message,omitempty"`
}

type ErrorBody struct {
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	ErrCode string `json:"code,omitempty"`
	ErrMsg  string `json:"message,omitempty"`
}

// WriteJson writes the bare payload, which is what the contest backend does
func WriteJson(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func WriteErrorJson(w http.ResponseWriter, errMsg string, statusCode int, errCode string) {
	resp := ErrorBody{
		Status:  "error",
		Error:   errMsg,
		ErrMsg:  errMsg,
		ErrCode: errCode,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func writeInternalErrorJson(w http.ResponseWriter) {
	WriteErrorJson(w,
		http.StatusText(http.StatusInternalServerError),
		http.StatusInternalServerError,
		srvcerror.ErrCodeInternalServerError)
}

func HandleError(logger *slog.Logger, w http.ResponseWriter, err error) {
	srvcErr := &srvcerror.Error{}
	if errors.As(err, &srvcErr) {
		if srvcErr.DebugInfo() != nil {
			logger.Warn("service error", "error", err, "debug", srvcErr.DebugInfo())
		} else {
			logger.Warn("service error", "error", err)
		}
		if srvcErr.HttpStatusCode() == http.StatusInternalServerError {
			logger.Error("internal server error", "error", err)
		}
		WriteErrorJson(w, srvcErr.Error(), srvcErr.HttpStatusCode(), srvcErr.ErrorCode())
		return
	} else {
		logger.Error("internal server error", "error", err)
		writeInternalErrorJson(w)
	}
}

// DecodeData unmarshals a success body into v. Both the bare payload
// and the {"status":"success","data":...} envelope are accepted.
func DecodeData(body []byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env JsonResponse
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Status == "success" && env.Data != nil {
			return json.Unmarshal(env.Data, v)
		}
	}
	return json.Unmarshal(trimmed, v)
}

// DecodeError extracts the error code and message from a failure body.
// The message is empty when the body carries none.
func DecodeError(body []byte) (code string, msg string) {
	var eb ErrorBody
	if err := json.Unmarshal(bytes.TrimSpace(body), &eb); err != nil {
		return "", ""
	}
	msg = eb.Error
	if msg == "" {
		msg = eb.ErrMsg
	}
	return eb.ErrCode, msg
}
