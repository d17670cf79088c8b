package httpjson_test

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/programme-lv/contest-client/httpjson"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeData(t *testing.T) {
	type payload struct {
		ID string `json:"submission_id"`
	}

	var bare payload
	require.NoError(t, httpjson.DecodeData([]byte(`{"submission_id":"S1"}`), &bare))
	assert.Equal(t, "S1", bare.ID)

	var wrapped payload
	require.NoError(t, httpjson.DecodeData([]byte(`{"status":"success","data":{"submission_id":"S2"}}`), &wrapped))
	assert.Equal(t, "S2", wrapped.ID)

	var list []payload
	require.NoError(t, httpjson.DecodeData([]byte(` [{"submission_id":"S3"}]`), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "S3", list[0].ID)
}

func TestDecodeError(t *testing.T) {
	code, msg := httpjson.DecodeError([]byte(`{"error":"rate limited"}`))
	assert.Equal(t, "", code)
	assert.Equal(t, "rate limited", msg)

	code, msg = httpjson.DecodeError([]byte(`{"status":"error","code":"x","message":"bad"}`))
	assert.Equal(t, "x", code)
	assert.Equal(t, "bad", msg)

	_, msg = httpjson.DecodeError([]byte(`<html>502</html>`))
	assert.Equal(t, "", msg)
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	httpjson.HandleError(slog.Default(), w, srvcerror.ErrRateLimited())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	code, msg := httpjson.DecodeError(w.Body.Bytes())
	assert.Equal(t, srvcerror.ErrCodeRateLimited, code)
	assert.Equal(t, "rate limited", msg)

	w = httptest.NewRecorder()
	httpjson.HandleError(slog.Default(), w, errors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
