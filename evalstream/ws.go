package evalstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/programme-lv/contest-client/subm"
)

// testcase outputs can be large
const readLimit = 4 << 20

// WSDialer opens live channels at {BaseURL}/ws/submission/{id}
type WSDialer struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func (d *WSDialer) Dial(ctx context.Context, submissionID string) (Conn, error) {
	u, err := ChannelURL(d.BaseURL, submissionID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	c, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial live channel %s: %w", submissionID, err)
	}
	c.SetReadLimit(readLimit)
	return &wsConn{c: c}, nil
}

// ChannelURL builds the live channel url of a submission. http(s) base
// urls are mapped to ws(s).
func ChannelURL(base string, submissionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse live channel base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported live channel scheme %q", u.Scheme)
	}
	u = u.JoinPath("ws", "submission", submissionID)
	return u.String(), nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) (subm.LiveUpdate, error) {
	var upd subm.LiveUpdate
	typ, data, err := w.c.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return upd, io.EOF
		}
		return upd, err
	}
	if typ != websocket.MessageText {
		return upd, fmt.Errorf("%w: binary frame", ErrMalformed)
	}
	if err := json.Unmarshal(data, &upd); err != nil {
		return upd, errors.Join(ErrMalformed, err)
	}
	return upd, nil
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
