package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/subm"
	"github.com/wailsapp/mimetype"
)

// Submit uploads a solution. It is never retried.
func (c *Client) Submit(ctx context.Context, req subm.Request) (subm.SubmitResponse, error) {
	body, contentType, err := encodeSubmission(req)
	if err != nil {
		return subm.SubmitResponse{}, srvcerror.ErrSubmitFailed().SetDebug(err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/submissions", nil, body)
	if err != nil {
		return subm.SubmitResponse{}, srvcerror.ErrSubmitFailed().SetDebug(err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	var resp subm.SubmitResponse
	if err := c.send(httpReq, &resp, srvcerror.ErrSubmitFailed); err != nil {
		return subm.SubmitResponse{}, err
	}
	c.logger.Debug("submitted solution",
		"submission_id", resp.SubmissionID,
		"case_id", req.CaseID,
		"request_id", httpReq.Header.Get("X-Request-ID"))
	return resp, nil
}

func encodeSubmission(req subm.Request) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if req.File != nil {
		mType := mimetype.Detect(req.File.Content)
		contentType := "application/octet-stream"
		if mType != nil {
			contentType = mType.String()
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.File.Name)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(req.File.Content); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	} else if err := w.WriteField("code", req.Code); err != nil {
		return nil, "", fmt.Errorf("write code field: %w", err)
	}

	fields := [][2]string{
		{"case_id", req.CaseID},
		{"contest_id", req.ContestID},
		{"language_id", strconv.Itoa(req.LanguageID)},
	}
	if req.ClassID != "" {
		fields = append(fields, [2]string{"class_id", req.ClassID})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
