package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cyp0633/recuredit/editor"
)

type openRequest struct {
	Rule       string     `json:"rule"`
	Start      *time.Time `json:"start,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`
	DateFormat string     `json:"date_format,omitempty"`
}

func (o openRequest) toEditor() editor.OpenRequest {
	req := editor.OpenRequest{
		RuleText:   o.Rule,
		Location:   o.Timezone,
		DateFormat: o.DateFormat,
	}
	if o.Start != nil {
		req.Start = *o.Start
	}
	return req
}

type indicesRequest struct {
	Indices []int `json:"indices"`
}

type occurrenceResponse struct {
	Index    int       `json:"index"`
	Instant  time.Time `json:"instant"`
	Excluded bool      `json:"excluded"`
	Label    string    `json:"label"`
}

type viewResponse struct {
	ID          string               `json:"id"`
	Rule        string               `json:"rule"`
	Timezone    string               `json:"timezone"`
	Multiplier  int                  `json:"multiplier"`
	CountLimit  int                  `json:"count_limit"`
	DateLimit   time.Time            `json:"date_limit"`
	Exhausted   bool                 `json:"exhausted"`
	RuleError   string               `json:"rule_error,omitempty"`
	Occurrences []occurrenceResponse `json:"occurrences"`
	Matched     []time.Time          `json:"matched"`
	// Unmatched exclusions will be removed on submit
	Unmatched  []time.Time `json:"unmatched"`
	OutOfRange []time.Time `json:"out_of_range"`
}

type submitResponse struct {
	Rule string `json:"rule"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newViewResponse(v *editor.View) viewResponse {
	resp := viewResponse{
		ID:          v.Session.ID,
		Rule:        v.Session.RuleText,
		Timezone:    v.Session.Location,
		Multiplier:  v.Session.Multiplier,
		CountLimit:  v.Result.Horizon.CountLimit,
		DateLimit:   v.Result.Horizon.DateLimit,
		Exhausted:   v.Result.Exhausted,
		Occurrences: make([]occurrenceResponse, len(v.Rows)),
		Matched:     nonNil(v.Result.Matched),
		Unmatched:   nonNil(v.Result.Unmatched),
		OutOfRange:  nonNil(v.Result.OutOfRange),
	}
	if v.RuleError != nil {
		resp.RuleError = v.RuleError.Error()
	}
	for i, row := range v.Rows {
		resp.Occurrences[i] = occurrenceResponse{
			Index:    row.Index,
			Instant:  row.Instant,
			Excluded: row.Excluded,
			Label:    row.Label,
		}
	}
	return resp
}

func nonNil(ts []time.Time) []time.Time {
	if ts == nil {
		return []time.Time{}
	}
	return ts
}

func statusFor(err error) int {
	switch {
	case editor.IsNotFound(err):
		return http.StatusNotFound
	case editor.IsBadRequest(err):
		return http.StatusBadRequest
	case editor.IsConflict(err):
		return http.StatusPreconditionFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set(headerContentType, mimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		r.logger.ErrorContext(ctx, "failed to encode response",
			"error", err)
	}
}

func (r *Router) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		r.logger.ErrorContext(ctx, "request failed",
			"error", err,
			"status", status)
	} else {
		r.logger.WarnContext(ctx, "request rejected",
			"error", err,
			"status", status)
	}
	r.writeJSON(ctx, w, status, errorResponse{Error: err.Error()})
}

// decode reads a JSON body; an empty body leaves v untouched
func decode(req *http.Request, v any) error {
	if req.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &editor.Error{Type: editor.ErrInvalidRequest, Message: "malformed JSON body", Err: err}
	}
	return nil
}
