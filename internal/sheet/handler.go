package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"etfsave.life/web/internal/observability"
	"etfsave.life/web/internal/record"
)

const maxBody = 8 << 20

// ErrBadPayload is returned for POST bodies that are neither a row array nor a known
// envelope.
var ErrBadPayload = errors.New("payload must be a row array or an update envelope")

// Handler serves the spreadsheet endpoint. Every POST answers 200 with a plain-text
// message; callers tell failures apart by the "Error: " prefix.
type Handler struct {
	svc *Service
	// OnResultReplaced runs after the result sheet has been rewritten.
	OnResultReplaced func(ctx context.Context, rows []record.Record)
}

// NewHandler builds a handler over svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.get(w, r)
	case http.MethodPost:
		h.post(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	name := ResultSheet
	if r.URL.Query().Get("action") == "getItems" {
		name = ManageSheet
	}
	rows, err := h.svc.Objects(r.Context(), name)
	if err != nil {
		observability.FromContext(r.Context()).Error("read sheet", zap.String("sheet", name), zap.Error(err))
		writeText(w, "Error: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(rows)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())
	msg, err := h.apply(r.Context(), io.LimitReader(r.Body, maxBody))
	if err != nil {
		logger.Warn("sheet update failed", zap.Error(err))
		writeText(w, "Error: "+err.Error())
		return
	}
	logger.Info("sheet updated", zap.String("result", msg))
	writeText(w, msg)
}

type envelope struct {
	Action json.RawMessage `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func (e envelope) action() string {
	var s string
	if len(e.Action) > 0 && json.Unmarshal(e.Action, &s) == nil {
		return s
	}
	return ""
}

func (e envelope) dataIsArray() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && d[0] == '['
}

func (h *Handler) apply(ctx context.Context, body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrBadPayload
	}
	if raw[0] == '[' {
		return h.replaceResult(ctx, raw)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	action := env.action()
	switch {
	case action == "updateManage" && env.dataIsArray():
		updates, err := decodeUpdates(env.Data)
		if err != nil {
			return "", err
		}
		n, err := h.svc.UpdateManage(ctx, updates)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Success Manage Update: %d items processed.", n), nil
	case action == "" && env.dataIsArray():
		return h.replaceResult(ctx, env.Data)
	default:
		return "", ErrBadPayload
	}
}

func (h *Handler) replaceResult(ctx context.Context, raw []byte) (string, error) {
	rows, err := record.DecodeArray(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	if err := h.svc.ReplaceResult(ctx, rows); err != nil {
		return "", err
	}
	if h.OnResultReplaced != nil {
		h.OnResultReplaced(ctx, rows)
	}
	return "Success Result Update", nil
}

func decodeUpdates(raw []byte) ([]ManageUpdate, error) {
	items, err := record.DecodeArray(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	out := make([]ManageUpdate, 0, len(items))
	for _, it := range items {
		out = append(out, ManageUpdate{
			Code:     it.String("code"),
			StdCode:  truthy(it, "std_code"),
			FundName: truthy(it, "fund_name"),
		})
	}
	return out, nil
}

// truthy returns the text of key unless the value is blank, zero or false.
func truthy(r record.Record, key string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return ""
	}
	if b, ok := v.(bool); ok && !b {
		return ""
	}
	s := record.Stringify(v)
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil && f == 0 {
			return ""
		}
	}
	return s
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, msg)
}
