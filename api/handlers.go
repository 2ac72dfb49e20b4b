/*
handlers.go - HTTP handlers for the mock bank

PURPOSE:
  Exposes the action dispatcher over HTTP. The action endpoint accepts the
  same payload a CGI backend would (form fields with an "action" name) and
  also JSON objects with the same keys.

ERROR HANDLING:
  The action endpoint always answers 200 with an envelope; failures are
  {success:false, message}. The REST endpoints use status codes:
  - 400: Invalid input
  - 404: Unknown account
  - 500: Internal errors

SEE ALSO:
  - dto.go: Response types
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/mockbank/dispatch"
	"github.com/warp/mockbank/ledger"
)

// maxBodyBytes bounds request bodies on the action endpoint.
const maxBodyBytes = 64 << 10

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Submitter dispatch.Submitter
	Bank      *ledger.Bank
	Gatherer  prometheus.Gatherer
	Log       *slog.Logger
}

// NewHandler creates a handler. gatherer may be nil to disable /metrics.
func NewHandler(bank *ledger.Bank, submitter dispatch.Submitter, gatherer prometheus.Gatherer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{Submitter: submitter, Bank: bank, Gatherer: gatherer, Log: log}
}

// =============================================================================
// ACTION ENDPOINT
// =============================================================================

// Dispatch parses an action request and answers with its envelope.
// GET serves read actions only.
// GET|POST /api/bank
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	values, err := requestValues(r)
	if err != nil {
		writeJSON(w, http.StatusOK, dispatch.Fail(err.Error()))
		return
	}

	req, err := dispatch.Parse(values.Get(dispatch.FieldAction), values)
	if err != nil {
		writeJSON(w, http.StatusOK, dispatch.Fail(err.Error()))
		return
	}
	// Query strings end up in request logs.
	if r.Method == http.MethodGet && !req.Action().ReadOnly() {
		writeJSON(w, http.StatusOK, dispatch.Fail(fmt.Sprintf("%s: action %s requires POST", ledger.ErrInvalidInput, req.Action())))
		return
	}

	writeJSON(w, http.StatusOK, h.Submitter.Submit(r.Context(), req))
}

// requestValues merges query parameters with a form or JSON body.
func requestValues(r *http.Request) (url.Values, error) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if r.Method == http.MethodPost && mediaType == "application/json" {
		values := r.URL.Query()
		body, err := decodeJSONValues(r.Body)
		if err != nil {
			return nil, err
		}
		for k, v := range body {
			values[k] = v
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: malformed form body", ledger.ErrInvalidInput)
	}
	return r.Form, nil
}

// decodeJSONValues flattens a JSON object of scalars into form values.
func decodeJSONValues(body io.Reader) (url.Values, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON body", ledger.ErrInvalidInput)
	}

	values := url.Values{}
	for k, v := range obj {
		switch v := v.(type) {
		case nil:
		case string:
			values.Set(k, v)
		case json.Number:
			values.Set(k, v.String())
		case bool:
			values.Set(k, strconv.FormatBool(v))
		default:
			return nil, fmt.Errorf("%w: field %s must be a scalar", ledger.ErrInvalidInput, k)
		}
	}
	return values, nil
}

// =============================================================================
// HISTORY
// =============================================================================

// History returns journal entries for an account, newest first.
// GET /api/accounts/{number}/history?limit=N
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	number := ledger.AccountNumber(chi.URLParam(r, "number"))

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Bank.History(r.Context(), number, limit)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		h.Log.ErrorContext(r.Context(), "history failed", "account", number, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history", nil)
		return
	}

	dtos := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toHistoryEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, HistoryDTO{AccountNumber: string(number), Entries: dtos})
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
