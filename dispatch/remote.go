package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes bounds how much of a server response Remote reads.
const maxResponseBytes = 1 << 20

// =============================================================================
// REMOTE SUBMITTER - Posts requests to a real endpoint
// =============================================================================

// Remote submits requests as form-encoded POSTs to an action endpoint.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote creates a Remote for endpoint. A nil client gets a default one
// with a 15 second timeout.
func NewRemote(endpoint string, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Remote{url: endpoint, client: client}
}

// Submit posts req and decodes the answer. Transport failures and
// responses that are not envelopes come back as failure envelopes.
func (r *Remote) Submit(ctx context.Context, req Request) Envelope {
	if req == nil {
		return Fail(ErrUnknownAction.Error())
	}

	body := Values(req).Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, strings.NewReader(body))
	if err != nil {
		return Fail(fmt.Sprintf("could not build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Fail(fmt.Sprintf("transport error: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Fail(fmt.Sprintf("transport error: %v", err))
	}

	env, err := DecodeEnvelope(req.Action(), data)
	if err != nil {
		return Fail("server returned non-JSON: " + string(data))
	}
	return env
}
