package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"dredd-service/internal/config"
)

// ReplyKind tags which of the known n8n response shapes a reply decoded as.
// The workflow is externally controlled and uncontracted, so the decoder
// tries shapes in priority order and keeps an explicit unrecognized variant
// instead of guessing.
type ReplyKind int

const (
	// ReplyLLMEcho is the nested [0].content.parts[0].text echo shape some
	// LLM nodes produce when the workflow forwards the raw API response.
	ReplyLLMEcho ReplyKind = iota
	// ReplyMessage is a flat {"message": "..."} object.
	ReplyMessage
	// ReplyJSONString is a bare JSON-encoded string body.
	ReplyJSONString
	// ReplyPlainText is any other non-empty body, taken verbatim.
	ReplyPlainText
	// ReplyUnrecognized means the body was empty or decoded to no usable text.
	ReplyUnrecognized
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyLLMEcho:
		return "llm_echo"
	case ReplyMessage:
		return "message"
	case ReplyJSONString:
		return "json_string"
	case ReplyPlainText:
		return "plain_text"
	}
	return "unrecognized"
}

// Reply is the decoded workflow response.
type Reply struct {
	Kind ReplyKind
	Text string
}

// llmEchoEnvelope matches [{"content":{"parts":[{"text":"..."}]}}].
type llmEchoEnvelope []struct {
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

// DecodeReply classifies a raw response body into one of the known shapes.
func DecodeReply(body []byte) Reply {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Reply{Kind: ReplyUnrecognized}
	}

	var echo llmEchoEnvelope
	if err := json.Unmarshal(trimmed, &echo); err == nil && len(echo) > 0 {
		parts := echo[0].Content.Parts
		if len(parts) > 0 && parts[0].Text != "" {
			return Reply{Kind: ReplyLLMEcho, Text: parts[0].Text}
		}
	}

	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &msg); err == nil && msg.Message != "" {
		return Reply{Kind: ReplyMessage, Text: msg.Message}
	}

	var bare string
	if err := json.Unmarshal(trimmed, &bare); err == nil && bare != "" {
		return Reply{Kind: ReplyJSONString, Text: bare}
	}

	// JSON that decoded but carried no usable text stays unrecognized;
	// anything non-JSON is passed through as plain text.
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return Reply{Kind: ReplyUnrecognized}
	}
	return Reply{Kind: ReplyPlainText, Text: string(trimmed)}
}

// AnalysisRequest is the payload forwarded to the workflow.
type AnalysisRequest struct {
	Message         string `json:"message"`
	ContractAddress string `json:"contract_address,omitempty"`
	Chain           string `json:"chain,omitempty"`
	Mode            string `json:"mode,omitempty"`
	UserID          uint   `json:"user_id"`
}

// N8NClient posts chat messages to the configured workflow webhook. It has
// its own HTTP client since analysis runs take far longer than regular
// gateway calls.
type N8NClient struct {
	webhookURL string
	httpClient *http.Client
}

func NewN8NClient(cfg config.N8NConfig) *N8NClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &N8NClient{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze forwards the request and decodes the reply. Transport failures are
// retried once; HTTP 4xx responses are not, the workflow rejected the call.
func (c *N8NClient) Analyze(ctx context.Context, req AnalysisRequest) (Reply, error) {
	if c.webhookURL == "" {
		return Reply{}, fmt.Errorf("n8n webhook URL not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Reply{}, err
	}

	op := func() ([]byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("n8n returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("n8n rejected request: %d", resp.StatusCode))
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		return Reply{}, err
	}

	return DecodeReply(body), nil
}
