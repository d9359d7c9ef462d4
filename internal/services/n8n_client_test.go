package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"dredd-service/internal/config"
)

func TestDecodeReply_LLMEcho(t *testing.T) {
	body := []byte(`[{"content":{"parts":[{"text":"GUILTY. This token is a honeypot."}]}}]`)
	reply := DecodeReply(body)

	assert.Equal(t, ReplyLLMEcho, reply.Kind)
	assert.Equal(t, "GUILTY. This token is a honeypot.", reply.Text)
}

func TestDecodeReply_MessageObject(t *testing.T) {
	reply := DecodeReply([]byte(`{"message":"Verdict: NOT GUILTY"}`))

	assert.Equal(t, ReplyMessage, reply.Kind)
	assert.Equal(t, "Verdict: NOT GUILTY", reply.Text)
}

func TestDecodeReply_BareJSONString(t *testing.T) {
	reply := DecodeReply([]byte(`"plain verdict text"`))

	assert.Equal(t, ReplyJSONString, reply.Kind)
	assert.Equal(t, "plain verdict text", reply.Text)
}

func TestDecodeReply_PlainText(t *testing.T) {
	reply := DecodeReply([]byte("The sentence is death.\n"))

	assert.Equal(t, ReplyPlainText, reply.Kind)
	assert.Equal(t, "The sentence is death.", reply.Text)
}

func TestDecodeReply_Unrecognized(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("   "),
		[]byte(`{}`),
		[]byte(`{"verdict":"guilty"}`),
		[]byte(`[]`),
		[]byte(`[{"content":{}}]`),
		[]byte(`{"message":""}`),
	}
	for _, body := range cases {
		reply := DecodeReply(body)
		if reply.Kind != ReplyUnrecognized {
			t.Errorf("DecodeReply(%q) = %v, want unrecognized", body, reply.Kind)
		}
	}
}

func TestDecodeReply_PriorityOrder(t *testing.T) {
	// A body matching both the echo shape and {message:} decodes as echo.
	body := []byte(`[{"content":{"parts":[{"text":"echo wins"}]},"message":"ignored"}]`)
	reply := DecodeReply(body)
	assert.Equal(t, ReplyLLMEcho, reply.Kind)
	assert.Equal(t, "echo wins", reply.Text)
}

func TestN8NClient_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"message":"analysis done"}`))
	}))
	defer srv.Close()

	client := NewN8NClient(config.N8NConfig{WebhookURL: srv.URL, TimeoutSeconds: 5})
	reply, err := client.Analyze(context.Background(), AnalysisRequest{
		Message: "analyze 0xabc",
		UserID:  1,
	})

	assert.NoError(t, err)
	assert.Equal(t, ReplyMessage, reply.Kind)
	assert.Equal(t, "analysis done", reply.Text)
}

func TestN8NClient_RetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`"recovered"`))
	}))
	defer srv.Close()

	client := NewN8NClient(config.N8NConfig{WebhookURL: srv.URL, TimeoutSeconds: 5})
	reply, err := client.Analyze(context.Background(), AnalysisRequest{Message: "hi", UserID: 1})

	assert.NoError(t, err)
	assert.Equal(t, ReplyJSONString, reply.Kind)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestN8NClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewN8NClient(config.N8NConfig{WebhookURL: srv.URL, TimeoutSeconds: 5})
	_, err := client.Analyze(context.Background(), AnalysisRequest{Message: "hi", UserID: 1})

	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestN8NClient_NoURL(t *testing.T) {
	client := NewN8NClient(config.N8NConfig{})
	_, err := client.Analyze(context.Background(), AnalysisRequest{Message: "hi"})
	assert.Error(t, err)
}
