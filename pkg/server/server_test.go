package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"wecomrelay/pkg/config"
	"wecomrelay/pkg/relay"
	"wecomrelay/pkg/wecom"
)

type destination struct {
	*httptest.Server
	hits     atomic.Int32
	lastBody atomic.Value
}

func newDestination(t *testing.T, ack string) *destination {
	t.Helper()
	d := &destination{}
	d.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		d.lastBody.Store(string(body))
		_, _ = w.Write([]byte(ack))
	}))
	t.Cleanup(d.Close)
	return d
}

func newRelayServer(t *testing.T, webhookURL string, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WeCom.WebhookURL = webhookURL
	cfg.WeCom.TimeoutSec = 2
	if mutate != nil {
		mutate(cfg)
	}
	client := wecom.NewClient(cfg.WeCom.WebhookURL, cfg.ForwardTimeout())
	s := NewServer(cfg, relay.New(client, cfg.WeCom.MentionedList))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (int, map[string]string, http.Header) {
	t.Helper()
	resp, err := http.Post(url+PathIncoming, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out, resp.Header
}

func TestIncomingForwardsMessage(t *testing.T) {
	t.Parallel()

	dest := newDestination(t, `{"errcode":0,"errmsg":"ok"}`)
	ts := newRelayServer(t, dest.URL, nil)

	status, out, header := postJSON(t, ts.URL, `{"type":"message","title":"T","text":"hi","url":"http://x","data":{"goodsInfo":{"goodsName":"Knife"}},"timestamp":1700000000}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, out)
	}
	if out["status"] != "success" || out["detail"] != "已推送" {
		t.Fatalf("unexpected body: %v", out)
	}
	if header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}

	var env wecom.Envelope
	if err := json.Unmarshal([]byte(dest.lastBody.Load().(string)), &env); err != nil {
		t.Fatalf("decode forwarded envelope: %v", err)
	}
	if env.MsgType != "markdown" || !strings.Contains(env.Content(), "Knife") {
		t.Fatalf("unexpected forwarded envelope: %+v", env)
	}
}

func TestIncomingApplicationErrorIs400(t *testing.T) {
	t.Parallel()

	dest := newDestination(t, `{"errcode":1,"errmsg":"bad token"}`)
	ts := newRelayServer(t, dest.URL, nil)

	status, out, _ := postJSON(t, ts.URL, `{"type":"message"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if !strings.Contains(out["detail"], "bad token") || !strings.Contains(out["detail"], `"errcode":1`) {
		t.Fatalf("detail should carry destination payload: %q", out["detail"])
	}
}

func TestIncomingInvalidJSONSkipsDestination(t *testing.T) {
	t.Parallel()

	dest := newDestination(t, `{"errcode":0}`)
	ts := newRelayServer(t, dest.URL, nil)

	status, out, _ := postJSON(t, ts.URL, `{not json`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if out["detail"] == "" {
		t.Fatalf("expected detail message")
	}
	if dest.hits.Load() != 0 {
		t.Fatalf("destination should not be called")
	}
}

func TestIncomingDistinguishUpstreamErrors(t *testing.T) {
	t.Parallel()

	dest := newDestination(t, `{"errcode":93000,"errmsg":"invalid webhook url"}`)
	ts := newRelayServer(t, dest.URL, func(cfg *config.Config) {
		cfg.Relay.DistinguishUpstreamErrors = true
	})

	if status, _, _ := postJSON(t, ts.URL, `{"type":"message"}`); status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", status)
	}
	if status, _, _ := postJSON(t, ts.URL, `"not an object"`); status != http.StatusBadRequest {
		t.Fatalf("bad payload status = %d, want 400", status)
	}
}

func TestIncomingBodyTooLarge(t *testing.T) {
	t.Parallel()

	dest := newDestination(t, `{"errcode":0}`)
	ts := newRelayServer(t, dest.URL, func(cfg *config.Config) {
		cfg.Relay.MaxBodyBytes = 16
	})

	status, _, _ := postJSON(t, ts.URL, `{"type":"message","text":"far too long for the limit"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if dest.hits.Load() != 0 {
		t.Fatalf("destination should not be called")
	}
}

func TestHealthIgnoresDestination(t *testing.T) {
	t.Parallel()

	ts := newRelayServer(t, "http://127.0.0.1:1/unreachable", nil)

	resp, err := http.Get(ts.URL + PathHealth)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "ok" || out["message"] != "服务正常运行" {
		t.Fatalf("unexpected health body: %v", out)
	}
}

func TestIncomingRejectsGet(t *testing.T) {
	t.Parallel()

	ts := newRelayServer(t, "http://127.0.0.1:1/unreachable", nil)
	resp, err := http.Get(ts.URL + PathIncoming)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestServeAndStop(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.WeCom.WebhookURL = "http://127.0.0.1:1/unused"
	s := NewServer(cfg, relay.New(wecom.NewClient(cfg.WeCom.WebhookURL, time.Second), nil))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + PathHealth)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("serve returned %v", err)
	}
}
