package wecom

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wecomrelay/pkg/formatter"
)

func newDestination(t *testing.T, status int, body string, got *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if got != nil {
			*got, _ = io.ReadAll(r.Body)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEnvelopeJSON(t *testing.T) {
	t.Parallel()

	md, err := json.Marshal(NewEnvelope(formatter.Message{Kind: formatter.KindMarkdown, Content: "**hi**"}, []string{"@all"}))
	if err != nil {
		t.Fatalf("marshal markdown: %v", err)
	}
	if string(md) != `{"msgtype":"markdown","markdown":{"content":"**hi**"}}` {
		t.Fatalf("markdown envelope mismatch: %s", md)
	}

	txt, err := json.Marshal(NewEnvelope(formatter.Message{Kind: formatter.KindText, Content: "hi"}, []string{"@all"}))
	if err != nil {
		t.Fatalf("marshal text: %v", err)
	}
	if string(txt) != `{"msgtype":"text","text":{"content":"hi","mentioned_list":["@all"]}}` {
		t.Fatalf("text envelope mismatch: %s", txt)
	}

	empty, _ := json.Marshal(NewEnvelope(formatter.Message{Kind: formatter.KindText, Content: "hi"}, nil))
	if !strings.Contains(string(empty), `"mentioned_list":[]`) {
		t.Fatalf("nil mentions should encode as empty list: %s", empty)
	}
}

func TestClientSendSuccess(t *testing.T) {
	t.Parallel()

	var received []byte
	srv := newDestination(t, http.StatusOK, `{"errcode":0,"errmsg":"ok"}`, &received)
	client := NewClient(srv.URL, 2*time.Second)

	env := NewEnvelope(formatter.Message{Kind: formatter.KindMarkdown, Content: "Knife"}, nil)
	ack, err := client.Send(context.Background(), env)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ack.ErrCode == nil || *ack.ErrCode != 0 || ack.ErrMsg != "ok" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	var decoded Envelope
	if err := json.Unmarshal(received, &decoded); err != nil {
		t.Fatalf("decode received envelope: %v", err)
	}
	if decoded.MsgType != "markdown" || decoded.Content() != "Knife" {
		t.Fatalf("destination got %+v", decoded)
	}
}

func TestClientSendApplicationError(t *testing.T) {
	t.Parallel()

	srv := newDestination(t, http.StatusOK, `{"errcode":1,"errmsg":"bad token"}`, nil)
	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), Envelope{MsgType: "text", Text: &Text{Content: "x"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.ErrCode != 1 || !apiErr.HasErrCode || apiErr.ErrMsg != "bad token" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !strings.Contains(err.Error(), `"errmsg":"bad token"`) {
		t.Fatalf("error should carry destination payload: %v", err)
	}
}

func TestClientSendMissingErrCode(t *testing.T) {
	t.Parallel()

	srv := newDestination(t, http.StatusOK, `{"errmsg":"?"}`, nil)
	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), Envelope{MsgType: "text"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.HasErrCode {
		t.Fatalf("expected APIError without errcode, got %v", err)
	}
}

func TestClientSendBadAcknowledgement(t *testing.T) {
	t.Parallel()

	srv := newDestination(t, http.StatusOK, `<html>`, nil)
	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), Envelope{MsgType: "text"})
	if err == nil || !strings.Contains(err.Error(), "failed to parse acknowledgement") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestClientSendNon2xx(t *testing.T) {
	t.Parallel()

	srv := newDestination(t, http.StatusBadGateway, `upstream down`, nil)
	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), Envelope{MsgType: "text"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Body != "upstream down" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
	if IsTimeout(err) {
		t.Fatalf("status error is not a timeout")
	}
}

func TestClientSendTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	_, err := NewClient(srv.URL, 50*time.Millisecond).Send(context.Background(), Envelope{MsgType: "text"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected IsTimeout, got %v", err)
	}
}

func TestClientSendUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Send(context.Background(), Envelope{MsgType: "text"})
	if err == nil || !strings.Contains(err.Error(), "failed to send request") {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestClientSendRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("", time.Second).Send(context.Background(), Envelope{}); err == nil {
		t.Fatalf("expected error for empty webhook url")
	}
}
