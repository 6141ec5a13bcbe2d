// WeComRelay - webhook to WeCom group-bot relay
// License: MIT
//
// Copyright (c) 2026 WeComRelay contributors

package relay

import (
	"context"
	"errors"

	"wecomrelay/pkg/event"
	"wecomrelay/pkg/formatter"
	"wecomrelay/pkg/logger"
	"wecomrelay/pkg/wecom"
)

// Sender delivers an envelope to the destination webhook.
type Sender interface {
	Send(ctx context.Context, env wecom.Envelope) (*wecom.Ack, error)
}

type Relay struct {
	sender    Sender
	mentions  []string
	formatter formatter.Formatter
}

type Result struct {
	MsgType      string
	ContentBytes int
}

func New(sender Sender, mentions []string) *Relay {
	return &Relay{
		sender:   sender,
		mentions: append([]string{}, mentions...),
	}
}

// Handle runs one parse, format, forward, acknowledge cycle. Every returned
// error is a *Error.
func (r *Relay) Handle(ctx context.Context, requestID string, raw []byte) (*Result, error) {
	logger.InfoCF("relay", "Received upstream webhook", map[string]interface{}{
		logger.FieldRequestID:     requestID,
		logger.FieldPayloadLength: len(raw),
		logger.FieldPayload:       string(raw),
	})

	ev, err := event.Parse(raw)
	if err != nil {
		return nil, r.fail(requestID, &Error{Kind: KindBadRequest, Err: err})
	}

	msg := r.formatter.Format(ev)
	env := wecom.NewEnvelope(msg, r.mentions)

	content := env.Content()
	fields := map[string]interface{}{
		logger.FieldRequestID:    requestID,
		logger.FieldMsgType:      env.MsgType,
		logger.FieldContentBytes: len(content),
		logger.FieldContent:      content,
	}
	if ev.HasType {
		fields[logger.FieldEventType] = ev.Type
	}
	logger.InfoCF("relay", "Forwarding to WeCom", fields)

	if _, err := r.sender.Send(ctx, env); err != nil {
		kind := KindUpstream
		if wecom.IsTimeout(err) {
			kind = KindUpstreamTimeout
		}
		return nil, r.fail(requestID, &Error{Kind: kind, Err: err})
	}

	logger.InfoCF("relay", "Forwarded to WeCom", map[string]interface{}{
		logger.FieldRequestID: requestID,
		logger.FieldMsgType:   env.MsgType,
	})

	return &Result{MsgType: env.MsgType, ContentBytes: len(content)}, nil
}

func (r *Relay) fail(requestID string, err *Error) *Error {
	fields := map[string]interface{}{
		logger.FieldRequestID: requestID,
		"kind":                err.Kind.String(),
		logger.FieldError:     err.Error(),
	}
	var apiErr *wecom.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HasErrCode {
			fields["errcode"] = apiErr.ErrCode
		}
		if apiErr.ErrMsg != "" {
			fields["errmsg"] = apiErr.ErrMsg
		}
	}
	logger.ErrorCF("relay", "Relay failed", fields)
	return err
}
