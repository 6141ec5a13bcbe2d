package logger

const (
	FieldRequestID = "request_id"
	FieldMsgType   = "msgtype"
	FieldEventType = "event_type"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldPayload   = "payload"
	FieldContent   = "content"

	FieldPayloadLength = "payload_length"
	FieldContentBytes  = "content_bytes"
	FieldDuration      = "duration_ms"
)
