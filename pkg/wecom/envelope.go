package wecom

import "wecomrelay/pkg/formatter"

// Envelope is the JSON body accepted by a WeCom group-bot webhook.
type Envelope struct {
	MsgType  string    `json:"msgtype"`
	Markdown *Markdown `json:"markdown,omitempty"`
	Text     *Text     `json:"text,omitempty"`
}

type Markdown struct {
	Content string `json:"content"`
}

type Text struct {
	Content       string   `json:"content"`
	MentionedList []string `json:"mentioned_list"`
}

// NewEnvelope wraps msg for the webhook. mentions only applies to text messages.
func NewEnvelope(msg formatter.Message, mentions []string) Envelope {
	if msg.Kind == formatter.KindMarkdown {
		return Envelope{
			MsgType:  string(formatter.KindMarkdown),
			Markdown: &Markdown{Content: msg.Content},
		}
	}
	return Envelope{
		MsgType: string(formatter.KindText),
		Text: &Text{
			Content:       msg.Content,
			MentionedList: append([]string{}, mentions...),
		},
	}
}

func (e Envelope) Content() string {
	switch {
	case e.Markdown != nil:
		return e.Markdown.Content
	case e.Text != nil:
		return e.Text.Content
	}
	return ""
}
