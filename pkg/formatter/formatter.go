// Package formatter renders inbound events as WeCom group-bot messages.
package formatter

import (
	"fmt"
	"time"

	"wecomrelay/pkg/event"
)

type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindText     Kind = "text"
)

const (
	DetailPreviewRunes   = 800
	FallbackSummaryRunes = 1000
	UnknownTextRunes     = 1500

	// WeCom rejects markdown content above 4096 bytes.
	MaxMarkdownBytes = 3800
)

type Message struct {
	Kind    Kind
	Content string
}

// Formatter holds the time zone used for timestamps. The zero value uses
// the process's local zone.
type Formatter struct {
	Location *time.Location
}

// Format renders ev with the local time zone.
func Format(ev event.Event) Message {
	return Formatter{}.Format(ev)
}

func (f Formatter) Format(ev event.Event) Message {
	switch ev.Type {
	case event.TypeMessage:
		return f.renderMessage(ev)
	case event.TypeCSLog:
		return f.renderCSLog(ev)
	default:
		return renderUnknown(ev)
	}
}

func (f Formatter) formatTime(ts int64) string {
	return formatTimeIn(ts, f.Location)
}

func (f Formatter) renderMessage(ev event.Event) Message {
	content := fmt.Sprintf(
		"**%s**\n\n"+
			"**饰品**：%s\n"+
			"**消息**：%s\n\n"+
			"**时间**：%s\n"+
			"[查看详情](%s)",
		ev.Title, ev.GoodsName, ev.Text, f.formatTime(ev.Timestamp), ev.URL,
	)
	return Message{Kind: KindMarkdown, Content: content}
}

func (f Formatter) renderCSLog(ev event.Event) Message {
	timeStr := f.formatTime(ev.Timestamp)

	var paged string
	if ev.FirstPage != nil {
		paged = fmt.Sprintf("**第一页 - %s**\n%s", ev.FirstPage.ModuleTitle, indent(ev.FirstPage.Text))
	}

	content := fmt.Sprintf(
		"**%s**\n\n"+
			"**时间**：%s\n\n"+
			"**总结**\n%s\n\n"+
			"%s\n\n"+
			"**详情预览**\n%s...\n\n"+
			"[查看完整公告](%s)",
		ev.Title,
		timeStr,
		indent(ev.SummaryText),
		paged,
		indent(truncateRunes(ev.DetailText, DetailPreviewRunes)),
		ev.URL,
	)
	if len(content) <= MaxMarkdownBytes {
		return Message{Kind: KindMarkdown, Content: content}
	}

	content = fmt.Sprintf(
		"%s\n"+
			"时间：%s\n\n"+
			"%s...\n\n"+
			"链接：%s",
		ev.Title,
		timeStr,
		truncateRunes(ev.SummaryText, FallbackSummaryRunes),
		ev.URL,
	)
	return Message{Kind: KindText, Content: content}
}

func renderUnknown(ev event.Event) Message {
	content := fmt.Sprintf(
		"收到未知类型消息：%s\n"+
			"标题：%s\n"+
			"内容：%s...\n"+
			"链接：%s",
		ev.Type, ev.Title, truncateRunes(ev.Text, UnknownTextRunes), ev.URL,
	)
	return Message{Kind: KindText, Content: content}
}
