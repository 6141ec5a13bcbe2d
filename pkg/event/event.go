// Package event decodes inbound webhook notifications into a typed record.
//
// The upstream sender does not enforce a schema: every field is optional and
// nested records may be missing. Parse resolves each field the formatter
// reads to an explicit default, and rejects values of the wrong JSON type
// instead of letting them surface later as formatting surprises.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	TypeMessage = "message"
	TypeCSLog   = "cslog"
)

const (
	DefaultTitle       = "无标题"
	DefaultGoodsName   = "未知饰品"
	DefaultModuleTitle = "模块"
)

var ErrInvalidJSON = errors.New("invalid JSON body")

// FieldError reports a field whose JSON type cannot be used.
type FieldError struct {
	Path string
	Want string
	Got  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: expected %s, got %s", e.Path, e.Want, e.Got)
}

type Page struct {
	ModuleTitle string
	Text        string
}

type Event struct {
	// Type is the raw "type" value; non-string values keep their JSON text.
	Type    string
	HasType bool

	Title     string
	Text      string
	URL       string
	Timestamp int64

	// message
	GoodsName string

	// cslog
	SummaryText string
	DetailText  string
	FirstPage   *Page
}

// Parse decodes raw into an Event. Only the data fields used by the event's
// type are inspected, so unrelated nested records never cause a failure.
func Parse(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) {
		var discard json.RawMessage
		if err := json.Unmarshal(raw, &discard); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		return Event{}, ErrInvalidJSON
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Event{}, &FieldError{Path: "$", Want: "object", Got: kindOf(root)}
	}

	ev := Event{
		Title:     DefaultTitle,
		GoodsName: DefaultGoodsName,
	}

	if t := root.Get("type"); present(t) {
		ev.HasType = true
		if t.Type == gjson.String {
			ev.Type = t.Str
		} else {
			ev.Type = t.Raw
		}
	}

	var err error
	if ev.Title, err = stringField(root, "title", "title", DefaultTitle); err != nil {
		return Event{}, err
	}
	if ev.Text, err = stringField(root, "text", "text", ""); err != nil {
		return Event{}, err
	}
	ev.Text = strings.TrimSpace(ev.Text)
	if ev.URL, err = stringField(root, "url", "url", ""); err != nil {
		return Event{}, err
	}
	if ev.Timestamp, err = timestampField(root); err != nil {
		return Event{}, err
	}

	switch ev.Type {
	case TypeMessage:
		err = decodeMessage(&ev, root)
	case TypeCSLog:
		err = decodeCSLog(&ev, root)
	}
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

func decodeMessage(ev *Event, root gjson.Result) error {
	data, err := objectField(root, "data", "data")
	if err != nil {
		return err
	}
	goods, err := objectField(data, "goodsInfo", "data.goodsInfo")
	if err != nil {
		return err
	}
	ev.GoodsName, err = stringField(goods, "goodsName", "data.goodsInfo.goodsName", DefaultGoodsName)
	return err
}

func decodeCSLog(ev *Event, root gjson.Result) error {
	data, err := objectField(root, "data", "data")
	if err != nil {
		return err
	}
	summary, err := objectField(data, "summary", "data.summary")
	if err != nil {
		return err
	}
	if ev.SummaryText, err = stringField(summary, "text", "data.summary.text", ""); err != nil {
		return err
	}
	ev.SummaryText = strings.TrimSpace(ev.SummaryText)

	detail, err := objectField(data, "detail", "data.detail")
	if err != nil {
		return err
	}
	if ev.DetailText, err = stringField(detail, "text", "data.detail.text", ""); err != nil {
		return err
	}
	ev.DetailText = strings.TrimSpace(ev.DetailText)

	paged, err := objectField(data, "paged", "data.paged")
	if err != nil {
		return err
	}
	pages := paged.Get("pages")
	if !present(pages) {
		return nil
	}
	if !pages.IsArray() {
		return &FieldError{Path: "data.paged.pages", Want: "array", Got: kindOf(pages)}
	}
	items := pages.Array()
	if len(items) == 0 {
		return nil
	}
	first := items[0]
	if !first.IsObject() {
		return &FieldError{Path: "data.paged.pages[0]", Want: "object", Got: kindOf(first)}
	}

	page := &Page{}
	if page.ModuleTitle, err = stringField(first, "moduleTitle", "data.paged.pages[0].moduleTitle", DefaultModuleTitle); err != nil {
		return err
	}
	if page.Text, err = stringField(first, "text", "data.paged.pages[0].text", ""); err != nil {
		return err
	}
	page.Text = strings.TrimSpace(page.Text)
	ev.FirstPage = page
	return nil
}

// present treats an explicit JSON null the same as a missing key.
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

func stringField(parent gjson.Result, key, path, def string) (string, error) {
	v := parent.Get(gjson.Escape(key))
	if !present(v) {
		return def, nil
	}
	if v.Type != gjson.String {
		return "", &FieldError{Path: path, Want: "string", Got: kindOf(v)}
	}
	return v.Str, nil
}

// objectField returns an empty result when the key is absent so lookups on
// it fall through to defaults.
func objectField(parent gjson.Result, key, path string) (gjson.Result, error) {
	v := parent.Get(gjson.Escape(key))
	if !present(v) {
		return gjson.Result{}, nil
	}
	if !v.IsObject() {
		return gjson.Result{}, &FieldError{Path: path, Want: "object", Got: kindOf(v)}
	}
	return v, nil
}

func timestampField(root gjson.Result) (int64, error) {
	v := root.Get("timestamp")
	if !present(v) {
		return 0, nil
	}
	if v.Type != gjson.Number {
		return 0, &FieldError{Path: "timestamp", Want: "number", Got: kindOf(v)}
	}
	switch {
	case v.Num >= math.MaxInt64:
		return math.MaxInt64, nil
	case v.Num <= math.MinInt64:
		return math.MinInt64, nil
	}
	return v.Int(), nil
}

func kindOf(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.False, gjson.True:
		return "boolean"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	}
	if r.IsArray() {
		return "array"
	}
	if r.IsObject() {
		return "object"
	}
	return "nothing"
}
