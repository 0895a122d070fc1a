// Package timeline turns the raw message container of one conversation into an
// ordered, date-separated sequence of render-ready items.
package timeline

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/mmynk/pollchat/internal/models"
)

type record struct {
	key string
	msg models.Message
}

// Merge decodes raw (a JSON object of record key to message record) and returns the
// conversation's timeline in loc. A nil loc means time.Local.
//
// Merge never fails: a body that is not a JSON object yields an empty timeline, and a
// record with missing or mistyped fields yields a partial message.
func Merge(raw []byte, loc *time.Location) []Item {
	if loc == nil {
		loc = time.Local
	}

	records := decode(raw)
	sort.Slice(records, func(i, j int) bool {
		if records[i].msg.Timestamp != records[j].msg.Timestamp {
			return records[i].msg.Timestamp < records[j].msg.Timestamp
		}
		return records[i].key < records[j].key
	})

	items := make([]Item, 0, len(records)+1)
	var lastDay time.Time
	for i, r := range records {
		day := startOfDay(time.UnixMilli(r.msg.Timestamp).In(loc))
		if i == 0 || !day.Equal(lastDay) {
			items = append(items, DateSeparator{Day: day, Label: day.Format(DateLayout)})
			lastDay = day
		}
		items = append(items, RenderableMessage{
			RecordKey: r.key,
			Message:   r.msg,
			Kind:      r.msg.Kind(),
		})
	}
	return items
}

func decode(raw []byte) []record {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var container map[string]json.RawMessage
	if err := json.Unmarshal(raw, &container); err != nil {
		return nil
	}

	records := make([]record, 0, len(container))
	for key, body := range container {
		records = append(records, record{key: key, msg: decodeMessage(body)})
	}
	return records
}

// decodeMessage reads each field independently so one bad field does not lose the rest.
func decodeMessage(body json.RawMessage) models.Message {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return models.Message{}
	}

	return models.Message{
		From:      stringField(fields, "from"),
		To:        stringField(fields, "to"),
		Text:      stringField(fields, "text"),
		Timestamp: intField(fields, "timestamp"),
		IsSystem:  boolField(fields, "isSystem"),
		Type:      stringField(fields, "type"),
		FileName:  stringField(fields, "fileName"),
		FileURL:   stringField(fields, "fileUrl"),
		FileSize:  intField(fields, "fileSize"),
	}
}

func stringField(fields map[string]json.RawMessage, name string) string {
	var s string
	if raw, ok := fields[name]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func intField(fields map[string]json.RawMessage, name string) int64 {
	raw, ok := fields[name]
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	return 0
}

func boolField(fields map[string]json.RawMessage, name string) bool {
	var b bool
	if raw, ok := fields[name]; ok {
		_ = json.Unmarshal(raw, &b)
	}
	return b
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
