package scraper

import (
	"fmt"
	"strconv"

	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// envelope returns the "data" object of a response, or the response
// itself when the endpoint answers without one.
func envelope(resp map[string]any) map[string]any {
	if data, ok := resp["data"].(map[string]any); ok {
		return data
	}
	return resp
}

// list returns the first array found under keys
func list(data map[string]any, keys ...string) []any {
	for _, k := range keys {
		if items, ok := data[k].([]any); ok {
			return items
		}
	}
	return nil
}

// cursorOf reads a cursor that may come back as a string or a number
func cursorOf(data map[string]any) string {
	switch v := data["cursor"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func hasMore(data map[string]any) bool {
	b, _ := data["has_more"].(bool)
	return b
}

// decodeItems converts raw list entries into T. Entries that are not
// objects or do not decode are skipped; pick selects the object to decode
// from each entry.
func decodeItems[T any](raw []any, pick func(map[string]any) map[string]any, log logger.Logger) []T {
	out := make([]T, 0, len(raw))
	for i, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			log.WithField("index", i).Debug("Skipping non-object list item")
			continue
		}
		if pick != nil {
			obj = pick(obj)
		}

		var item T
		if err := xhs.Decode(obj, &item); err != nil {
			log.WithField("index", i).WithError(err).Debug("Skipping malformed list item")
			continue
		}
		out = append(out, item)
	}
	return out
}

// noteCard unwraps the note_card object feed and search items carry
func noteCard(item map[string]any) map[string]any {
	inner, ok := item["note_card"].(map[string]any)
	if !ok {
		return item
	}
	card := make(map[string]any, len(inner)+2)
	for k, v := range inner {
		card[k] = v
	}
	if _, has := card["note_id"]; !has {
		if id, ok := item["id"]; ok {
			card["note_id"] = id
		}
	}
	if _, has := card["xsec_token"]; !has {
		if tok, ok := item["xsec_token"]; ok {
			card["xsec_token"] = tok
		}
	}
	return card
}

func noteKey(n xhs.Note) string { return n.NoteID }

func commentKey(c xhs.Comment) string { return c.CommentID }
