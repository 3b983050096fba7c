package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// document is the persisted JSON shape. Map fields are always emitted as
// objects, never null.
type document struct {
	Skip          map[string]int64    `json:"skip"`
	Videos        map[string]videoDoc `json:"videos"`
	Chan2Playlist map[string]string   `json:"chan2playlist"`
	WatchLater    string              `json:"watch_later"`
}

type videoDoc struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
	TS           string `json:"ts"`
	Thumbnail    string `json:"thumbnail,omitempty"`
}

// rawDocument defers decoding of every field so one bad field cannot
// take the others down with it.
type rawDocument struct {
	Skip          json.RawMessage `json:"skip"`
	Videos        json.RawMessage `json:"videos"`
	Chan2Playlist json.RawMessage `json:"chan2playlist"`
	WatchLater    json.RawMessage `json:"watch_later"`
}

// DecodeError lists the top-level fields that had the wrong shape and were
// replaced by their empty value.
type DecodeError struct {
	Fields []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed state fields: %s", strings.Join(e.Fields, ", "))
}

// Encode serializes s into the persisted document format.
func Encode(s *UserState) ([]byte, error) {
	if s == nil {
		s = New()
	}
	doc := document{
		Skip:          make(map[string]int64, len(s.Skip)),
		Videos:        make(map[string]videoDoc, len(s.Videos)),
		Chan2Playlist: make(map[string]string, len(s.Chan2Playlist)),
		WatchLater:    s.WatchLater,
	}
	for k, v := range s.Skip {
		doc.Skip[k] = v
	}
	for k, v := range s.Videos {
		vd := videoDoc{
			ID:           v.ID,
			Title:        v.Title,
			ChannelTitle: v.ChannelTitle,
			Thumbnail:    v.Thumbnail,
		}
		if !v.Timestamp.IsZero() {
			vd.TS = v.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		doc.Videos[k] = vd
	}
	for k, v := range s.Chan2Playlist {
		doc.Chan2Playlist[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// Decode parses a persisted document. It always returns a usable, normalized
// state: empty input and null decode to New() without error, invalid JSON
// decodes to New() with an error, and fields of the wrong shape are emptied
// and reported through a *DecodeError while the rest is kept.
func Decode(data []byte) (*UserState, error) {
	s := New()

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return s, nil
	}

	var raw rawDocument
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return s, fmt.Errorf("failed to parse state: %w", err)
	}

	var bad []string
	if m, ok := decodeSkip(raw.Skip); ok {
		s.Skip = m
	} else {
		bad = append(bad, "skip")
	}
	if m, ok := decodeVideos(raw.Videos); ok {
		s.Videos = m
	} else {
		bad = append(bad, "videos")
	}
	if m, ok := decodeStrings(raw.Chan2Playlist); ok {
		s.Chan2Playlist = m
	} else {
		bad = append(bad, "chan2playlist")
	}
	if !isNull(raw.WatchLater) {
		if err := json.Unmarshal(raw.WatchLater, &s.WatchLater); err != nil {
			s.WatchLater = ""
			bad = append(bad, "watch_later")
		}
	}

	if len(bad) > 0 {
		return s, &DecodeError{Fields: bad}
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// entries splits a JSON object into its raw members. Absent or null counts
// as an empty object; anything that isn't an object is a shape failure.
func entries(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if isNull(raw) {
		return map[string]json.RawMessage{}, true
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func decodeSkip(raw json.RawMessage) (map[string]int64, bool) {
	members, ok := entries(raw)
	out := make(map[string]int64, len(members))
	if !ok {
		return out, false
	}
	for k, v := range members {
		var ts float64
		if err := json.Unmarshal(v, &ts); err != nil {
			continue
		}
		// int64 conversion of an out-of-range float is undefined.
		if math.IsNaN(ts) || math.IsInf(ts, 0) || ts >= math.MaxInt64 || ts < math.MinInt64 {
			continue
		}
		out[k] = int64(ts)
	}
	return out, true
}

func decodeVideos(raw json.RawMessage) (map[string]Video, bool) {
	members, ok := entries(raw)
	out := make(map[string]Video, len(members))
	if !ok {
		return out, false
	}
	for k, v := range members {
		var vd videoDoc
		if err := json.Unmarshal(v, &vd); err != nil {
			continue
		}
		video := Video{
			ID:           vd.ID,
			Title:        vd.Title,
			ChannelTitle: vd.ChannelTitle,
			Thumbnail:    vd.Thumbnail,
		}
		if video.ID == "" {
			video.ID = k
		}
		if vd.TS != "" {
			if ts, err := time.Parse(time.RFC3339, vd.TS); err == nil {
				video.Timestamp = ts
			}
		}
		out[k] = video
	}
	return out, true
}

func decodeStrings(raw json.RawMessage) (map[string]string, bool) {
	members, ok := entries(raw)
	out := make(map[string]string, len(members))
	if !ok {
		return out, false
	}
	for k, v := range members {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		out[k] = s
	}
	return out, true
}
