package state

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *UserState {
	s := New()
	s.Skip["v1"] = 1700000000000
	s.Skip["v2"] = 1700000000500
	s.Videos["v1"] = Video{
		ID:           "v1",
		Title:        "First upload",
		ChannelTitle: "Some Channel",
		Timestamp:    time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Thumbnail:    "https://i.ytimg.com/vi/v1/default.jpg",
	}
	s.Videos["v3"] = Video{
		ID:           "v3",
		Title:        "Private now",
		ChannelTitle: "Other",
		Timestamp:    time.Date(2024, 3, 2, 8, 0, 0, 0, time.FixedZone("CET", 3600)),
	}
	s.Chan2Playlist["UC1"] = "UU1"
	s.WatchLater = "PL1"
	return s
}

func TestNew_AllMapsDefined(t *testing.T) {
	s := New()

	assert.NotNil(t, s.Skip)
	assert.NotNil(t, s.Videos)
	assert.NotNil(t, s.Chan2Playlist)
	assert.Empty(t, s.WatchLater)
}

func TestNormalize_FillsNilMaps(t *testing.T) {
	s := &UserState{WatchLater: "PL1"}
	s.Normalize()

	assert.NotNil(t, s.Skip)
	assert.NotNil(t, s.Videos)
	assert.NotNil(t, s.Chan2Playlist)
	assert.Equal(t, "PL1", s.WatchLater)
}

func TestClone_IsDeep(t *testing.T) {
	orig := sampleState()
	c := orig.Clone()
	c.Skip["new"] = 1
	c.Chan2Playlist["UC9"] = "UU9"

	assert.NotContains(t, orig.Skip, "new")
	assert.NotContains(t, orig.Chan2Playlist, "UC9")
	assert.True(t, sampleState().Equal(orig))
}

func TestEncode_EmitsExactlyFourFields(t *testing.T) {
	data, err := Encode(New())
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.Len(t, fields, 4)
	assert.JSONEq(t, `{}`, string(fields["skip"]))
	assert.JSONEq(t, `{}`, string(fields["videos"]))
	assert.JSONEq(t, `{}`, string(fields["chan2playlist"]))
	assert.JSONEq(t, `""`, string(fields["watch_later"]))
}

func TestEncode_SkipIsMillisecondNumber(t *testing.T) {
	s := New()
	s.Skip["v1"] = 1700000000123

	data, err := Encode(s)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"skip":{"v1":1700000000123}`)
}

func TestRoundTrip_PreservesAllFields(t *testing.T) {
	orig := sampleState()

	data, err := Encode(orig)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	decoded.Normalize()

	assert.True(t, orig.Equal(decoded), "decoded state should equal original")
}

func TestDecode_EmptyInputIsEmptyState(t *testing.T) {
	for _, input := range []string{"", "   \n", "null"} {
		s, err := Decode([]byte(input))
		require.NoError(t, err, "input %q", input)
		assert.True(t, New().Equal(s), "input %q", input)
	}
}

func TestDecode_InvalidJSONFallsBackToEmpty(t *testing.T) {
	s, err := Decode([]byte(`{"skip": {`))

	require.Error(t, err)
	assert.True(t, New().Equal(s))
}

func TestDecode_MissingFieldsBecomeEmptyMaps(t *testing.T) {
	s, err := Decode([]byte(`{"watch_later":"PL1"}`))

	require.NoError(t, err)
	assert.NotNil(t, s.Skip)
	assert.NotNil(t, s.Videos)
	assert.NotNil(t, s.Chan2Playlist)
	assert.Equal(t, "PL1", s.WatchLater)
}

func TestDecode_WrongShapedFieldIsEmptiedAndReported(t *testing.T) {
	s, err := Decode([]byte(`{"skip":[1,2],"chan2playlist":{"UC1":"UU1"},"watch_later":42}`))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ElementsMatch(t, []string{"skip", "watch_later"}, decodeErr.Fields)
	assert.Empty(t, s.Skip)
	assert.Equal(t, map[string]string{"UC1": "UU1"}, s.Chan2Playlist)
	assert.Empty(t, s.WatchLater)
}

func TestDecode_DropsBadEntriesKeepsGoodOnes(t *testing.T) {
	input := `{
		"skip": {"a": 1, "b": "yesterday", "c": 2.9},
		"videos": {"v1": {"title": "kept", "ts": "2024-01-01T00:00:00Z"}, "v2": 7},
		"chan2playlist": {"UC1": "UU1", "UC2": null, "UC3": {}}
	}`

	s, err := Decode([]byte(input))

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 1, "c": 2}, s.Skip)
	require.Contains(t, s.Videos, "v1")
	assert.Equal(t, "v1", s.Videos["v1"].ID, "missing id should default to the key")
	assert.Equal(t, "kept", s.Videos["v1"].Title)
	assert.NotContains(t, s.Videos, "v2")
	assert.Equal(t, "UU1", s.Chan2Playlist["UC1"])
	assert.NotContains(t, s.Chan2Playlist, "UC3")
}

func TestDecode_DropsSkipTimestampsOutsideInt64(t *testing.T) {
	input := `{"skip": {"a": 1, "huge": 1e300, "tiny": -1e300, "edge": 9223372036854775808, "min": -9223372036854775808}}`

	s, err := Decode([]byte(input))

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 1, "min": math.MinInt64}, s.Skip)
}

func TestDecode_ReadsBrowserEraDocument(t *testing.T) {
	// Documents written by the browser version carry the same four fields.
	input := `{"skip":{"dQw4w9WgXcQ":1633024800000},"videos":{"dQw4w9WgXcQ":{"id":"dQw4w9WgXcQ","title":"Song","ts":"2021-09-30T18:00:00Z","thumbnail":"https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg"}},"chan2playlist":{"UCuAXFkgsw1L7xaCfnd5JJOw":"UUuAXFkgsw1L7xaCfnd5JJOw"},"watch_later":"PLxyz"}`

	s, err := Decode([]byte(input))

	require.NoError(t, err)
	assert.Equal(t, int64(1633024800000), s.Skip["dQw4w9WgXcQ"])
	assert.Equal(t, 2021, s.Videos["dQw4w9WgXcQ"].Timestamp.Year())
	assert.Equal(t, "UUuAXFkgsw1L7xaCfnd5JJOw", s.Chan2Playlist["UCuAXFkgsw1L7xaCfnd5JJOw"])
	assert.Equal(t, "PLxyz", s.WatchLater)
}
