package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/demo-rest/internal/ingest"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "entities", input: "Fish &amp; Chips", want: "Fish & Chips"},
		{name: "collapse whitespace", input: "  foo\n\nbar\t baz ", want: "foo bar baz"},
		{name: "strip markup", input: "<b>Bold</b> move", want: "Bold move"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ingest.CleanTitle(tt.input); got != tt.want {
				t.Fatalf("CleanTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeUpsert(t *testing.T) {
	raw := []byte(`{
		"event_id": " ev-1 ",
		"op": "UPSERT",
		"content": {
			"nid": 12,
			"type": " Article ",
			"title": "  Hello &amp; welcome ",
			"status": true,
			"images": [{"fid": 4, "uri": "public://images/a.png"}]
		}
	}`)

	ev, err := ingest.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "ev-1", ev.ID)
	require.Equal(t, ingest.OpUpsert, ev.Op)
	require.Equal(t, int64(12), ev.Content.NID)
	require.Equal(t, "article", ev.Content.Type)
	require.Equal(t, "Hello & welcome", ev.Content.Title)
	require.Equal(t, "en", ev.Content.Langcode)
	require.Len(t, ev.Content.Images, 1)
	require.Equal(t, "a.png", ev.Content.Images[0].Filename)
}

func TestDecodeDefaultsToUpsert(t *testing.T) {
	ev, err := ingest.Decode([]byte(`{"content":{"nid":1,"type":"page","title":"About"}}`))
	require.NoError(t, err)
	require.Equal(t, ingest.OpUpsert, ev.Op)
}

func TestDecodeDeleteNeedsOnlyNID(t *testing.T) {
	ev, err := ingest.Decode([]byte(`{"op":"delete","content":{"nid":3}}`))
	require.NoError(t, err)
	require.Equal(t, ingest.OpDelete, ev.Op)
	require.Equal(t, int64(3), ev.Content.NID)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "no nid", raw: `{"content":{"type":"article","title":"x"}}`, want: ingest.ErrMissingNID},
		{name: "unknown op", raw: `{"op":"archive","content":{"nid":1}}`, want: ingest.ErrUnknownOp},
		{name: "no type", raw: `{"content":{"nid":1,"title":"x"}}`, want: ingest.ErrMissingType},
		{name: "blank title", raw: `{"content":{"nid":1,"type":"article","title":"<p> </p>"}}`, want: ingest.ErrMissingTitle},
		{name: "image without scheme", raw: `{"content":{"nid":1,"type":"article","title":"x","images":[{"fid":1,"uri":"a.png"}]}}`, want: ingest.ErrBadImage},
		{name: "image without fid", raw: `{"content":{"nid":1,"type":"article","title":"x","images":[{"uri":"public://a.png"}]}}`, want: ingest.ErrBadImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingest.Decode([]byte(tt.raw))
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := ingest.Decode([]byte(`{not json`))
	require.Error(t, err)
}

func TestEventKey(t *testing.T) {
	ev, err := ingest.Decode([]byte(`{"content":{"nid":1,"type":"article","title":"Hello"}}`))
	require.NoError(t, err)

	k1 := ingest.EventKey(ev)
	k2 := ingest.EventKey(ev)
	require.NotEmpty(t, k1)
	require.Equal(t, k1, k2)

	ev.Content.Title = "Changed"
	require.NotEqual(t, k1, ingest.EventKey(ev))

	ev.ID = "explicit"
	require.Equal(t, "explicit", ingest.EventKey(ev))
}
