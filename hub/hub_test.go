package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
	"github.com/lixenwraith/world-mood/store/memory"
)

var (
	fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	saoPaulo = mood.Location{Name: "Sao Paulo", Lat: -23.5505, Lng: -46.6333}
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { st.Close() })
	s := NewServer(st, nil, nil)
	s.now = func() time.Time { return fixedNow }
	return s, st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPostMood(t *testing.T) {
	s, st := newTestServer(t)

	rec := do(t, s.Handler(), "POST", "/moods", `{"moodType":"happy","locationName":"Sao Paulo","lat":-23.5505,"lng":-46.6333}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out store.EventRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, fixedNow.UnixMilli(), out.Timestamp, "missing timestamp defaults to now")
	assert.NotEmpty(t, out.ID)

	events, err := st.Range(context.Background(), fixedNow, fixedNow.Add(time.Millisecond))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, saoPaulo, events[0].Location)
}

func TestPostMood_BadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"unknown kind", `{"moodType":"bored","lat":0,"lng":0}`},
		{"bad location", `{"moodType":"sad","lat":0,"lng":500}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), "POST", "/moods", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestListMoods(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, mood.NewEvent(mood.KindSad, saoPaulo, fixedNow.Add(-30*time.Minute))))
	require.NoError(t, st.Append(ctx, mood.NewEvent(mood.KindLove, saoPaulo, fixedNow.Add(-3*time.Hour))))

	rec := do(t, s.Handler(), "GET", "/moods", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []store.EventRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1, "default window is the last hour")
	assert.Equal(t, "sad", out[0].MoodType)

	from := fixedNow.Add(-4 * time.Hour).Format(time.RFC3339)
	rec = do(t, s.Handler(), "GET", "/moods?from="+from, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 2)

	rec = do(t, s.Handler(), "GET", "/moods?to=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessage(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), "POST", "/messages", `{"text":"  ola  ","location":{"name":"Sao Paulo","lat":-23.5505,"lng":-46.6333}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out store.MessageRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ola", out.Text)

	rec = do(t, s.Handler(), "POST", "/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), "DELETE", "/moods", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStreamMoods(t *testing.T) {
	s, st := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, st.Append(ctx, mood.NewEvent(mood.KindAnxious, saoPaulo, fixedNow)))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/moods/stream?since=" + fixedNow.Add(-time.Minute).Format(time.RFC3339)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := store.DecodeEvent(bytes.TrimSpace(data))
	require.NoError(t, err)
	assert.Equal(t, mood.KindAnxious, ev.Kind)
}

func TestParseTime(t *testing.T) {
	def := fixedNow
	got, err := parseTime("", def)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	got, err = parseTime("1748779200000", def)
	require.NoError(t, err)
	assert.True(t, got.Equal(fixedNow))

	got, err = parseTime("2025-06-01T12:00:00Z", def)
	require.NoError(t, err)
	assert.True(t, got.Equal(fixedNow))

	_, err = parseTime("noon", def)
	assert.Error(t, err)
}
