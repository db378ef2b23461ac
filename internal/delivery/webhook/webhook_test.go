package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/serverwatch/internal/delivery"
	"github.com/hamed0406/serverwatch/internal/render"
)

type captured struct {
	method string
	path   string
	wait   string
	thread string
	title  string
}

func newHook(t *testing.T, status int, got *captured) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Embeds []struct {
				Title string `json:"title"`
			} `json:"embeds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got.method, got.path = r.Method, r.URL.Path
		got.wait, got.thread = r.URL.Query().Get("wait"), r.URL.Query().Get("thread_id")
		if len(body.Embeds) > 0 {
			got.title = body.Embeds[0].Title
		}
		w.WriteHeader(status)
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"id":"1122334455"}`))
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func TestWebhook_Create(t *testing.T) {
	var got captured
	s := newHook(t, http.StatusOK, &got)

	h, err := New(s.URL+"/api/webhooks/1/tok").Create(context.Background(), "", render.Payload{Title: "Arena"})
	require.NoError(t, err)
	assert.Equal(t, delivery.Handle{Destination: Destination, ID: "1122334455"}, h)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "true", got.wait)
	assert.Equal(t, "Arena", got.title)
}

func TestWebhook_Edit(t *testing.T) {
	var got captured
	s := newHook(t, http.StatusOK, &got)

	err := New(s.URL+"/api/webhooks/1/tok").Edit(context.Background(), delivery.Handle{Destination: Destination, ID: "42"}, render.Payload{Title: "Arena"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, "/api/webhooks/1/tok/messages/42", got.path)
}

func TestWebhook_KeepsThreadQuery(t *testing.T) {
	var got captured
	s := newHook(t, http.StatusOK, &got)
	ch := New(s.URL + "/api/webhooks/1/tok?thread_id=99")

	h, err := ch.Create(context.Background(), "", render.Payload{Title: "Arena"})
	require.NoError(t, err)
	assert.Equal(t, "/api/webhooks/1/tok", got.path)
	assert.Equal(t, "99", got.thread)
	assert.Equal(t, "true", got.wait)

	require.NoError(t, ch.Edit(context.Background(), h, render.Payload{Title: "Arena"}))
	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, "/api/webhooks/1/tok/messages/1122334455", got.path)
	assert.Equal(t, "99", got.thread)
}

func TestWebhook_Non2xx(t *testing.T) {
	var got captured
	s := newHook(t, http.StatusNotFound, &got)

	err := New(s.URL).Edit(context.Background(), delivery.Handle{ID: "42"}, render.Payload{})
	assert.Error(t, err)
}

func TestNew_EmptyURL(t *testing.T) {
	assert.Nil(t, New(""))
}
