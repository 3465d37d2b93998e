package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }
func (f failing) Close() error                         { return nil }

func TestHTTPPublisherPostsEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "downstream-key", r.Header.Get("x-api-key"))
		var e Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		received <- e
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.URL, "downstream-key", 5*time.Second)
	defer p.Close()

	err := p.Publish(context.Background(), Event{Kind: KindFile, ID: "f1", Status: "completed", OccurredAt: time.Now()})
	require.NoError(t, err)

	e := <-received
	assert.Equal(t, "f1", e.ID)
	assert.Equal(t, "completed", e.Status)
}

func TestHTTPPublisherReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.URL, "", 5*time.Second)
	defer p.Close()

	assert.Error(t, p.Publish(context.Background(), Event{Kind: KindFile, ID: "f1"}))
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{Nop{}, failing{err: boom}}

	err := m.Publish(context.Background(), Event{})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, Multi{Nop{}}.Publish(context.Background(), Event{}))
}
