package bulk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consoleworks/gridcore/pkg/behavior"
	"github.com/consoleworks/gridcore/pkg/fetch"
)

type staticAttrs map[string]Action

func (s staticAttrs) Action(id string) (Action, bool) {
	a, ok := s[id]
	return a, ok
}

type legacyBulk struct{ calls int }

func (l *legacyBulk) Execute(_ context.Context, actionID string, ids []string) (behavior.BulkResult, error) {
	l.calls++
	return behavior.BulkResult{Succeeded: len(ids)}, nil
}

func TestEmptySelectionNeverDispatches(t *testing.T) {
	e := NewExecutor(nil)
	e.RegisterInline("archive", func(context.Context, []string, map[string]any) (behavior.BulkResult, error) {
		t.Fatal("handler must not run")
		return behavior.BulkResult{}, nil
	})

	_, err := e.Execute(context.Background(), "archive", nil, nil)
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.False(t, Attempted(err))
}

func TestInlineTakesPrecedence(t *testing.T) {
	legacy := &legacyBulk{}
	e := NewExecutor(nil,
		WithAttributeSource(staticAttrs{"archive": {ID: "archive", Endpoint: "/should/not/run"}}),
		WithLegacy(legacy),
	)

	var got []string
	e.RegisterInline("archive", func(_ context.Context, ids []string, _ map[string]any) (behavior.BulkResult, error) {
		got = ids
		return behavior.BulkResult{Succeeded: len(ids)}, nil
	})

	res, err := e.Execute(context.Background(), "archive", []string{"1", "2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, got)
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, legacy.calls)
}

func TestDeclarativePostsAndParsesPerRowOutcomes(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		_, _ = w.Write([]byte(`{"results":[
			{"id":"1","status":"ok"},
			{"id":"2","status":"ok"},
			{"id":"3","status":"ok"},
			{"id":"4","status":"ok"},
			{"id":"5","status":"ok"},
			{"id":"6","status":"failed","error":"row locked"},
			{"id":"7","error":"validation"}
		]}`))
	}))
	defer srv.Close()

	client, err := fetch.NewClient(srv.URL)
	require.NoError(t, err)

	e := NewExecutor(client, WithAttributeSource(staticAttrs{
		"publish": {
			ID:       "publish",
			Endpoint: "/api/translations/publish",
			Payload:  map[string]any{"locale": "de"},
		},
	}))

	ids := []string{"1", "2", "3", "4", "5", "6", "7"}
	res, err := e.Execute(context.Background(), "publish", ids, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Items, 7)
	assert.Equal(t, "row locked", res.Items[5].Error)

	assert.Equal(t, "de", received["locale"])
	assert.Len(t, received["ids"], 7)
}

func TestDeclarativeConfirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"succeeded":1,"failed":0}`))
	}))
	defer srv.Close()
	client, _ := fetch.NewClient(srv.URL)

	attrs := staticAttrs{
		"delete": {ID: "delete", Endpoint: "/api/delete", Confirm: "Delete 1 row?"},
	}

	// Declined: nothing dispatched.
	declined := NewExecutor(client,
		WithAttributeSource(attrs),
		WithConfirmer(func(string) bool { return false }),
	)
	_, err := declined.Execute(context.Background(), "delete", []string{"1"}, nil)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.False(t, Attempted(err))

	// No confirmer installed behaves like a decline.
	silent := NewExecutor(client, WithAttributeSource(attrs))
	_, err = silent.Execute(context.Background(), "delete", []string{"1"}, nil)
	assert.ErrorIs(t, err, ErrDeclined)

	// Confirmed: runs.
	var asked string
	confirmed := NewExecutor(client,
		WithAttributeSource(attrs),
		WithConfirmer(func(msg string) bool { asked = msg; return true }),
	)
	res, err := confirmed.Execute(context.Background(), "delete", []string{"1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Delete 1 row?", asked)
	assert.Equal(t, 1, res.Succeeded)
}

func TestDeclarativeRequiredFields(t *testing.T) {
	e := NewExecutor(nil, WithAttributeSource(staticAttrs{
		"assign": {ID: "assign", Endpoint: "/api/assign", RequiredFields: []string{"assignee"}},
	}))

	_, err := e.Execute(context.Background(), "assign", []string{"1"}, nil)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.False(t, Attempted(err))
}

func TestLegacyFallback(t *testing.T) {
	legacy := &legacyBulk{}
	e := NewExecutor(nil, WithLegacy(legacy))

	res, err := e.Execute(context.Background(), "old-style", []string{"1", "2", "3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 1, legacy.calls)
}

func TestUnknownAction(t *testing.T) {
	e := NewExecutor(nil)
	_, err := e.Execute(context.Background(), "ghost", []string{"1"}, nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.False(t, Attempted(err))
}

func TestTransportFailureCountsAsAttempted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	client, _ := fetch.NewClient(srv.URL)

	e := NewExecutor(client, WithAttributeSource(staticAttrs{
		"sync": {ID: "sync", Endpoint: "/api/sync"},
	}))

	_, err := e.Execute(context.Background(), "sync", []string{"1"}, nil)
	require.Error(t, err)
	assert.True(t, Attempted(err))
}

func TestParseResultFallbacks(t *testing.T) {
	// Summary counts only.
	res := parseResult([]byte(`{"succeeded":4,"failed":1}`), []string{"a"})
	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	// No recognizable result: every id succeeded.
	res = parseResult([]byte(`{"message":"done"}`), []string{"a", "b"})
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, res.Failed)
}
