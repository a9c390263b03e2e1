package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchInjuries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"name":"Luka Dončić","team":"Los Angeles Lakers","status":"Out","return_date":"Nov 20","details":"Left hamstring strain"},
			{"name":"Jayson Tatum","team":"Boston Celtics","status":"Day-To-Day","return_date":"","details":"Day-To-Day"},
			{"name":"","team":"Boston Celtics","status":"Out"}
		]`))
	}))
	defer srv.Close()

	feed := NewInjuryFeed(srv.URL, 5*time.Second, nil)
	reports, err := feed.FetchInjuries(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2, "entries without a name are dropped")

	assert.Equal(t, models.InjuryReport{
		Name: "Luka Dončić", Team: "Los Angeles Lakers", Status: "Out",
		ReturnDate: "Nov 20", Details: "Left hamstring strain",
	}, reports[0])
	assert.Equal(t, "", reports[1].Details, "details repeating the status are dropped")
	assert.Equal(t, models.InjuryDayToDay, reports[1].Status)
}

func TestFetchInjuries_EmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	reports, err := NewInjuryFeed(srv.URL, time.Second, nil).FetchInjuries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestFetchInjuries_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewInjuryFeed(srv.URL, time.Second, nil).FetchInjuries(context.Background())
	assert.ErrorContains(t, err, "502")
}

func TestFetchInjuries_WaitsOnLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	l := &countingLimiter{}
	feed := NewInjuryFeed(srv.URL, time.Second, l)
	for i := 0; i < 2; i++ {
		_, err := feed.FetchInjuries(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, l.n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewInjuryFeed(srv.URL, time.Second, ratelimit.NewInterval(time.Hour)).FetchInjuries(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
