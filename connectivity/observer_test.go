package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserver_SetOnlineNotifiesOnTransitionOnly(t *testing.T) {
	o := NewObserver(nil, Config{}, nil)
	ch, unsubscribe := o.Subscribe()
	defer unsubscribe()

	require.False(t, o.Online())
	o.SetOnline(false)
	select {
	case <-ch:
		t.Fatal("no transition expected")
	default:
	}

	o.SetOnline(true)
	require.True(t, o.Online())
	require.True(t, <-ch)
}

func TestObserver_SlowSubscriberSeesLatest(t *testing.T) {
	o := NewObserver(nil, Config{}, nil)
	ch, unsubscribe := o.Subscribe()
	defer unsubscribe()

	o.SetOnline(true)
	o.SetOnline(false)
	o.SetOnline(true)
	require.True(t, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %v", v)
	default:
	}
}

func TestObserver_PollsProber(t *testing.T) {
	var up atomic.Bool
	prober := ProberFunc(func(ctx context.Context) bool { return up.Load() })
	o := NewObserver(prober, Config{Interval: 10 * time.Millisecond, Timeout: time.Second}, nil)
	ch, _ := o.Subscribe()

	o.Start(context.Background())
	require.False(t, o.Online())

	up.Store(true)
	select {
	case v := <-ch:
		require.True(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not report online")
	}

	o.Stop()
	_, open := <-ch
	require.False(t, open)
}

func TestObserver_UnsubscribeClosesChannel(t *testing.T) {
	o := NewObserver(nil, Config{}, nil)
	ch, unsubscribe := o.Subscribe()
	unsubscribe()
	unsubscribe()
	_, open := <-ch
	require.False(t, open)
	o.SetOnline(true)
}

func TestHTTPProber(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.URL + "/")
	require.True(t, p.Probe(context.Background()))
	healthy.Store(false)
	require.False(t, p.Probe(context.Background()))

	srv.Close()
	require.False(t, p.Probe(context.Background()))
}
