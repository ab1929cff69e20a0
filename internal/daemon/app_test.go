// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/namewhisk/internal/api"
)

func TestNewAppRequiresLauncher(t *testing.T) {
	_, err := NewApp(nil)
	assert.ErrorIs(t, err, ErrMissingLauncher)
}

func TestAppServeAndShutdown(t *testing.T) {
	var hits atomic.Int32
	rdap := newRDAPServer(t, &hits)
	rt, err := Bootstrap(context.Background(), testConfig(rdap.URL))
	require.NoError(t, err)

	app, err := NewApp(rt)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- app.Serve(ctx, ln) }()

	c := newClient(t, rt.Bus, "served")

	resp, err := http.Post(base+"/v1/invocations", "application/json",
		strings.NewReader(`{"channelId":"served","budgetMs":600000}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var inv api.InvocationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inv))
	assert.Equal(t, "namewhisk/served/request", inv.Topics.Request)
	require.Len(t, rt.Launcher.Live(), 1)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}

	notice := c.endNotice()
	assert.True(t, notice.OutOfTime)
	assert.Equal(t, "served", notice.ChannelID)
	assert.Empty(t, rt.Launcher.Live())
}
