// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package transport

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftgate/driftgate/internal/login"
	"github.com/driftgate/driftgate/pkg/errutil"
)

// answerStatus drains one HTTPRequest from queue and replies with body.
func answerStatus(t *testing.T, queue chan login.Event, body string) {
	t.Helper()
	go func() {
		select {
		case ev := <-queue:
			req, ok := ev.(login.HTTPRequest)
			if !ok {
				return
			}
			_ = req.Peer.Send(body)
		case <-time.After(2 * time.Second):
		}
	}()
}

func startStatusServer(t *testing.T) (*StatusServer, chan login.Event) {
	t.Helper()
	queue := make(chan login.Event, 16)
	srv := NewStatusServer("127.0.0.1:0", queue)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv, queue
}

func TestStatusServer_ServesReply(t *testing.T) {
	srv, queue := startStatusServer(t)
	answerStatus(t, queue, `{"online_players": 3, "online_servers": 1}`)

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"online_players": 3, "online_servers": 1}`, string(body))
}

func TestStatusServer_EmptyReplyIs404(t *testing.T) {
	srv, queue := startStatusServer(t)
	answerStatus(t, queue, "")

	resp, err := http.Get("http://" + srv.Addr() + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusServer_RequestCarriesPath(t *testing.T) {
	srv, queue := startStatusServer(t)

	got := make(chan string, 1)
	go func() {
		ev := <-queue
		req := ev.(login.HTTPRequest)
		got <- req.Path
		_ = req.Peer.Send("")
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	resp.Body.Close()

	select {
	case path := <-got:
		assert.Equal(t, "/status", path)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestStatusReplyConn(t *testing.T) {
	t.Run("accepts one string reply", func(t *testing.T) {
		reply := make(chan string, 1)
		conn := &statusReplyConn{reply: reply, remoteAddr: "198.51.100.7:4242"}

		require.NoError(t, conn.Send("body"))
		assert.Equal(t, "body", <-reply)
	})

	t.Run("second reply fails", func(t *testing.T) {
		conn := &statusReplyConn{reply: make(chan string, 1), remoteAddr: "198.51.100.7:4242"}
		require.NoError(t, conn.Send("one"))
		errutil.AssertErrorCode(t, conn.Send("two"), "CONN_CLOSED")
	})

	t.Run("rejects non-string messages", func(t *testing.T) {
		conn := &statusReplyConn{reply: make(chan string, 1), remoteAddr: "198.51.100.7:4242"}
		errutil.AssertErrorCode(t, conn.Send(42), "WIRE_ENCODE_FAILED")
	})

	t.Run("remote addr strips port", func(t *testing.T) {
		conn := &statusReplyConn{remoteAddr: "198.51.100.7:4242"}
		assert.Equal(t, "198.51.100.7", conn.RemoteAddr())
	})
}
