package configuration

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/pact-foundation/pact-go/utils"
	"github.com/stretchr/testify/require"
)

func greeter(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Hello, "+name)
	})
}

// This test ensures that a second server is refused for an address already in use
// and accepted for any other address.
func TestStartServer(t *testing.T) {
	type testCase struct {
		name        string
		sameAddress bool
		shouldError bool
	}

	for _, tc := range []testCase{
		{
			name:        "Same host, same port",
			sameAddress: true,
			shouldError: true,
		},
		{
			name:        "Same host, different port",
			sameAddress: false,
			shouldError: false,
		},
	} {
		t.Run(tc.name, func(st *testing.T) {
			defer ShutdownAllServers(context.Background())

			port1, err := utils.GetFreePort()
			require.NoError(st, err)
			port2, err := utils.GetFreePort()
			require.NoError(st, err)

			addr1 := fmt.Sprintf("localhost:%d", port1)
			addr2 := fmt.Sprintf("localhost:%d", port2)
			if tc.sameAddress {
				addr2 = addr1
			}

			_, err = StartServer(addr1, greeter("foo"))
			require.NoError(st, err)

			_, err = StartServer(addr2, greeter("bar"))
			require.Equalf(st, tc.shouldError, err != nil, "found error: %s", err)
		})
	}
}

// This test ensures that the handler answers on its address and the address
// can be reused after the server is shut down.
func TestShutdownServer(t *testing.T) {
	defer ShutdownAllServers(context.Background())

	port, err := utils.GetFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("localhost:%d", port)

	_, err = StartServer(addr, greeter("foo"))
	require.NoError(t, err)

	res, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	greeting, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "Hello, foo\n", string(greeting))

	require.NoError(t, ShutdownServer(context.Background(), addr))
	_, loaded := loadServer(addr)
	require.False(t, loaded)

	_, err = StartServer(addr, greeter("bar"))
	require.NoError(t, err)
}

// This test ensures that the address is released as soon as ShutdownServer returns,
// even when the server is stopped right after it was started.
func TestShutdownServerReleasesAddressImmediately(t *testing.T) {
	defer ShutdownAllServers(context.Background())

	port, err := utils.GetFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("localhost:%d", port)

	for i := 0; i < 20; i++ {
		_, err := StartServer(addr, greeter("foo"))
		require.NoErrorf(t, err, "start %d", i)
		require.NoError(t, ShutdownServer(context.Background(), addr))

		listener, err := net.Listen("tcp", addr)
		require.NoErrorf(t, err, "listen %d", i)
		require.NoError(t, listener.Close())
	}
}

func TestStartServerUsesRegistry(t *testing.T) {
	defer ShutdownAllServers(context.Background())

	port, err := utils.GetFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("localhost:%d", port)

	server, err := StartServer(addr, greeter("foo"))
	require.NoError(t, err)

	registered, loaded := loadServer(addr)
	require.True(t, loaded)
	require.Same(t, server, registered)

	ShutdownAllServers(context.Background())
	_, loaded = loadServer(addr)
	require.False(t, loaded)
}
