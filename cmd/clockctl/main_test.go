package main

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/storacha/w3clock/clock"
	"github.com/storacha/w3clock/service"
	"github.com/storacha/w3clock/transport/grpcclock"
)

const seed = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type harness struct {
	t      *testing.T
	api    string
	keyDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	r, err := clock.NewRouter(dssync.MutexWrap(datastore.NewMapDatastore()), clock.Options{})
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	grpcclock.RegisterClockServer(srv, &grpcclock.Server{Clocks: r, Service: service.New(r)})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	return &harness{t: t, api: lis.Addr().String(), keyDir: t.TempDir()}
}

// run executes clockctl and returns its trimmed stdout lines.
func (h *harness) run(args ...string) ([]string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	argv := append([]string{"clockctl", "--api", h.api, "--key-dir", h.keyDir}, args...)
	err := app.Run(argv)
	text := strings.TrimSpace(out.String())
	if text == "" {
		return nil, err
	}
	return strings.Split(text, "\n"), err
}

func (h *harness) must(args ...string) []string {
	h.t.Helper()
	lines, err := h.run(args...)
	require.NoError(h.t, err, "clockctl %v", args)
	return lines
}

func TestKeygen(t *testing.T) {
	h := newHarness(t)
	root := h.must("keygen", "--name", "root", "--seed-hex", seed)
	require.Len(t, root, 1)
	require.True(t, strings.HasPrefix(root[0], "did:key:z6Mk"))

	again := h.must("keygen", "--name", "root2", "--seed-hex", seed)
	require.Equal(t, root, again)

	child := h.must("keygen", "--name", "laptop", "--from", "root")
	require.NotEqual(t, root, child)

	_, err := h.run("keygen", "--name", "root", "--seed-hex", seed)
	require.Error(t, err, "existing key without --force")

	keys := h.must("keys")
	require.Equal(t, []string{
		"root\t" + root[0],
		"root-laptop\t" + child[0],
		"root2\t" + root[0],
	}, keys)
}

func TestSundialOverCLI(t *testing.T) {
	h := newHarness(t)
	sundial := h.must("keygen", "--name", "sundial")[0]
	alice := h.must("keygen", "--name", "alice")[0]

	// The clock key delegates clock/* to alice, who follows herself.
	h.must("follow", "--clock", "sundial", "--as", "alice")
	require.Equal(t, []string{sundial + "\t" + alice}, h.must("following", "--clock", "sundial", "--as", "alice"))
	require.Empty(t, h.must("head", "--clock", "sundial"))

	e0 := h.must("advance", "--clock", "sundial", "--as", "alice", "--data", "e0")
	require.Len(t, e0, 1)
	e1 := h.must("advance", "--clock", "sundial", "--as", "alice", "--data", "e1")
	require.Len(t, e1, 1)
	require.NotEqual(t, e0, e1)
	require.Equal(t, e1, h.must("head", "--clock", "sundial"))

	h.must("unfollow", "--clock", "sundial", "--as", "alice")
	require.Empty(t, h.must("following", "--clock", "sundial"))

	// Advances by alice are now ignored.
	require.Equal(t, e1, h.must("advance", "--clock", "sundial", "--as", "alice", "--data", "e2"))
}

func TestSession_RemoteClockNeedsLocalKey(t *testing.T) {
	h := newHarness(t)
	h.must("keygen", "--name", "alice")
	_, err := h.run("head", "--clock", "did:key:z6MkSundial", "--as", "alice")
	require.ErrorContains(t, err, "not local")

	_, err = h.run("head", "--clock", "did:key:z6MkSundial")
	require.ErrorContains(t, err, "--as is required")
}
