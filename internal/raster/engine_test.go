package raster

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout, stderr []byte
	err            error

	name    string
	args    []string
	content []byte
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name, f.args = name, args
	if len(args) > 0 {
		f.content, _ = os.ReadFile(args[len(args)-1])
	}
	return f.stdout, f.stderr, f.err
}

func found(string) (string, error)   { return "/usr/bin/planscan", nil }
func missing(string) (string, error) { return "", errors.New("not found") }

func TestAvailable(t *testing.T) {
	assert.False(t, NewCommandEngine(Config{}, nil, WithLookPath(found)).Available())
	assert.False(t, NewCommandEngine(Config{Command: "planscan"}, nil, WithLookPath(missing)).Available())
	assert.True(t, NewCommandEngine(Config{Command: "planscan"}, nil, WithLookPath(found)).Available())
}

func TestExtractParsesStdout(t *testing.T) {
	r := &fakeRunner{stdout: []byte(`{
		"floors":[{"name":"Floor 1","floor_number":1,"total_area":120.5,"rooms":[{"name":"Kitchen","area":12}]}],
		"summary":{"total_rooms":1},
		"tier":"raster"
	}`)}
	e := NewCommandEngine(Config{Command: "planscan", Args: []string{"--json"}}, nil, WithRunner(r), WithLookPath(found))

	res, err := e.Extract(context.Background(), []byte("PNGDATA"), "Plan.PNG")
	require.NoError(t, err)

	assert.Equal(t, "planscan", r.name)
	require.Len(t, r.args, 2)
	assert.Equal(t, "--json", r.args[0])
	assert.Contains(t, r.args[1], ".png")
	assert.Equal(t, "PNGDATA", string(r.content))
	_, statErr := os.Stat(r.args[1])
	assert.True(t, os.IsNotExist(statErr), "temp file is removed")

	require.Len(t, res.Floors, 1)
	assert.Equal(t, "Kitchen", res.Floors[0].Rooms[0].Name)
	assert.Equal(t, "raster", res.Tier)
	assert.GreaterOrEqual(t, res.ProcessingTimeMs, int64(0))
}

func TestExtractCommandFailure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 2"), stderr: []byte("bad image")}
	e := NewCommandEngine(Config{Command: "planscan"}, nil, WithRunner(r))

	_, err := e.Extract(context.Background(), []byte("x"), "a.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad image")
}

func TestExtractBadJSON(t *testing.T) {
	e := NewCommandEngine(Config{Command: "planscan"}, nil, WithRunner(&fakeRunner{stdout: []byte("not json")}))
	_, err := e.Extract(context.Background(), []byte("x"), "a.jpg")
	assert.Error(t, err)
}
