package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseListenURL(t *testing.T) {
	network, host, err := ParseListenURL("tcp://:8080", 9090)
	assert.NoError(t, err)
	assert.Equal(t, "tcp", network)
	assert.Equal(t, ":8080", host)

	network, host, err = ParseListenURL("tcp://localhost", 9090)
	assert.NoError(t, err)
	assert.Equal(t, "tcp", network)
	assert.Equal(t, "localhost:9090", host)

	network, host, err = ParseListenURL("unix:///tmp/watchdog.sock", 9090)
	assert.NoError(t, err)
	assert.Equal(t, "unix", network)
	assert.Equal(t, "/tmp/watchdog.sock", host)

	_, _, err = ParseListenURL("udp://:53", 9090)
	assert.ErrorIs(t, err, ErrParse)
}

func TestListen(t *testing.T) {
	socket, err := Listen("tcp://127.0.0.1:0", 9090)
	assert.NoError(t, err)
	assert.NoError(t, socket.Close())
}
