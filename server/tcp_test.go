package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/open-switchboard/switchboard/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, timeout time.Duration, operators ...string) net.Addr {
	t.Helper()
	if len(operators) == 0 {
		operators = []string{"A", "B"}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := routing.NewEngine(routing.Config{
		Operators:   operators,
		RingTimeout: timeout,
	}, logger)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go serveCommands(ctx, lis, engine, logger)

	return lis.Addr()
}

func dialTestServer(t *testing.T, addr net.Addr) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func sendLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

// readResponse decodes one response line into its status lines, whether the
// wire value is a single string or a list.
func readResponse(t *testing.T, conn net.Conn, r *bufio.Reader) []string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	raw, err := r.ReadBytes('\n')
	require.NoError(t, err)

	var msg struct {
		Response json.RawMessage `json:"response"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))

	var lines []string
	if err := json.Unmarshal(msg.Response, &lines); err == nil {
		return lines
	}
	var single string
	require.NoError(t, json.Unmarshal(msg.Response, &single))
	return []string{single}
}

func TestCommandRoundTrip(t *testing.T) {
	addr := startTestServer(t, time.Minute)
	conn, r := dialTestServer(t, addr)

	sendLine(t, conn, `{"command": "call", "id": "1"}`)
	assert.Equal(t, []string{"Call 1 received", "Call 1 ringing for operator A"}, readResponse(t, conn, r))

	sendLine(t, conn, `{"command": "answer", "id": "A"}`)
	assert.Equal(t, []string{"Call 1 answered by operator A"}, readResponse(t, conn, r))

	sendLine(t, conn, `{"command": "hangup", "id": "1"}`)
	assert.Equal(t, []string{"Call 1 finished and operator A available"}, readResponse(t, conn, r))
}

func TestErrorResponsesKeepConnectionOpen(t *testing.T) {
	addr := startTestServer(t, time.Minute)
	conn, r := dialTestServer(t, addr)

	sendLine(t, conn, `this is not json`)
	assert.Equal(t, []string{"Error processing command"}, readResponse(t, conn, r))

	sendLine(t, conn, `{"command": "transfer", "id": "1"}`)
	assert.Equal(t, []string{"Error processing command"}, readResponse(t, conn, r))

	sendLine(t, conn, `{"command": "hangup", "id": "zz"}`)
	assert.Equal(t, []string{"Invalid id: zz"}, readResponse(t, conn, r))

	sendLine(t, conn, `{"command": "call", "id": "1"}`)
	assert.Equal(t, []string{"Call 1 received", "Call 1 ringing for operator A"}, readResponse(t, conn, r))

	sendLine(t, conn, `{"command": "call", "id": "1"}`)
	assert.Equal(t, []string{"Call 1 already active"}, readResponse(t, conn, r))
}

func TestSilentNoOpSendsNothing(t *testing.T) {
	addr := startTestServer(t, time.Minute)
	conn, r := dialTestServer(t, addr)

	// Answering an operator that is not ringing produces no message; the
	// next command's reply is the first thing on the wire.
	sendLine(t, conn, `{"command": "answer", "id": "A"}`)
	sendLine(t, conn, `{"command": "call", "id": "7"}`)
	assert.Equal(t, []string{"Call 7 received", "Call 7 ringing for operator A"}, readResponse(t, conn, r))
}

func TestRingTimeoutPushedToOriginSession(t *testing.T) {
	addr := startTestServer(t, 30*time.Millisecond, "A")
	conn, r := dialTestServer(t, addr)

	sendLine(t, conn, `{"command": "call", "id": "1"}`)
	assert.Equal(t, []string{"Call 1 received", "Call 1 ringing for operator A"}, readResponse(t, conn, r))

	// The timeout response arrives unsolicited on the same session.
	assert.Equal(t, []string{"Call 1 ignored by operator A"}, readResponse(t, conn, r))
}

func TestQueueSharedAcrossSessions(t *testing.T) {
	addr := startTestServer(t, time.Minute, "A")
	conn1, r1 := dialTestServer(t, addr)
	conn2, r2 := dialTestServer(t, addr)

	sendLine(t, conn1, `{"command": "call", "id": "1"}`)
	assert.Equal(t, []string{"Call 1 received", "Call 1 ringing for operator A"}, readResponse(t, conn1, r1))

	sendLine(t, conn2, `{"command": "call", "id": "2"}`)
	assert.Equal(t, []string{"Call 2 received", "Call 2 waiting in queue"}, readResponse(t, conn2, r2))

	// Session 2 hangs up session 1's call; state is shared.
	sendLine(t, conn2, `{"command": "hangup", "id": "1"}`)
	assert.Equal(t, []string{"Call 1 missed", "Call 2 ringing for operator A"}, readResponse(t, conn2, r2))
}
