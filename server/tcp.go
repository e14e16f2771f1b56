package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/open-switchboard/switchboard/config"
	"github.com/open-switchboard/switchboard/routing"
	"github.com/open-switchboard/switchboard/session"
	"github.com/open-switchboard/switchboard/types"
)

// envelope is the wire shape of every outbound message. Response is a
// single string or an ordered list of strings.
type envelope struct {
	Response any `json:"response"`
}

// StartCommandServer listens for line-oriented JSON command sessions and
// serves them until ctx is cancelled. Each line carries one command
// object; each outcome with content is answered with one response line.
func StartCommandServer(ctx context.Context, cfg *config.Config, engine *routing.Engine, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}
	logger.Info("command server listening", "addr", lis.Addr().String())
	return serveCommands(ctx, lis, engine, logger)
}

func serveCommands(ctx context.Context, lis net.Listener, engine *routing.Engine, logger *slog.Logger) error {
	// Fired ring timeouts are pushed to the session that originated the
	// call; a session that has since disconnected just drops the message.
	engine.SetPushFunc(func(sessionID string, result *routing.Result) {
		if sessionID == "" || result.Empty() {
			return
		}
		session.Push(sessionID, result.Lines)
	})

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go handleSession(conn, engine, logger)
	}
}

// client is one connected command session. Replies and unsolicited pushes
// share the connection, so writes are serialized.
type client struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// Push implements session.Pusher for out-of-band delivery.
func (c *client) Push(lines []string) error {
	return c.send(lines)
}

func (c *client) send(lines []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var body any = lines
	if len(lines) == 1 {
		body = lines[0]
	}
	return c.enc.Encode(envelope{Response: body})
}

func handleSession(conn net.Conn, engine *routing.Engine, logger *slog.Logger) {
	sessionID := uuid.New().String()
	c := &client{enc: json.NewEncoder(conn)}
	session.Register(sessionID, c)
	logger.Info("session connected", "session", sessionID, "remote", conn.RemoteAddr().String())

	defer func() {
		session.Unregister(sessionID)
		conn.Close()
		logger.Info("session disconnected", "session", sessionID)
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var cmd types.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			c.send([]string{"Error processing command"})
			continue
		}

		result, err := engine.HandleCommand(sessionID, cmd)
		if err != nil {
			var re *routing.RoutingError
			if errors.As(err, &re) {
				c.send([]string{re.Message()})
			} else {
				c.send([]string{"Error processing command"})
			}
			continue
		}
		// No result means the event was silently absorbed.
		if !result.Empty() {
			c.send(result.Lines)
		}
	}
}
