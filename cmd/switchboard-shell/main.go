// Command switchboard-shell is an interactive client for the switchboard
// daemon. It turns "call 1", "answer A" and friends into JSON commands and
// prints every response from the server, including unsolicited pushes for
// fired ring timeouts.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/open-switchboard/switchboard/types"
	"github.com/spf13/pflag"
)

type envelope struct {
	Response json.RawMessage `json:"response"`
}

func main() {
	addr := pflag.String("addr", "localhost:5678", "switchboard server address")
	pflag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	go printResponses(conn)

	enc := json.NewEncoder(conn)
	stdin := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return
		}
		fields := strings.Fields(stdin.Text())
		if len(fields) == 0 {
			continue
		}

		switch verb := fields[0]; verb {
		case "exit":
			fmt.Println("Exiting...")
			return
		case types.CmdCall, types.CmdAnswer, types.CmdReject, types.CmdHangup:
			if len(fields) < 2 {
				fmt.Printf("Usage: %s <id>\n", verb)
				continue
			}
			if err := enc.Encode(types.Command{Command: verb, ID: fields[1]}); err != nil {
				fmt.Fprintf(os.Stderr, "Error sending command: %v\n", err)
				return
			}
		default:
			fmt.Printf("Unknown command %q (call, answer, reject, hangup, exit)\n", verb)
		}
	}
}

// printResponses reads server messages until the connection closes. The
// response value is either a single string or a list of status lines.
func printResponses(conn net.Conn) {
	dec := json.NewDecoder(conn)
	for {
		var msg envelope
		if err := dec.Decode(&msg); err != nil {
			fmt.Println("\nConnection closed.")
			os.Exit(0)
		}

		fmt.Println()
		var lines []string
		if err := json.Unmarshal(msg.Response, &lines); err != nil {
			var single string
			if err := json.Unmarshal(msg.Response, &single); err == nil {
				lines = []string{single}
			}
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		fmt.Print("> ")
	}
}
