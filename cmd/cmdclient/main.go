// Command cmdclient sends a single command to a running gateway's
// control socket and prints the response, grounded on the original
// project's test/cmd_client.c harness.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
)

func main() {
	socketPath := flag.String("socket", "/tmp/sensor_gateway_cmd.sock", "path to the gateway control socket")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 || (args[0] != "status" && args[0] != "stats") {
		fmt.Fprintf(os.Stderr, "usage: %s [-socket path] <status|stats>\n", os.Args[0])
		os.Exit(1)
	}
	command := args[0]

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		log.Fatalf("connect to %s failed: %v (is the gateway running?)", *socketPath, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		log.Fatalf("send command failed: %v", err)
	}
	if cw, ok := conn.(*net.UnixConn); ok {
		cw.CloseWrite()
	}
	fmt.Printf("--- sent command: %s ---\n", command)

	fmt.Println("--- gateway response ---")
	if _, err := io.Copy(os.Stdout, bufio.NewReader(conn)); err != nil {
		log.Fatalf("read response failed: %v", err)
	}
	fmt.Println("--- end of response ---")
}
