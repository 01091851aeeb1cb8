// Command echo is the I/O acceptance target of scenario 6 (§8): a listener
// coroutine accepts connections; each spawns a handler looping read→write
// until EOF, exercising the non-blocking Listener/Conn wrappers and the
// event-loop poller under concurrent load.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kobi2187/arsenal"
)

func main() {
	addr := flag.String("addr", "127.0.0.1", "listen address")
	port := flag.Int("port", 9000, "listen port")
	flag.Parse()

	var ip [4]byte
	fmt.Sscanf(*addr, "%d.%d.%d.%d", &ip[0], &ip[1], &ip[2], &ip[3])

	cfg := arsenal.ConfigFromEnv()
	sched, err := arsenal.NewScheduler(cfg)
	if err != nil {
		log.Fatalf("echo: %v", err)
	}

	sched.Spawn(func(co *arsenal.Coroutine) {
		ln, err := arsenal.Listen(ip, *port)
		if err != nil {
			fmt.Println("echo: listen failed:", err)
			return
		}
		defer ln.Close()
		fmt.Printf("echo: listening on %s:%d\n", *addr, *port)

		for {
			conn, err := ln.Accept()
			if err != nil {
				fmt.Println("echo: accept failed:", err)
				return
			}
			sched.Spawn(func(*arsenal.Coroutine) {
				handle(conn)
			})
		}
	})

	sched.Run()
}

func handle(conn *arsenal.Conn) {
	defer conn.Close()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !arsenal.IsIOErrorKind(err, arsenal.IOEof) {
				fmt.Println("echo: read failed:", err)
			}
			return
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			fmt.Println("echo: write failed:", err)
			return
		}
	}
}
