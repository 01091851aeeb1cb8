// Command pingpong demonstrates scenario 2 of §8: two coroutines exchange a
// single token over a pair of unbuffered channels for N iterations —
// send-ping parks, recv-ping wakes it, recv-pong parks, send-pong wakes it,
// one context switch per rendezvous.
package main

import (
	"fmt"
	"log"

	"github.com/kobi2187/arsenal"
)

const iterations = 10

func main() {
	cfg := arsenal.ConfigFromEnv()
	sched, err := arsenal.NewScheduler(cfg)
	if err != nil {
		log.Fatalf("pingpong: %v", err)
	}

	ping := arsenal.NewChannel[string]()
	pong := arsenal.NewChannel[string]()

	sched.Spawn(func(co *arsenal.Coroutine) {
		for i := 0; i < iterations; i++ {
			ping.Send("ping")
			reply, _ := pong.Recv()
			fmt.Printf("producer: sent ping, got %q (%d/%d)\n", reply, i+1, iterations)
		}
	})

	sched.Spawn(func(co *arsenal.Coroutine) {
		for i := 0; i < iterations; i++ {
			msg, _ := ping.Recv()
			_ = msg
			pong.Send("pong")
		}
	})

	sched.Run()
	fmt.Println("pingpong: done")
}
