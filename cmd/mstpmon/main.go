// mstpmon is a diagnostic bridge monitor: it opens the same RTNETLINK
// subscription the daemon uses and prints every classified bridge/port/link
// event as it arrives, without running any protocol machinery. Useful for
// verifying the adaptation layer in isolation.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mstpgo/mstpd/pkg/netif/bridge"
)

func main() {
	timestamps := flag.Bool("t", false, "prefix each event with a timestamp")
	flag.Parse()

	mgr, err := bridge.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mstpmon: %v\n", err)
		os.Exit(1)
	}

	events := make(chan bridge.Event, 64)
	done := make(chan struct{})
	if err := mgr.Watch(events, done); err != nil {
		fmt.Fprintf(os.Stderr, "mstpmon: %v\n", err)
		os.Exit(1)
	}

	// Print the current topology first, so events read as diffs against it.
	if bridges, err := mgr.Bridges(); err == nil {
		for _, b := range bridges {
			fmt.Printf("bridge %s (ifindex %d) up=%v\n", b.Name, b.Ifindex, b.Up)
			ports, _ := mgr.Ports(b.Ifindex)
			for _, p := range ports {
				speed, duplex, _ := mgr.SpeedDuplex(p.Name)
				fmt.Printf("  port %s (ifindex %d) up=%v speed=%d duplex=%v\n",
					p.Name, p.Ifindex, p.Up, speed, duplex)
			}
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sig:
			close(done)
			return
		case ev := <-events:
			if *timestamps {
				fmt.Printf("%s ", time.Now().Format("15:04:05.000"))
			}
			fmt.Printf("%s: %s (ifindex %d, bridge %d) up=%v\n",
				ev.Kind, ev.IfName, ev.Ifindex, ev.BridgeIfindex, ev.Up)
		}
	}
}
