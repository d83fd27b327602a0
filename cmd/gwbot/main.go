// gwbot runs a number of client bots against a gwactor server and prints request latencies.
package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/xiaonanln/gwactor/engine/binutil"
)

var (
	args struct {
		addr     string
		network  string
		count    int
		rounds   int
		logLevel string
	}
	quiet bool
)

func parseArgs() {
	flag.StringVar(&args.addr, "addr", "127.0.0.1:8899", "server address")
	flag.StringVar(&args.network, "network", "tcp", "tcp or kcp")
	flag.IntVar(&args.count, "N", 10, "number of bots")
	flag.IntVar(&args.rounds, "rounds", 100, "number of request rounds of each bot, 0 runs until interrupted")
	flag.StringVar(&args.logLevel, "log", "info", "log level")
	flag.BoolVar(&quiet, "quiet", false, "do not log responses")
	flag.Parse()
}

func main() {
	rand.Seed(time.Now().UnixNano())
	parseArgs()
	binutil.SetupGWLog("gwbot", args.logLevel, "", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	var wait sync.WaitGroup
	wait.Add(args.count)
	for i := 0; i < args.count; i++ {
		bot := newClientBot(i+1, &wait)
		go bot.run(ctx)
	}
	wait.Wait()
	profLock.Lock()
	dumpThingProfile()
	profLock.Unlock()
}
