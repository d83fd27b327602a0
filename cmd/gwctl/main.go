// gwctl controls gwactor servers running on this machine: status, stop, kill and the admin commands.
package main

import (
	"flag"
	"os"
	"strings"
)

var args struct {
	configFile string
	adminAddr  string
}

func parseArgs() {
	flag.StringVar(&args.configFile, "configfile", "", "set config file path")
	flag.StringVar(&args.adminAddr, "admin", "", "admin http address, http_addr of the config by default")
	flag.Usage = func() {
		showMsg("usage: gwctl [-configfile gwactor.ini] [-admin host:port] status|stop|kill|reload|online|kick <actor_id>|save")
		flag.PrintDefaults()
	}
	flag.Parse()
}

func main() {
	parseArgs()
	args := flag.Args()
	showMsg("arguments: %s", strings.Join(args, " "))

	if len(args) == 0 {
		showMsg("no command to execute")
		flag.Usage()
		os.Exit(1)
	}

	cmd := args[0]
	switch cmd {
	case "status":
		status()
	case "stop":
		stop(StopSignal)
	case "kill":
		stop(KillSignal)
	case "reload":
		adminCommand("reload", nil)
	case "online":
		adminCommand("online_count", nil)
	case "kick":
		if len(args) != 2 {
			showMsgAndQuit("should specify one actor id")
		}
		adminCommand("kick", map[string]string{"actor_id": args[1]})
	case "save":
		adminCommand("save_all", nil)
	default:
		showMsgAndQuit("unknown command: %s", cmd)
	}
}
