package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/log"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/cli"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/vehicle"
)

var version = "undefined"

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	status := 1
	defer func() { os.Exit(status) }()

	config := cli.NewConfig()
	var debug, interactive bool
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.BoolVar(&interactive, "i", false, "After connecting to the first vehicle found, read commands from stdin until EOF or \"exit\"")
	config.RegisterFlags(flag.CommandLine)
	flag.Usage = func() { printUsage(os.Args[0]) }
	flag.Parse()

	if !debug {
		if debugEnv, ok := os.LookupEnv("TESLA_VERBOSE"); ok {
			debug = debugEnv != "false" && debugEnv != "0"
		}
	}
	if debug {
		log.SetLevel(log.LevelDebug)
		log.Debug("tesla-ble-scan %s starting", version)
	}

	config.ReadFromEnvironment()

	args := flag.Args()
	if len(args) > 0 && (args[0] == "help" || args[0] == "h") {
		handleHelp(os.Args[0], args[1:])
		status = 0
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ScanTimeout)
	defer cancel()

	ads, err := config.Scan(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			writeErr("\nTry again after granting this application CAP_NET_ADMIN:\n\n\tsudo setcap 'cap_net_admin=eip' \"$(which %s)\"\n", os.Args[0])
			return
		}
		writeErr("scan failed: %s", err)
		return
	}

	if interactive {
		if len(ads) == 0 {
			writeErr("no vehicle found")
			return
		}
		connCtx, connCancel := context.WithTimeout(context.Background(), config.ConnTimeout)
		car, err := config.ConnectAddr(connCtx, ads[0].Addr)
		connCancel()
		if err != nil {
			writeErr("connect failed: %s", err)
			return
		}
		status = runInteractiveShell(config, car)
		car.Disconnect()
		return
	}

	fmt.Printf("{\"scanResults\":[")
	for i, ad := range ads {
		if i > 0 {
			fmt.Printf(",")
		}
		fmt.Printf("{\"localName\":\"%s\",\"rssi\":%d", ad.LocalName, ad.RSSI)

		connCtx, connCancel := context.WithTimeout(context.Background(), config.ConnTimeout)
		car, err := config.ConnectAddr(connCtx, ad.Addr)
		connCancel()
		if err != nil {
			fmt.Printf(",\"error\":%q}", err.Error())
			continue
		}

		cmdCtx, cmdCancel := context.WithTimeout(context.Background(), config.ConnTimeout)
		if len(args) > 0 {
			if err := execute(cmdCtx, car, args); err != nil {
				fmt.Printf(",\"error\":%q", err.Error())
			}
		} else {
			printVehicleInfo(cmdCtx, config, car)
		}
		cmdCancel()

		car.Disconnect()
		fmt.Printf("}")
	}
	fmt.Printf("]}\n")
	status = 0
}

// runInteractiveShell reads whitespace/quote-aware command lines from stdin
// and runs each against car until EOF or an "exit" line.
func runInteractiveShell(config *cli.Config, car *vehicle.Vehicle) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			writeErr("invalid command: %s", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if args[0] == "help" || args[0] == "h" {
			handleHelp(os.Args[0], args[1:])
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.ConnTimeout)
		fmt.Printf("{\"command\":%q", args[0])
		if err := execute(ctx, car, args); err != nil {
			fmt.Printf(",\"error\":%q", err.Error())
		}
		fmt.Printf("}\n")
		cancel()
	}
	if err := scanner.Err(); err != nil {
		writeErr("error reading command: %s", err)
		return 1
	}
	return 0
}

// printVehicleInfo runs the default report (body-controller-state, plus
// list-keys when a private key is configured) through the same command
// table "help"/explicit-command dispatch uses.
func printVehicleInfo(ctx context.Context, config *cli.Config, car *vehicle.Vehicle) {
	if err := commands["body-controller-state"].handler(ctx, car); err != nil {
		fmt.Printf(",\"bodyControllerStateError\":%q", err.Error())
	}

	if config.KeyFilename == "" {
		return
	}
	if err := commands["list-keys"].handler(ctx, car); err != nil {
		fmt.Printf(",\"keylistError\":%q", err.Error())
	}
}
