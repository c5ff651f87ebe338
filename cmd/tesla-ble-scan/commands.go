package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/log"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/vehicle"
)

// Handler runs a named command against an already-connected vehicle,
// printing its result as one or more JSON object fields (no wrapping
// braces — the caller owns the enclosing object).
type Handler func(ctx context.Context, car *vehicle.Vehicle) error

type Command struct {
	help    string
	handler Handler
}

// Usage prints the one-line help text for a single command, as shown by
// "help COMMAND".
func (c *Command) Usage(name string) {
	fmt.Printf("Usage: %s\n%s\n", name, c.help)
}

var commands = map[string]*Command{
	"body-controller-state": {
		help: "Fetch limited vehicle state information. Works without a private key.",
		handler: func(ctx context.Context, car *vehicle.Vehicle) error {
			state, err := car.BodyControllerState(ctx)
			if err != nil {
				return err
			}
			fmt.Printf(",\"bodyControllerState\":{\"vehicleLockState\":%d,\"vehicleSleepStatus\":%d}",
				state.VehicleLockState, state.VehicleSleepStatus)
			return nil
		},
	},
	"list-keys": {
		help: "List public keys enrolled on the vehicle. Works without a private key.",
		handler: func(ctx context.Context, car *vehicle.Vehicle) error {
			summary, err := car.KeySummary(ctx)
			if err != nil {
				return err
			}
			fmt.Printf(",\"keylist\":[")
			first := true
			for slot, mask := uint32(0), summary.SlotMask; mask > 0; mask, slot = mask>>1, slot+1 {
				if mask&1 == 0 {
					continue
				}
				entry, err := car.KeyInfoBySlot(ctx, slot)
				if err != nil {
					log.Debug("list-keys: error fetching slot %d: %s", slot, err)
					continue
				}
				if !first {
					fmt.Printf(",")
				}
				first = false
				fmt.Printf("{\"publicKey\":\"%02x\",\"role\":\"%s\",\"formFactor\":\"%s\"}",
					entry.GetPublicKey().GetPublicKeyRaw(), entry.GetKeyRole(), entry.GetMetadataForKey().GetKeyFormFactor())
			}
			fmt.Printf("]")
			return nil
		},
	},
}

// execute looks up args[0] in the command table and runs it against car.
func execute(ctx context.Context, car *vehicle.Vehicle, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing COMMAND")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unrecognized command: %s", args[0])
	}
	return cmd.handler(ctx, car)
}

func printUsage(programName string) {
	fmt.Printf("Usage: %s [OPTION...] [COMMAND]\n", programName)
	fmt.Printf("With no COMMAND, scans for nearby vehicles and reports state for each.\n")
	fmt.Printf("Run '%s help COMMAND' for details on a single command.\n\n", programName)

	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	maxLength := 0
	for _, name := range names {
		if len(name) > maxLength {
			maxLength = len(name)
		}
	}
	fmt.Printf("Available COMMANDs:\n")
	for _, name := range names {
		fmt.Printf("  %s%s %s\n", name, strings.Repeat(" ", maxLength-len(name)), commands[name].help)
	}
}

// handleHelp implements "help" and "help COMMAND".
func handleHelp(programName string, args []string) {
	if len(args) == 0 {
		printUsage(programName)
		return
	}
	cmd, ok := commands[args[0]]
	if !ok {
		writeErr("Unrecognized command: %s", args[0])
		return
	}
	cmd.Usage(args[0])
}
