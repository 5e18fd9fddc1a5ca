package main

import (
	"fmt"
	"io"

	"github.com/Jon-Bright/sunxiccu/ccu"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
)

const cliUsage = `usage: sunxiccu [OPTION]... COMMAND
commands:
	list
	rate CLOCK
	set CLOCK -rate RATE [-n] [-q]
	on CLOCK
	off CLOCK
	dump CLOCK`

// runCLI runs one subcommand against t and writes its result to w.
//
// set takes -rate as plain Hz or with an SI unit. -n only reports the rate
// the clock would get, -q suppresses the report.
func runCLI(t *ccu.Tree, args []string, w io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", cliUsage)
	}
	cmd, args := args[0], args[1:]
	flag, args := flags.New(args, "-n", "-q")
	parm, args := parms.New(args, "-rate")

	if cmd == "list" {
		if len(args) > 0 {
			return fmt.Errorf("%v: unexpected", args)
		}
		for _, n := range t.Names() {
			r, err := t.Rate(n)
			if err != nil {
				return err
			}
			on, err := t.IsEnabled(n)
			if err != nil {
				return err
			}
			state := "off"
			if on {
				state = "on"
			}
			fmt.Fprintf(w, "%-12s %s %s\n", n, formatRate(r), state)
		}
		return nil
	}

	switch len(args) {
	case 0:
		return fmt.Errorf("CLOCK: missing")
	case 1:
	default:
		return fmt.Errorf("%v: unexpected", args[1:])
	}
	name := args[0]

	switch cmd {
	case "rate":
		r, err := t.Rate(name)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, formatRate(r))
	case "set":
		s := parm.ByName["-rate"]
		if len(s) == 0 {
			return fmt.Errorf("-rate: missing")
		}
		want, err := parseRate(s)
		if err != nil {
			return err
		}
		var r uint64
		if flag.ByName["-n"] {
			r, err = t.RoundRate(name, want)
		} else {
			r, err = t.SetRate(name, want)
		}
		if err != nil {
			return err
		}
		if !flag.ByName["-q"] {
			fmt.Fprintln(w, formatRate(r))
		}
	case "on":
		return t.Enable(name)
	case "off":
		return t.Disable(name)
	case "dump":
		v, err := t.Dump(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%08X\n", v)
	default:
		return fmt.Errorf("%s: unknown command\n%s", cmd, cliUsage)
	}
	return nil
}
