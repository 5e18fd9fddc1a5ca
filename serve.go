package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/Jon-Bright/sunxiccu/ccu"
	"github.com/Jon-Bright/sunxiccu/mmio"
	"github.com/Jon-Bright/sunxiccu/soc"
	"periph.io/x/conn/v3/physic"
)

var port = flag.Int("port", 24602, "The port that the server should listen to")
var memFile = flag.String("mem", mmio.MEM_FILE, "The physical memory device to map the clock controller from. Empty simulates the registers in memory.")
var dtbFile = flag.String("dtb", soc.FDT_FILE, "The flattened device tree used to identify the SoC")
var socName = flag.String("soc", "", "The SoC to drive, one of h3, h6, a523. Empty detects it from -dtb.")
var redisAddr = flag.String("redis", "", "host:port of a redis server to publish clock changes to. Empty disables publishing.")
var disableUnused = flag.Bool("disableunused", false, "Switch off unused peripheral clocks at startup")
var cacheRates = flag.Bool("cache", true, "Remember the factors found for recently requested rates")

type Server struct {
	t *ccu.Tree
	l net.Listener
}

func NewServer(port int, t *ccu.Tree) (*Server, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	log.Printf("Listening on port %d", port)
	return &Server{t, l}, nil
}

// parseRate accepts plain Hz ("1200000000") or an SI frequency ("1.2GHz").
func parseRate(s string) (uint64, error) {
	var f physic.Frequency
	if err := f.Set(s); err != nil {
		return 0, fmt.Errorf("couldn't parse rate '%s': %v", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative rate '%s'", s)
	}
	return uint64(f / physic.Hertz), nil
}

func formatRate(hz uint64) string {
	return fmt.Sprintf("%d (%s)", hz, physic.Frequency(hz)*physic.Hertz)
}

func splitClock(parms string) (string, string, error) {
	t := strings.SplitN(parms, " ", 2)
	if t[0] == "" {
		return "", "", fmt.Errorf("missing clock name")
	}
	if len(t) == 1 {
		return t[0], "", nil
	}
	return t[0], strings.TrimSpace(t[1]), nil
}

// command runs one protocol command and returns its reply line.
func (s *Server) command(cmd, parms string) (string, error) {
	if cmd == "LIST" {
		return strings.Join(s.t.Names(), " "), nil
	}
	name, rest, err := splitClock(parms)
	if err != nil {
		return "", err
	}
	switch cmd {
	case "RATE":
		r, err := s.t.Rate(name)
		if err != nil {
			return "", err
		}
		return formatRate(r), nil
	case "ROUND", "SET":
		if rest == "" {
			return "", fmt.Errorf("missing rate")
		}
		want, err := parseRate(rest)
		if err != nil {
			return "", err
		}
		var r uint64
		if cmd == "ROUND" {
			r, err = s.t.RoundRate(name, want)
		} else {
			r, err = s.t.SetRate(name, want)
		}
		if err != nil {
			return "", err
		}
		return formatRate(r), nil
	case "ON":
		if err := s.t.Enable(name); err != nil {
			return "", err
		}
		return "OK", nil
	case "OFF":
		if err := s.t.Disable(name); err != nil {
			return "", err
		}
		return "OK", nil
	case "ENABLED":
		on, err := s.t.IsEnabled(name)
		if err != nil {
			return "", err
		}
		if on {
			return "1", nil
		}
		return "0", nil
	case "DUMP":
		v, err := s.t.Dump(name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%08X", v), nil
	}
	return "", fmt.Errorf("unknown command: %s", cmd)
}

func (s *Server) handleConnection(c net.Conn) {
	log.Printf("Handling connection from %v", c.RemoteAddr())
	defer c.Close()
	r := bufio.NewReader(c)
	w := bufio.NewWriter(c)
	for {
		l, err := r.ReadString('\n')
		if err == io.EOF {
			log.Printf("EOF for connection %v", c.RemoteAddr())
			return
		}
		if err != nil {
			log.Printf("Error reading string for connection %v: %v", c.RemoteAddr(), err)
			return
		}
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		log.Printf("Got line '%s'", l)
		t := strings.SplitN(l, " ", 2)
		cmd := strings.ToUpper(t[0])
		parms := ""
		if len(t) > 1 {
			parms = strings.TrimSpace(t[1])
		}
		if cmd == "QUIT" {
			return
		}
		reply, err := s.command(cmd, parms)
		if err != nil {
			log.Printf("Error running %s: %v", cmd, err)
			reply = "ERR " + err.Error()
		}
		w.WriteString(reply + "\n")
		if err := w.Flush(); err != nil {
			log.Printf("error writing reply: %v", err)
			return
		}
	}
}

func (s *Server) handleConnections() {
	for {
		conn, err := s.l.Accept()
		if err != nil {
			log.Printf("Error accepting connection: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func main() {
	flag.Parse()
	t, done, err := initClocks()
	if err != nil {
		log.Fatalf("Failed setting up clocks: %v", err)
	}
	defer done()

	if flag.NArg() > 0 {
		if err := runCLI(t, flag.Args(), os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			done()
			os.Exit(1)
		}
		return
	}

	s, err := NewServer(*port, t)
	if err != nil {
		log.Fatalf("Failed creating server: %v", err)
	}
	s.handleConnections()
}
