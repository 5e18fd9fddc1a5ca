// Package redistrace publishes clock changes to redis. Every clock gets a hash
// ccu:<clock> holding its last known state, and each change is also published
// on the ccu channel.
package redistrace

import (
	"fmt"
	"sync"

	"github.com/Jon-Bright/sunxiccu/ccu"
	"github.com/garyburd/redigo/redis"
	"github.com/platinasystems/log"
)

const (
	KeyPrefix = "ccu:"
	Channel   = "ccu"
)

// Tracer implements ccu.Tracer on top of a redis connection.
type Tracer struct {
	mu   sync.Mutex
	conn redis.Conn
}

func New(conn redis.Conn) *Tracer {
	return &Tracer{conn: conn}
}

// Dial connects to the redis server at addr (host:port).
func Dial(addr string) (*Tracer, error) {
	conn, err := redis.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to redis at %s: %w", addr, err)
	}
	return New(conn), nil
}

func fields(ev ccu.Event) []interface{} {
	args := []interface{}{
		KeyPrefix + ev.Clock,
		"op", ev.Op,
		"reg", fmt.Sprintf("%#x", ev.Reg),
		"value", fmt.Sprintf("0x%08x", ev.Value),
	}
	switch ev.Op {
	case "set_rate":
		args = append(args, "rate", ev.Rate)
	case "enable":
		args = append(args, "enabled", 1)
	case "disable":
		args = append(args, "enabled", 0)
	}
	return args
}

// Trace pipelines the hash update and the publication. Redis trouble is
// logged; it never holds up the clock change that caused it.
func (t *Tracer) Trace(ev ccu.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.Send("HSET", fields(ev)...)
	t.conn.Send("PUBLISH", Channel, fmt.Sprintf("%s %s 0x%08x %d", ev.Clock, ev.Op, ev.Value, ev.Rate))
	if _, err := t.conn.Do(""); err != nil {
		log.Print("warn", "redistrace: ", ev.Clock, " ", ev.Op, ": ", err)
	}
}

func (t *Tracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}
