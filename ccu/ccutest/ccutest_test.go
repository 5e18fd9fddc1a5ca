package ccutest

import (
	"testing"
)

func TestWriteString(t *testing.T) {
	tests := []struct {
		w    Write
		want string
	}{
		{Write{0, 0}, "[0x0]=0x00000000"},
		{Write{0x84c, 1 << 8}, "[0x84c]=0x00000100"},
		{Write{0x10, 0x80001810}, "[0x10]=0x80001810"},
	}
	for _, test := range tests {
		if got := test.w.String(); got != test.want {
			t.Errorf("got: %s, want: %s", got, test.want)
		}
	}
}

func TestOnWriteBits(t *testing.T) {
	r := New()
	r.SetOnWrite[0x10] = 1 << 28
	r.ClearOnWrite[0x10] = 1 << 27
	r.Write32(0x10, 1<<31|1<<27)
	if got, want := r.Peek(0x10), uint32(1<<31|1<<28); got != want {
		t.Errorf("register, got: %#x, want: %#x", got, want)
	}
	if w := r.WritesTo(0x10); len(w) != 1 || w[0].Val != 1<<31|1<<27 {
		t.Errorf("writes, got: %v, want the value as written", w)
	}
}

func TestNoRecord(t *testing.T) {
	r := New()
	r.NoRecord = true
	for i := uint32(0); i < 1000; i++ {
		r.Write32(0x20, i)
	}
	if len(r.Writes) != 0 {
		t.Errorf("recorded %d writes, want none", len(r.Writes))
	}
	if got := r.Peek(0x20); got != 999 {
		t.Errorf("register, got: %d, want: 999", got)
	}
}
