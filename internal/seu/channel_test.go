package seu

import (
	"errors"
	"testing"
)

func TestParseChannel(t *testing.T) {
	for _, ch := range Channels {
		got, err := ParseChannel(string(ch))
		if err != nil {
			t.Errorf("ParseChannel(%s): %v", ch, err)
		}
		if got != ch {
			t.Errorf("ParseChannel(%s) = %s", ch, got)
		}
	}

	for _, bad := range []string{"", "CH0", "CH9", "ch1", "CH 1"} {
		_, err := ParseChannel(bad)
		if !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("ParseChannel(%q): expected ErrInvalidChannel, got %v", bad, err)
		}
	}
}

func TestChannels_FixedOrder(t *testing.T) {
	want := []string{"CH1", "CH2", "CH3", "CH4", "CH5", "CH6", "CH7", "CH8"}
	if len(Channels) != len(want) {
		t.Fatalf("expected %d channels, got %d", len(want), len(Channels))
	}
	for i, w := range want {
		if string(Channels[i]) != w {
			t.Errorf("Channels[%d] = %s, want %s", i, Channels[i], w)
		}
	}
}

func TestMissingErrors(t *testing.T) {
	if err := MissingRaw("s1", ChannelText); !errors.Is(err, ErrNotFound) {
		t.Errorf("MissingRaw should wrap ErrNotFound: %v", err)
	}
	err := MissingMeta("s1", ChannelDevice)
	if !errors.Is(err, ErrMissingMeta) {
		t.Errorf("MissingMeta should wrap ErrMissingMeta: %v", err)
	}
	if got := err.Error(); got != "missing channel meta for CH6 (seu s1)" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestRawRecord_DurationMs(t *testing.T) {
	tests := []struct {
		name  string
		extra map[string]any
		want  int64
		ok    bool
	}{
		{"absent", nil, 0, false},
		{"nil-value", map[string]any{"duration_ms": nil}, 0, false},
		{"json-number", map[string]any{"duration_ms": float64(5000)}, 5000, true},
		{"int", map[string]any{"duration_ms": 300}, 300, true},
		{"int64", map[string]any{"duration_ms": int64(7)}, 7, true},
		{"string", map[string]any{"duration_ms": "5000"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RawRecord{Extra: tt.extra}.DurationMs()
			if got != tt.want || ok != tt.ok {
				t.Errorf("DurationMs() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}
