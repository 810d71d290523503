package telescope

import (
	"errors"
	"testing"
)

func TestParseDescriptor(t *testing.T) {
	cases := []struct {
		in   string
		want Descriptor
	}{
		{"Scope1:Stream:127.0.0.1:10001:500000", Descriptor{"Scope1", "Stream", "127.0.0.1:10001:500000"}},
		{"Sim:Simulator", Descriptor{"Sim", "Simulator", ""}},
		{" My scope : TCP : localhost:1:2 ", Descriptor{"My scope", "TCP", "localhost:1:2"}},
		{"::", Descriptor{"", "", ""}},
	}
	for _, c := range cases {
		got, err := ParseDescriptor(c.in)
		if err != nil {
			t.Errorf("ParseDescriptor(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseDescriptor(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}

	if _, err := ParseDescriptor("no-colon"); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("err = %v, want ErrInvalidDescriptor", err)
	}
}

func TestCreateStreamScenario(t *testing.T) {
	tel, err := Create("Scope1:Stream:127.0.0.1:10001:500000", Options{Opener: &fakeOpener{}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s, ok := tel.(*Stream)
	if !ok {
		t.Fatalf("Create returned %T", tel)
	}
	if s.ID() != "Scope1" {
		t.Errorf("ID = %q", s.ID())
	}
	if got := s.Addr().String(); got != "127.0.0.1:10001" {
		t.Errorf("Addr = %s", got)
	}
	if s.DelayMicros() != 500000 {
		t.Errorf("DelayMicros = %d", s.DelayMicros())
	}
	if s.Connected() || s.PositionKnown() {
		t.Error("new stream should be disconnected with unknown position")
	}
}

func TestCreateVariants(t *testing.T) {
	cases := []struct {
		in      string
		wantErr error
		want    string
	}{
		{"S:Simulator", nil, TypeSimulator},
		{"S:Dummy", nil, TypeSimulator},
		{"S:Simulator:ignored", nil, TypeSimulator},
		{"T:TCP:127.0.0.1:1:1", nil, TypeStream},
		{"T:Stream:127.0.0.1:65535:10000000", nil, TypeStream},
		{"nothing here", ErrInvalidDescriptor, ""},
		{"X:Telnet:127.0.0.1:1:1", ErrUnknownType, ""},
		{"T:Stream:127.0.0.1:0:500", ErrInvalidParams, ""},
		{"T:Stream:127.0.0.1:65536:500", ErrInvalidParams, ""},
		{"T:Stream:127.0.0.1:99999999999999999999:500", ErrInvalidParams, ""},
		{"T:Stream:127.0.0.1:10001:0", ErrInvalidParams, ""},
		{"T:Stream:127.0.0.1:10001:10000001", ErrInvalidParams, ""},
		{"T:Stream:127.0.0.1:10001", ErrInvalidParams, ""},
		{"T:Stream:127.0.0.1:port:5", ErrInvalidParams, ""},
		{"T:Stream", ErrInvalidParams, ""},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			tel, err := Create(c.in, Options{Opener: &fakeOpener{}})
			if c.wantErr != nil {
				if !errors.Is(err, c.wantErr) {
					t.Fatalf("err = %v, want %v", err, c.wantErr)
				}
				if tel != nil {
					t.Fatalf("got telescope %T alongside error", tel)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if tel.Info().Type != c.want {
				t.Errorf("type = %s, want %s", tel.Info().Type, c.want)
			}
			_ = tel.Close()
		})
	}
}
