package telescope

import (
	"fmt"
	"regexp"
	"strings"
)

// Type names accepted in descriptors. The short aliases match the names
// older configurations used.
const (
	TypeSimulator = "Simulator"
	TypeStream    = "Stream"
	aliasDummy    = "Dummy"
	aliasTCP      = "TCP"
)

// NAME and TYPE exclude ':'; PARAMS is the rest and may contain ':'.
var descriptorRx = regexp.MustCompile(`^([^:]*):([^:]*)(:(.*))?$`)

// Descriptor is a parsed NAME:TYPE[:PARAMS] string.
type Descriptor struct {
	Name   string
	Type   string
	Params string
}

func (d Descriptor) String() string {
	if d.Params == "" {
		return d.Name + ":" + d.Type
	}
	return d.Name + ":" + d.Type + ":" + d.Params
}

// ParseDescriptor splits s into its parts, trimming surrounding whitespace
// from each.
func ParseDescriptor(s string) (Descriptor, error) {
	m := descriptorRx.FindStringSubmatch(s)
	if m == nil {
		return Descriptor{}, fmt.Errorf("%q: %w", s, ErrInvalidDescriptor)
	}
	return Descriptor{
		Name:   strings.TrimSpace(m[1]),
		Type:   strings.TrimSpace(m[2]),
		Params: strings.TrimSpace(m[4]),
	}, nil
}

// Create builds the telescope described by s. It fails when s is malformed,
// names an unknown type, or carries parameters the type rejects.
func Create(s string, opts Options) (Telescope, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	d, err := ParseDescriptor(s)
	if err != nil {
		log.Warn().Str("descriptor", s).Msg("telescope definition not recognised")
		return nil, err
	}
	log.Debug().Str("name", d.Name).Str("type", d.Type).Str("params", d.Params).Msg("creating telescope")

	var t Telescope
	switch d.Type {
	case TypeSimulator, aliasDummy:
		t = NewSimulator(d.Name, opts)
	case TypeStream, aliasTCP:
		t, err = NewStream(d.Name, d.Params, opts)
	default:
		err = fmt.Errorf("%q: %w", d.Type, ErrUnknownType)
	}
	if err != nil {
		log.Warn().Err(err).Str("descriptor", s).Msg("not creating telescope")
		return nil, err
	}
	return t, nil
}
