package volink

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlCommand is the on-disk shape of one command table entry.
type yamlCommand struct {
	Name    string `yaml:"name"`
	Address uint16 `yaml:"address"`
	Length  int    `yaml:"length"`
	Access  string `yaml:"access"`
	Type    struct {
		Kind   string            `yaml:"kind"`
		Scale  int               `yaml:"scale"`
		Signed bool              `yaml:"signed"`
		Bits   map[uint]string   `yaml:"bits"`
		Values map[uint32]string `yaml:"values"`
	} `yaml:"type"`
}

type yamlCommandFile struct {
	Commands []yamlCommand `yaml:"commands"`
}

// LoadCommands parses a YAML command table. The result still has to pass
// NewRegistry validation, use LoadRegistry for the combined step.
//
// Example document:
//
//	commands:
//	  - name: RoomSetpointParty
//	    address: 0x6304
//	    length: 2
//	    access: rw
//	    type: {kind: fixedpoint, scale: 10, signed: true}
func LoadCommands(r io.Reader) ([]Command, error) {
	var f yamlCommandFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing command table: %w", err)
	}

	cmds := make([]Command, 0, len(f.Commands))
	for _, yc := range f.Commands {
		c := Command{Name: yc.Name, Addr: yc.Address, Length: yc.Length}

		switch yc.Access {
		case "ro", "":
			c.Access = ReadOnly
		case "wo":
			c.Access = WriteOnly
		case "rw":
			c.Access = ReadWrite
		default:
			return nil, fmt.Errorf("command %q: unknown access mode %q", yc.Name, yc.Access)
		}

		switch yc.Type.Kind {
		case "unsigned":
			c.Type = Unsigned{W: yc.Length}
		case "signed":
			c.Type = Signed{W: yc.Length}
		case "fixedpoint":
			scale := yc.Type.Scale
			if scale == 0 {
				scale = 1
			}
			c.Type = FixedPoint{W: yc.Length, Scale: scale, Signed: yc.Type.Signed}
		case "bitfield":
			c.Type = BitField{W: yc.Length, Labels: yc.Type.Bits}
		case "enum":
			c.Type = Enum{W: yc.Length, Values: yc.Type.Values}
		case "raw":
			c.Type = Raw{W: yc.Length}
		default:
			return nil, fmt.Errorf("command %q: unknown value type kind %q", yc.Name, yc.Type.Kind)
		}

		cmds = append(cmds, c)
	}
	return cmds, nil
}

// LoadRegistry reads a YAML command table and builds a validated registry.
func LoadRegistry(r io.Reader) (*Registry, error) {
	cmds, err := LoadCommands(r)
	if err != nil {
		return nil, err
	}
	return NewRegistry(cmds)
}
