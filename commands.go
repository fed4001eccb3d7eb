package volink

import "fmt"

// Access is a command's allowed access mode.
type Access int

const (
	ReadOnly Access = iota
	WriteOnly
	ReadWrite
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	case ReadWrite:
		return "read-write"
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

// Direction of one transaction.
type Direction int

const (
	Read Direction = iota
	Write
)

func (a Access) allows(d Direction) bool {
	switch d {
	case Read:
		return a == ReadOnly || a == ReadWrite
	case Write:
		return a == WriteOnly || a == ReadWrite
	}
	return false
}

// Command describes one named controller parameter: its memory address,
// payload length, value type and access mode. Commands are static
// configuration data, immutable once the registry is built.
type Command struct {
	Name   string
	Addr   uint16
	Length int
	Type   ValueType
	Access Access
}

// Registry maps symbolic command names to their descriptors. Read-only
// after construction and safe to share across devices.
type Registry struct {
	cmds map[string]Command
}

// NewRegistry builds a registry, rejecting duplicate names and commands
// whose length disagrees with the byte width implied by their value type.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{cmds: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		if c.Name == "" {
			return nil, fmt.Errorf("command at address 0x%04x has no name", c.Addr)
		}
		if _, dup := r.cmds[c.Name]; dup {
			return nil, fmt.Errorf("duplicate command name %q", c.Name)
		}
		if c.Type == nil {
			return nil, fmt.Errorf("command %q has no value type", c.Name)
		}
		if c.Length != c.Type.Width() {
			return nil, fmt.Errorf("command %q: length %d does not match value type width %d",
				c.Name, c.Length, c.Type.Width())
		}
		r.cmds[c.Name] = c
	}
	return r, nil
}

// Resolve looks up a command by name.
func (r *Registry) Resolve(name string) (Command, error) {
	c, ok := r.cmds[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return c, nil
}

// CheckAccess rejects a read against a write-only command and a write
// against a read-only one, before any bytes touch the transport.
func (r *Registry) CheckAccess(c Command, d Direction) error {
	if !c.Access.allows(d) {
		return fmt.Errorf("%w: command %q is %v", ErrAccessDenied, c.Name, c.Access)
	}
	return nil
}

// Names returns all registered command names, unordered.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.cmds) }

// operatingModes are the WO1C heat pump operating modes.
var operatingModes = map[uint32]string{
	0x00: "Off",
	0x01: "DHW",
	0x02: "HeatingAndDHW",
}

// onOff covers one-shot switches like the single DHW charge.
var onOff = map[uint32]string{
	0x00: "Off",
	0x01: "Manual",
	0x02: "On",
}

// DefaultCommands is the built-in command set for the Vitocal 200S WO1C.
// Parameters and addresses follow the vendor coding levels; temperatures
// are signed fixed point with one decimal.
func DefaultCommands() []Command {
	return []Command{
		// Status (read only)
		{Name: "OutsideTemperature", Addr: 0x0101, Length: 2, Type: FixedPoint{W: 2, Scale: 10, Signed: true}, Access: ReadOnly},
		{Name: "HotWaterTemperature", Addr: 0x010d, Length: 2, Type: FixedPoint{W: 2, Scale: 10, Signed: true}, Access: ReadOnly},
		{Name: "FlowTemperatureSecondary", Addr: 0x0105, Length: 2, Type: FixedPoint{W: 2, Scale: 10, Signed: true}, Access: ReadOnly},
		{Name: "ReturnTemperatureSecondary", Addr: 0x0106, Length: 2, Type: FixedPoint{W: 2, Scale: 10, Signed: true}, Access: ReadOnly},
		{Name: "EnergyBalanceFactor", Addr: 0x163f, Length: 1, Type: Unsigned{W: 1}, Access: ReadOnly},
		{Name: "HeatingHeatEnergy", Addr: 0x1640, Length: 4, Type: Unsigned{W: 4}, Access: ReadOnly},
		{Name: "HeatingElectricalEnergy", Addr: 0x1660, Length: 4, Type: Unsigned{W: 4}, Access: ReadOnly},
		{Name: "DHWHeatEnergy", Addr: 0x1650, Length: 4, Type: Unsigned{W: 4}, Access: ReadOnly},
		{Name: "DHWElectricalEnergy", Addr: 0x1670, Length: 4, Type: Unsigned{W: 4}, Access: ReadOnly},
		{Name: "OutputStatus", Addr: 0x0a82, Length: 1, Type: BitField{W: 1, Labels: map[uint]string{
			0: "SecondaryPump",
			1: "Compressor",
			2: "DHWValve",
			3: "AuxHeater",
		}}, Access: ReadOnly},
		{Name: "DeviceIdent", Addr: 0x00f8, Length: 8, Type: Raw{W: 8}, Access: ReadOnly},
		{Name: "SystemTime", Addr: 0x088e, Length: 8, Type: Raw{W: 8}, Access: ReadWrite},

		// Menu level (read/write)
		{Name: "OperatingMode", Addr: 0xb000, Length: 1, Type: Enum{W: 1, Values: operatingModes}, Access: ReadWrite},
		{Name: "OneTimeDHWCharge", Addr: 0xb020, Length: 1, Type: Enum{W: 1, Values: onOff}, Access: ReadWrite},
		{Name: "HotWaterSetpoint", Addr: 0x6000, Length: 2, Type: FixedPoint{W: 2, Scale: 10, Signed: true}, Access: ReadWrite},
		{Name: "RoomSetpointParty", Addr: 0x6304, Length: 2, Type: FixedPoint{W: 2, Scale: 10, Signed: true}, Access: ReadWrite},

		// Coding level 2
		{Name: "FlowHysteresisOn", Addr: 0x7304, Length: 2, Type: FixedPoint{W: 2, Scale: 10}, Access: ReadWrite},
		{Name: "FlowHysteresisOff", Addr: 0x7313, Length: 2, Type: FixedPoint{W: 2, Scale: 10}, Access: ReadWrite},
	}
}

// DefaultRegistry returns the validated built-in WO1C registry.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultCommands())
	if err != nil {
		// The built-in table is static; a violation is a programming error.
		panic(err)
	}
	return r
}
