package socketcan

import (
	"fmt"
	"net"
)

// Interface identifies a CAN network interface by index, with the name
// attached when known. The zero value is the wildcard covering all CAN
// interfaces on the system.
type Interface struct {
	Index int
	Name  string
}

// AllInterfaces is the wildcard address: a socket bound to it receives from
// every CAN interface and must name a concrete interface when sending.
var AllInterfaces = Interface{}

// IsAny reports whether the interface is the wildcard.
func (i Interface) IsAny() bool { return i.Index == 0 }

func (i Interface) String() string {
	if i.IsAny() {
		return "any"
	}
	if i.Name != "" {
		return i.Name
	}
	return fmt.Sprintf("if#%d", i.Index)
}

// InterfaceByName resolves a CAN interface by name, failing if no interface
// with that name exists.
func InterfaceByName(name string) (Interface, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return Interface{}, fmt.Errorf("socketcan: interface %q: %w", name, err)
	}
	return Interface{Index: ifi.Index, Name: ifi.Name}, nil
}

// InterfaceByIndex resolves a CAN interface by index, failing if no interface
// with that index exists. Index 0 returns the wildcard.
func InterfaceByIndex(index int) (Interface, error) {
	if index == 0 {
		return AllInterfaces, nil
	}
	ifi, err := net.InterfaceByIndex(index)
	if err != nil {
		return Interface{}, fmt.Errorf("socketcan: interface #%d: %w", index, err)
	}
	return Interface{Index: ifi.Index, Name: ifi.Name}, nil
}

// interfaceForIndex is InterfaceByIndex without the failure mode: when the
// name cannot be resolved (interface vanished between receive and lookup)
// the bare index is returned.
func interfaceForIndex(index int) Interface {
	ifc, err := InterfaceByIndex(index)
	if err != nil {
		return Interface{Index: index}
	}
	return ifc
}
