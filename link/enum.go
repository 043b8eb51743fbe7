package link

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// String formats the port the way the ports command lists it.
func (pi PortInfo) String() string {
	if !pi.IsUSB {
		return pi.Name
	}

	s := fmt.Sprintf("%s [%s:%s]", pi.Name, pi.VID, pi.PID)
	if pi.Product != "" {
		s += " " + pi.Product
	}

	return s
}

// ListPorts returns the names of the serial ports on the system, sorted.
func ListPorts() ([]string, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("link: list ports: %w", err)
	}
	sort.Strings(names)

	return names, nil
}

// ListPortDetails returns the serial ports with USB details where the platform reports them,
// sorted by name.
func ListPortDetails() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("link: list ports: %w", err)
	}

	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}
