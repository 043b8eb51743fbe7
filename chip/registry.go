package chip

import (
	"encoding/hex"
	"strings"
)

// UnknownDevice is returned by signature lookups that match no registered device.
const UnknownDevice = "unknown"

// Info is the static description of one device.
type Info struct {
	Protocol Protocol
	Core     string // core library used by the build
	Variant  string // pin variant, ISP devices only
	Libs     string // extra library directory, ISP devices only
	Part     string // avrdude -p part id
	Fuses    string // default fuse spec, see ParseFuseSpec
	// Signature holds the 3-byte device signature as 6 upper-case hex characters.
	Signature string
}

// DefaultFuses parses the default fuse spec of the device.
func (i Info) DefaultFuses() ([]byte, error) {
	return ParseFuseSpec(i.Protocol, i.Fuses)
}

// Registry is a read-only table of devices keyed by name with a reverse index by signature.
// It is safe for concurrent use.
type Registry struct {
	names  []string
	byName map[string]Info
	bySig  map[string]string
}

// Lookup returns the device registered under name. Names are case-insensitive.
func (r *Registry) Lookup(name string) (Info, bool) {
	info, ok := r.byName[normalizeName(name)]
	return info, ok
}

// Names returns the registered device names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)

	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	return len(r.names)
}

// LookupBySignature returns the name of the device with the given signature bytes,
// or UnknownDevice.
func (r *Registry) LookupBySignature(sig []byte) string {
	return r.LookupBySignatureString(hex.EncodeToString(sig))
}

// LookupBySignatureString is LookupBySignature for a hex encoded signature such as "1E930B".
func (r *Registry) LookupBySignatureString(sig string) string {
	if name, ok := r.bySig[normalizeSignature(sig)]; ok {
		return name
	}

	return UnknownDevice
}

// Builder collects device registrations and produces a Registry.
type Builder struct {
	names  []string
	byName map[string]Info
	bySig  map[string]string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		byName: make(map[string]Info),
		bySig:  make(map[string]string),
	}
}

// Register adds or replaces the device name. The name and signature indices are updated
// together; a signature already used by another device is taken over by name.
func (b *Builder) Register(name string, info Info) *Builder {
	name = normalizeName(name)
	info.Signature = normalizeSignature(info.Signature)

	if old, ok := b.byName[name]; ok {
		if b.bySig[old.Signature] == name {
			delete(b.bySig, old.Signature)
		}
	} else {
		b.names = append(b.names, name)
	}

	b.byName[name] = info
	b.bySig[info.Signature] = name

	return b
}

// Build returns a Registry holding a snapshot of the registrations so far.
func (b *Builder) Build() *Registry {
	r := &Registry{
		names:  make([]string, len(b.names)),
		byName: make(map[string]Info, len(b.byName)),
		bySig:  make(map[string]string, len(b.bySig)),
	}
	copy(r.names, b.names)
	for k, v := range b.byName {
		r.byName[k] = v
	}
	for k, v := range b.bySig {
		r.bySig[k] = v
	}

	return r
}

// DefaultBuilder returns a Builder preloaded with the built-in device table.
func DefaultBuilder() *Builder {
	b := NewBuilder()

	//          name        protocol core        variant   libs       part   fuses             signature
	b.Register("attiny4", Info{TPI, "core10", "", "", "t4", "FF", "1E8F0A"})
	b.Register("attiny5", Info{TPI, "core10", "", "", "t5", "FF", "1E8F09"})
	b.Register("attiny9", Info{TPI, "core10", "", "", "t9", "FF", "1E9008"})
	b.Register("attiny10", Info{TPI, "core10", "", "", "t10", "FF", "1E9003"})
	b.Register("attiny24", Info{ISP, "coretiny", "corex4", "libtiny", "t24", "l:60,h:DF,e:FF", "1E910B"})
	b.Register("attiny44", Info{ISP, "coretiny", "corex4", "libtiny", "t44", "l:60,h:DF,e:FF", "1E9207"})
	b.Register("attiny84", Info{ISP, "coretiny", "corex4", "libtiny", "t84", "l:60,h:DF,e:FF", "1E930C"})
	b.Register("attiny25", Info{ISP, "coretiny", "corex5", "libtiny", "t25", "l:60,h:DF,e:FF", "1E9108"})
	b.Register("attiny45", Info{ISP, "coretiny", "corex5", "libtiny", "t45", "l:60,h:DF,e:FF", "1E9206"})
	b.Register("attiny85", Info{ISP, "coretiny", "corex5", "libtiny", "t85", "l:60,h:DF,e:FF", "1E930B"})

	return b
}

// Default returns a Registry with the built-in device table.
func Default() *Registry {
	return DefaultBuilder().Build()
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeSignature(sig string) string {
	sig = strings.TrimSpace(sig)
	sig = strings.TrimPrefix(strings.TrimPrefix(sig, "0x"), "0X")

	return strings.ToUpper(sig)
}
