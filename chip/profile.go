package chip

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// profileDoc is the YAML layout of a chip profile file:
//
//	chips:
//	  - name: attiny13
//	    protocol: ISP
//	    core: coretiny
//	    part: t13
//	    fuses: "l:6A,h:FF,e:FF"
//	    signature: 1E9007
type profileDoc struct {
	Chips []profileEntry `yaml:"chips"`
}

type profileEntry struct {
	Name      string `yaml:"name"`
	Protocol  string `yaml:"protocol"`
	Core      string `yaml:"core"`
	Variant   string `yaml:"variant"`
	Libs      string `yaml:"libs"`
	Part      string `yaml:"part"`
	Fuses     string `yaml:"fuses"`
	Signature string `yaml:"signature"`
}

// LoadProfiles reads a YAML chip profile document from r and registers every entry in b.
// Entries are validated before any of them is registered.
func LoadProfiles(r io.Reader, b *Builder) error {
	var doc profileDoc

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}

		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	infos := make([]Info, len(doc.Chips))
	for i, e := range doc.Chips {
		info, err := e.toInfo()
		if err != nil {
			return fmt.Errorf("%w: entry %d (%q): %w", ErrInvalidProfile, i, e.Name, err)
		}
		infos[i] = info
	}

	for i, e := range doc.Chips {
		b.Register(e.Name, infos[i])
	}

	return nil
}

func (e profileEntry) toInfo() (Info, error) {
	if e.Name == "" {
		return Info{}, errors.New("missing name")
	}

	p, err := ParseProtocol(e.Protocol)
	if err != nil {
		return Info{}, err
	}

	sig, err := hex.DecodeString(normalizeSignature(e.Signature))
	if err != nil || len(sig) != 3 {
		return Info{}, fmt.Errorf("signature %q is not 3 hex bytes", e.Signature)
	}

	if _, err := ParseFuseSpec(p, e.Fuses); err != nil {
		return Info{}, err
	}

	return Info{
		Protocol:  p,
		Core:      e.Core,
		Variant:   e.Variant,
		Libs:      e.Libs,
		Part:      e.Part,
		Fuses:     e.Fuses,
		Signature: e.Signature,
	}, nil
}
