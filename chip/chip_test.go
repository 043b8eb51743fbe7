package chip

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocol(t *testing.T) {
	assert.Equal(t, "TPI", TPI.String())
	assert.Equal(t, "ISP", ISP.String())
	assert.Equal(t, "Protocol(9)", Protocol(9).String())

	assert.Equal(t, 1, TPI.FuseBytes())
	assert.Equal(t, 3, ISP.FuseBytes())
	assert.Equal(t, 0, Protocol(0).FuseBytes())

	p, err := ParseProtocol(" tpi ")
	require.NoError(t, err)
	assert.Equal(t, TPI, p)

	_, err = ParseProtocol("jtag")
	require.ErrorIs(t, err, ErrUnknownProtocol)
}

func TestProtocol_FieldsCopy(t *testing.T) {
	for _, p := range []Protocol{TPI, ISP} {
		fields := p.Fields()
		require.NotEmpty(t, fields)
		label := fields[0].Label
		fields[0].Label = "CHANGED"
		fields[0].Bit = 7

		again := p.Fields()
		assert.Equal(t, label, again[0].Label, p.String())

		settings, err := DecodeFuses(p, make([]byte, p.FuseBytes()))
		require.NoError(t, err)
		_, ok := Lookup(settings, "CHANGED")
		assert.False(t, ok, p.String())
	}
	assert.Nil(t, Protocol(0).Fields())
}

func TestDecodeEncode_RoundTrip(t *testing.T) {
	for _, p := range []Protocol{TPI, ISP} {
		t.Run(p.String(), func(t *testing.T) {
			raw := make([]byte, p.FuseBytes())
			// all byte values in every position
			for v := 0; v < 256; v++ {
				for i := range raw {
					raw[i] = byte(v + i*37)
				}

				settings, err := DecodeFuses(p, raw)
				require.NoError(t, err)
				require.Len(t, settings, len(p.Fields()))

				out, err := EncodeFuses(p, raw, nil)
				require.NoError(t, err)
				require.Equal(t, raw, out)

				out, err = EncodeFuses(p, raw, settings)
				require.NoError(t, err)
				require.Equal(t, raw, out)
			}
		})
	}
}

func TestDecodeFuses_Polarity(t *testing.T) {
	// 0xFE: RSTDISBL bit cleared, so the feature is enabled.
	settings, err := DecodeFuses(TPI, []byte{0xFE})
	require.NoError(t, err)

	s, ok := Lookup(settings, "rstdisbl")
	require.True(t, ok)
	assert.True(t, s.Enabled)

	s, ok = Lookup(settings, "CKOUT")
	require.True(t, ok)
	assert.False(t, s.Enabled)

	_, ok = Lookup(settings, "SPIEN")
	assert.False(t, ok)

	// default ISP low fuse 0x62: CKDIV8 enabled, CKSEL 0010.
	settings, err = DecodeFuses(ISP, []byte{0x62, 0xDF, 0xFF})
	require.NoError(t, err)

	s, _ = Lookup(settings, "CKDIV8")
	assert.True(t, s.Enabled)
	s, _ = Lookup(settings, "CKSEL1")
	assert.False(t, s.Enabled)
	s, _ = Lookup(settings, "CKSEL0")
	assert.True(t, s.Enabled)
	s, _ = Lookup(settings, "SPIEN")
	assert.True(t, s.Enabled)
	assert.True(t, s.Field.Caution)
}

func TestEncodeFuses_Edits(t *testing.T) {
	raw := []byte{0x62, 0xDF, 0xFF}
	settings, err := DecodeFuses(ISP, raw)
	require.NoError(t, err)

	ckdiv8, _ := Lookup(settings, "CKDIV8")
	ckdiv8.Enabled = false
	eesave, _ := Lookup(settings, "EESAVE")
	eesave.Enabled = true

	out, err := EncodeFuses(ISP, raw, []FuseSetting{ckdiv8, eesave})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE2, 0xD7, 0xFF}, out)
	assert.Equal(t, []byte{0x62, 0xDF, 0xFF}, raw, "input must not be modified")

	// unused TPI bits keep their value
	rst, _ := Lookup(tpiSettings(t, 0x0F), "RSTDISBL")
	rst.Enabled = true
	out, err = EncodeFuses(TPI, []byte{0x0F}, []FuseSetting{rst})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0E}, out)
}

func tpiSettings(t *testing.T, b byte) []FuseSetting {
	t.Helper()
	s, err := DecodeFuses(TPI, []byte{b})
	require.NoError(t, err)

	return s
}

func TestEncodeFuses_Errors(t *testing.T) {
	_, err := EncodeFuses(ISP, []byte{0xFF}, nil)
	require.ErrorIs(t, err, ErrFuseLength)

	_, err = DecodeFuses(TPI, []byte{0xFF, 0xFF})
	require.ErrorIs(t, err, ErrFuseLength)

	_, err = DecodeFuses(Protocol(7), []byte{0xFF})
	require.ErrorIs(t, err, ErrUnknownProtocol)

	spien := FuseSetting{Field: FuseField{Label: "SPIEN", Byte: FuseHigh, Bit: 5}, Enabled: true}
	_, err = EncodeFuses(TPI, []byte{0xFF}, []FuseSetting{spien})
	require.ErrorIs(t, err, ErrUnknownFuseField)
}

func TestFuseSpec(t *testing.T) {
	b, err := ParseFuseSpec(TPI, "FF")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, b)

	b, err = ParseFuseSpec(ISP, "e:FF, l:60,h:df")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0xDF, 0xFF}, b)

	s, err := FormatFuseSpec(ISP, b)
	require.NoError(t, err)
	assert.Equal(t, "l:60,h:DF,e:FF", s)

	s, err = FormatFuseSpec(TPI, []byte{0x0A})
	require.NoError(t, err)
	assert.Equal(t, "0A", s)

	bad := []struct {
		p    Protocol
		spec string
	}{
		{TPI, "XYZ"},
		{TPI, "100"},
		{ISP, "l:60,h:DF"},
		{ISP, "l:60,h:DF,x:FF"},
		{ISP, "l60,h:DF,e:FF"},
		{ISP, "l:G0,h:DF,e:FF"},
	}
	for _, tc := range bad {
		_, err := ParseFuseSpec(tc.p, tc.spec)
		assert.ErrorIs(t, err, ErrInvalidFuseSpec, tc.spec)
	}
}

func TestFuseByte_String(t *testing.T) {
	assert.Equal(t, "lfuse", FuseLow.String())
	assert.Equal(t, "hfuse", FuseHigh.String())
	assert.Equal(t, "efuse", FuseExt.String())
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	require.Equal(t, 10, r.Len())
	assert.Equal(t, "attiny4", r.Names()[0])
	assert.Equal(t, "attiny85", r.Names()[9])

	info, ok := r.Lookup("ATtiny85")
	require.True(t, ok)
	assert.Equal(t, ISP, info.Protocol)
	assert.Equal(t, "t85", info.Part)
	assert.Equal(t, "corex5", info.Variant)

	fuses, err := info.DefaultFuses()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0xDF, 0xFF}, fuses)

	info, ok = r.Lookup("attiny10")
	require.True(t, ok)
	assert.Equal(t, TPI, info.Protocol)
	fuses, err = info.DefaultFuses()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, fuses)

	for _, name := range r.Names() {
		info, _ := r.Lookup(name)
		assert.Equal(t, name, r.LookupBySignatureString(info.Signature))
	}
}

func TestLookupBySignature(t *testing.T) {
	r := Default()

	assert.Equal(t, "attiny85", r.LookupBySignature([]byte{0x1E, 0x93, 0x0B}))
	assert.Equal(t, "attiny10", r.LookupBySignatureString("0x1e9003"))
	assert.Equal(t, UnknownDevice, r.LookupBySignature([]byte{0x00, 0x00, 0x00}))
	assert.Equal(t, UnknownDevice, r.LookupBySignature(nil))
	assert.Equal(t, UnknownDevice, r.LookupBySignatureString("zz"))
}

func TestBuilder_Register(t *testing.T) {
	b := NewBuilder()
	b.Register("A", Info{Protocol: TPI, Signature: "aabbcc"})
	first := b.Build()

	// re-register moves the signature
	b.Register("a", Info{Protocol: TPI, Signature: "112233"})
	// last write wins on collision
	b.Register("b", Info{Protocol: TPI, Signature: "112233"})
	r := b.Build()

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, UnknownDevice, r.LookupBySignatureString("AABBCC"))
	assert.Equal(t, "b", r.LookupBySignatureString("112233"))

	// earlier snapshot is unaffected
	assert.Equal(t, "a", first.LookupBySignatureString("AABBCC"))
	assert.Equal(t, 1, first.Len())

	names := r.Names()
	names[0] = "mutated"
	assert.Equal(t, "a", r.Names()[0])
}

func TestLoadProfiles(t *testing.T) {
	doc := `
chips:
  - name: ATtiny13
    protocol: isp
    core: coretiny
    part: t13
    fuses: "l:6A,h:FF,e:FF"
    signature: "1e9007"
  - name: attiny85
    protocol: ISP
    core: custom
    part: t85
    fuses: "l:62,h:DF,e:FF"
    signature: 1E930B
`
	b := DefaultBuilder()
	require.NoError(t, LoadProfiles(strings.NewReader(doc), b))
	r := b.Build()

	assert.Equal(t, 11, r.Len())
	info, ok := r.Lookup("attiny13")
	require.True(t, ok)
	assert.Equal(t, ISP, info.Protocol)
	assert.Equal(t, "1E9007", info.Signature)
	assert.Equal(t, "attiny13", r.LookupBySignatureString("1E9007"))

	info, _ = r.Lookup("attiny85")
	assert.Equal(t, "custom", info.Core)
}

func TestLoadProfiles_Empty(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, LoadProfiles(strings.NewReader(""), b))
	assert.Equal(t, 0, b.Build().Len())
}

func TestLoadProfiles_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "chips:\n  - name: x\n    color: red\n"},
		{"missing name", "chips:\n  - protocol: TPI\n    fuses: FF\n    signature: 1E8F0A\n"},
		{"bad protocol", "chips:\n  - name: x\n    protocol: JTAG\n    fuses: FF\n    signature: 1E8F0A\n"},
		{"short signature", "chips:\n  - name: x\n    protocol: TPI\n    fuses: FF\n    signature: 1E8F\n"},
		{"bad fuses", "chips:\n  - name: x\n    protocol: ISP\n    fuses: FF\n    signature: 1E8F0A\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder()
			err := LoadProfiles(strings.NewReader(tc.doc), b)
			require.ErrorIs(t, err, ErrInvalidProfile)
			assert.Equal(t, 0, b.Build().Len())
		})
	}
}
