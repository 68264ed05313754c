package openrgb

import (
	"encoding/binary"
	"fmt"

	"github.com/spotrgb/agent/internal/models"
)

// OpenRGB SDK network protocol. Every packet is a 16-byte header followed
// by a little-endian payload:
//
//	magic "ORGB" | device id u32 | packet id u32 | payload length u32
const (
	headerSize = 16

	pktRequestControllerCount = 0
	pktRequestControllerData  = 1
	pktRequestProtocolVersion = 40
	pktSetClientName          = 50
	pktDeviceListUpdated      = 100
	pktUpdateLEDs             = 1050
	pktSetCustomMode          = 1100
	pktUpdateMode             = 1102
)

// clientProtocolVersion is the highest SDK protocol revision this client
// speaks. Version 3 adds mode brightness fields; version 4 (zone segments)
// is not needed for whole-device LED updates.
const clientProtocolVersion = 3

var magic = [4]byte{'O', 'R', 'G', 'B'}

func encodeHeader(deviceID, packetID, length uint32) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], deviceID)
	binary.LittleEndian.PutUint32(buf[8:12], packetID)
	binary.LittleEndian.PutUint32(buf[12:16], length)
	return buf
}

type header struct {
	deviceID uint32
	packetID uint32
	length   uint32
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("short header: %d bytes", len(buf))
	}
	if [4]byte(buf[0:4]) != magic {
		return header{}, fmt.Errorf("bad packet magic %q", buf[0:4])
	}
	return header{
		deviceID: binary.LittleEndian.Uint32(buf[4:8]),
		packetID: binary.LittleEndian.Uint32(buf[8:12]),
		length:   binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// encodeColor packs a color into the SDK's RGBColor word (0x00BBGGRR).
func encodeColor(c models.RGB) uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16
}

// encodeUpdateLEDs builds the UPDATELEDS payload for a full device frame.
func encodeUpdateLEDs(colors []models.RGB) []byte {
	size := 4 + 2 + 4*len(colors)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(colors)))
	for i, c := range colors {
		binary.LittleEndian.PutUint32(buf[6+4*i:], encodeColor(c))
	}
	return buf
}

// reader is an error-sticky cursor over a controller data payload.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("truncated controller data reading %s at offset %d", what, r.pos)
	}
}

func (r *reader) u16(what string) uint16 {
	if r.err != nil {
		return 0
	}
	if r.pos+2 > len(r.buf) {
		r.fail(what)
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u32(what string) uint32 {
	if r.err != nil {
		return 0
	}
	if r.pos+4 > len(r.buf) {
		r.fail(what)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) i32(what string) int32 {
	return int32(r.u32(what))
}

// str reads the SDK string form: u16 length including the trailing NUL,
// then that many bytes.
func (r *reader) str(what string) string {
	n := int(r.u16(what))
	if r.err != nil {
		return ""
	}
	if r.pos+n > len(r.buf) {
		r.fail(what)
		return ""
	}
	s := r.buf[r.pos : r.pos+n]
	r.pos += n
	if len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s)
}

func (r *reader) skip(n int, what string) {
	if r.err != nil {
		return
	}
	if r.pos+n > len(r.buf) {
		r.fail(what)
		return
	}
	r.pos += n
}

// mode is one lighting mode of a controller, with enough fields to be
// serialized back for an UPDATEMODE request.
type mode struct {
	Name          string
	Value         int32
	Flags         uint32
	SpeedMin      uint32
	SpeedMax      uint32
	BrightnessMin uint32
	BrightnessMax uint32
	ColorsMin     uint32
	ColorsMax     uint32
	Speed         uint32
	Brightness    uint32
	Direction     uint32
	ColorMode     uint32
	Colors        []uint32
}

type zone struct {
	Name     string
	Type     int32
	LEDCount int
}

// controller is one parsed device description.
type controller struct {
	Type       int32
	Name       string
	Vendor     string
	Modes      []mode
	ActiveMode int
	Zones      []zone
	LEDCount   int
}

func readMode(r *reader, protocol uint32) mode {
	var m mode
	m.Name = r.str("mode name")
	m.Value = r.i32("mode value")
	m.Flags = r.u32("mode flags")
	m.SpeedMin = r.u32("mode speed min")
	m.SpeedMax = r.u32("mode speed max")
	if protocol >= 3 {
		m.BrightnessMin = r.u32("mode brightness min")
		m.BrightnessMax = r.u32("mode brightness max")
	}
	m.ColorsMin = r.u32("mode colors min")
	m.ColorsMax = r.u32("mode colors max")
	m.Speed = r.u32("mode speed")
	if protocol >= 3 {
		m.Brightness = r.u32("mode brightness")
	}
	m.Direction = r.u32("mode direction")
	m.ColorMode = r.u32("mode color mode")
	n := int(r.u16("mode color count"))
	for i := 0; i < n && r.err == nil; i++ {
		m.Colors = append(m.Colors, r.u32("mode color"))
	}
	return m
}

func appendString(buf []byte, s string) []byte {
	var l [2]byte
	binary.LittleEndian.PutUint16(l[:], uint16(len(s)+1))
	buf = append(buf, l[:]...)
	buf = append(buf, s...)
	return append(buf, 0)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

// writeMode serializes a mode the way the server sent it, for UPDATEMODE.
func writeMode(m mode, protocol uint32) []byte {
	var buf []byte
	buf = appendString(buf, m.Name)
	buf = appendU32(buf, uint32(m.Value))
	buf = appendU32(buf, m.Flags)
	buf = appendU32(buf, m.SpeedMin)
	buf = appendU32(buf, m.SpeedMax)
	if protocol >= 3 {
		buf = appendU32(buf, m.BrightnessMin)
		buf = appendU32(buf, m.BrightnessMax)
	}
	buf = appendU32(buf, m.ColorsMin)
	buf = appendU32(buf, m.ColorsMax)
	buf = appendU32(buf, m.Speed)
	if protocol >= 3 {
		buf = appendU32(buf, m.Brightness)
	}
	buf = appendU32(buf, m.Direction)
	buf = appendU32(buf, m.ColorMode)
	var cnt [2]byte
	binary.LittleEndian.PutUint16(cnt[:], uint16(len(m.Colors)))
	buf = append(buf, cnt[:]...)
	for _, c := range m.Colors {
		buf = appendU32(buf, c)
	}
	return buf
}

// encodeUpdateMode builds the UPDATEMODE payload selecting mode index idx.
func encodeUpdateMode(idx int, m mode, protocol uint32) []byte {
	body := writeMode(m, protocol)
	size := 4 + 4 + len(body)
	buf := make([]byte, 0, size)
	buf = appendU32(buf, uint32(size))
	buf = appendU32(buf, uint32(idx))
	return append(buf, body...)
}

// parseController decodes a REQUEST_CONTROLLER_DATA reply.
func parseController(payload []byte, protocol uint32) (*controller, error) {
	r := &reader{buf: payload}
	r.u32("data size") // total size, already framed by the header

	var c controller
	c.Type = r.i32("device type")
	c.Name = r.str("device name")
	if protocol >= 1 {
		c.Vendor = r.str("vendor")
	}
	r.str("description")
	r.str("fw version")
	r.str("serial")
	r.str("location")

	numModes := int(r.u16("mode count"))
	c.ActiveMode = int(r.i32("active mode"))
	for i := 0; i < numModes && r.err == nil; i++ {
		c.Modes = append(c.Modes, readMode(r, protocol))
	}

	numZones := int(r.u16("zone count"))
	for i := 0; i < numZones && r.err == nil; i++ {
		var z zone
		z.Name = r.str("zone name")
		z.Type = r.i32("zone type")
		r.u32("zone leds min")
		r.u32("zone leds max")
		z.LEDCount = int(r.u32("zone leds count"))
		matrixLen := int(r.u16("zone matrix length"))
		r.skip(matrixLen, "zone matrix")
		c.Zones = append(c.Zones, z)
	}

	numLEDs := int(r.u16("led count"))
	for i := 0; i < numLEDs && r.err == nil; i++ {
		r.str("led name")
		r.u32("led value")
	}
	c.LEDCount = numLEDs

	numColors := int(r.u16("color count"))
	r.skip(4*numColors, "colors")

	if r.err != nil {
		return nil, r.err
	}
	return &c, nil
}

// deviceTypeName maps the SDK device type enum to a readable label.
func deviceTypeName(t int32) string {
	names := []string{
		"motherboard", "dram", "gpu", "cooler", "ledstrip", "keyboard",
		"mouse", "mousemat", "headset", "headset_stand", "gamepad",
		"light", "speaker", "virtual", "storage", "case", "microphone",
		"accessory", "keypad",
	}
	if t >= 0 && int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}
