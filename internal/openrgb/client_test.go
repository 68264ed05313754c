package openrgb

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
)

// fakeServer speaks just enough of the SDK protocol for the client.
type fakeServer struct {
	listener net.Listener
	protocol uint32
	ctrls    []controller

	mu          sync.Mutex
	clientName  string
	customModes []uint32 // device ids that received SETCUSTOMMODE
	ledUpdates  map[uint32][]models.RGB
	modeUpdates []uint32 // device ids that received UPDATEMODE
}

func startFakeServer(t *testing.T, protocol uint32, ctrls []controller) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeServer{
		listener:   ln,
		protocol:   protocol,
		ctrls:      ctrls,
		ledUpdates: map[uint32][]models.RGB{},
	}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) addr() string { return s.listener.Addr().String() }

func (s *fakeServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	for {
		var hdr [headerSize]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return
		}
		h, err := decodeHeader(hdr[:])
		if err != nil {
			return
		}
		payload := make([]byte, h.length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}

		switch h.packetID {
		case pktRequestProtocolVersion:
			reply := appendU32(nil, s.protocol)
			conn.Write(append(encodeHeader(0, pktRequestProtocolVersion, uint32(len(reply))), reply...))
		case pktSetClientName:
			s.mu.Lock()
			s.clientName = string(payload[:len(payload)-1])
			s.mu.Unlock()
		case pktRequestControllerCount:
			reply := appendU32(nil, uint32(len(s.ctrls)))
			conn.Write(append(encodeHeader(0, pktRequestControllerCount, uint32(len(reply))), reply...))
		case pktRequestControllerData:
			effective := s.protocol
			if clientProtocolVersion < effective {
				effective = clientProtocolVersion
			}
			reply := buildController(s.ctrls[h.deviceID], effective)
			conn.Write(append(encodeHeader(h.deviceID, pktRequestControllerData, uint32(len(reply))), reply...))
		case pktSetCustomMode:
			s.mu.Lock()
			s.customModes = append(s.customModes, h.deviceID)
			s.mu.Unlock()
		case pktUpdateMode:
			s.mu.Lock()
			s.modeUpdates = append(s.modeUpdates, h.deviceID)
			s.mu.Unlock()
		case pktUpdateLEDs:
			count := binary.LittleEndian.Uint16(payload[4:6])
			colors := make([]models.RGB, count)
			for i := range colors {
				word := binary.LittleEndian.Uint32(payload[6+4*i:])
				colors[i] = models.RGB{
					R: uint8(word),
					G: uint8(word >> 8),
					B: uint8(word >> 16),
				}
			}
			s.mu.Lock()
			s.ledUpdates[h.deviceID] = colors
			s.mu.Unlock()
		}
	}
}

func testConfig(addr string) config.OpenRGBConfig {
	host, port, _ := net.SplitHostPort(addr)
	cfg := config.DefaultConfig().OpenRGB
	cfg.Host = host
	cfg.Port, _ = strconv.Atoi(port)
	cfg.ConnectRetries = 1
	cfg.ConnectDelay = config.Duration{Duration: 10 * time.Millisecond}
	cfg.ExcludedDevices = []string{"SteelSeries"}
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestClient_ConnectEnumeratesDevices(t *testing.T) {
	strip := testController()
	keyboard := controller{
		Type: 5, Name: "SteelSeries Apex", Vendor: "SteelSeries",
		Modes:    []mode{{Name: "Direct"}},
		Zones:    []zone{{Name: "Keys", LEDCount: 100}},
		LEDCount: 100,
	}
	srv := startFakeServer(t, 2, []controller{strip, keyboard})

	c := New(testConfig(srv.addr()), zap.NewNop())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	devs := c.Devices()
	if len(devs) != 2 {
		t.Fatalf("got %d devices", len(devs))
	}
	if devs[0].Name != "ASUS Aura Strip" || !devs[0].BGR || devs[0].Excluded {
		t.Errorf("device 0 = %+v", devs[0])
	}
	if devs[0].Type != "ledstrip" || devs[0].LEDs != 4 {
		t.Errorf("device 0 = %+v", devs[0])
	}
	if !devs[1].Excluded {
		t.Errorf("device 1 not excluded: %+v", devs[1])
	}

	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.clientName == "SpotifySync"
	})
}

func TestClient_SetDirectSkipsExcluded(t *testing.T) {
	keyboard := controller{
		Type: 5, Name: "SteelSeries Apex",
		Modes: []mode{{Name: "Direct"}}, LEDCount: 100,
	}
	srv := startFakeServer(t, 2, []controller{testController(), keyboard})

	c := New(testConfig(srv.addr()), zap.NewNop())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.SetDirect(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.customModes) == 1 && srv.customModes[0] == 0
	})
}

func TestClient_UpdateDeviceSwapsBGR(t *testing.T) {
	srv := startFakeServer(t, 2, []controller{testController()})

	c := New(testConfig(srv.addr()), zap.NewNop())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	frame := []models.RGB{
		{R: 255, G: 10, B: 0},
		{R: 0, G: 20, B: 100},
		{R: 1, G: 2, B: 3},
		{R: 4, G: 5, B: 6},
	}
	if err := c.UpdateDevice(context.Background(), 0, frame); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.ledUpdates[0]) == 4
	})
	srv.mu.Lock()
	got := srv.ledUpdates[0]
	srv.mu.Unlock()
	// The strip matches the BGR quirk list, so channels arrive swapped.
	want := models.RGB{R: 0, G: 10, B: 255}
	if got[0] != want {
		t.Errorf("led 0 = %+v, want %+v", got[0], want)
	}
}

func TestClient_UpdateExcludedIsNoop(t *testing.T) {
	keyboard := controller{
		Type: 5, Name: "SteelSeries Apex",
		Modes: []mode{{Name: "Direct"}}, LEDCount: 4,
	}
	srv := startFakeServer(t, 2, []controller{keyboard})

	c := New(testConfig(srv.addr()), zap.NewNop())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	frame := make([]models.RGB, 4)
	if err := c.UpdateDevice(context.Background(), 0, frame); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.ledUpdates) != 0 {
		t.Errorf("excluded device received %d updates", len(srv.ledUpdates))
	}
}

func TestClient_SetBreathingUsesDeviceMode(t *testing.T) {
	srv := startFakeServer(t, 2, []controller{testController()})

	c := New(testConfig(srv.addr()), zap.NewNop())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.SetBreathing(models.RGB{R: 100, G: 0, B: 200}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.modeUpdates) == 1
	})
}

func TestClient_ConnectFailure(t *testing.T) {
	cfg := config.DefaultConfig().OpenRGB
	cfg.Host = "127.0.0.1"
	cfg.Port = 1 // nothing listens here
	cfg.ConnectRetries = 2
	cfg.ConnectDelay = config.Duration{Duration: time.Millisecond}

	c := New(cfg, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err == nil {
		t.Fatal("expected connect error")
	}
}
