package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
)

func TestBridge_SnapshotIsACopy(t *testing.T) {
	b := NewBridge()
	b.SetFrame(models.Frame{{R: 1}, {R: 2}})

	snap := b.Snapshot()
	b.SetFrame(models.Frame{{R: 9}, {R: 9}})

	if snap.LEDColors[0].R != 1 {
		t.Errorf("snapshot mutated by later frame: %+v", snap.LEDColors)
	}
	if snap.LEDCount != 2 {
		t.Errorf("LEDCount = %d", snap.LEDCount)
	}
}

func TestBridge_ConcurrentAccess(t *testing.T) {
	b := NewBridge()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.SetFrame(models.Frame{{R: uint8(j)}})
				b.SetBands(models.BandLevels{Bass: float64(j)}, models.BandColors{})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.Snapshot()
			}
		}()
	}
	wg.Wait()
}

func testServer(t *testing.T) (*Server, *Bridge, *httptest.Server) {
	t.Helper()
	bridge := NewBridge()
	devices := func() []models.DeviceInfo {
		return []models.DeviceInfo{{Index: 0, Name: "Strip", Type: "ledstrip", LEDs: 30, BGR: true}}
	}
	s := NewServer(config.MonitorConfig{Listen: "127.0.0.1:0"}, bridge, devices, zap.NewNop())
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return s, bridge, ts
}

func TestServer_Status(t *testing.T) {
	_, bridge, ts := testServer(t)
	bridge.SetTrack("Artist - Song", true)
	bridge.SetBands(models.BandLevels{Bass: 0.5, State: "kick"}, models.BandColors{})

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Track != "Artist - Song" || !snap.IsPlaying {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Bands.State != "kick" {
		t.Errorf("Bands.State = %q", snap.Bands.State)
	}
}

func TestServer_Devices(t *testing.T) {
	_, _, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/devices")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Devices []models.DeviceInfo `json:"devices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Devices) != 1 || body.Devices[0].Name != "Strip" || !body.Devices[0].BGR {
		t.Errorf("devices = %+v", body.Devices)
	}
}

func TestServer_LivePushesSnapshots(t *testing.T) {
	_, bridge, ts := testServer(t)
	bridge.SetTrack("Live Track", true)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var snap models.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Track != "Live Track" {
		t.Errorf("Track = %q", snap.Track)
	}
}
