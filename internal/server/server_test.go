package server

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"

	"github.com/strataview/strataview/internal/config"
	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/layer/memlayer"
	"github.com/strataview/strataview/internal/orchestrator"
	"github.com/strataview/strataview/internal/profile"
	"github.com/strataview/strataview/internal/profilecache"
	"github.com/strataview/strataview/internal/raster/memgrid"
)

func testServer(t *testing.T) (*Server, *profilecache.Cache) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	grid := memgrid.New(-1, -50, 1, 102, 100)
	grid.Fill(func(x, _ float64) float64 { return 100 + x/10 })

	geology := memlayer.New(layer.Feature{
		Geometry: orb.Polygon{orb.Ring{{0, -20}, {60, -20}, {60, 20}, {0, 20}, {0, -20}}},
		Attrs:    map[string]any{"unit": "granite"},
	})

	reg := NewRegistry()
	reg.AddRaster("dem", grid)
	reg.AddLayer("geology", geology)

	cache, err := profilecache.New(log, 16)
	if err != nil {
		t.Fatal(err)
	}
	orch := orchestrator.New(log)
	return New(log, cache, orch, reg, config.SamplingConfig{}, nil), cache
}

const profileBody = `{
	"raster": "dem",
	"band": 1,
	"step": 5,
	"line": [[0, 0], [100, 0]],
	"geology": {"layer": "geology", "name_field": "unit"}
}`

func TestHandleProfile_ComputesAndCaches(t *testing.T) {
	s, cache := testServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	post := func() profile.Result {
		resp, err := http.Post(ts.URL+"/v1/profile", "application/json", strings.NewReader(profileBody))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			t.Fatalf("status %d: %s", resp.StatusCode, b)
		}
		var res profile.Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatal(err)
		}
		return res
	}

	res := post()
	if len(res.Topo) == 0 {
		t.Fatalf("empty topo in response")
	}
	if len(res.Geology) != 1 || res.Geology[0].Unit != "granite" {
		t.Fatalf("geology %+v, want one granite segment", res.Geology)
	}

	post()
	if got := cache.Computations(); got != 1 {
		t.Fatalf("computations = %d, identical request must be served from cache", got)
	}
}

func TestHandleProfile_OmittedBandDefaultsToFirst(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	body := `{"raster":"dem","step":5,"line":[[0,0],[100,0]]}`
	resp, err := http.Post(ts.URL+"/v1/profile", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, b)
	}
}

func TestHandleProfile_BadRequests(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"raster":`, http.StatusBadRequest},
		{"missing raster", `{"band":1,"line":[[0,0],[100,0]]}`, http.StatusBadRequest},
		{"short line", `{"raster":"dem","band":1,"line":[[0,0]]}`, http.StatusBadRequest},
		{"unknown raster", `{"raster":"mars","band":1,"line":[[0,0],[100,0]]}`, http.StatusNotFound},
		{"unknown layer", `{"raster":"dem","band":1,"line":[[0,0],[100,0]],"geology":{"layer":"nope","name_field":"unit"}}`, http.StatusNotFound},
		{"bad band", `{"raster":"dem","band":7,"line":[[0,0],[100,0]]}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		resp, err := http.Post(ts.URL+"/v1/profile", "application/json", bytes.NewReader([]byte(tc.body)))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s: status %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}
}

func TestHandleCacheClear_ForcesRecompute(t *testing.T) {
	s, cache := testServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	post := func() {
		resp, err := http.Post(ts.URL+"/v1/profile", "application/json", strings.NewReader(profileBody))
		if err != nil {
			t.Fatal(err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	post()
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/cache", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cache clear status %d, want 204", resp.StatusCode)
	}
	post()
	if got := cache.Computations(); got != 2 {
		t.Fatalf("computations = %d, want recompute after clear", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
	}
}

func TestHandleProfileStream_ProgressThenResult(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/profile/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(profileBody)); err != nil {
		t.Fatal(err)
	}

	sawProgress := false
	for {
		var f streamFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		switch f.Type {
		case "progress":
			sawProgress = true
			if f.Percent < 0 || f.Percent > 100 {
				t.Fatalf("progress out of range: %+v", f)
			}
		case "result":
			if f.Result == nil || len(f.Result.Topo) == 0 {
				t.Fatalf("result frame without a profile: %+v", f)
			}
			if !sawProgress {
				t.Fatalf("no progress frames before the result")
			}
			return
		case "error":
			t.Fatalf("unexpected error frame: %s", f.Error)
		default:
			t.Fatalf("unknown frame type %q", f.Type)
		}
	}
}

func TestHandleProfileStream_InvalidConfiguration(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/profile/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"band":1}`)); err != nil {
		t.Fatal(err)
	}
	var f streamFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "error" || f.Error == "" {
		t.Fatalf("frame %+v, want an error frame", f)
	}
}
