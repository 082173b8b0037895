package contentcheck

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sunzi-skynet/contentcheck-3000/internal/align"
	"github.com/sunzi-skynet/contentcheck-3000/internal/viewsync"
)

func setupServer(t *testing.T) (*httptest.Server, *CompareResult) {
	t.Helper()
	c := newTestComparator()
	result, err := c.CompareContent(context.Background(),
		"https://a.example/docs", "https://b.example/docs",
		[]byte(sourcePage), []byte(targetPage))
	if err != nil {
		t.Fatalf("CompareContent: %v", err)
	}
	srv := httptest.NewServer(Mount(c))
	t.Cleanup(srv.Close)
	return srv, result
}

func TestMountServesViews(t *testing.T) {
	srv, result := setupServer(t)

	for _, side := range []string{"source", "target"} {
		resp, err := http.Get(srv.URL + "/view/" + result.ID + "/" + side)
		if err != nil {
			t.Fatalf("GET view: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("view %s status = %d", side, resp.StatusCode)
		}
		if !strings.Contains(string(body), "data-cc-block") {
			t.Errorf("view %s lacks block markup", side)
		}
	}

	resp, err := http.Get(srv.URL + "/view/" + result.ID + "/bogus")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus side status = %d, want 400", resp.StatusCode)
	}
}

func TestMountServesStoredResult(t *testing.T) {
	srv, result := setupServer(t)

	resp, err := http.Get(srv.URL + "/result/" + result.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got CompareResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got.Similarity != result.Similarity {
		t.Errorf("similarity = %v, want %v", got.Similarity, result.Similarity)
	}

	missing, err := http.Get(srv.URL + "/result/nope")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing result status = %d, want 404", missing.StatusCode)
	}
}

func TestMountMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snap["comparisons_run"].(float64) != 1 {
		t.Errorf("metrics = %v", snap)
	}
}

// dialSurface connects a fake rendering surface for one side.
func dialSurface(t *testing.T, srv *httptest.Server, sessionID, side string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws?session=" + sessionID + "&side=" + side
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s surface: %v", side, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) viewsync.Message {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	msg, err := viewsync.Decode(data)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func sendMessage(t *testing.T, conn *websocket.Conn, msg viewsync.Message) {
	t.Helper()
	data, err := viewsync.Encode(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func TestSyncProtocolOverWebSocket(t *testing.T) {
	srv, result := setupServer(t)

	source := dialSurface(t, srv, result.ID, "source")
	target := dialSurface(t, srv, result.ID, "target")

	// Both surfaces connected: the cycle starts with enable, then measure
	// after the settle delay.
	for conn, wantSide := range map[*websocket.Conn]viewsync.Side{
		source: viewsync.SideSource,
		target: viewsync.SideTarget,
	} {
		enable, ok := readMessage(t, conn).(*viewsync.Enable)
		if !ok || enable.Side != wantSide {
			t.Fatalf("first message = %+v, want enable{%s}", enable, wantSide)
		}
		if _, ok := readMessage(t, conn).(*viewsync.Measure); !ok {
			t.Fatal("second message is not measure")
		}
	}

	blocks := []align.Block{
		{Idx: 0, Top: 0, Height: 50, Shared: true, Text: "Getting Started"},
	}
	sendMessage(t, source, viewsync.Measurements{Side: viewsync.SideSource, Blocks: blocks})
	sendMessage(t, target, viewsync.Measurements{Side: viewsync.SideTarget, Blocks: blocks})

	for _, conn := range []*websocket.Conn{source, target} {
		if _, ok := readMessage(t, conn).(*viewsync.ApplySpacers); !ok {
			t.Fatal("expected applySpacers after both measurements")
		}
	}

	// Synced: a scroll on the source is relayed to the target.
	sendMessage(t, source, viewsync.Scrolled{Side: viewsync.SideSource, Offset: 150})
	scroll, ok := readMessage(t, target).(*viewsync.ScrollTo)
	if !ok || scroll.Offset != 150 {
		t.Fatalf("relayed message = %+v, want scrollTo{150}", scroll)
	}
}

func TestSyncRejectsUnknownSession(t *testing.T) {
	srv, _ := setupServer(t)
	resp, err := http.Get(srv.URL + "/ws?session=bogus&side=source")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
