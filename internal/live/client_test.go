package live_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"acplog/internal/live"
	"acplog/internal/model"
	"acplog/internal/parser"
	"acplog/internal/store/sqlite"
	"acplog/internal/transcript"
)

var upgrader = websocket.Upgrader{}

var sessionFrames = []string{
	`{"__acp_method":"session/update","params":{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"Hel"}}}}`,
	`not a frame`,
	`{"__acp_method":"session/update","params":{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"lo"},"done":true}}}`,
	`{"__acp_method":"session/update","params":{"update":{"sessionUpdate":"tool_call","toolCallId":"t1","title":"ls","status":"in_progress"}}}`,
	`{"__acp_method":"session/update","params":{"update":{"sessionUpdate":"tool_call_update","toolCallId":"t1","status":"completed","content":[{"type":"content","content":{"type":"text","text":"a.go"}}]}}}`,
	`{"type":"complete","status":"success","duration_ms":42}`,
}

// serve writes frames to every client, then closes normally.
func serve(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		// Wait for the client's close reply.
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *live.Client {
	t.Helper()
	client, err := live.Dial(context.Background(), url, header, nil)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStreamDeliversFrames(t *testing.T) {
	client := dial(t, wsURL(serve(t, sessionFrames)), nil)

	var frames []live.Frame
	err := client.Stream(context.Background(), func(f live.Frame) error {
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		t.Fatalf("expected normal closure to end the stream cleanly, got %v", err)
	}
	if len(frames) != len(sessionFrames) {
		t.Fatalf("expected %d frames, got %d", len(sessionFrames), len(frames))
	}
	if frames[1].OK || frames[1].Event != nil || string(frames[1].Raw) != "not a frame" {
		t.Fatalf("unclassified frame should be delivered raw: %#v", frames[1])
	}

	tr := transcript.New()
	for _, f := range frames {
		if f.OK {
			tr.Add(f.Event)
		}
	}
	if tr.Len() != 3 {
		t.Fatalf("expected message, tool call and completion, got %d events", tr.Len())
	}
	if msg := tr.At(0).(model.MessageEvent); msg.Content != "Hello" || !msg.Done {
		t.Fatalf("unexpected merged message: %#v", msg)
	}
	wantResult := map[string]any{"type": "text", "text": "a.go"}
	if call := tr.At(1).(model.ToolCallEvent); call.Status != model.ToolCompleted || !reflect.DeepEqual(call.Result, wantResult) {
		t.Fatalf("unexpected tool call: %#v", call)
	}
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	client := dial(t, wsURL(serve(t, sessionFrames)), nil)
	stop := errors.New("stop")

	var n int
	err := client.Stream(context.Background(), func(live.Frame) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("expected callback error after one frame, got n=%d err=%v", n, err)
	}
}

func TestStreamCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	client := dial(t, wsURL(srv), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Stream(ctx, func(live.Frame) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestDialSendsHeader(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)

	client := dial(t, wsURL(srv), http.Header{"Authorization": {"Bearer token"}})
	if err := client.Stream(context.Background(), func(live.Frame) error { return nil }); err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if auth := <-got; auth != "Bearer token" {
		t.Fatalf("expected Authorization header, got %q", auth)
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	if _, err := live.Dial(context.Background(), wsURL(srv), nil, nil); err == nil {
		t.Fatal("expected handshake failure")
	}
}

func TestRecorderReplaysIdentically(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "live.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx := context.Background()
	client := dial(t, wsURL(serve(t, sessionFrames)), nil)

	liveTr := transcript.New()
	err = client.Stream(ctx, live.Recorder(ctx, db, "recorded", func(f live.Frame) error {
		if f.OK {
			liveTr.Add(f.Event)
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	replayTr := transcript.New()
	var count int
	err = db.IterateLogs(ctx, "recorded", 0, func(rec model.LogRecord) error {
		count++
		ev := parser.ParseSessionLog(rec)
		if ev.Kind() != model.KindLog {
			replayTr.Add(ev)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("IterateLogs returned error: %v", err)
	}
	if count != len(sessionFrames) {
		t.Fatalf("expected every frame recorded, got %d", count)
	}

	if liveTr.Len() != replayTr.Len() {
		t.Fatalf("replay produced %d events, live %d", replayTr.Len(), liveTr.Len())
	}
	for i := 0; i < liveTr.Len(); i++ {
		if liveTr.At(i).Time() == "" {
			t.Fatalf("live event %d was not stamped: %#v", i, liveTr.At(i))
		}
		if !reflect.DeepEqual(liveTr.At(i), replayTr.At(i)) {
			t.Fatalf("event %d differs:\n live %#v\nreplay %#v", i, liveTr.At(i), replayTr.At(i))
		}
	}
}
