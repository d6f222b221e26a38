package capture

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	ts := time.Unix(100, 0)
	w.now = func() time.Time { ts = ts.Add(time.Millisecond); return ts }

	for _, chunk := range []string{"12|", "3", "4|"} {
		if err := w.Record([]byte(chunk)); err != nil {
			t.Fatalf("Record(%q): %v", chunk, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Record([]byte("x")); err == nil {
		t.Fatal("Record after Close succeeded, want error")
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	var got []string
	var last int64
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if rec.T <= last {
			t.Fatalf("record time %d not after %d", rec.T, last)
		}
		last = rec.T
		got = append(got, string(rec.Data))
	}
	if len(got) != 3 || got[0] != "12|" || got[2] != "4|" {
		t.Fatalf("records = %q, want [12| 3 4|]", got)
	}
}

func writeRecording(t *testing.T, chunks ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "link.jsonl.zst")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ts := time.Unix(0, 0)
	w.now = func() time.Time { ts = ts.Add(2 * time.Millisecond); return ts }
	for _, c := range chunks {
		if err := w.Record([]byte(c)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestReplayPortsPlaysRecording(t *testing.T) {
	path := writeRecording(t, "10|", "20|")
	ports := ReplayPorts{Path: path, Speed: 10}

	names, err := ports.List()
	if err != nil || len(names) != 1 || names[0] != "replay:link.jsonl.zst" {
		t.Fatalf("List() = %v, %v, want [replay:link.jsonl.zst]", names, err)
	}
	s, err := ports.Open(names[0], 9600)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	data, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "10|20|" {
		t.Fatalf("replayed %q, want %q", data, "10|20|")
	}
}

func TestReplayPortsUnknownName(t *testing.T) {
	ports := ReplayPorts{Path: writeRecording(t, "1|")}
	if _, err := ports.Open("/dev/ttyUSB0", 9600); err == nil {
		t.Fatal("Open(unknown) succeeded, want error")
	}
}

func TestReplayPortsEmptyPath(t *testing.T) {
	names, err := ReplayPorts{}.List()
	if err != nil || len(names) != 0 {
		t.Fatalf("List() = %v, %v, want no ports", names, err)
	}
}

func TestReplayCloseInterruptsGap(t *testing.T) {
	path := writeRecording(t, "1|", "2|")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := newReplaySerial("replay", r, 1)
	s.sleep = func(_ time.Duration, stop <-chan struct{}) bool {
		<-stop
		return false
	}

	buf := make([]byte, 8)
	if n, err := s.Read(buf); err != nil || string(buf[:n]) != "1|" {
		t.Fatalf("first Read = %q, %v, want \"1|\"", buf[:n], err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Read(buf)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Fatalf("Read after Close error = %v, want io.ErrClosedPipe", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestReplayHonoursGapAfterZeroStamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epoch.jsonl.zst")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ts := time.Unix(0, 0)
	for _, c := range []string{"1|", "2|", "3|"} {
		if err := w.RecordAt(ts, []byte(c)); err != nil {
			t.Fatalf("RecordAt: %v", err)
		}
		ts = ts.Add(100 * time.Millisecond)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := newReplaySerial("replay", r, 1)
	defer s.Close()
	var gaps []time.Duration
	s.sleep = func(d time.Duration, _ <-chan struct{}) bool {
		gaps = append(gaps, d)
		return true
	}

	data, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "1|2|3|" {
		t.Fatalf("replayed %q, want %q", data, "1|2|3|")
	}
	if len(gaps) != 2 || gaps[0] != 100*time.Millisecond || gaps[1] != 100*time.Millisecond {
		t.Fatalf("gaps = %v, want [100ms 100ms]", gaps)
	}
}
