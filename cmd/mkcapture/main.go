package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"bouncer/capture"
)

func main() {
	var (
		inPath   = flag.String("in", "", "Input file (values text for encode, .jsonl.zst for decode).")
		outPath  = flag.String("out", "", "Output file (.jsonl.zst for encode, text for decode).")
		mode     = flag.String("mode", "encode", "encode|decode.")
		interval = flag.Duration("interval", 100*time.Millisecond, "Gap between values (encode mode only).")
		delim    = flag.String("delim", "|", "Value delimiter (encode mode only).")
	)
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		fatalf("usage: mkcapture -mode encode -in values.txt -out link.jsonl.zst [-interval 100ms] [-delim '|']\n       mkcapture -mode decode -in link.jsonl.zst -out dump.txt")
	}

	switch strings.ToLower(*mode) {
	case "encode":
		if len(*delim) != 1 {
			fatalf("delim must be one byte: %q", *delim)
		}
		if *interval < 0 {
			fatalf("interval must not be negative: %s", *interval)
		}
		if err := encodeValues(*inPath, *outPath, *interval, (*delim)[0]); err != nil {
			fatalf("encode: %v", err)
		}
	case "decode":
		if err := decodeRecording(*inPath, *outPath); err != nil {
			fatalf("decode: %v", err)
		}
	default:
		fatalf("unknown mode: %s", *mode)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

// encodeValues turns a text file with one value per line into a recording
// that sends each value followed by delim, spaced by interval. Blank lines
// and lines starting with '#' are skipped; other lines are sent verbatim so
// malformed input can be replayed too.
func encodeValues(inPath, outPath string, interval time.Duration, delim byte) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := capture.Create(outPath)
	if err != nil {
		return err
	}

	t := time.Unix(0, 0)
	n := 0
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := w.RecordAt(t, append([]byte(line), delim)); err != nil {
			return errors.Join(err, w.Close())
		}
		t = t.Add(interval)
		n++
	}
	if err := sc.Err(); err != nil {
		return errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %d values to %s\n", n, outPath)
	return nil
}

// decodeRecording writes one line per record: the offset from the first
// record in milliseconds and the quoted chunk.
func decodeRecording(inPath, outPath string) error {
	r, err := capture.Open(inPath)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(out)

	var first int64
	n := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = out.Close()
			return err
		}
		if n == 0 {
			first = rec.T
		}
		ms := time.Duration(rec.T - first).Milliseconds()
		fmt.Fprintf(bw, "%d\t%s\n", ms, strconv.Quote(string(rec.Data)))
		n++
	}
	if err := bw.Flush(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
