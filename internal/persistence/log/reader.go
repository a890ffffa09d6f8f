package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/engine"
)

// EventFiles lists the event log files under dir in chronological order.
func EventFiles(dir string) ([]string, error) { return listFiles(dir, "events") }

// TraceFiles lists the trace files under dir in chronological order.
func TraceFiles(dir string) ([]string, error) { return listFiles(dir, "trace") }

func listFiles(dir, prefix string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	// Hour stamps sort lexically.
	sort.Strings(files)
	return files, nil
}

// ReadEvents streams every event in the given files to fn, stopping at the
// first error fn returns.
func ReadEvents(files []string, fn func(protocol.Event) error) error {
	for _, path := range files {
		if err := readFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

// ReadEvaluations streams traced evaluations the same way.
func ReadEvaluations(files []string, fn func(engine.Evaluation) error) error {
	for _, path := range files {
		if err := readFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func readFile[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev T
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return sc.Err()
}
