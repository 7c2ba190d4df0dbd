package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/validate"
)

// JSONLZstdWriter appends JSON lines to hourly rotated zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Files lists the rotated files for prefix under dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, prefix+"-") && strings.HasSuffix(n, ".jsonl.zst") {
			out = append(out, filepath.Join(dir, n))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadJSONLZstd decodes every line of a rotated file. Appended sessions are
// separate zstd frames, which the decoder concatenates.
func ReadJSONLZstd[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []T
	jd := json.NewDecoder(dec)
	jd.UseNumber()
	for {
		var v T
		if err := jd.Decode(&v); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// TrajectoryLogger records every engine step (compressed).
type TrajectoryLogger struct{ w *JSONLZstdWriter }

func NewTrajectoryLogger(dataDir string) *TrajectoryLogger {
	return &TrajectoryLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "trajectories"), "steps")}
}

func (l *TrajectoryLogger) WriteStep(v engine.StepRecord) error { return l.w.Write(v) }
func (l *TrajectoryLogger) Close() error                        { return l.w.Close() }

// ReportEntry is one validation outcome, accepted or not.
type ReportEntry struct {
	WorldID string          `json:"world_id"`
	Env     string          `json:"env"`
	Seed    int64           `json:"seed"`
	Attempt int             `json:"attempt"`
	Report  validate.Report `json:"report"`
}

// ReportLogger writes validation reports (compressed).
type ReportLogger struct{ w *JSONLZstdWriter }

func NewReportLogger(dataDir string) *ReportLogger {
	return &ReportLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "reports"), "reports")}
}

func (l *ReportLogger) WriteReport(v ReportEntry) error { return l.w.Write(v) }
func (l *ReportLogger) Close() error                   { return l.w.Close() }

// MultiSink fans a step out to several sinks, stopping at the first error.
type MultiSink []engine.StepSink

func (m MultiSink) WriteStep(rec engine.StepRecord) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.WriteStep(rec); err != nil {
			return err
		}
	}
	return nil
}
