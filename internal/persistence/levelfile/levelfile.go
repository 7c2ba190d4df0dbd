// Package levelfile reads and writes serialized level states. The format is
// chosen by extension: .yaml/.yml, .json, or .json.zst (a JSON header line
// followed by the JSON state, zstd-compressed).
package levelfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"envforge.ai/internal/sim/state"
)

const Version = 1

const (
	ExtZst  = ".json.zst"
	ExtJSON = ".json"
	ExtYAML = ".yaml"
	ExtYML  = ".yml"
)

// Extensions in lookup order.
var Extensions = []string{ExtZst, ExtJSON, ExtYAML, ExtYML}

var ErrDigestMismatch = errors.New("levelfile: digest mismatch")

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Env     string `json:"env"`
	Digest  string `json:"digest"`
}

type Level struct {
	Header Header
	State  *state.State
}

func ext(path string) string {
	for _, e := range Extensions {
		if strings.HasSuffix(path, e) {
			return e
		}
	}
	return ""
}

func IsLevelFile(name string) bool { return ext(name) != "" }

// WorldID is the file name without directory and level extension.
func WorldID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, ext(base))
}

func Write(path, worldID string, st *state.State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var body []byte
	var err error
	switch ext(path) {
	case ExtZst:
		body, err = encodeZst(worldID, st)
	case ExtJSON:
		var buf bytes.Buffer
		if err = json.Indent(&buf, st.Canonical(), "", "  "); err == nil {
			buf.WriteByte('\n')
			body = buf.Bytes()
		}
	case ExtYAML, ExtYML:
		body, err = yaml.Marshal(st)
	default:
		return fmt.Errorf("levelfile: unsupported extension: %s", path)
	}
	if err != nil {
		return fmt.Errorf("levelfile: encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func encodeZst(worldID string, st *state.State) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	env, _ := st.String(state.NSGlobals, state.KeyEnv)
	hb, _ := json.Marshal(Header{Version: Version, WorldID: worldID, Env: env, Digest: st.Digest()})
	bw := bufio.NewWriter(enc)
	bw.Write(hb)
	bw.WriteByte('\n')
	bw.Write(st.Canonical())
	if err := bw.Flush(); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read loads a level. Files without an embedded header get one derived from
// the file name and the state.
func Read(path string) (Level, error) {
	var lv Level
	e := ext(path)
	if e == "" {
		return lv, fmt.Errorf("levelfile: unsupported extension: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return lv, err
	}
	defer f.Close()

	st := state.New()
	switch e {
	case ExtZst:
		return readZst(f)
	case ExtJSON:
		raw, err := io.ReadAll(f)
		if err != nil {
			return lv, err
		}
		if err := json.Unmarshal(raw, st); err != nil {
			return lv, fmt.Errorf("levelfile: decode %s: %w", path, err)
		}
	default:
		if err := yaml.NewDecoder(f).Decode(st); err != nil {
			return lv, fmt.Errorf("levelfile: decode %s: %w", path, err)
		}
	}
	env, _ := st.String(state.NSGlobals, state.KeyEnv)
	lv.Header = Header{Version: Version, WorldID: WorldID(path), Env: env, Digest: st.Digest()}
	lv.State = st
	return lv, nil
}

func readZst(r io.Reader) (Level, error) {
	var lv Level
	dec, err := zstd.NewReader(r)
	if err != nil {
		return lv, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return lv, fmt.Errorf("levelfile: read header: %w", err)
	}
	if err := json.Unmarshal(line, &lv.Header); err != nil {
		return lv, fmt.Errorf("levelfile: decode header: %w", err)
	}
	if lv.Header.Version != Version {
		return lv, fmt.Errorf("levelfile: unsupported version %d", lv.Header.Version)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return lv, err
	}
	st := state.New()
	if err := json.Unmarshal(body, st); err != nil {
		return lv, fmt.Errorf("levelfile: decode state: %w", err)
	}
	if lv.Header.Digest != "" && st.Digest() != lv.Header.Digest {
		return lv, fmt.Errorf("%w: header %s, state %s", ErrDigestMismatch, lv.Header.Digest, st.Digest())
	}
	lv.State = st
	return lv, nil
}
