// Package presets loads named request definitions from YAML/JSON files.
package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BoxResin/HttpRequester/pkg/requester"
	"gopkg.in/yaml.v3"
)

// Preset is a single named request.
type Preset struct {
	ID        string `json:"id" yaml:"id"`
	Address   string `json:"address" yaml:"address"`
	Method    string `json:"method" yaml:"method"`
	Body      string `json:"body" yaml:"body"`
	TimeoutMs int    `json:"timeout_ms" yaml:"timeout_ms"`
	Enabled   *bool  `json:"enabled" yaml:"enabled"`
}

type file struct {
	Requests []Preset `json:"requests" yaml:"requests"`
}

// Registry holds presets in file order.
type Registry struct {
	mu      sync.RWMutex
	presets []Preset
	idx     map[string]Preset
}

// Load reads the presets registry from a YAML/JSON file.
func Load(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("presets file path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open presets file: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	return Parse(raw, filepath.Ext(path))
}

// Parse decodes presets from raw file content. ext selects the decoder; an
// empty ext tries YAML then JSON.
func Parse(data []byte, ext string) (*Registry, error) {
	decoded, err := decode(data, ext)
	if err != nil {
		return nil, err
	}
	if len(decoded.Requests) == 0 {
		return nil, errors.New("presets file contains no requests entries")
	}

	reg := &Registry{
		presets: make([]Preset, len(decoded.Requests)),
		idx:     make(map[string]Preset, len(decoded.Requests)),
	}
	for i := range decoded.Requests {
		p := sanitize(decoded.Requests[i])
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		if _, exists := reg.idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate request id %q", p.ID)
		}
		reg.presets[i] = p
		reg.idx[p.ID] = p
	}
	return reg, nil
}

func decode(data []byte, ext string) (file, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var out file
		if err := d.fn(data, &out); err == nil {
			return out, nil
		}
	}
	return file{}, errors.New("presets file format not recognized (expected YAML or JSON)")
}

func sanitize(p Preset) Preset {
	p.ID = strings.TrimSpace(p.ID)
	p.Address = strings.TrimSpace(p.Address)
	p.Method = strings.ToUpper(strings.TrimSpace(p.Method))
	if p.Method == "" {
		p.Method = string(requester.MethodGet)
	}
	if p.Enabled == nil {
		def := true
		p.Enabled = &def
	}
	return p
}

func validate(p Preset) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Address == "" {
		return fmt.Errorf("address is required for request %q", p.ID)
	}
	switch requester.Method(p.Method) {
	case requester.MethodGet, requester.MethodPost:
	default:
		return fmt.Errorf("unsupported method %q for request %q", p.Method, p.ID)
	}
	if p.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative for request %q", p.ID)
	}
	return nil
}

// Spec converts the preset into a requester.Spec.
func (p Preset) Spec() requester.Spec {
	return requester.Spec{
		Method:  requester.Method(p.Method),
		Body:    p.Body,
		Timeout: time.Duration(p.TimeoutMs) * time.Millisecond,
	}
}

// EnabledValue returns enabled flag defaulting to true.
func (p Preset) EnabledValue() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// ByID returns the preset with the given id.
func (r *Registry) ByID(id string) (Preset, bool) {
	if r == nil {
		return Preset{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.idx[strings.TrimSpace(id)]
	return p, ok
}

// All returns every preset in file order.
func (r *Registry) All() []Preset {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Preset, len(r.presets))
	copy(out, r.presets)
	return out
}

// Enabled returns enabled presets in file order.
func (r *Registry) Enabled() []Preset {
	all := r.All()
	out := make([]Preset, 0, len(all))
	for _, p := range all {
		if p.EnabledValue() {
			out = append(out, p)
		}
	}
	return out
}
