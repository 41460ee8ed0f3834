package presets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BoxResin/HttpRequester/pkg/requester"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write presets file: %v", err)
	}
	return path
}

func TestLoadPresetsYAML(t *testing.T) {
	path := writeFile(t, "requests.yaml", `
requests:
  - id: dictionary
    address: http://dic.example/search
    method: post
    body: query=a
    timeout_ms: 3000
  - id: health
    address: http://localhost:8080/health
  - id: disabled
    address: http://localhost:8080/x
    enabled: false
`)

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(reg.All()); got != 3 {
		t.Fatalf("expected 3 presets, got %d", got)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "dictionary" || enabled[1].ID != "health" {
		t.Fatalf("unexpected enabled presets %+v", enabled)
	}

	p, ok := reg.ByID("dictionary")
	if !ok {
		t.Fatalf("expected dictionary preset")
	}
	spec := p.Spec()
	if spec.Method != requester.MethodPost || spec.Body != "query=a" || spec.Timeout != 3*time.Second {
		t.Fatalf("unexpected spec %+v", spec)
	}

	health, _ := reg.ByID("health")
	if health.Spec().Method != requester.MethodGet || health.Spec().Timeout != 0 {
		t.Fatalf("expected GET with no timeout, got %+v", health.Spec())
	}
}

func TestLoadPresetsJSON(t *testing.T) {
	path := writeFile(t, "requests.json", `{"requests":[{"id":"a","address":"http://a.test","method":"GET"}]}`)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := reg.ByID("a"); !ok {
		t.Fatalf("expected preset a")
	}
}

func TestParseRejectsInvalidPresets(t *testing.T) {
	cases := map[string]string{
		"duplicate": "requests:\n  - {id: a, address: http://a}\n  - {id: a, address: http://b}\n",
		"no id":     "requests:\n  - {address: http://a}\n",
		"no addr":   "requests:\n  - {id: a}\n",
		"method":    "requests:\n  - {id: a, address: http://a, method: PUT}\n",
		"timeout":   "requests:\n  - {id: a, address: http://a, timeout_ms: -1}\n",
		"empty":     "requests: []\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(content), ".yaml"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
