// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Settings: {
	name:      string
	workers:   int & >0
	shallow?:  bool
	patterns?: [...string]
}
`

type settings struct {
	Name     string   `json:"name"`
	Workers  int      `json:"workers"`
	Shallow  bool     `json:"shallow,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		opts    []Option
		wantErr string
	}{
		{name: "valid", data: "name: \"web\"\nworkers: 4\nshallow: true\npatterns: [\"*.md\"]\n"},
		{name: "optional fields omitted", data: "name: \"web\"\nworkers: 1\n"},
		{name: "wrong type", data: "name: \"web\"\nworkers: \"four\"\n", wantErr: "workers"},
		{name: "constraint violated", data: "name: \"web\"\nworkers: 0\n", wantErr: "workers"},
		{name: "missing required field", data: "name: \"web\"\n", wantErr: "settings.cue"},
		{name: "syntax error", data: "name: \"web\n", wantErr: "settings.cue"},
		{name: "too large", data: "name: \"web\"\nworkers: 1\n", opts: []Option{WithMaxFileSize(4)}, wantErr: "exceeds maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := append([]Option{WithFilename("settings.cue")}, tt.opts...)
			res, err := ParseAndDecode[settings]([]byte(testSchema), []byte(tt.data), "#Settings", opts...)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAndDecode: %v", err)
			}
			if res.Value.Name != "web" || res.Value.Workers == 0 {
				t.Errorf("decoded %+v", res.Value)
			}
		})
	}
}

func TestParseAndDecode_NonConcreteMap(t *testing.T) {
	t.Parallel()

	const optional = `#Settings: {name?: string, shallow?: bool}`
	res, err := ParseAndDecode[map[string]any]([]byte(optional), []byte(`shallow: true`), "#Settings", WithConcrete(false))
	if err != nil {
		t.Fatalf("ParseAndDecode: %v", err)
	}
	if (*res.Value)["shallow"] != true {
		t.Errorf("decoded %v", *res.Value)
	}
	if _, ok := (*res.Value)["name"]; ok {
		t.Error("unset fields must not be decoded")
	}
}

func TestParseAndDecode_UnknownDefinition(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[settings]([]byte(testSchema), []byte(`name: "x"`), "#Missing")
	if err == nil || !strings.Contains(err.Error(), "#Missing") {
		t.Errorf("expected missing definition error, got %v", err)
	}
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "x.cue") != nil {
		t.Error("nil error must stay nil")
	}

	err := FormatError(errors.New("boom"), "x.cue")
	if err == nil || err.Error() != "x.cue: boom" {
		t.Errorf("FormatError = %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"ui"}, "ui"},
		{[]string{"ui", "color_scheme"}, "ui.color_scheme"},
		{[]string{"layout", "categories", "1"}, "layout.categories[1]"},
		{[]string{"materialize", "exclude", "0", "x", "2"}, "materialize.exclude[0].x[2]"},
		{[]string{"0"}, "0"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize([]byte("abc"), 3, "f"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckFileSize([]byte("abcd"), 3, "f"); err == nil {
		t.Error("expected size error")
	}
}
