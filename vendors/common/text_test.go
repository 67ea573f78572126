package common

import (
	"reflect"
	"testing"
)

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"no ANSI codes", "Phase state: working", "Phase state: working"},
		{"red text", "\x1b[31mError\x1b[0m", "Error"},
		{"cursor movement", "\x1b[2J\x1b[HZXAN#", "ZXAN#"},
		{"private mode", "\x1b[?25lOLT#", "OLT#"},
		{"OLT pager residue", "\x1b[0mZXAN#\x1b[K show gpon onu by sn", "ZXAN# show gpon onu by sn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripANSI(tt.input)
			if got != tt.want {
				t.Errorf("StripANSI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Rx power : -21.3", "Rx power : -21.3"},
		{"crlf", "line1\r\nline2\r\n", "line1\nline2\n"},
		{"bare cr", "a\rb", "a\nb"},
		{"invalid utf8 dropped", "Rx\xffpower", "Rxpower"},
		{"nul and bell dropped", "OLT\x00#\x07", "OLT#"},
		{"tab kept", "a\tb", "a\tb"},
		{"ansi stripped", "\x1b[1mName\x1b[0m: x", "Name: x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeOutput(tt.input); got != tt.want {
				t.Errorf("DecodeOutput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLines(t *testing.T) {
	got := Lines("a  \nb\t\n c")
	want := []string{"a", "b", " c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
}
