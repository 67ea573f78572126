package zte

import (
	"errors"
	"testing"
	"time"

	"github.com/nanoncore/nano-onulocator/types"
)

func TestParseInterface(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantPort  string
		wantIndex string
		wantErr   bool
	}{
		{"standard", "gpon-onu_1/2/1:5", "1/2/1", "5", false},
		{"two_level_port", "gpon-onu_1/16:128", "1/16", "128", false},
		{"surrounding_space", " gpon-onu_1/1/1:1 ", "1/1/1", "1", false},
		{"olt_interface", "gpon-olt_1/2/1", "", "", true},
		{"missing_index", "gpon-onu_1/2/1", "", "", true},
		{"non_numeric", "gpon-onu_a/b/c:d", "", "", true},
		{"injection", "gpon-onu_1/2/1:5\nno onu 6", "", "", true},
		{"empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInterface(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInterface(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, types.ErrInvalidInterface) {
					t.Errorf("error %v does not wrap ErrInvalidInterface", err)
				}
				return
			}
			if got.Port != tt.wantPort || got.Index != tt.wantIndex {
				t.Errorf("ParseInterface(%q) = %+v, want port %q index %q", tt.input, got, tt.wantPort, tt.wantIndex)
			}
		})
	}
}

func TestONUInterfaceForms(t *testing.T) {
	i := ONUInterface{Port: "1/2/1", Index: "5"}
	if i.String() != "gpon-onu_1/2/1:5" {
		t.Errorf("String() = %q", i.String())
	}
	if i.Short() != "1/2/1:5" {
		t.Errorf("Short() = %q", i.Short())
	}
	if i.OLT() != "gpon-olt_1/2/1" {
		t.Errorf("OLT() = %q", i.OLT())
	}
}

func TestOLTInterface(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gpon-onu_1/2/1:5", "gpon-olt_1/2/1"},
		{"gpon-onu_1/1/16:128", "gpon-olt_1/1/16"},
		{"gpon-olt_1/2/1", "gpon-olt_1/2/1"},
	}
	for _, tt := range tests {
		if got := OLTInterface(tt.input); got != tt.expected {
			t.Errorf("OLTInterface(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
	if got := ShortInterface("gpon-onu_1/2/1:5"); got != "1/2/1:5" {
		t.Errorf("ShortInterface() = %q", got)
	}
}

func TestParseSearch(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantIface string
		wantLine  string
	}{
		{
			name:      "search_result_table",
			output:    "SearchResult\n-----------------\ngpon-onu_1/2/1:5",
			wantIface: "gpon-onu_1/2/1:5",
			wantLine:  "gpon-onu_1/2/1:5",
		},
		{
			name:      "token_inside_row",
			output:    "OnuIndex  Sn\n  1  gpon-onu_1/1/3:12   ZTEGC0000001  ",
			wantIface: "gpon-onu_1/1/3:12",
			wantLine:  "1  gpon-onu_1/1/3:12   ZTEGC0000001",
		},
		{
			name:      "echo_ignored",
			output:    "show gpon onu by sn ZTEGC0000001 gpon-onu_9/9/9:9\nSearchResult\ngpon-onu_1/2/1:5",
			wantIface: "gpon-onu_1/2/1:5",
			wantLine:  "gpon-onu_1/2/1:5",
		},
		{
			name:   "not_found",
			output: "%Code 32310-GPONSRV : No related information to show.",
		},
		{
			name:   "empty",
			output: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSearch(tt.output, "ZTEGC0000001")
			if tt.wantIface == "" {
				if got != nil {
					t.Errorf("ParseSearch() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ParseSearch() = nil, want a match")
			}
			if got.Interface != tt.wantIface || got.RawLine != tt.wantLine {
				t.Errorf("ParseSearch() = %+v, want interface %q line %q", got, tt.wantIface, tt.wantLine)
			}
		})
	}
}

func TestDiagnosticCommands(t *testing.T) {
	timeouts := types.Timeouts{Command: time.Second, LongCommand: 2 * time.Second}

	locate := DiagnosticCommands("gpon-onu_1/2/1:5", types.ScopeLocate, timeouts)
	wantLocate := []string{
		"show gpon onu detail-info gpon-onu_1/2/1:5",
		"show pon power onu-rx gpon-onu_1/2/1:5",
		"show pon power olt-rx gpon-onu_1/2/1:5",
	}
	if len(locate) != len(wantLocate) {
		t.Fatalf("locate batch has %d commands, want %d", len(locate), len(wantLocate))
	}
	for i, c := range locate {
		if c.Text != wantLocate[i] {
			t.Errorf("locate[%d] = %q, want %q", i, c.Text, wantLocate[i])
		}
	}
	if locate[0].Timeout != 2*time.Second {
		t.Errorf("detail-info should use the long command timeout, got %v", locate[0].Timeout)
	}

	signal := DiagnosticCommands("gpon-onu_1/2/1:5", types.ScopeSignal, timeouts)
	wantTail := []struct{ text, key string }{
		{"show pon power onu-tx gpon-onu_1/2/1:5", types.KeyONUTx},
		{"show pon power olt-tx gpon-olt_1/2/1", types.KeyOLTTx},
		{"show gpon onu state gpon-olt_1/2/1", types.KeyState},
	}
	if len(signal) != 6 {
		t.Fatalf("signal batch has %d commands, want 6", len(signal))
	}
	for i, w := range wantTail {
		c := signal[3+i]
		if c.Text != w.text || c.Key != w.key {
			t.Errorf("signal[%d] = %+v, want %q/%q", 3+i, c, w.text, w.key)
		}
	}
}

func TestRemoveCommands(t *testing.T) {
	cmds := RemoveCommands(ONUInterface{Port: "1/2/1", Index: "5"}, types.DefaultTimeouts())
	want := []string{"conf t", "interface gpon-olt_1/2/1", "no onu 5", "exit"}
	if len(cmds) != len(want) {
		t.Fatalf("got %d commands, want %d", len(cmds), len(want))
	}
	for i := range want {
		if cmds[i].Text != want[i] {
			t.Errorf("command %d = %q, want %q", i, cmds[i].Text, want[i])
		}
	}
}
