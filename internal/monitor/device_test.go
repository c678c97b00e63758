package monitor

import "testing"

func TestSelectDevice(t *testing.T) {
	tests := []struct {
		pref        string
		accelerator bool
		want        string
		wantErr     bool
	}{
		{"auto", false, "cpu", false},
		{"auto", true, "cuda", false},
		{"", true, "cuda", false},
		{"cpu", true, "cpu", false},
		{"cuda", true, "cuda", false},
		{"cuda", false, "", true},
		{"tpu", true, "", true},
	}

	for _, tt := range tests {
		got, err := SelectDevice(tt.pref, tt.accelerator)
		if (err != nil) != tt.wantErr {
			t.Errorf("SelectDevice(%q, %v) error = %v, wantErr %v", tt.pref, tt.accelerator, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SelectDevice(%q, %v) = %q, want %q", tt.pref, tt.accelerator, got, tt.want)
		}
	}
}
