package msiec

import (
	"strings"
	"testing"
)

func TestFirmwareDateDesc_Decode(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		clock    string
		expected string
		wantErr  string
	}{
		{
			name:     "日付と時刻を整形する",
			date:     "03152024",
			clock:    "14:05:09",
			expected: "2024/03/15 14:05:09",
		},
		{
			name:     "一桁の値もゼロ埋めされる",
			date:     "01022023",
			clock:    "00:00:01",
			expected: "2023/01/02 00:00:01",
		},
		{
			name:    "日付に数字以外があるとエラー",
			date:    "03x52024",
			clock:   "14:05:09",
			wantErr: "malformed firmware date",
		},
		{
			name:    "時刻に数字以外があるとエラー",
			date:    "03152024",
			clock:   "14:0x:09",
			wantErr: "malformed firmware time",
		},
		{
			name:    "時刻の区切りが無いとエラー",
			date:    "03152024",
			clock:   "14 05 09",
			wantErr: "malformed firmware time",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := append([]byte(tt.date), []byte(tt.clock)...)
			got, err := FirmwareDateDesc{}.Decode(raw)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Decode(%q+%q) should fail", tt.date, tt.clock)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q should mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q+%q) error: %v", tt.date, tt.clock, err)
			}
			if got != tt.expected {
				t.Errorf("Decode(%q+%q) = %q, want %q", tt.date, tt.clock, got, tt.expected)
			}
		})
	}
}
