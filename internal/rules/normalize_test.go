package rules

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercase", "TSMC Announces", "tsmc announces"},
		{"full width", "ＴＳＭＣ　３ｎｍ", "tsmc 3nm"},
		{"zero width removed", "芯\u200b片", "芯片"},
		{"bom removed", "\ufeffchip", "chip"},
		{"whitespace collapsed", "  a\t\tb\n\nc  ", "a b c"},
		{"control removed", "a\x00b\x07c", "abc"},
		{"punctuation kept", "C++ and 5G!", "c++ and 5g!"},
		{"cjk untouched", "台积电宣布其3nm制程技术", "台积电宣布其3nm制程技术"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "  ＡＩ\u200d Chips\t芯片组 "
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Errorf("Normalize not idempotent: %q then %q", once, twice)
	}
}
