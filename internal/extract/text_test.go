package extract

import (
	"strings"
	"testing"
)

func TestText_SkipsScriptsAndStyles(t *testing.T) {
	doc := `
	<html>
	<head><title>芯片新闻</title><style>p { color: red }</style></head>
	<body>
		<script>var 台积电 = 1;</script>
		<p>台积电宣布其3nm制程技术取得重大突破</p>
		<noscript>请启用脚本</noscript>
	</body>
	</html>
	`

	text, err := Text(doc)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !strings.Contains(text, "台积电宣布其3nm制程技术取得重大突破") {
		t.Errorf("Expected paragraph text, got %q", text)
	}
	if !strings.Contains(text, "芯片新闻") {
		t.Errorf("Expected title text, got %q", text)
	}
	if strings.Contains(text, "var") || strings.Contains(text, "color") || strings.Contains(text, "请启用脚本") {
		t.Errorf("Expected script, style and noscript to be dropped, got %q", text)
	}
}

func TestText_SeparatesBlocks(t *testing.T) {
	text, err := Text(`<p>芯片</p><p>制程</p>`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if strings.Contains(text, "芯片制程") {
		t.Errorf("Expected paragraphs to stay apart, got %q", text)
	}
	if text != "芯片\n制程" {
		t.Errorf("Expected %q, got %q", "芯片\n制程", text)
	}
}

func TestText_InlineMarkupKeepsWordsWhole(t *testing.T) {
	text, err := Text(`<p>台积<b>电</b>的 <a href="#">3nm</a>   制程</p>`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != "台积电的 3nm 制程" {
		t.Errorf("Expected %q, got %q", "台积电的 3nm 制程", text)
	}
}

func TestText_PlainTextPassesThrough(t *testing.T) {
	text, err := Text("GDP增长5%")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != "GDP增长5%" {
		t.Errorf("Expected plain text unchanged, got %q", text)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	cases := map[string]bool{
		"<p>芯片</p>":            true,
		"<!DOCTYPE html><html>": true,
		"a < b and c > d":       false,
		"3 <5nm":                false,
		"plain text":            false,
		"ends with <":           false,
	}
	for in, want := range cases {
		if got := LooksLikeHTML(in); got != want {
			t.Errorf("LooksLikeHTML(%q) = %v, want %v", in, got, want)
		}
	}
}
