package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/store"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		format  string
		content string
		want    string
	}{
		{model.ContentText, "<p>台积电</p>", "<p>台积电</p>"},
		{"", "<p>台积电</p>", "<p>台积电</p>"},
		{model.ContentHTML, "<p>台积电</p><script>银行</script>", "台积电"},
		{model.ContentAuto, "<p>台积电</p>", "台积电"},
		{model.ContentAuto, "3 < 5nm", "3 < 5nm"},
	}

	for _, tt := range tests {
		got, err := PlainText(tt.format, tt.content)
		if err != nil {
			t.Fatalf("PlainText(%q, %q) error: %v", tt.format, tt.content, err)
		}
		if got != tt.want {
			t.Errorf("PlainText(%q, %q) = %q, want %q", tt.format, tt.content, got, tt.want)
		}
	}
}

func TestNewPipeline_RejectsUnknownContentFormat(t *testing.T) {
	_, err := NewPipeline(testSnapshot(t, testDefinitions()), Options{
		Matching:      model.DefaultMainConfig().Matching,
		ContentFormat: "markdown",
	})

	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestRunBatch_HTMLContent(t *testing.T) {
	st := store.NewMemoryStore(0, nil)
	st.Add(
		model.Item{ID: "001", Content: "<article><h1>" + tsmcNews + "</h1><script>var gdp = 1</script></article>"},
		model.Item{ID: "002", Content: "<div><script>台积电</script></div>"},
		model.Item{ID: "003", Content: "银行与证券公司推出新基金"},
	)
	p := newTestPipeline(t, st, Options{ContentFormat: model.ContentAuto})

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if labels, _ := st.Labels("001"); !reflect.DeepEqual(labels, []string{"semiconductor"}) {
		t.Errorf("item 001 labels = %v, want [semiconductor]", labels)
	}
	if labels, _ := st.Labels("003"); !reflect.DeepEqual(labels, []string{"finance"}) {
		t.Errorf("item 003 labels = %v, want [finance]", labels)
	}
	if _, ok := st.Labels("002"); ok {
		t.Error("markup without visible text must not be written")
	}
	if report.Stats.Errors != 1 || report.Errors[0].ItemID != "002" || report.Errors[0].Kind != "content" {
		t.Errorf("unexpected errors %+v", report.Errors)
	}
}
