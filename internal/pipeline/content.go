package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/industria/internal/extract"
	"github.com/ppiankov/industria/internal/model"
)

func validContentFormat(format string) error {
	switch format {
	case "", model.ContentText, model.ContentHTML, model.ContentAuto:
		return nil
	}
	return &model.ConfigError{
		Source: "store.content_format",
		Reason: fmt.Sprintf("unknown content format %q (want text, html or auto)", format),
	}
}

// PlainText returns the text the matcher should scan for content stored
// in the given format
func PlainText(format, content string) (string, error) {
	switch format {
	case model.ContentHTML:
		return extract.Text(content)
	case model.ContentAuto:
		if extract.LooksLikeHTML(content) {
			return extract.Text(content)
		}
	}
	return content, nil
}

// itemText extracts the scannable text of an item. Markup with no visible
// text is a content error, like an empty item.
func itemText(format string, item model.Item) (string, error) {
	text, err := PlainText(format, item.Content)
	if err != nil {
		return "", &model.ContentError{ItemID: item.ID, Reason: err.Error()}
	}
	if strings.TrimSpace(text) == "" {
		return "", &model.ContentError{ItemID: item.ID, Reason: "no visible text"}
	}
	return text, nil
}
