package series

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// episodeMarkdown renders episode content. Raw HTML in the source is omitted.
var episodeMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderedEpisode is an unlocked Episode with its content converted to HTML.
type RenderedEpisode struct {
	Episode
	ContentHTML string `json:"content_html"`
}

// RenderContent converts markdown episode content to HTML.
func RenderContent(source string) (string, error) {
	var buf bytes.Buffer
	if err := episodeMarkdown.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
