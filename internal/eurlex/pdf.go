package eurlex

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// FetchDocumentText downloads the PDF rendition of a document and
// extracts its plain text. Listings often carry only an excerpt; the
// PDF is the reliable source for full-text matching.
func (c *Client) FetchDocumentText(ctx context.Context, celex string) (string, error) {
	rawURL := fmt.Sprintf("%s/legal-content/EN/TXT/PDF/?uri=CELEX:%s", strings.TrimRight(c.cfg.EURLexBaseURL, "/"), celex)
	body, err := c.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return extractPDFText(body)
}

func extractPDFText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
