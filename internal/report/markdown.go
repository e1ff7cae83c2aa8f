package report

import (
	"fmt"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/psibatch/pkg/models"
	"golang.org/x/net/html"
)

// CleanHTML strips presentation-only elements and attributes so the
// dashboard converts to plain tables.
func CleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find("head, script, style, link, meta, noscript, svg").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		node := s.Nodes[0]
		var kept []html.Attribute
		for _, attr := range node.Attr {
			if node.Data == "a" && (attr.Key == "href" || attr.Key == "title") {
				kept = append(kept, attr)
			}
		}
		node.Attr = kept
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RenderMarkdown converts a rendered dashboard to GitHub-flavored Markdown.
func RenderMarkdown(dashboardHTML string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	// Links collapse to their text.
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			text := strings.TrimSpace(selec.Text())
			return &text
		},
	})

	cleaned, err := CleanHTML(dashboardHTML)
	if err != nil {
		return "", fmt.Errorf("clean dashboard: %w", err)
	}
	return converter.ConvertString(cleaned)
}

// WriteMarkdown writes the Markdown form of the dashboard for run to path.
func WriteMarkdown(run *models.BatchRun, path string) error {
	page, err := RenderHTML(run)
	if err != nil {
		return err
	}
	out, err := RenderMarkdown(page)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out+"\n"), 0644)
}
