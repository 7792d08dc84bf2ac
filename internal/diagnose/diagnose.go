// Package diagnose reads validation feedback out of an entry-form snapshot so
// a failed row can say why the form refused it.
package diagnose

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// messageSelector matches the validation markup of unobtrusive MVC
// validation and Bootstrap forms.
var messageSelector = strings.Join([]string{
	".field-validation-error",
	".validation-summary-errors li",
	".invalid-feedback",
	".text-danger",
	".alert-danger",
}, ", ")

const hiddenSelector = `[hidden], [style*="display:none"], [style*="display: none"], .d-none`

// Messages returns the distinct, visible validation messages in document
// order. Containers whose messages are matched individually are skipped.
func Messages(html string) ([]string, error) {
	if strings.TrimSpace(html) == "" {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	var out []string
	seen := make(map[string]bool)
	doc.Find(messageSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(messageSelector).Length() > 0 {
			return
		}
		if s.Closest(hiddenSelector).Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		out = append(out, text)
	})
	return out, nil
}
