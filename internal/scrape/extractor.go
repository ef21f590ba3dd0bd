package scrape

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/musicpricehub/backend/internal/catalog"
)

// ErrPageStructureUnrecognized indicates that none of a retailer's selectors
// matched; the page yielded no usable fields at all. A missing optional
// field on an otherwise recognized page is not an error.
var ErrPageStructureUnrecognized = errors.New("scrape: page structure unrecognized")

// Extractor parses one retailer's product page into a flat field set.
// Implementations are store specific.
type Extractor interface {
	// Extract pulls the product fields out of rendered HTML. Fields whose
	// selector does not match stay nil; when nothing matches at all the
	// error is ErrPageStructureUnrecognized.
	Extract(html, sourceURL string) (catalog.ScrapedFields, error)
}

// FenderExtractor reads the guitar store's product-detail template.
type FenderExtractor struct{}

// NewFenderExtractor constructs the extractor for the Fender store template.
func NewFenderExtractor() *FenderExtractor {
	return &FenderExtractor{}
}

// Extract applies the product-detail selectors to the document.
func (e *FenderExtractor) Extract(html, sourceURL string) (catalog.ScrapedFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return catalog.ScrapedFields{}, fmt.Errorf("%w: %v", ErrPageStructureUnrecognized, err)
	}

	fields := catalog.ScrapedFields{
		SourceURL:    sourceURL,
		DefaultBrand: "Fender",
	}

	if name := selectText(doc, ".product-name h1"); name != "" {
		fields.Name = &name
	}
	if price := selectText(doc, ".price-box .price"); price != "" {
		price = strings.ReplaceAll(price, "\u00a0", " ")
		fields.PriceText = &price
	}
	if src, ok := doc.Find(".product-image img").First().Attr("src"); ok && src != "" {
		fields.ImageURL = &src
	}
	if desc := selectJoinedText(doc, ".short-description .std"); desc != "" {
		fields.Description = &desc
	}

	if fields.Empty() {
		return catalog.ScrapedFields{}, fmt.Errorf("%w: %s", ErrPageStructureUnrecognized, sourceURL)
	}
	return fields, nil
}

func selectText(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}

// selectJoinedText collapses the selection's text nodes into one
// space-separated string, for description blocks with nested markup.
func selectJoinedText(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	parts := strings.Fields(sel.Text())
	return strings.Join(parts, " ")
}
