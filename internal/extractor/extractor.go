package extractor

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/model"
	"github.com/PuerkitoBio/goquery"
)

// cardFallbacks are tried in order when the configured card selector matches
// nothing. The site is a Webflow collection and has changed classes before.
var cardFallbacks = []string{"div.tool-card", "div.tool-item", "div.collection-item", "article"}

var pricingKeywords = []struct {
	keyword string
	label   string
}{
	{"paid", "Paid"},
	{"freemium", "Freemium"},
	{"open source", "Open Source"},
	{"github", "GitHub"},
	{"google colab", "Google Colab"},
}

type Extractor struct {
	sel     *config.SelectorConfig
	baseURL string
	log     *slog.Logger
}

func NewExtractor(sel *config.SelectorConfig, baseURL string, log *slog.Logger) *Extractor {
	return &Extractor{sel: sel, baseURL: baseURL, log: log}
}

// Extract parses one rendered snapshot into tool records. Cards without a
// name or a tool link are skipped. A non-empty snapshot that produces zero
// records means the site markup no longer matches the selector set.
func (e *Extractor) Extract(snapshot string, markRecent bool) ([]model.Tool, error) {
	if strings.TrimSpace(snapshot) == "" {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrExtractionSchemaChanged, err.Error())
	}

	cards := doc.Find(e.sel.Card)
	for _, fallback := range cardFallbacks {
		if cards.Length() > 0 {
			break
		}
		cards = doc.Find(fallback)
	}
	if cards.Length() == 0 {
		return nil, fmt.Errorf("%w: no tool cards found in snapshot", model.ErrExtractionSchemaChanged)
	}

	tools := make([]model.Tool, 0, cards.Length())
	now := time.Now()
	cards.Each(func(_ int, card *goquery.Selection) {
		tool, ok := e.parseCard(card, markRecent, now)
		if !ok {
			return
		}
		tools = append(tools, tool)
	})
	if len(tools) == 0 {
		return nil, fmt.Errorf("%w: %d cards matched but none parsed", model.ErrExtractionSchemaChanged,
			cards.Length())
	}
	e.log.Debug("snapshot parsed.", slog.Int("cards", cards.Length()), slog.Int("records", len(tools)))

	return tools, nil
}

func (e *Extractor) parseCard(card *goquery.Selection, markRecent bool, now time.Time) (model.Tool, bool) {
	tool := model.Tool{AddedRecently: markRecent, ScrapedAt: now}

	tool.Name = e.extractName(card)
	if tool.Name == "" {
		e.log.Debug("skip card without a name.")
		return tool, false
	}
	tool.URL = e.extractURL(card)
	if tool.URL == "" {
		e.log.Debug("skip card without a tool link.", slog.String("name", tool.Name))
		return tool, false
	}
	tool.Description = strings.TrimSpace(card.Find(e.sel.DescriptionBox).First().Text())
	tool.Categories = e.extractCategories(card)
	tool.Pricing = extractPricing(card)

	return tool, true
}

func (e *Extractor) extractName(card *goquery.Selection) string {
	name := ""
	card.Find(e.sel.NameLink).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		class, _ := link.Attr("class")
		if e.sel.NameLinkExclude != "" && strings.Contains(class, e.sel.NameLinkExclude) {
			return true
		}
		name = strings.TrimSpace(link.Text())
		return name == ""
	})
	if name == "" {
		name = strings.TrimSpace(card.Find("h3").First().Text())
	}
	if name == "" {
		name = strings.TrimSpace(card.Find("h2").First().Text())
	}

	return name
}

func (e *Extractor) extractURL(card *goquery.Selection) string {
	link := card.Find(fmt.Sprintf("a[href^=%q]", e.sel.ToolLinkPrefix)).First()
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return ""
	}

	return e.baseURL + href
}

func (e *Extractor) extractCategories(card *goquery.Selection) []string {
	var categories []string
	seen := make(map[string]struct{})
	appendCategory := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" || text == "category" {
			return
		}
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		categories = append(categories, text)
	}

	container := card.Find(e.sel.CategoryContainer)
	for _, textSel := range e.sel.CategoryText {
		container.Find(textSel).Each(func(_ int, div *goquery.Selection) {
			appendCategory(div.Text())
		})
		if len(categories) > 0 {
			break
		}
	}
	if len(categories) == 0 {
		// Tag links carry the category name when the text blocks are absent.
		card.Find(fmt.Sprintf("a[href*=%q]", e.sel.TagLinkMarker)).Each(func(_ int, link *goquery.Selection) {
			appendCategory(link.Text())
		})
	}

	return categories
}

// extractPricing scans the card text for pricing labels. The listing page
// rarely shows pricing; tool detail pages are not visited.
func extractPricing(card *goquery.Selection) []string {
	text := strings.ToLower(card.Text())
	var pricing []string
	for _, kw := range pricingKeywords {
		if strings.Contains(text, kw.keyword) {
			pricing = append(pricing, kw.label)
		}
	}
	if len(pricing) == 0 && strings.Contains(text, "free") && !strings.Contains(text, "free trial") {
		pricing = append(pricing, "Free")
	}

	return pricing
}
