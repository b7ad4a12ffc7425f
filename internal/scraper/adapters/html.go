package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"smartshop/price-service/internal/model"
)

// HTMLAdapter scrapes a product page directly and reads the metadata the
// page publishes about itself.
type HTMLAdapter struct {
	storeName string
	client    *http.Client
	userAgent string
}

// NewHTMLAdapter returns an adapter that labels its listings with storeName.
func NewHTMLAdapter(storeName string, opts HTTPOptions) *HTMLAdapter {
	return &HTMLAdapter{
		storeName: storeName,
		client:    opts.client(),
		userAgent: opts.userAgent(),
	}
}

// FetchListing downloads link and extracts its product metadata.
func (a *HTMLAdapter) FetchListing(ctx context.Context, link string) (*model.ScrapedListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", link, err)
	}
	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	l, err := ParseProductPage(body)
	if err != nil {
		return nil, err
	}
	if l.ProductLink == "" {
		l.ProductLink = link
	}
	l.StoreName = a.storeName
	return l, nil
}

// ParseProductPage reads a product page. JSON-LD wins over microdata, which
// wins over OpenGraph; the document title is the last resort for the name.
func ParseProductPage(page []byte) (*model.ScrapedListing, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var p pageData
	p.walk(doc)

	l := &model.ScrapedListing{Attributes: map[string]string{}}
	for _, src := range []fields{p.ld, p.micro, p.og} {
		fill(&l.Title, src.name)
		fill(&l.Price, src.price)
		fill(&l.Currency, src.currency)
		fill(&l.AvailabilityText, src.availability)
		fill(&l.ImageURL, src.image)
		fill(&l.ProductLink, src.url)
		if src.color != "" && l.Attributes["color"] == "" {
			l.Attributes["color"] = src.color
		}
	}
	fill(&l.Title, p.title)
	fill(&l.ProductLink, p.canonical)

	if l.Price == "" && l.Title == "" {
		return nil, ErrNoListing
	}
	if v, ok := schemaAvailability(l.AvailabilityText); ok {
		l.Available = &v
	}
	if len(l.Attributes) == 0 {
		l.Attributes = nil
	}
	return l, nil
}

type fields struct {
	name, price, currency, availability, image, url, color string
}

type pageData struct {
	ld, micro, og fields
	title         string
	canonical     string
}

func (p *pageData) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if p.title == "" {
				p.title = strings.TrimSpace(textOf(n))
			}
		case "link":
			if attr(n, "rel") == "canonical" && p.canonical == "" {
				p.canonical = strings.TrimSpace(attr(n, "href"))
			}
		case "meta":
			p.meta(n)
		case "script":
			if strings.EqualFold(attr(n, "type"), "application/ld+json") {
				p.jsonLD(rawText(n))
			}
		}
		if prop := attr(n, "itemprop"); prop != "" {
			p.microdata(n, prop)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func (p *pageData) meta(n *html.Node) {
	key := attr(n, "property")
	if key == "" {
		key = attr(n, "name")
	}
	content := strings.TrimSpace(attr(n, "content"))
	switch strings.ToLower(key) {
	case "og:title":
		fill(&p.og.name, content)
	case "og:image":
		fill(&p.og.image, content)
	case "og:url":
		fill(&p.og.url, content)
	case "product:price:amount", "og:price:amount":
		fill(&p.og.price, content)
	case "product:price:currency", "og:price:currency":
		fill(&p.og.currency, content)
	case "product:availability", "og:availability":
		fill(&p.og.availability, content)
	case "product:color":
		fill(&p.og.color, content)
	}
}

// microdata reads schema.org itemprop values. Values live in content, href
// or src attributes, or in the element text.
func (p *pageData) microdata(n *html.Node, prop string) {
	value := attr(n, "content")
	if value == "" {
		switch n.Data {
		case "a", "link":
			value = attr(n, "href")
		case "img":
			value = attr(n, "src")
		case "meta":
		default:
			value = textOf(n)
		}
	}
	value = strings.TrimSpace(value)

	switch prop {
	case "name":
		// Only the product's own name, not nested brand or seller names.
		if !insideItemprop(n) {
			fill(&p.micro.name, value)
		}
	case "price":
		fill(&p.micro.price, value)
	case "priceCurrency":
		fill(&p.micro.currency, value)
	case "availability":
		fill(&p.micro.availability, value)
	case "image":
		fill(&p.micro.image, value)
	case "url":
		if !insideItemprop(n) {
			fill(&p.micro.url, value)
		}
	case "color":
		fill(&p.micro.color, value)
	}
}

// ldProduct is the subset of a schema.org Product read from JSON-LD.
type ldProduct struct {
	Type   json.RawMessage `json:"@type"`
	Name   string          `json:"name"`
	Color  string          `json:"color"`
	URL    string          `json:"url"`
	Image  json.RawMessage `json:"image"`
	Offers json.RawMessage `json:"offers"`
	Graph  []ldProduct     `json:"@graph"`
}

type ldOffer struct {
	Price         json.RawMessage `json:"price"`
	LowPrice      json.RawMessage `json:"lowPrice"`
	PriceCurrency string          `json:"priceCurrency"`
	Availability  string          `json:"availability"`
	URL           string          `json:"url"`
}

func (p *pageData) jsonLD(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}

	var candidates []ldProduct
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
			return
		}
	} else {
		var one ldProduct
		if err := json.Unmarshal([]byte(raw), &one); err != nil {
			return
		}
		candidates = append([]ldProduct{one}, one.Graph...)
	}

	for _, c := range candidates {
		if !hasType(c.Type, "Product") {
			continue
		}
		fill(&p.ld.name, c.Name)
		fill(&p.ld.color, c.Color)
		fill(&p.ld.url, c.URL)
		fill(&p.ld.image, firstString(c.Image))

		for _, o := range offers(c.Offers) {
			price := scalar(o.Price)
			if price == "" {
				price = scalar(o.LowPrice)
			}
			fill(&p.ld.price, price)
			fill(&p.ld.currency, o.PriceCurrency)
			fill(&p.ld.availability, o.Availability)
			fill(&p.ld.url, o.URL)
		}
		return
	}
}

func offers(raw json.RawMessage) []ldOffer {
	if len(raw) == 0 {
		return nil
	}
	var many []ldOffer
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one ldOffer
	if err := json.Unmarshal(raw, &one); err == nil {
		return []ldOffer{one}
	}
	return nil
}

// hasType accepts "@type" as a string or a list of strings.
func hasType(raw json.RawMessage, want string) bool {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return strings.EqualFold(one, want)
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, t := range many {
			if strings.EqualFold(t, want) {
				return true
			}
		}
	}
	return false
}

// scalar renders a JSON string or number as text.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func firstString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}

// schemaAvailability maps schema.org ItemAvailability values.
func schemaAvailability(v string) (bool, bool) {
	s := strings.ToLower(v)
	s = s[strings.LastIndex(s, "/")+1:]
	switch s {
	case "instock", "in stock", "limitedavailability", "onlineonly", "instoreonly", "preorder", "presale", "backorder":
		return true, true
	case "outofstock", "out of stock", "soldout", "discontinued":
		return false, true
	}
	return false, false
}

func insideItemprop(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := hasAttr(p, "itemscope"); ok {
			return attr(p, "itemprop") != ""
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	v, _ := hasAttr(n, key)
	return v
}

func hasAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func rawText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = strings.TrimSpace(v)
	}
}
