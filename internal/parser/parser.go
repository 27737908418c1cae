// Package parser decodes one XML news-feed document into a normalized
// core.Article.
package parser

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"briefly/internal/core"
)

// ErrorKind classifies why a document failed to parse.
type ErrorKind string

const (
	Malformed       ErrorKind = "malformed"
	MissingArticle  ErrorKind = "missing_article"
	MissingIdentity ErrorKind = "missing_identity"
	UnparseableDate ErrorKind = "unparseable_date"
)

// ParseError is the typed error surfaced by Parse.
type ParseError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

// dateLayouts are tried in order, matching xml_parser.py::_get_datetime.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102150405",
}

// wire structs mirror the source feed's XML shape verbatim.

type wireDoc struct {
	XMLName     xml.Name
	Action      string          `xml:"action"`
	WmsArticle  wireWmsArticle  `xml:"wms_article"`
	Body        wireBody        `xml:"wms_article_body"`
	Summary     wireSummary     `xml:"wms_article_summary"`
	ArticleURL  string          `xml:"article_url"`
	CodeClasses wireCodeClasses `xml:"wms_code_classes"`
	Images      wireImages      `xml:"wms_article_images"`
	StockCodes  string          `xml:"stock_codes"`
	Keywords    string          `xml:"wms_article_keywords"`
}

type wireWmsArticle struct {
	ArtID          string `xml:"art_id"`
	ArtYear        string `xml:"art_year"`
	ArtNo          string `xml:"art_no"`
	Gubun          string `xml:"gubun"`
	ServiceDaytime string `xml:"service_daytime"`
	Title          string `xml:"title"`
	SubTitle       string `xml:"sub_title"`
	MediaCode      string `xml:"media_code"`
	Writers        string `xml:"writers"`
	FreeType       string `xml:"free_type"`
	PubDiv         string `xml:"pub_div"`
	PubDate        string `xml:"pub_date"`
	PubEdition     string `xml:"pub_edition"`
	PubSection     string `xml:"pub_section"`
	PubPage        string `xml:"pub_page"`
	RegDt          string `xml:"reg_dt"`
	ModDt          string `xml:"mod_dt"`
	ArtOrgClass    string `xml:"art_org_class"`
}

type wireBody struct {
	Body string `xml:"body"`
}

type wireSummary struct {
	Summary string `xml:"summary"`
}

type wireCodeClasses struct {
	Classes []wireCodeClass `xml:"wms_code_class"`
}

type wireCodeClass struct {
	CodeID       string `xml:"code_id"`
	CodeNm       string `xml:"code_nm"`
	LargeCodeID  string `xml:"large_code_id"`
	LargeCodeNm  string `xml:"large_code_nm"`
	MiddleCodeID string `xml:"middle_code_id"`
	MiddleCodeNm string `xml:"middle_code_nm"`
	SmallCodeID  string `xml:"small_code_id"`
	SmallCodeNm  string `xml:"small_code_nm"`
}

type wireImages struct {
	Images []wireImage `xml:"wms_article_image"`
}

type wireImage struct {
	ImageURL     string `xml:"image_url"`
	ImageCaption string `xml:"image_caption"`
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// Parse decodes raw XML bytes into a normalized core.Article. It is pure:
// identical input bytes always yield an identical Article (P1), since no
// clock or randomness feeds into any field except InternalID, which the
// caller may overwrite when replaying known documents.
func Parse(data []byte) (*core.Article, error) {
	var doc wireDoc
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	decoder.Strict = false
	if err := decoder.Decode(&doc); err != nil {
		return nil, &ParseError{Kind: Malformed, Path: "article", Err: err}
	}
	if doc.XMLName.Local != "article" {
		return nil, &ParseError{Kind: MissingArticle, Path: "article"}
	}
	if strings.TrimSpace(doc.WmsArticle.ArtID) == "" {
		return nil, &ParseError{Kind: MissingIdentity, Path: "wms_article/art_id"}
	}

	article := &core.Article{
		InternalID: uuid.NewString(),
		ExternalID: strings.TrimSpace(doc.WmsArticle.ArtID),
		Title:      stripHTML(doc.WmsArticle.Title),
		Subtitle:   stripHTML(doc.WmsArticle.SubTitle),
		Body:       stripHTML(doc.Body.Body),
		Summary:    stripHTML(doc.Summary.Summary),
		SourceURL:  stripHTML(doc.ArticleURL),
		MediaCode:  strings.TrimSpace(doc.WmsArticle.MediaCode),
		Edition:    strings.TrimSpace(doc.WmsArticle.PubEdition),
		Section:    strings.TrimSpace(doc.WmsArticle.PubSection),
		Page:       parseIntLenient(doc.WmsArticle.PubPage),
	}

	if writers := stripHTML(doc.WmsArticle.Writers); writers != "" {
		article.Writers = splitCSV(writers)
	}

	if t, err := parseDateLenient(doc.WmsArticle.ServiceDaytime); err == nil {
		article.PublishTime = t
	}
	if t, err := parseDateLenient(doc.WmsArticle.RegDt); err == nil {
		article.RegisteredTime = t
	}
	if t, err := parseDateLenient(doc.WmsArticle.ModDt); err == nil {
		article.ModifiedTime = t
	}

	article.Categories = extractCategories(doc.CodeClasses)
	article.StockCodes = splitCSV(doc.StockCodes)
	article.Keywords = extractKeywords(doc.Keywords)

	return article, nil
}

func stripHTML(text string) string {
	if text == "" {
		return ""
	}
	if !strings.Contains(text, "<") {
		return strings.TrimSpace(text)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.TrimSpace(htmlTagRe.ReplaceAllString(text, ""))
	}
	return strings.TrimSpace(doc.Text())
}

func splitCSV(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseIntLenient parses an integer field, returning nil on any failure
// rather than an error, matching xml_parser.py::_get_int.
func parseIntLenient(text string) *int {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil
	}
	return &n
}

func parseDateLenient(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Kind: UnparseableDate, Path: text}
}

func extractCategories(wire wireCodeClasses) []core.Category {
	if len(wire.Classes) == 0 {
		return nil
	}
	categories := make([]core.Category, 0, len(wire.Classes))
	for _, c := range wire.Classes {
		categories = append(categories, core.Category{
			LargeCodeNm:  strings.TrimSpace(c.LargeCodeNm),
			MiddleCodeNm: strings.TrimSpace(c.MiddleCodeNm),
			SmallCodeNm:  strings.TrimSpace(c.SmallCodeNm),
		})
	}
	return categories
}

func extractKeywords(raw string) []core.Keyword {
	values := splitCSV(raw)
	keywords := make([]core.Keyword, 0, len(values))
	for _, v := range values {
		keywords = append(keywords, core.Keyword{Text: v, Type: core.KeywordGeneral})
	}
	return keywords
}
