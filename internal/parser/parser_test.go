package parser

import (
	"strings"
	"testing"
)

const scenarioOneXML = `<?xml version="1.0" encoding="UTF-8"?>
<article>
  <action>insert</action>
  <wms_article>
    <art_id>A-001</art_id>
    <art_year>2024</art_year>
    <gubun>news</gubun>
    <service_daytime>2024-03-15 09:00:00</service_daytime>
    <title><![CDATA[삼성전자 주가 급등]]></title>
    <writers><![CDATA[홍길동 기자]]></writers>
    <media_code>001</media_code>
    <pub_edition>1</pub_edition>
    <pub_section>증권</pub_section>
    <pub_page>3</pub_page>
    <reg_dt>2024-03-15 08:55:00</reg_dt>
  </wms_article>
  <wms_article_body>
    <body><![CDATA[삼성전자 주가가 급등했다.]]></body>
  </wms_article_body>
  <wms_article_summary>
    <summary><![CDATA[삼성전자 주가 상승 소식]]></summary>
  </wms_article_summary>
  <article_url><![CDATA[http://example.com/a-001]]></article_url>
  <wms_code_classes>
    <wms_code_class>
      <code_id>1</code_id>
      <large_code_nm><![CDATA[증권]]></large_code_nm>
    </wms_code_class>
  </wms_code_classes>
  <stock_codes>005930</stock_codes>
  <wms_article_keywords>주가,급등</wms_article_keywords>
</article>`

func TestParseScenarioOne(t *testing.T) {
	article, err := Parse([]byte(scenarioOneXML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if article.ExternalID != "A-001" {
		t.Errorf("ExternalID = %q, want A-001", article.ExternalID)
	}
	if article.Title != "삼성전자 주가 급등" {
		t.Errorf("Title = %q", article.Title)
	}
	if len(article.Categories) != 1 || article.Categories[0].LargeCodeNm != "증권" {
		t.Errorf("Categories = %+v", article.Categories)
	}
	if len(article.StockCodes) != 1 || article.StockCodes[0] != "005930" {
		t.Errorf("StockCodes = %+v", article.StockCodes)
	}
	if article.Page == nil || *article.Page != 3 {
		t.Errorf("Page = %v, want 3", article.Page)
	}
}

func TestParseMissingArticleElement(t *testing.T) {
	_, err := Parse([]byte(`<not_article></not_article>`))
	if err == nil {
		t.Fatal("expected an error for missing article element")
	}
	var perr *ParseError
	if !asParseError(err, &perr) || perr.Kind != MissingArticle {
		t.Errorf("expected MissingArticle, got %v", err)
	}
}

func TestParseMissingIdentity(t *testing.T) {
	_, err := Parse([]byte(`<article><wms_article><title>no id</title></wms_article></article>`))
	if err == nil {
		t.Fatal("expected an error for missing art_id")
	}
	var perr *ParseError
	if !asParseError(err, &perr) || perr.Kind != MissingIdentity {
		t.Errorf("expected MissingIdentity, got %v", err)
	}
}

func TestParseMalformedXML(t *testing.T) {
	_, err := Parse([]byte(`<article><wms_article><art_id>A-1</art_id>`))
	if err == nil {
		t.Fatal("expected an error for malformed XML")
	}
}

func TestParseIsPure(t *testing.T) {
	a1, err := Parse([]byte(scenarioOneXML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := Parse([]byte(scenarioOneXML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1.ExternalID != a2.ExternalID || a1.Title != a2.Title || a1.Body != a2.Body {
		t.Error("Parse is not pure across identical input bytes")
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<p>Hello <b>World</b></p>")
	if strings.Contains(got, "<") {
		t.Errorf("expected HTML stripped, got %q", got)
	}
}

func asParseError(err error, target **ParseError) bool {
	for err != nil {
		if pe, ok := err.(*ParseError); ok {
			*target = pe
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
