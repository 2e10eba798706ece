package grobid

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// TEI document structure as emitted by GROBID. Element names match in any
// namespace, so the default TEI namespace needs no special handling.
type teiDocument struct {
	Header teiHeader `xml:"teiHeader"`
	Back   teiBack   `xml:"text>back"`
}

type teiHeader struct {
	Titles  []teiTitle    `xml:"fileDesc>titleStmt>title"`
	Source  teiBiblStruct `xml:"fileDesc>sourceDesc>biblStruct"`
	Summary teiAbstract   `xml:"profileDesc>abstract"`
}

type teiAbstract struct {
	Paragraphs []teiMixed `xml:"p"`
	Divs       []struct {
		Paragraphs []teiMixed `xml:"p"`
	} `xml:"div"`
}

// teiBack keeps the raw back matter; the bibliography may sit at any depth.
type teiBack struct {
	Inner string `xml:",innerxml"`
}

type teiListBibl struct {
	Entries []teiBiblStruct `xml:"biblStruct"`
}

type teiBiblStruct struct {
	Inner    string       `xml:",innerxml"`
	Analytic *teiBiblPart `xml:"analytic"`
	Monogr   *teiBiblPart `xml:"monogr"`
	IDNos    []teiIDNo    `xml:"idno"`
}

type teiBiblPart struct {
	Titles  []teiTitle  `xml:"title"`
	Authors []teiAuthor `xml:"author"`
	IDNos   []teiIDNo   `xml:"idno"`
	Imprint *teiImprint `xml:"imprint"`
}

type teiTitle struct {
	Type  string `xml:"type,attr"`
	Level string `xml:"level,attr"`
	Text  string `xml:",chardata"`
}

type teiAuthor struct {
	PersName *teiPersName `xml:"persName"`
}

type teiPersName struct {
	Forenames []string `xml:"forename"`
	Surname   string   `xml:"surname"`
}

type teiIDNo struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

type teiImprint struct {
	Dates  []teiDate      `xml:"date"`
	Scopes []teiBiblScope `xml:"biblScope"`
}

type teiDate struct {
	Type string `xml:"type,attr"`
	When string `xml:"when,attr"`
	Text string `xml:",chardata"`
}

type teiBiblScope struct {
	Unit string `xml:"unit,attr"`
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
	Text string `xml:",chardata"`
}

// teiMixed holds mixed content whose text spans nested elements.
type teiMixed struct {
	Inner string `xml:",innerxml"`
}

func (m teiMixed) Text() string {
	return innerText(m.Inner)
}

// innerText concatenates every character-data token of an XML fragment.
func innerText(fragment string) string {
	d := xml.NewDecoder(strings.NewReader(fragment))
	d.Strict = false
	d.Entity = xml.HTMLEntity

	var b strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			b.Write(cd)
		}
	}
	return b.String()
}

// collapseSpace trims s and replaces whitespace runs with single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstList returns the first listBibl in document order, however deeply
// it is nested in the back matter.
func (b teiBack) firstList() *teiListBibl {
	d := xml.NewDecoder(strings.NewReader(b.Inner))
	d.Strict = false
	d.Entity = xml.HTMLEntity

	for {
		tok, err := d.Token()
		if err != nil {
			return nil
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "listBibl" {
			continue
		}
		var list teiListBibl
		if err := d.DecodeElement(&list, &se); err != nil {
			return nil
		}
		return &list
	}
}

func (a teiAbstract) paragraphs() []string {
	var out []string
	add := func(ps []teiMixed) {
		for _, p := range ps {
			if text := strings.TrimSpace(p.Text()); text != "" {
				out = append(out, text)
			}
		}
	}
	add(a.Paragraphs)
	for _, d := range a.Divs {
		add(d.Paragraphs)
	}
	return out
}

// parts returns the analytic and monographic levels that are present.
func (bs teiBiblStruct) parts() []*teiBiblPart {
	var parts []*teiBiblPart
	if bs.Analytic != nil {
		parts = append(parts, bs.Analytic)
	}
	if bs.Monogr != nil {
		parts = append(parts, bs.Monogr)
	}
	return parts
}

// levelTitle returns the text of the first title with the given level and
// whether one exists. An empty title still counts as present.
func (bs teiBiblStruct) levelTitle(level string) (string, bool) {
	for _, p := range bs.parts() {
		for _, t := range p.Titles {
			if t.Level == level {
				return strings.TrimSpace(t.Text), true
			}
		}
	}
	return "", false
}

func (bs teiBiblStruct) doi() string {
	ids := append([]teiIDNo(nil), bs.IDNos...)
	for _, p := range bs.parts() {
		ids = append(ids, p.IDNos...)
	}
	for _, id := range ids {
		if strings.EqualFold(id.Type, "DOI") {
			if text := strings.TrimSpace(id.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

func (bs teiBiblStruct) venue() string {
	if bs.Monogr == nil {
		return ""
	}
	for _, t := range bs.Monogr.Titles {
		if t.Level == "j" {
			if text := strings.TrimSpace(t.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

// year parses the published date's @when (or text) as a four-digit year.
func (bs teiBiblStruct) year() int {
	if bs.Monogr == nil || bs.Monogr.Imprint == nil {
		return 0
	}
	for _, d := range bs.Monogr.Imprint.Dates {
		if d.Type != "published" {
			continue
		}
		s := strings.TrimSpace(d.When)
		if s == "" {
			s = strings.TrimSpace(d.Text)
		}
		if len(s) < 4 {
			return 0
		}
		y, err := strconv.Atoi(s[:4])
		if err != nil {
			return 0
		}
		return y
	}
	return 0
}

// publicationInfo returns volume, issue and pages from the monograph imprint.
func (bs teiBiblStruct) publicationInfo() (volume, issue, pages string) {
	if bs.Monogr == nil || bs.Monogr.Imprint == nil {
		return "", "", ""
	}
	for _, s := range bs.Monogr.Imprint.Scopes {
		text := strings.TrimSpace(s.Text)
		switch s.Unit {
		case "volume":
			if volume == "" {
				volume = text
			}
		case "issue":
			if issue == "" {
				issue = text
			}
		case "page":
			if pages != "" {
				continue
			}
			if s.From != "" && s.To != "" {
				pages = s.From + "-" + s.To
			} else {
				pages = text
			}
		}
	}
	return volume, issue, pages
}
