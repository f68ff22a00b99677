package bleveidx

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field names used in the index.
const (
	fieldContent      = "content"
	fieldFilenameText = "filename_text"
	fieldDir          = "dir"
	fieldDate         = "date"
	stemFieldPrefix   = "content_"
)

var languages = map[string]string{
	"english":    en.AnalyzerName,
	"french":     fr.AnalyzerName,
	"german":     de.AnalyzerName,
	"spanish":    es.AnalyzerName,
	"italian":    it.AnalyzerName,
	"portuguese": pt.AnalyzerName,
}

// languageCode maps a stemming language name (or analyzer code) to the
// bleve analyzer registered for it.
func languageCode(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if code, ok := languages[name]; ok {
		return code, true
	}
	for _, code := range languages {
		if code == name {
			return code, true
		}
	}
	return "", false
}

func languageCodes(names []string) []string {
	var codes []string
	seen := make(map[string]bool)
	for _, n := range names {
		code, ok := languageCode(n)
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes
}

func buildMapping(langCodes []string) *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	doc := bleve.NewDocumentMapping()

	text := func(store bool) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = store
		fm.IncludeTermVectors = true
		return fm
	}
	kw := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		return fm
	}
	num := func() *mapping.FieldMapping {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		fm.IncludeInAll = false
		return fm
	}
	stored := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Store = true
		fm.Index = false
		fm.IncludeInAll = false
		return fm
	}

	doc.AddFieldMappingsAt(fieldContent, text(true))
	doc.AddFieldMappingsAt("title", text(true))
	doc.AddFieldMappingsAt("keywords", text(true))
	doc.AddFieldMappingsAt(fieldFilenameText, text(false))

	for _, f := range []string{"url", "ipath", "filename", "author", "mtype", fieldDir} {
		doc.AddFieldMappingsAt(f, kw())
	}
	for _, f := range []string{"fbytes", "dbytes", "fmtime", "dmtime", "mtime"} {
		doc.AddFieldMappingsAt(f, num())
	}
	for _, f := range []string{"origcharset", "abstract", "sig"} {
		doc.AddFieldMappingsAt(f, stored())
	}

	date := bleve.NewDateTimeFieldMapping()
	date.IncludeInAll = false
	doc.AddFieldMappingsAt(fieldDate, date)

	for _, code := range langCodes {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = code
		fm.IncludeTermVectors = true
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(stemFieldPrefix+code, fm)
	}

	im.DefaultMapping = doc
	return im
}
