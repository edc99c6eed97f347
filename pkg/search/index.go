// Package search provides an embedded Bleve index over controlled
// document metadata. The index is a read-model convenience: the
// database stays authoritative, and a lost index can be rebuilt from
// it at any time.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hashicorp/go-hclog"

	"github.com/compliance-forge/docuflow/pkg/models"
)

// Entry is the indexed projection of a document version.
type Entry struct {
	ID             string    `json:"id"`
	FamilyID       string    `json:"familyId"`
	Title          string    `json:"title"`
	Version        string    `json:"version"`
	Status         string    `json:"status"`
	DocumentType   string    `json:"docType"`
	DocumentSource string    `json:"docSource"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EntryFor builds the indexed projection of a document.
func EntryFor(doc *models.Document) Entry {
	return Entry{
		ID:             doc.ID.String(),
		FamilyID:       doc.FamilyID.String(),
		Title:          doc.Title,
		Version:        doc.Version().String(),
		Status:         string(doc.Status),
		DocumentType:   doc.DocumentType,
		DocumentSource: doc.DocumentSource,
		UpdatedAt:      doc.UpdatedAt,
	}
}

// Index wraps a Bleve index of document metadata.
type Index struct {
	idx bleve.Index
	log hclog.Logger
}

// Config contains index configuration. An empty Path selects an
// in-memory index.
type Config struct {
	Path string
}

// NewIndex opens or creates the index at cfg.Path, or an in-memory
// index when no path is configured.
func NewIndex(cfg Config, log hclog.Logger) (*Index, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}

	var idx bleve.Index
	var err error
	if cfg.Path == "" {
		idx, err = bleve.NewMemOnly(createMapping())
	} else {
		idx, err = openOrCreate(cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}

	return &Index{idx: idx, log: log.Named("search")}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, mkErr
		}
		return bleve.New(path, createMapping())
	}
	return idx, err
}

func createMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "en"

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("familyId", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("version", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("status", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("docType", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("docSource", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("updatedAt", dateFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexDocument adds or updates a document's entry.
func (i *Index) IndexDocument(doc *models.Document) error {
	entry := EntryFor(doc)
	if err := i.idx.Index(entry.ID, entry); err != nil {
		return fmt.Errorf("indexing document %s: %w", entry.ID, err)
	}
	return nil
}

// Hit is one search result.
type Hit struct {
	ID    string
	Score float64
}

// Search runs a query-string search over the index and returns up to
// limit hits, best first.
func (i *Index) Search(queryString string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 25
	}
	query := bleve.NewQueryStringQuery(queryString)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Close closes the underlying index.
func (i *Index) Close() error {
	return i.idx.Close()
}
