// Package ingestion implements the abstract ingestion pipeline.
// It loads PubMed-style abstract records from JSON files, embeds each
// abstract, and upserts the results into the vector store. This pipeline is
// invoked by the `biorag ingest` CLI command.
package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Record is one abstract as it appears in the input JSON files.
type Record struct {
	// PMID is the PubMed identifier. Required — it becomes the passage's
	// source identifier and citations refer to it.
	PMID string `json:"pmid"`

	// Title is the article title.
	Title string `json:"title"`

	// Abstract is the abstract text embedded for retrieval.
	Abstract string `json:"abstract"`

	// Authors lists the article authors.
	Authors []string `json:"authors,omitempty"`

	// Gene is an optional gene symbol the abstract was collected for.
	Gene string `json:"gene,omitempty"`
}

// LoadResult reports what was loaded and what was skipped.
type LoadResult struct {
	// Records are the usable abstract records.
	Records []Record
	// SkippedEmpty counts records dropped for having no abstract text.
	SkippedEmpty int
	// SkippedNoID counts records dropped for having no PMID.
	SkippedNoID int
}

// LoadRecords reads abstract records from path. If path is a directory,
// every *.json file in it is read (non-recursively); otherwise path itself
// is read. Each file may contain a single record object or an array of
// records. Records without an abstract or without a PMID are skipped and
// counted rather than failing the whole load.
func LoadRecords(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: stat %s: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("ingestion: read dir %s: %w", path, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			files = append(files, filepath.Join(path, e.Name()))
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("ingestion: no .json files found in %s", path)
		}
	} else {
		files = []string{path}
	}

	result := &LoadResult{}
	for _, f := range files {
		records, err := readRecordFile(f)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			switch {
			case strings.TrimSpace(r.PMID) == "":
				result.SkippedNoID++
			case strings.TrimSpace(r.Abstract) == "":
				result.SkippedEmpty++
			default:
				result.Records = append(result.Records, r)
			}
		}
	}

	return result, nil
}

// readRecordFile parses one JSON file holding either a single record or an
// array of records.
func readRecordFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read %s: %w", path, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("ingestion: parse %s: %w", path, err)
		}
		return records, nil
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("ingestion: parse %s: %w", path, err)
	}
	return []Record{r}, nil
}
