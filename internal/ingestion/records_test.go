package ingestion

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func Test_LoadRecords_SingleFileArray(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "abstracts.json", `[
		{"pmid": "111", "title": "A", "abstract": "alpha", "authors": ["Smith J"]},
		{"pmid": "222", "title": "B", "abstract": "beta", "gene": "TP53"}
	]`)

	res, err := LoadRecords(path)
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("want 2 records, got %d", len(res.Records))
	}
	if res.Records[0].PMID != "111" || res.Records[1].Gene != "TP53" {
		t.Errorf("records parsed wrong: %+v", res.Records)
	}
}

func Test_LoadRecords_SingleObjectFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "one.json", `{"pmid": "333", "abstract": "gamma"}`)

	res, err := LoadRecords(path)
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].PMID != "333" {
		t.Fatalf("want single record 333, got %+v", res.Records)
	}
}

func Test_LoadRecords_DirectoryReadsAllJSONFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[{"pmid": "1", "abstract": "x"}]`)
	writeFile(t, dir, "b.json", `[{"pmid": "2", "abstract": "y"}]`)
	writeFile(t, dir, "notes.txt", "ignored")

	res, err := LoadRecords(dir)
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(res.Records) != 2 {
		t.Errorf("want 2 records from 2 json files, got %d", len(res.Records))
	}
}

func Test_LoadRecords_SkipsBadRecords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "mixed.json", `[
		{"pmid": "1", "abstract": "kept"},
		{"pmid": "2", "abstract": "   "},
		{"pmid": "", "abstract": "orphan"},
		{"abstract": "also orphan"}
	]`)

	res, err := LoadRecords(path)
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("want 1 kept record, got %d", len(res.Records))
	}
	if res.SkippedEmpty != 1 {
		t.Errorf("SkippedEmpty = %d, want 1", res.SkippedEmpty)
	}
	if res.SkippedNoID != 2 {
		t.Errorf("SkippedNoID = %d, want 2", res.SkippedNoID)
	}
}

func Test_LoadRecords_EmptyDirFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, err := LoadRecords(dir); err == nil {
		t.Fatal("want error for directory with no json files")
	}
}
