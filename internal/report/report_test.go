package report

import (
	"archive/tar"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestNewCorpusDirName(t *testing.T) {
	r := New(t.TempDir())
	c1, err := r.NewCorpus()
	if err != nil {
		t.Fatalf("new corpus: %v", err)
	}
	c2, err := r.NewCorpus()
	if err != nil {
		t.Fatalf("new corpus: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(c1.Dir), "corpus_0001_") || !strings.HasPrefix(filepath.Base(c2.Dir), "corpus_0002_") {
		t.Fatalf("unexpected dirs %s %s", c1.Dir, c2.Dir)
	}
	if c1.ID == c2.ID {
		t.Fatalf("corpus ids must differ")
	}
}

func TestWriteStatementsMarksRejected(t *testing.T) {
	r := New(t.TempDir())
	c, err := r.NewCorpus()
	if err != nil {
		t.Fatalf("new corpus: %v", err)
	}
	err = r.WriteStatements(c, []Statement{
		{Seq: 1, SQL: "CREATE TABLE t0 (c0)", Executed: true},
		{Seq: 2, SQL: "SELECT c9 FROM t0", Executed: true, Code: "sqlite:1", Error: "no such column:\n c9"},
		{Seq: 3, SQL: "PRAGMA optimize"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(c.Dir, "corpus.sql"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "CREATE TABLE t0 (c0);\n-- rejected sqlite:1: no such column: c9\nSELECT c9 FROM t0;\nPRAGMA optimize;\n"
	if string(data) != want {
		t.Fatalf("unexpected corpus:\n%s", data)
	}
}

func TestWriteSummaryAndArchive(t *testing.T) {
	r := New(t.TempDir())
	c, err := r.NewCorpus()
	if err != nil {
		t.Fatalf("new corpus: %v", err)
	}
	if err := r.WriteStatements(c, []Statement{{Seq: 1, SQL: "SELECT 1"}}); err != nil {
		t.Fatalf("write statements: %v", err)
	}
	if err := r.WriteSummary(c, Summary{Seed: 9, Statements: 1, Rejects: map[string]int{"sqlite:1": 2}}); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(c.Dir, "summary.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var got Summary
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CorpusID != c.ID || got.Seed != 9 || got.Timestamp == "" || got.Rejects["sqlite:1"] != 2 {
		t.Fatalf("unexpected summary %+v", got)
	}

	name, codec, err := r.WriteArchive(c)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if name != CorpusArchiveName || codec != CorpusArchiveCodec {
		t.Fatalf("unexpected archive %s %s", name, codec)
	}
	f, err := os.Open(filepath.Join(c.Dir, name))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer zr.Close()
	tr := tar.NewReader(zr)
	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		names = append(names, h.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "corpus.sql,summary.json" {
		t.Fatalf("unexpected archive entries %v", names)
	}
}
