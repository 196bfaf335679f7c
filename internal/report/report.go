// Package report persists generated corpora.
package report

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"gramfuzz/internal/runinfo"
	"gramfuzz/internal/session"
	"gramfuzz/internal/util"
)

const (
	CorpusArchiveName  = "corpus.tar.zst"
	CorpusArchiveCodec = "zstd"
	statementsFile     = "corpus.sql"
	summaryFile        = "summary.json"
)

// Reporter writes corpus directories under OutputDir.
type Reporter struct {
	OutputDir   string
	UseUUIDPath bool
	seq         int
}

// Corpus describes one output directory.
type Corpus struct {
	ID  string
	Dir string
}

// Statement is one generated statement and how the database took it.
type Statement struct {
	Seq      int    `json:"seq"`
	Phase    string `json:"phase"`
	SQL      string `json:"sql"`
	Executed bool   `json:"executed"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// Rejected reports whether the database returned an error for the statement.
func (s Statement) Rejected() bool {
	return s.Executed && s.Error != ""
}

// Summary is the persisted metadata for a corpus.
type Summary struct {
	CorpusID       string               `json:"corpus_id"`
	Seed           int64                `json:"seed"`
	Driver         string               `json:"driver"`
	Statements     int                  `json:"statements"`
	Accepted       int                  `json:"accepted"`
	Rejected       int                  `json:"rejected"`
	Phases         map[string]int       `json:"phases"`
	Rejects        map[string]int       `json:"rejects"`
	Session        session.Stats        `json:"session"`
	Bandit         *util.BanditSnapshot `json:"bandit,omitempty"`
	Run            *runinfo.BasicInfo   `json:"run,omitempty"`
	ArchiveName    string               `json:"archive_name"`
	ArchiveCodec   string               `json:"archive_codec"`
	UploadLocation string               `json:"upload_location"`
	Timestamp      string               `json:"timestamp"`
}

// New creates a reporter that writes to outputDir.
func New(outputDir string) *Reporter {
	return &Reporter{OutputDir: outputDir}
}

// NewCorpus allocates a new corpus directory.
func (r *Reporter) NewCorpus() (Corpus, error) {
	r.seq++
	id := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}
	name := fmt.Sprintf("corpus_%04d_%s", r.seq, id)
	if r.UseUUIDPath {
		name = id
	}
	dir := filepath.Join(r.OutputDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Corpus{}, err
	}
	return Corpus{ID: id, Dir: dir}, nil
}

// WriteStatements writes corpus.sql. Rejected statements keep their place
// and carry the error as a comment.
func (r *Reporter) WriteStatements(c Corpus, statements []Statement) error {
	var b strings.Builder
	for _, st := range statements {
		if st.Rejected() {
			code := st.Code
			if code == "" {
				code = "error"
			}
			fmt.Fprintf(&b, "-- rejected %s: %s\n", code, oneLine(st.Error))
		}
		b.WriteString(st.SQL)
		b.WriteString(";\n")
	}
	return os.WriteFile(filepath.Join(c.Dir, statementsFile), []byte(b.String()), 0o644)
}

// WriteSummary writes summary.json. An empty timestamp is filled in.
func (r *Reporter) WriteSummary(c Corpus, summary Summary) error {
	if summary.Timestamp == "" {
		summary.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if summary.CorpusID == "" {
		summary.CorpusID = c.ID
	}
	f, err := os.Create(filepath.Join(c.Dir, summaryFile))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "summary output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(summary)
}

// WriteArchive packs every file of the corpus directory into corpus.tar.zst.
func (r *Reporter) WriteArchive(c Corpus) (name string, codec string, err error) {
	archivePath := filepath.Join(c.Dir, CorpusArchiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	tw := tar.NewWriter(zw)
	walkErr := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath {
			return nil
		}
		return addFile(tw, c.Dir, path, d)
	})
	if closeErr := tw.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if closeErr := zw.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if walkErr != nil {
		return "", "", walkErr
	}
	return CorpusArchiveName, CorpusArchiveCodec, nil
}

func addFile(tw *tar.Writer, root, path string, d fs.DirEntry) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	info, err := d.Info()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(src, "archive source")
	_, err = io.Copy(tw, src)
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
