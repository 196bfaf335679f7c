package runner

import (
	"context"

	"gramfuzz/internal/report"
	"gramfuzz/internal/runinfo"
	"gramfuzz/internal/util"
)

func (r *Runner) summary() report.Summary {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	s := report.Summary{
		Seed:       r.cfg.Seed,
		Statements: len(r.statements),
		Phases:     make(map[string]int, len(r.stats.phases)),
		Rejects:    make(map[string]int, len(r.stats.rejects)),
		Session:    r.stats.session,
		Run:        runinfo.FromEnv(),
	}
	if r.exec != nil {
		s.Driver = r.exec.Driver
	}
	for k, v := range r.stats.phases {
		s.Phases[k] = int(v)
	}
	for k, v := range r.stats.rejects {
		s.Rejects[k] = int(v)
	}
	for _, st := range r.statements {
		switch {
		case st.Rejected():
			s.Rejected++
		case st.Executed:
			s.Accepted++
		}
	}
	if r.adaptive != nil {
		snap := r.adaptive.bandit.Snapshot()
		s.Bandit = &snap
	}
	return s
}

// finish writes the corpus directory and uploads it when a backend is set.
func (r *Runner) finish(ctx context.Context) error {
	if !r.cfg.Corpus.Enabled {
		return nil
	}
	c, err := r.reporter.NewCorpus()
	if err != nil {
		return err
	}
	if err := r.reporter.WriteStatements(c, r.Statements()); err != nil {
		return err
	}
	summary := r.summary()
	if err := r.reporter.WriteSummary(c, summary); err != nil {
		return err
	}
	if r.cfg.Corpus.Archive {
		name, codec, err := r.reporter.WriteArchive(c)
		if err != nil {
			util.Warnf("corpus archive failed dir=%s err=%v", c.Dir, err)
		} else {
			summary.ArchiveName = name
			summary.ArchiveCodec = codec
		}
	}
	if r.uploader.Enabled() {
		location, err := r.uploader.UploadDir(ctx, c.Dir)
		if err != nil {
			util.Warnf("corpus upload failed dir=%s err=%v", c.Dir, err)
		} else {
			summary.UploadLocation = location
		}
	}
	if err := r.reporter.WriteSummary(c, summary); err != nil {
		return err
	}
	util.Infof("corpus written dir=%s statements=%d", c.Dir, summary.Statements)
	if summary.UploadLocation != "" {
		util.Infof("corpus uploaded location=%s", summary.UploadLocation)
	}
	return nil
}
