package runner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gramfuzz/internal/report"
	"gramfuzz/internal/session"
	"gramfuzz/internal/util"
)

type runStats struct {
	sqlTotal  int64
	sqlValid  int64
	skipped   int64
	rejects   map[string]int64
	phases    map[string]int64
	session   session.Stats
	lastPhase string
}

func newRunStats() runStats {
	return runStats{
		rejects: make(map[string]int64),
		phases:  make(map[string]int64),
	}
}

func (r *Runner) observeSQL(sql string, err error) {
	if strings.TrimSpace(sql) == "" {
		return
	}
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.sqlTotal++
	if err == nil {
		r.stats.sqlValid++
	}
}

func (r *Runner) recordSession() {
	snap := r.sess.Stats()
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.session = snap
}

func (r *Runner) recordSkip() {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.skipped++
}

func (r *Runner) recordStatement(st report.Statement) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	st.Seq = len(r.statements) + 1
	r.statements = append(r.statements, st)
	r.stats.phases[st.Phase]++
	r.stats.lastPhase = st.Phase
	if st.Rejected() {
		r.stats.rejects[st.Code]++
	}
}

func (r *Runner) startStatsLogger() func() {
	interval := time.Duration(r.cfg.Logging.ReportIntervalSeconds) * time.Second
	if interval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		var lastTotal, lastValid int64
		var lastGenerated, lastRetries int
		for {
			select {
			case <-ticker.C:
				r.statsMu.Lock()
				total := r.stats.sqlTotal
				valid := r.stats.sqlValid
				sess := r.stats.session
				phase := r.stats.lastPhase
				rejects := copyCounts(r.stats.rejects)
				r.statsMu.Unlock()

				deltaTotal := total - lastTotal
				deltaValid := valid - lastValid
				deltaGenerated := sess.Generated - lastGenerated
				deltaRetries := sess.Retries - lastRetries
				lastTotal, lastValid = total, valid
				lastGenerated, lastRetries = sess.Generated, sess.Retries

				util.Infof("stats interval: phase=%s generated=%d retries=%d sql=%d accepted=%d (%s) total_generated=%d",
					phase, deltaGenerated, deltaRetries, deltaTotal, deltaValid, ratio(deltaValid, deltaTotal), sess.Generated)
				if top := topCounts(rejects, 5); top != "" {
					util.Detailf("rejects: %s", top)
				}
				if minRatio := r.cfg.Logging.Metrics.AcceptMinRatio; minRatio > 0 && deltaTotal > 0 {
					if float64(deltaValid)/float64(deltaTotal) < minRatio {
						util.Warnf("accept ratio %s below %.2f", ratio(deltaValid, deltaTotal), minRatio)
					}
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

func (r *Runner) logSummary() {
	r.statsMu.Lock()
	total := r.stats.sqlTotal
	valid := r.stats.sqlValid
	skipped := r.stats.skipped
	sess := r.stats.session
	rejects := copyCounts(r.stats.rejects)
	r.statsMu.Unlock()
	util.Highlightf("runner done: generated=%d attempts=%d retries=%d skipped=%d sql=%d accepted=%d (%s)",
		sess.Generated, sess.Attempts, sess.Retries, skipped, total, valid, ratio(valid, total))
	if top := topCounts(rejects, 10); top != "" {
		util.Infof("top rejects: %s", top)
	}
	if len(sess.Reasons) > 0 {
		reasons := make(map[string]int64, len(sess.Reasons))
		for k, v := range sess.Reasons {
			reasons[k] = int64(v)
		}
		util.Infof("retry reasons: %s", topCounts(reasons, 10))
	}
	if r.adaptive != nil {
		util.Infof("adaptive %s: %s", r.adaptive.symbol, r.adaptive.describe())
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func ratio(part, total int64) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(part)/float64(total))
}

// topCounts formats the n largest counts, ties broken by key.
func topCounts(counts map[string]int64, n int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
