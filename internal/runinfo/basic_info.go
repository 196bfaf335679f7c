// Package runinfo collects CI metadata recorded alongside each corpus.
package runinfo

import (
	"os"
	"regexp"
	"strings"
)

var githubPullRefPattern = regexp.MustCompile(`^refs/pull/([0-9]+)/`)

const overridePrefix = "GRAMFUZZ_CI"

// BasicInfo describes the CI run that produced a corpus.
type BasicInfo struct {
	CI          bool   `json:"ci,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Job         string `json:"job,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	PullRequest string `json:"pull_request,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
}

type field struct {
	suffix string
	get    func(*BasicInfo) *string
	// fallbacks are read, first non-empty wins, when no provider set the field.
	fallbacks []string
}

var fields = []field{
	{"PROVIDER", func(b *BasicInfo) *string { return &b.Provider }, []string{"CI_PROVIDER", "CI_SYSTEM"}},
	{"REPOSITORY", func(b *BasicInfo) *string { return &b.Repository }, []string{"CI_PROJECT_PATH", "BUILD_REPOSITORY_NAME"}},
	{"BRANCH", func(b *BasicInfo) *string { return &b.Branch }, []string{"CI_COMMIT_REF_NAME", "BRANCH_NAME", "GIT_BRANCH"}},
	{"COMMIT", func(b *BasicInfo) *string { return &b.Commit }, []string{"CI_COMMIT_SHA", "GIT_COMMIT"}},
	{"JOB", func(b *BasicInfo) *string { return &b.Job }, []string{"CI_JOB_NAME", "JOB_NAME"}},
	{"RUN_ID", func(b *BasicInfo) *string { return &b.RunID }, []string{"CI_PIPELINE_ID", "BUILD_ID"}},
	{"PULL_REQUEST", func(b *BasicInfo) *string { return &b.PullRequest }, []string{"CI_MERGE_REQUEST_IID", "PR_NUMBER"}},
	{"BUILD_URL", func(b *BasicInfo) *string { return &b.BuildURL }, []string{"CI_JOB_URL", "BUILD_URL"}},
}

// FromEnv reads run metadata from the environment. GRAMFUZZ_CI_* variables
// take precedence over provider defaults. It returns nil outside CI.
func FromEnv() *BasicInfo {
	info := detect()
	for _, f := range fields {
		dst := f.get(&info)
		if v := env(overridePrefix + "_" + f.suffix); v != "" {
			*dst = v
			info.CI = true
			continue
		}
		if *dst == "" {
			*dst = envFirst(f.fallbacks...)
		}
	}
	if v, ok := os.LookupEnv(overridePrefix); ok && strings.TrimSpace(v) != "" {
		info.CI = isTruthy(v)
	} else if info.Provider != "" || info.RunID != "" || info.Commit != "" {
		info.CI = true
	}
	if !info.CI {
		return nil
	}
	info.Provider = strings.ToLower(info.Provider)
	if info.Provider == "" {
		info.Provider = "generic"
	}
	info.Branch = strings.TrimPrefix(strings.TrimPrefix(info.Branch, "refs/heads/"), "origin/")
	return &info
}

func detect() BasicInfo {
	var info BasicInfo
	switch {
	case isTruthy(env("GITHUB_ACTIONS")):
		info.CI = true
		info.Provider = "github_actions"
		info.Repository = env("GITHUB_REPOSITORY")
		info.Branch = envFirst("GITHUB_HEAD_REF", "GITHUB_REF_NAME")
		info.Commit = env("GITHUB_SHA")
		info.Job = env("GITHUB_JOB")
		info.RunID = env("GITHUB_RUN_ID")
		info.PullRequest = githubPullRequest(env("GITHUB_REF"))
		server := env("GITHUB_SERVER_URL")
		if server == "" {
			server = "https://github.com"
		}
		if info.Repository != "" && info.RunID != "" {
			info.BuildURL = strings.TrimRight(server, "/") + "/" + info.Repository + "/actions/runs/" + info.RunID
		}
	case isTruthy(env("GITLAB_CI")):
		info.CI = true
		info.Provider = "gitlab_ci"
	case env("JENKINS_URL") != "":
		info.CI = true
		info.Provider = "jenkins"
	case isTruthy(env("CI")):
		info.CI = true
	}
	return info
}

func githubPullRequest(ref string) string {
	if m := githubPullRefPattern.FindStringSubmatch(ref); len(m) > 1 {
		return m[1]
	}
	return ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if v := env(key); v != "" {
			return v
		}
	}
	return ""
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
