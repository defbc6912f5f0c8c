// Package updater tracks the installed versions of the AI CLI tools
// whose sessions get recorded, and best-effort checks GitHub for newer
// memtrail releases. Every check is fire-and-forget: failures are
// recorded as an empty result, never surfaced to the session path.
package updater

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

const (
	// checkInterval rate-limits per-tool version probes. A probe spawns
	// the tool's binary, which is too expensive for every session start.
	checkInterval = 24 * time.Hour

	// probeTimeout bounds the `<tool> --version` subprocess.
	probeTimeout = 10 * time.Second

	githubRepo  = "memtrail/memtrail"
	releaseURL  = "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	httpTimeout = 10 * time.Second
)

// For testing: override the release endpoint, HTTP client, and probe.
var (
	releaseEndpoint = releaseURL
	httpClient      = &http.Client{Timeout: httpTimeout}
	runProbe        = probeVersion
)

// versionPattern extracts the first semver-looking token from tool
// output.
var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// Updater records version-check results in the store.
type Updater struct {
	db *db.DB

	// Now is the clock used for rate limiting; overridable in tests.
	Now func() time.Time
}

// New creates an Updater over the given database.
func New(database *db.DB) *Updater {
	return &Updater{db: database, Now: time.Now}
}

// CheckTool probes the installed version of an AI CLI tool and records
// it. A probe within checkInterval of the last one is skipped and the
// stored row returned. Probe failures record a row with a nil version so
// the rate limit still applies.
func (u *Updater) CheckTool(tool string) (*db.ToolVersion, error) {
	now := u.Now().UTC()

	existing, err := u.db.GetToolVersion(tool)
	if err == nil && existing.LastCheck != nil {
		if last, perr := time.Parse(time.RFC3339, *existing.LastCheck); perr == nil {
			if now.Sub(last) < checkInterval {
				return existing, nil
			}
		}
	}

	nowStr := now.Format(time.RFC3339)
	row := &db.ToolVersion{
		Tool:      tool,
		LastCheck: &nowStr,
		UpdatedAt: nowStr,
	}

	if path, lookErr := exec.LookPath(tool); lookErr == nil {
		row.InstallPath = &path
		if version := runProbe(tool); version != "" {
			row.Version = &version
		}
	}

	if err := u.db.UpsertToolVersion(row); err != nil {
		return nil, err
	}
	return row, nil
}

// probeVersion runs `<tool> --version` and extracts a version token from
// its output. Returns "" on any failure.
func probeVersion(tool string) string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, tool, "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	return versionPattern.FindString(string(out))
}

// ReleaseInfo holds the fields read from a GitHub release.
type ReleaseInfo struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// UpdateResult reports the outcome of a self-version check.
type UpdateResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// CheckSelf queries GitHub for the latest memtrail release and compares
// it against the running version. Network failures yield a result with
// no latest version rather than an error.
func CheckSelf(currentVersion string) *UpdateResult {
	result := &UpdateResult{CurrentVersion: normalizeVersion(currentVersion)}

	req, err := http.NewRequest("GET", releaseEndpoint, nil)
	if err != nil {
		return result
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "memtrail/"+currentVersion)

	resp, err := httpClient.Do(req)
	if err != nil {
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return result
	}

	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return result
	}

	result.LatestVersion = normalizeVersion(release.TagName)
	result.ReleaseURL = release.HTMLURL
	result.UpdateAvailable = isNewer(result.CurrentVersion, result.LatestVersion)
	return result
}

// normalizeVersion strips the leading "v" from version strings.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// isNewer returns true if latest is a higher version than current, by
// numeric comparison of dotted parts. A "dev" build never updates.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}

	currentParts := strings.Split(current, ".")
	latestParts := strings.Split(latest, ".")
	for len(currentParts) < 3 {
		currentParts = append(currentParts, "0")
	}
	for len(latestParts) < 3 {
		latestParts = append(latestParts, "0")
	}

	for i := 0; i < 3; i++ {
		c := parseIntSafe(currentParts[i])
		l := parseIntSafe(latestParts[i])
		if l != c {
			return l > c
		}
	}
	return false
}

// parseIntSafe converts the leading digits of s to an int.
func parseIntSafe(s string) int {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
