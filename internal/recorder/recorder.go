// Package recorder implements the session lifecycle: opening a session
// record when a CLI tool starts, appending events while it runs, and
// closing the record when it exits. The session id is returned to the
// calling hook and must be threaded through every later call; the core
// keeps no ambient "current session" state.
package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/memtrail/memtrail/internal/db"
)

// GitInfo carries the repository context detected by the calling
// collaborator. All fields may be empty outside a repository.
type GitInfo struct {
	Repo   string
	Branch string
	Commit string
}

// Recorder writes session lifecycle records to the store.
type Recorder struct {
	db *db.DB

	// Now is the clock used for all timestamps; overridable in tests.
	Now func() time.Time
}

// New creates a Recorder over the given database.
func New(database *db.DB) *Recorder {
	return &Recorder{db: database, Now: time.Now}
}

// ProjectRoot resolves the project key for a session: the git toplevel
// when inside a repository, otherwise the working directory itself.
func ProjectRoot(workingDir string, git GitInfo) string {
	if git.Repo != "" {
		return git.Repo
	}
	return workingDir
}

// newSessionID derives a 16-hex-char id from the tool name, the start
// timestamp, and a random UUID. The UUID replaces the PID the legacy
// implementation hashed, which can collide across machines sharing a
// synced database.
func (r *Recorder) newSessionID(tool string) string {
	seed := fmt.Sprintf("%s_%s_%s", tool, r.Now().Format(time.RFC3339Nano), uuid.NewString())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}

// StartSession opens a session record and upserts the owning project.
// It returns the new session id.
func (r *Recorder) StartSession(tool, workingDir string, git GitInfo) (string, error) {
	if tool == "" {
		return "", fmt.Errorf("tool name required: %w", db.ErrValidation)
	}
	if workingDir == "" {
		return "", fmt.Errorf("working directory required: %w", db.ErrValidation)
	}

	id := r.newSessionID(tool)
	now := r.Now().UTC().Format(time.RFC3339)

	s := &db.Session{
		ID:         id,
		Tool:       tool,
		StartTime:  now,
		WorkingDir: workingDir,
	}
	if git.Repo != "" {
		s.GitRepo = &git.Repo
	}
	if git.Branch != "" {
		s.GitBranch = &git.Branch
	}
	if git.Commit != "" {
		s.GitCommit = &git.Commit
	}

	if err := r.db.InsertSession(s); err != nil {
		return "", err
	}

	root := ProjectRoot(workingDir, git)
	if err := r.db.UpsertProjectStart(root, filepath.Base(root), id, now); err != nil {
		return "", err
	}

	return id, nil
}

// LogFileAction appends a file event. Events against unknown or already
// closed sessions are accepted: asynchronous hooks may report late, and
// dropping their data would be worse than keeping an orphaned row.
func (r *Recorder) LogFileAction(sessionID, path, action, language string, added, removed int) error {
	if sessionID == "" || path == "" || action == "" {
		return fmt.Errorf("session id, path, and action required: %w", db.ErrValidation)
	}
	if added < 0 || removed < 0 {
		return fmt.Errorf("negative line counts: %w", db.ErrValidation)
	}

	f := &db.FileAction{
		SessionID:    sessionID,
		FilePath:     path,
		Action:       action,
		LinesAdded:   added,
		LinesRemoved: removed,
		Timestamp:    r.Now().UTC().Format(time.RFC3339),
	}
	if language != "" {
		f.Language = &language
	}
	return r.db.InsertFileAction(f)
}

// LogCommand appends a command event. Same late-event contract as
// LogFileAction.
func (r *Recorder) LogCommand(sessionID, command string, exitCode int, outputSummary string) error {
	if sessionID == "" || command == "" {
		return fmt.Errorf("session id and command required: %w", db.ErrValidation)
	}

	c := &db.Command{
		SessionID: sessionID,
		Command:   command,
		ExitCode:  exitCode,
		Timestamp: r.Now().UTC().Format(time.RFC3339),
	}
	if outputSummary != "" {
		c.OutputSummary = &outputSummary
	}
	return r.db.InsertCommand(c)
}

// LogContext appends a typed free-form note. The data blob is opaque to
// the core.
func (r *Recorder) LogContext(sessionID, contextType, data string) error {
	if sessionID == "" || contextType == "" {
		return fmt.Errorf("session id and context type required: %w", db.ErrValidation)
	}

	n := &db.ContextNote{
		SessionID: sessionID,
		Type:      contextType,
		Timestamp: r.Now().UTC().Format(time.RFC3339),
	}
	if data != "" {
		n.Data = &data
	}
	return r.db.InsertContextNote(n)
}

// EndSession closes a session: records end time and exit code, computes
// the duration (clamped to zero for clock skew), and adds it to the
// project total. Ending an already-closed session is a no-op so a hook
// that fires twice cannot double-count. Ending an unknown session records
// an orphaned note rather than failing, matching the late-event contract.
func (r *Recorder) EndSession(sessionID string, exitCode int) error {
	if sessionID == "" {
		return fmt.Errorf("session id required: %w", db.ErrValidation)
	}

	now := r.Now().UTC()
	s, err := r.db.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return r.LogContext(sessionID, "orphaned_end", fmt.Sprintf(`{"exit_code":%d}`, exitCode))
		}
		return err
	}

	start, perr := time.Parse(time.RFC3339, s.StartTime)
	duration := int64(0)
	if perr == nil {
		duration = int64(now.Sub(start).Seconds())
		if duration < 0 {
			duration = 0
		}
	}

	applied, err := r.db.CloseSession(sessionID, now.Format(time.RFC3339), exitCode, duration)
	if err != nil {
		return err
	}
	if !applied {
		// Already closed by an earlier call.
		return nil
	}

	git := GitInfo{}
	if s.GitRepo != nil {
		git.Repo = *s.GitRepo
	}
	root := ProjectRoot(s.WorkingDir, git)
	nowStr := now.Format(time.RFC3339)
	if err := r.db.AddProjectTime(root, duration, nowStr); err != nil {
		return err
	}

	// Refresh the inferred primary language from this project's file events.
	lang, err := r.db.TopLanguageForProject(root)
	if err != nil {
		return err
	}
	if lang != "" {
		if err := r.db.SetProjectStack(root, lang, "", nowStr); err != nil {
			return err
		}
	}

	return nil
}
