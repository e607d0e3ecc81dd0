package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"resumatch/internal/config"
	"resumatch/internal/logging"
	"resumatch/pkg/utils"
)

const lockFileName = "WRITE_LOCK.json"

// WriteLock is the advisory lock gating pushes to the shared remote store.
type WriteLock struct {
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Syncer mirrors the database file to a git-backed remote. Reads are always
// allowed; pushes require write mode, which is gated by a distributed lock
// file in the remote repository.
type Syncer struct {
	config *config.Config
	dbPath string
	owner  string
	logger logging.Logger

	mu        sync.Mutex
	writeMode bool
}

// NewSyncer creates a syncer for the given database file.
func NewSyncer(cfg *config.Config, dbPath string) *Syncer {
	owner, _ := os.Hostname()
	if owner == "" {
		owner = utils.GenerateRequestID()
	}
	return &Syncer{
		config:    cfg,
		dbPath:    dbPath,
		owner:     owner,
		logger:    logging.GetGlobalLogger(),
		writeMode: cfg.Remote.StartInWrite && !cfg.Remote.ReadOnly,
	}
}

// Configured reports whether a remote repository is set.
func (s *Syncer) Configured() bool {
	return s.config.Remote.Repo != ""
}

// InWriteMode reports whether pushes are currently allowed.
func (s *Syncer) InWriteMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeMode
}

// Owner returns this instance's lock owner identity.
func (s *Syncer) Owner() string {
	return s.owner
}

// repoURL injects the access token into the remote URL for https remotes.
func (s *Syncer) repoURL() string {
	repo := s.config.Remote.Repo
	token := s.config.Remote.Token
	if token == "" || !strings.HasPrefix(repo, "https://") {
		return repo
	}
	return "https://" + token + "@" + strings.TrimPrefix(repo, "https://")
}

func (s *Syncer) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.config.Remote.WorkDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ensureClone clones the remote into the work dir, or refreshes an existing
// clone.
func (s *Syncer) ensureClone(ctx context.Context) error {
	if !s.Configured() {
		return utils.NewValidationError("no remote repository configured")
	}

	gitDir := filepath.Join(s.config.Remote.WorkDir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(s.config.Remote.WorkDir), 0755); err != nil {
			return err
		}
		cmd := exec.CommandContext(ctx, "git", "clone", s.repoURL(), s.config.Remote.WorkDir)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	return s.git(ctx, "pull", "--ff-only")
}

// Pull fetches the remote copy of the database and replaces the local file.
func (s *Syncer) Pull(ctx context.Context) error {
	if err := s.ensureClone(ctx); err != nil {
		return err
	}

	remoteDB := filepath.Join(s.config.Remote.WorkDir, filepath.Base(s.dbPath))
	if _, err := os.Stat(remoteDB); os.IsNotExist(err) {
		return utils.NewNotFoundError("remote database file not found")
	}

	if err := copyFile(remoteDB, s.dbPath); err != nil {
		return fmt.Errorf("failed to copy database: %w", err)
	}
	s.logger.Info("Pulled database from remote", map[string]interface{}{"repo": s.config.Remote.Repo})
	return nil
}

// Push publishes the local database to the remote. Requires write mode.
func (s *Syncer) Push(ctx context.Context) error {
	if s.config.Remote.ReadOnly {
		return utils.NewReadOnlyError()
	}
	if !s.InWriteMode() {
		return utils.NewLockConflictError("write mode not enabled")
	}
	if err := s.ensureClone(ctx); err != nil {
		return err
	}

	// Refuse when another owner holds the lock; the local write-mode flag
	// may be stale after a force-unlock elsewhere.
	lock, err := s.readLock()
	if err != nil {
		return err
	}
	if lock == nil || lock.Owner != s.owner {
		s.setWriteMode(false)
		return utils.NewLockConflictError("write lock is no longer held by this instance")
	}

	remoteDB := filepath.Join(s.config.Remote.WorkDir, filepath.Base(s.dbPath))
	if err := copyFile(s.dbPath, remoteDB); err != nil {
		return fmt.Errorf("failed to stage database: %w", err)
	}

	if err := s.commitAndPush(ctx, "Sync database"); err != nil {
		return err
	}
	s.logger.Info("Pushed database to remote", map[string]interface{}{"repo": s.config.Remote.Repo})
	return nil
}

// EnableWriteMode acquires the remote write lock. An existing lock blocks
// acquisition unless it is past the configured timeout.
func (s *Syncer) EnableWriteMode(ctx context.Context) error {
	if s.config.Remote.ReadOnly {
		return utils.NewReadOnlyError()
	}
	if err := s.ensureClone(ctx); err != nil {
		return err
	}

	lock, err := s.readLock()
	if err != nil {
		return err
	}
	if lock != nil && lock.Owner != s.owner {
		if time.Since(lock.CreatedAt) < s.config.Remote.LockTimeout {
			return utils.NewLockConflictError(fmt.Sprintf("write lock held by %s since %s",
				lock.Owner, lock.CreatedAt.Format(time.RFC3339)))
		}
		s.logger.Warn("Taking over expired write lock", map[string]interface{}{
			"previous_owner": lock.Owner,
			"created_at":     lock.CreatedAt,
		})
	}

	if err := s.writeLock(&WriteLock{Owner: s.owner, CreatedAt: time.Now().UTC()}); err != nil {
		return err
	}
	if err := s.commitAndPush(ctx, "Acquire write lock"); err != nil {
		return err
	}

	s.setWriteMode(true)
	s.logger.Info("Write mode enabled", map[string]interface{}{"owner": s.owner})
	return nil
}

// DisableWriteMode releases the write lock if this instance holds it.
func (s *Syncer) DisableWriteMode(ctx context.Context) error {
	if err := s.ensureClone(ctx); err != nil {
		return err
	}

	lock, err := s.readLock()
	if err != nil {
		return err
	}
	if lock != nil && lock.Owner == s.owner {
		if err := s.removeLock(); err != nil {
			return err
		}
		if err := s.commitAndPush(ctx, "Release write lock"); err != nil {
			return err
		}
	}

	s.setWriteMode(false)
	s.logger.Info("Write mode disabled", map[string]interface{}{"owner": s.owner})
	return nil
}

// ForceUnlock removes the write lock regardless of its owner.
func (s *Syncer) ForceUnlock(ctx context.Context) error {
	if err := s.ensureClone(ctx); err != nil {
		return err
	}

	lock, err := s.readLock()
	if err != nil {
		return err
	}
	if lock == nil {
		return nil
	}

	if err := s.removeLock(); err != nil {
		return err
	}
	if err := s.commitAndPush(ctx, "Force-remove write lock"); err != nil {
		return err
	}

	s.setWriteMode(false)
	s.logger.Warn("Write lock force-removed", map[string]interface{}{"previous_owner": lock.Owner})
	return nil
}

// LockStatus returns the current remote lock, or nil when unlocked.
func (s *Syncer) LockStatus(ctx context.Context) (*WriteLock, error) {
	if err := s.ensureClone(ctx); err != nil {
		return nil, err
	}
	return s.readLock()
}

func (s *Syncer) setWriteMode(on bool) {
	s.mu.Lock()
	s.writeMode = on
	s.mu.Unlock()
}

func (s *Syncer) lockPath() string {
	return filepath.Join(s.config.Remote.WorkDir, lockFileName)
}

func (s *Syncer) readLock() (*WriteLock, error) {
	data, err := os.ReadFile(s.lockPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lock WriteLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("malformed %s: %w", lockFileName, err)
	}
	return &lock, nil
}

func (s *Syncer) writeLock(lock *WriteLock) error {
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.lockPath(), data, 0644)
}

func (s *Syncer) removeLock() error {
	err := os.Remove(s.lockPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Syncer) commitAndPush(ctx context.Context, message string) error {
	if err := s.git(ctx, "add", "-A"); err != nil {
		return err
	}
	// Commit fails when there is nothing to commit; treat that as success.
	if err := s.git(ctx, "commit", "-m", message); err != nil {
		if strings.Contains(err.Error(), "nothing to commit") {
			return nil
		}
		return err
	}
	return s.git(ctx, "push")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
