// Package storage handles persistence of issues, follows, profiles and
// notification records.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"city-sentinel/pkg/sentinel"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

var safeIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]{1,128}$`)

// Store reads and writes entity records as JSON objects, either on the
// local filesystem (development) or in a Cloud Storage bucket (production).
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
}

// New creates a new storage handler. When localPath is non-empty the local
// filesystem is used and the client may be nil.
func New(client *storage.Client, bucket, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
	}
}

// issueKey generates a stable object name for an issue snapshot.
// Validates the id to prevent path traversal.
func issueKey(issueID string) string {
	if !safeIDRegex.MatchString(issueID) {
		return ""
	}
	return fmt.Sprintf("issue-%s.json", issueID)
}

func followsKey(issueID string) string {
	if !safeIDRegex.MatchString(issueID) {
		return ""
	}
	return fmt.Sprintf("follows-%s.json", issueID)
}

func profileKey(userID string) string {
	if !safeIDRegex.MatchString(userID) {
		return ""
	}
	return fmt.Sprintf("profile-%s.json", userID)
}

func userKey(userID string) string {
	if !safeIDRegex.MatchString(userID) {
		return ""
	}
	return fmt.Sprintf("user-%s.json", userID)
}

// Issue loads an issue snapshot by id.
func (s *Store) Issue(ctx context.Context, issueID string) (*sentinel.IssueSnapshot, error) {
	data, err := s.load(ctx, issueKey(issueID))
	if err != nil {
		return nil, err
	}

	var issue sentinel.IssueSnapshot
	if err := json.Unmarshal(data, &issue); err != nil {
		return nil, fmt.Errorf("unmarshal issue: %w", err)
	}
	return &issue, nil
}

// SaveIssue stores an issue snapshot.
func (s *Store) SaveIssue(ctx context.Context, issue *sentinel.IssueSnapshot) error {
	return s.save(ctx, issueKey(issue.ID), issue)
}

// followList is the stored shape of an issue's follow relationships.
type followList struct {
	IssueID string   `json:"issue_id"`
	UserIDs []string `json:"user_ids"`
}

// Followers returns the user ids following an issue. A missing follow
// record means the issue simply has no followers.
func (s *Store) Followers(ctx context.Context, issueID string) ([]string, error) {
	data, err := s.load(ctx, followsKey(issueID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var follows followList
	if err := json.Unmarshal(data, &follows); err != nil {
		return nil, fmt.Errorf("unmarshal follows: %w", err)
	}
	return follows.UserIDs, nil
}

// SaveFollowers stores the follower list for an issue.
func (s *Store) SaveFollowers(ctx context.Context, issueID string, userIDs []string) error {
	return s.save(ctx, followsKey(issueID), followList{IssueID: issueID, UserIDs: userIDs})
}

// Profiles batch-loads notification profiles by user id. Users without a
// stored profile are omitted; callers treat absence as "wants email".
func (s *Store) Profiles(ctx context.Context, userIDs []string) (map[string]*sentinel.Profile, error) {
	profiles := make(map[string]*sentinel.Profile, len(userIDs))
	for _, userID := range userIDs {
		data, err := s.load(ctx, profileKey(userID))
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return profiles, err
		}

		var profile sentinel.Profile
		if err := json.Unmarshal(data, &profile); err != nil {
			s.logger.Warn("Skipping malformed profile", "user_id", userID, "error", err)
			continue
		}
		profiles[userID] = &profile
	}
	return profiles, nil
}

// SaveProfile stores a user's notification profile.
func (s *Store) SaveProfile(ctx context.Context, profile *sentinel.Profile) error {
	return s.save(ctx, profileKey(profile.UserID), profile)
}

// userRecord is a directory entry mapping a user id to a contact email.
type userRecord struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Email resolves a user's contact email from the identity directory.
// Returns an empty string when the user has no directory entry.
func (s *Store) Email(ctx context.Context, userID string) (string, error) {
	data, err := s.load(ctx, userKey(userID))
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}

	var user userRecord
	if err := json.Unmarshal(data, &user); err != nil {
		return "", fmt.Errorf("unmarshal user: %w", err)
	}
	return user.Email, nil
}

// SaveUser stores a directory entry.
func (s *Store) SaveUser(ctx context.Context, userID, email string) error {
	return s.save(ctx, userKey(userID), userRecord{UserID: userID, Email: email})
}

// load reads raw object bytes by key.
func (s *Store) load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("invalid key format")
	}

	// Local filesystem storage
	if s.localPath != "" {
		data, err := os.ReadFile(filepath.Join(s.localPath, key))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New("storage: object doesn't exist")
			}
			return nil, fmt.Errorf("read from local storage: %w", err)
		}
		return data, nil
	}

	// Cloud Storage with retry logic for reliability
	var readData []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
			if openErr != nil {
				// Don't retry on "not found" errors
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(errors.New("storage: object doesn't exist"))
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			readData, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying load operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.New("storage: object doesn't exist")
		}
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return readData, nil
}

// save writes a record as indented JSON under the given key.
func (s *Store) save(ctx context.Context, key string, record any) error {
	if key == "" {
		return errors.New("invalid key format")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	// Local filesystem storage
	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, key)
		if err := os.WriteFile(filePath, data, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		s.logger.Debug("Record saved to local storage", "path", filePath)
		return nil
	}

	// Cloud Storage with retry logic for reliability
	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying save operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	s.logger.Debug("Record saved", "key", key)
	return nil
}

// listKeys returns all object keys with the given prefix.
func (s *Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	// Local filesystem storage
	if s.localPath != "" {
		entries, err := os.ReadDir(s.localPath)
		if err != nil {
			return nil, fmt.Errorf("read local storage directory: %w", err)
		}

		var keys []string
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			keys = append(keys, entry.Name())
		}
		return keys, nil
	}

	// Cloud Storage
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// IsNotFound checks if an error indicates a record was not found.
func IsNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "storage: object doesn't exist")
}
