// Package resolve computes the deduplicated set of notification targets
// for an issue.
package resolve

import (
	"context"
	"log/slog"

	"city-sentinel/pkg/sentinel"
)

// FollowStore interface for the follow-relationship store.
type FollowStore interface {
	Followers(ctx context.Context, issueID string) ([]string, error)
}

// ProfileStore interface for batch preference lookup.
type ProfileStore interface {
	Profiles(ctx context.Context, userIDs []string) (map[string]*sentinel.Profile, error)
}

// Directory interface for the identity directory that maps user ids to
// contact emails.
type Directory interface {
	Email(ctx context.Context, userID string) (string, error)
}

// Resolver computes recipient targets for an issue.
type Resolver struct {
	follows   FollowStore
	profiles  ProfileStore
	directory Directory
	logger    *slog.Logger
}

// New creates a new recipient resolver.
func New(follows FollowStore, profiles ProfileStore, directory Directory, logger *slog.Logger) *Resolver {
	return &Resolver{
		follows:   follows,
		profiles:  profiles,
		directory: directory,
		logger:    logger,
	}
}

// Resolve returns the reporter (as owner) plus all followers, with no
// duplicate user ids; owner role wins when the reporter also follows the
// issue. Collaborator failures degrade the result instead of failing the
// run: a follower-list failure falls back to owner-only, a preference
// failure falls back to "wants email", and an email lookup failure leaves
// that follower in-app only.
func (r *Resolver) Resolve(ctx context.Context, issue *sentinel.IssueSnapshot) []sentinel.RecipientTarget {
	var targets []sentinel.RecipientTarget
	seen := make(map[string]bool)

	if issue.ReporterID != "" {
		// The reporter's address lives on the issue itself; no directory
		// lookup needed.
		targets = append(targets, sentinel.RecipientTarget{
			UserID:     issue.ReporterID,
			Role:       sentinel.RoleOwner,
			Email:      issue.ReporterEmail,
			WantsEmail: true,
		})
		seen[issue.ReporterID] = true
	}

	followerIDs, err := r.follows.Followers(ctx, issue.ID)
	if err != nil {
		r.logger.Warn("Failed to fetch followers, notifying reporter only",
			"issue_id", issue.ID, "error", err)
		return targets
	}

	var newIDs []string
	for _, userID := range followerIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		newIDs = append(newIDs, userID)
	}

	if len(newIDs) == 0 {
		return targets
	}

	profiles, err := r.profiles.Profiles(ctx, newIDs)
	if err != nil {
		r.logger.Warn("Failed to fetch profiles, assuming email wanted",
			"issue_id", issue.ID, "error", err)
		profiles = nil
	}

	for _, userID := range newIDs {
		address, err := r.directory.Email(ctx, userID)
		if err != nil {
			r.logger.Warn("Failed to resolve follower email, in-app only",
				"issue_id", issue.ID, "user_id", userID, "error", err)
			address = ""
		}

		targets = append(targets, sentinel.RecipientTarget{
			UserID:     userID,
			Role:       sentinel.RoleFollower,
			Email:      address,
			WantsEmail: profiles[userID].WantsEmail(),
		})
	}

	r.logger.Info("Recipients resolved",
		"issue_id", issue.ID,
		"targets", len(targets),
		"followers", len(newIDs))

	return targets
}
