package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"city-sentinel/pkg/sentinel"
)

func notificationKey(id string) string {
	if !safeIDRegex.MatchString(id) {
		return ""
	}
	return fmt.Sprintf("notif-%s.json", id)
}

// InsertNotification persists one in-app notification record.
func (s *Store) InsertNotification(ctx context.Context, rec *sentinel.NotificationRecord) error {
	if err := s.save(ctx, notificationKey(rec.ID), rec); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	s.logger.Info("Notification record created",
		"notification_id", rec.ID,
		"user_id", rec.UserID,
		"issue_id", rec.IssueID,
		"type", rec.Type)
	return nil
}

// ListNotifications returns all stored notifications for a user, newest
// first. Backs the in-app notification center read path.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]*sentinel.NotificationRecord, error) {
	keys, err := s.listKeys(ctx, "notif-")
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	var recs []*sentinel.NotificationRecord
	for _, key := range keys {
		data, err := s.load(ctx, key)
		if err != nil {
			s.logger.Warn("Failed to load notification", "key", key, "error", err)
			continue
		}

		var rec sentinel.NotificationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("Skipping malformed notification", "key", key, "error", err)
			continue
		}
		if rec.UserID == userID {
			recs = append(recs, &rec)
		}
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}
