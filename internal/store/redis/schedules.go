package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/store"
	"github.com/redis/go-redis/v9"
)

// ListUsersWithActiveScheduleAt returns users due at clock ("HH:MM")
func (s *Store) ListUsersWithActiveScheduleAt(ctx context.Context, clock string) ([]string, error) {
	keys, err := s.client.SMembers(ctx, DueKey(clock)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get due users: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// ListSchedules returns a user's schedules sorted by time
func (s *Store) ListSchedules(ctx context.Context, userKey string) ([]*domain.Schedule, error) {
	raw, err := s.client.HGetAll(ctx, UserSchedulesKey(userKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get schedules: %w", err)
	}
	out := make([]*domain.Schedule, 0, len(raw))
	for clock, data := range raw {
		var sc domain.Schedule
		if err := json.Unmarshal([]byte(data), &sc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schedule %s: %w", clock, err)
		}
		out = append(out, &sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// PutSchedule upserts a schedule and keeps the due-set in sync with Active
func (s *Store) PutSchedule(ctx context.Context, sc *domain.Schedule) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, UserSchedulesKey(sc.UserKey), sc.Time, data)
		if sc.Active {
			pipe.SAdd(ctx, DueKey(sc.Time), sc.UserKey)
		} else {
			pipe.SRem(ctx, DueKey(sc.Time), sc.UserKey)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes a user's schedule at clock
func (s *Store) DeleteSchedule(ctx context.Context, userKey, clock string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, UserSchedulesKey(userKey), clock)
		pipe.SRem(ctx, DueKey(clock), userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("schedule %s: %w", clock, store.ErrNotFound)
	}
	return nil
}
