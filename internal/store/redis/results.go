package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AppendResult pushes a result on the head of the target's history
func (s *Store) AppendResult(ctx context.Context, r *domain.CheckResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := s.client.LPush(ctx, ResultsKey(r.TargetID), data).Err(); err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}
	return nil
}

// LatestResults reads the head of each target's history in one pipeline
func (s *Store) LatestResults(ctx context.Context, targetIDs []string) (map[string]*domain.CheckResult, error) {
	out := make(map[string]*domain.CheckResult, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(targetIDs))
	for i, id := range targetIDs {
		cmds[i] = pipe.LIndex(ctx, ResultsKey(id), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get latest results: %w", err)
	}

	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get latest result of %s: %w", targetIDs[i], err)
		}
		var r domain.CheckResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		out[targetIDs[i]] = &r
	}
	return out, nil
}

// DeleteResults drops a target's history
func (s *Store) DeleteResults(ctx context.Context, targetID string) error {
	if err := s.client.Del(ctx, ResultsKey(targetID)).Err(); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	return nil
}
