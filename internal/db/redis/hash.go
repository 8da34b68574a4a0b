package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/memrag/internal/db"
)

// maxFieldsPerCommand bounds a single HSET so large cache flushes do not build one giant command.
const maxFieldsPerCommand = 500

// HSet sets hash fields. Large field sets are split into several HSET commands sent in one
// DoMulti round-trip. Fields are written in sorted order.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	var cmds []rueidis.Completed
	for start := 0; start < len(names); start += maxFieldsPerCommand {
		end := min(start+maxFieldsPerCommand, len(names))
		cmd := s.b().Hset().Key(key).FieldValue()
		for _, name := range names[start:end] {
			cmd = cmd.FieldValue(name, fields[name])
		}
		cmds = append(cmds, cmd.Build())
	}

	if len(cmds) == 1 {
		if err := s.do(ctx, cmds[0]).Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: err}
		}
		return nil
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s part %d: %w", key, i, err)}
		}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing hash yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return map[string]string{}, nil
		}
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(key).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
