package resultstore

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

const (
	runRecordsPrefix = "Probe:Run:"
	runsKey          = "Probe:Runs"
	runInfoKey       = "Probe:RunInfo"
)

// RedisStore keeps the records of each run in a hash keyed by sequence number, and the runs themselves
// in a sorted set scored by start time.
type RedisStore struct {
	db redis.UniversalClient
}

func NewRedisStore(db redis.UniversalClient) *RedisStore {
	return &RedisStore{db: db}
}

func (s *RedisStore) SaveRun(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return errors.WithStack(err)
	}
	pipe := s.db.TxPipeline()
	pipe.HSet(runInfoKey, run.ID, data)
	pipe.ZAdd(runsKey, redis.Z{Score: float64(run.StartTime.UnixNano()), Member: run.ID})
	_, err = pipe.Exec()
	return errors.WithStack(err)
}

func (s *RedisStore) Save(ctx context.Context, records ...*Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	pipe := s.db.TxPipeline()
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return errors.WithStack(err)
		}
		pipe.HSet(runRecordsPrefix+record.RunID, strconv.Itoa(record.Seq), data)
	}
	_, err := pipe.Exec()
	return errors.WithStack(err)
}

func (s *RedisStore) ByRun(ctx context.Context, runID string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, err := s.db.HGetAll(runRecordsPrefix + runID).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make([]*Record, 0, len(values))
	for _, v := range values {
		record := &Record{}
		if err := json.Unmarshal([]byte(v), record); err != nil {
			return nil, errors.WithStack(err)
		}
		result = append(result, record)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

func (s *RedisStore) Runs(ctx context.Context) ([]*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := s.db.ZRange(runsKey, 0, -1).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make([]*Run, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	values, err := s.db.HMGet(runInfoKey, ids...).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("run %s is missing from %s", ids[i], runInfoKey)
		}
		run := &Run{}
		if err := json.Unmarshal([]byte(data), run); err != nil {
			return nil, errors.WithStack(err)
		}
		result = append(result, run)
	}
	sortRuns(result)
	return result, nil
}
