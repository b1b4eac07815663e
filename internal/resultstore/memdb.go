package resultstore

import (
	"context"
	"sort"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
)

const (
	recordsTable = "records"
	runsTable    = "runs"
	idIndex      = "id"  // index for looking up records and runs by id
	runIndex     = "run" // index for iterating over the records of a run in order
)

// MemDbStore is a Store implemented on top of https://github.com/hashicorp/go-memdb.
// Objects stored in the db are never modified; Save and SaveRun store copies.
type MemDbStore struct {
	db *memdb.MemDB
}

func NewMemDbStore() (*MemDbStore, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &MemDbStore{db: db}, nil
}

func (s *MemDbStore) SaveRun(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	r := *run
	if err := txn.Insert(runsTable, &r); err != nil {
		return errors.WithStack(err)
	}
	txn.Commit()
	return nil
}

func (s *MemDbStore) Save(ctx context.Context, records ...*Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	for _, record := range records {
		r := *record
		if err := txn.Insert(recordsTable, &r); err != nil {
			return errors.WithStack(err)
		}
	}
	txn.Commit()
	return nil
}

func (s *MemDbStore) ByRun(ctx context.Context, runID string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	it, err := txn.LowerBound(recordsTable, runIndex, runID, 0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make([]*Record, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		record := obj.(*Record)
		if record.RunID != runID {
			break
		}
		r := *record
		result = append(result, &r)
	}
	return result, nil
}

func (s *MemDbStore) Runs(ctx context.Context) ([]*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	it, err := txn.Get(runsTable, idIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make([]*Run, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		r := *obj.(*Run)
		result = append(result, &r)
	}
	sortRuns(result)
	return result, nil
}

func sortRuns(runs []*Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
}

func schema() *memdb.DBSchema {
	recordIndexes := make(map[string]*memdb.IndexSchema)
	recordIndexes[idIndex] = &memdb.IndexSchema{
		Name:    idIndex,
		Unique:  true,
		Indexer: &memdb.StringFieldIndex{Field: "ID"},
	}
	recordIndexes[runIndex] = &memdb.IndexSchema{
		Name:   runIndex,
		Unique: false,
		Indexer: &memdb.CompoundIndex{
			Indexes: []memdb.Indexer{
				&memdb.StringFieldIndex{Field: "RunID"},
				&memdb.IntFieldIndex{Field: "Seq"},
			},
		},
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			recordsTable: {
				Name:    recordsTable,
				Indexes: recordIndexes,
			},
			runsTable: {
				Name: runsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
}
