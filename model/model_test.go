package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gocql/gocql"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/kzaag/datastar/collection"
	"github.com/kzaag/datastar/driver/drivertest"
	"github.com/kzaag/datastar/schema"
	"github.com/kzaag/datastar/schema/schematest"
	"github.com/kzaag/datastar/stmt"
)

const (
	artistID = "6a0b5d0e-7a8c-4c3a-9a43-8a3d0b9b4a01"
	otherID  = "6a0b5d0e-7a8c-4c3a-9a43-8a3d0b9b4a02"
)

type ModelTestSuite struct {
	suite.Suite
	ctx     context.Context
	rec     *drivertest.Recorder
	artist  *Model
	lookups *Model
}

func (s *ModelTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.rec = drivertest.New()

	var err error
	s.artist, err = New(s.rec, schematest.Artist(), Options{})
	s.Require().NoError(err)
	s.lookups, err = New(s.rec, schematest.Artist(), Options{
		LookupKeys:       []string{"name"},
		WriteConsistency: gocql.LocalQuorum,
	})
	s.Require().NoError(err)
}

func TestModelTestSuite(t *testing.T) {
	suite.Run(t, new(ModelTestSuite))
}

func (s *ModelTestSuite) batchCQL(i int) []string {
	s.Require().True(len(s.rec.Batches) > i)
	var ret []string
	for _, q := range s.rec.Batches[i].Queries {
		ret = append(ret, q.CQL)
	}
	return ret
}

func (s *ModelTestSuite) TestNewErrors() {
	_, err := New(s.rec, schematest.Cat(), Options{LookupKeys: []string{"name"}})
	s.Equal(schema.ErrCompositeLookup, pkgerrors.Cause(err))

	_, err = New(s.rec, schematest.Artist(), Options{LookupKeys: []string{"nope"}})
	s.Error(err)
}

func (s *ModelTestSuite) TestCreate() {
	_, err := s.artist.Create(s.ctx, WriteOptions{
		Entities: []schema.Entity{{"id": artistID, "name": "hello there"}},
		TTL:      60,
	})
	s.Require().NoError(err)

	s.Require().Len(s.rec.Batches, 1)
	b := s.rec.Batches[0]
	s.Equal(gocql.One, b.Consistency)
	s.Require().Len(b.Queries, 1)
	q := b.Queries[0]
	s.True(strings.HasPrefix(q.CQL, "INSERT INTO artist ("))
	s.Contains(q.CQL, "USING TTL 60")
	s.Equal(artistID, q.Params[0].Value)
	s.Equal("hello there", q.Params[1].Value)
	s.Equal(schema.NullTime, q.Params[2].Value)
}

func (s *ModelTestSuite) TestCreateLookups() {
	_, err := s.lookups.Create(s.ctx, WriteOptions{
		Entities: []schema.Entity{
			{"id": artistID, "name": "nirvana"},
			{"id": otherID, "name": "hole"},
		},
	})
	s.Require().NoError(err)

	cql := s.batchCQL(0)
	s.Len(cql, 4)
	s.Contains(cql[1], "INSERT INTO artist_by_name")
	s.Equal(gocql.LocalQuorum, s.rec.Batches[0].Consistency)
}

func (s *ModelTestSuite) TestWriteIntoStatements() {
	statements := collection.New(s.rec, collection.Batch)
	ret, err := s.artist.Create(s.ctx, WriteOptions{
		Entities:   []schema.Entity{{"id": artistID, "name": "nirvana"}},
		Statements: statements,
	})
	s.Require().NoError(err)
	s.Equal(statements, ret)
	s.Equal(1, statements.Len())
	s.Empty(s.rec.Batches)

	_, err = s.artist.Remove(s.ctx, WriteOptions{
		Entities:   []schema.Entity{{"id": otherID}},
		Statements: statements,
	})
	s.Require().NoError(err)
	s.Require().NoError(statements.Execute(s.ctx))
	s.Equal([]string{
		s.batchCQL(0)[0],
		"DELETE FROM artist WHERE artist_id = ?",
	}, s.batchCQL(0))
}

func (s *ModelTestSuite) TestWriteErrors() {
	_, err := s.artist.Create(s.ctx, WriteOptions{})
	s.Equal(ErrNoEntities, err)

	_, err = s.artist.Update(s.ctx, WriteOptions{
		Entities: []schema.Entity{{"id": artistID}, {"id": otherID}},
		Previous: []schema.Entity{{"id": artistID}},
	})
	s.Equal(ErrPreviousMismatch, err)

	_, err = s.artist.Create(s.ctx, WriteOptions{
		Entities: []schema.Entity{{"id": artistID, "genre": "grunge"}},
	})
	s.Error(err)
	s.Empty(s.rec.Batches)
}

func (s *ModelTestSuite) TestUpdateFetchesPrevious() {
	s.rec.On("Rows", mock.Anything).Return([]schema.Entity{{"artist_id": artistID, "name": "nirvana", "traits": nil}}, nil)

	_, err := s.lookups.Update(s.ctx, WriteOptions{
		Entities: []schema.Entity{{"id": artistID, "name": "foo fighters"}},
	})
	s.Require().NoError(err)

	s.Require().Len(s.rec.Queries, 1)
	find := s.rec.Queries[0]
	s.Contains(find.CQL, "FROM artist WHERE artist_id = ?")
	s.Equal(drivertest.Single, find.Mode)
	s.Equal(gocql.One, find.Consistency)

	cql := s.batchCQL(0)
	s.Require().Len(cql, 3)
	s.Equal("UPDATE artist SET name = ? WHERE artist_id = ?", cql[0])
	s.Equal("DELETE FROM artist_by_name WHERE name = ?", cql[1])
	s.Contains(cql[2], "INSERT INTO artist_by_name")
	s.Equal("nirvana", s.rec.Batches[0].Queries[1].Params[0].Value)
}

func (s *ModelTestSuite) TestUpdateWithPrevious() {
	_, err := s.lookups.Update(s.ctx, WriteOptions{
		Entities: []schema.Entity{{"id": artistID, "name": "nirvana", "traits": []string{"loud"}}},
		Previous: []schema.Entity{{"id": artistID, "name": "nirvana"}},
	})
	s.Require().NoError(err)
	s.Empty(s.rec.Queries)
	s.Equal([]string{
		"UPDATE artist SET name = ?, traits = ? WHERE artist_id = ?",
		"UPDATE artist_by_name SET artist_id = ?, traits = ? WHERE name = ?",
	}, s.batchCQL(0))
}

func (s *ModelTestSuite) TestUpdateWithoutPrimaryKey() {
	_, err := s.lookups.Update(s.ctx, WriteOptions{
		Entities: []schema.Entity{{"name": "nirvana"}},
	})
	s.Equal(schema.ErrInsufficientConditions, pkgerrors.Cause(err))
	s.Empty(s.rec.Queries)
}

func (s *ModelTestSuite) TestExecuteError() {
	s.rec.On("ExecBatch", mock.Anything).Return(errors.New("unavailable"))
	_, err := s.artist.Create(s.ctx, WriteOptions{
		Entities: []schema.Entity{{"id": artistID}},
	})
	s.EqualError(err, "unavailable")
}

func (s *ModelTestSuite) TestFind() {
	s.rec.On("Rows", mock.Anything).Return([]schema.Entity{
		{"artist_id": artistID, "name": schema.NullText, "create_date": schema.NullTime},
		{"artist_id": otherID, "name": "hole"},
	}, nil)

	all, err := s.artist.FindAll(s.ctx, FindOptions{Conditions: schema.Entity{}})
	s.Require().NoError(err)
	s.Equal([]schema.Entity{
		{"id": artistID, "name": nil, "createDate": nil},
		{"id": otherID, "name": "hole"},
	}, all)
	s.True(strings.HasPrefix(s.rec.Queries[0].CQL, `SELECT "artist_id", "name"`))
	s.True(strings.HasSuffix(s.rec.Queries[0].CQL, " FROM artist"))

	first, err := s.artist.FindFirst(s.ctx, FindOptions{
		Conditions:  schema.Entity{"id": []string{artistID, otherID}},
		Consistency: gocql.Quorum,
		PageSize:    50,
	})
	s.Require().NoError(err)
	s.Equal(artistID, first["id"])
	q := s.rec.Queries[1]
	s.Equal(drivertest.First, q.Mode)
	s.Equal(gocql.Quorum, q.Consistency)
	s.Equal(50, q.Options.PageSize)
	s.Contains(q.CQL, "WHERE artist_id IN (?, ?)")
}

func (s *ModelTestSuite) TestFindOneAndGet() {
	s.rec.On("Rows", mock.Anything).Return([]schema.Entity{{"artist_id": artistID, "name": "nirvana"}}, nil).Once()
	one, err := s.artist.Get(s.ctx, artistID)
	s.Require().NoError(err)
	s.Equal(schema.Entity{"id": artistID, "name": "nirvana"}, one)
	s.Equal(drivertest.Single, s.rec.Queries[0].Mode)
	s.Equal(artistID, s.rec.Queries[0].Params[0].Value)

	s.rec.On("Rows", mock.Anything).Return([]schema.Entity(nil), nil)
	one, err = s.artist.FindOne(s.ctx, FindOptions{Conditions: schema.Entity{"id": otherID}})
	s.Require().NoError(err)
	s.Nil(one)
}

func (s *ModelTestSuite) TestCount() {
	s.rec.On("Rows", mock.Anything).Return([]schema.Entity{{"count": int64(3)}}, nil)
	n, err := s.artist.Count(s.ctx, FindOptions{Conditions: schema.Entity{"id": artistID}})
	s.Require().NoError(err)
	s.Equal(int64(3), n)
	s.Equal("SELECT COUNT(*) FROM artist WHERE artist_id = ?", s.rec.Queries[0].CQL)
}

func (s *ModelTestSuite) TestFindErrors() {
	_, err := s.artist.Find(s.ctx, FindOptions{})
	s.Equal(ErrNoConditions, err)

	_, err = s.artist.Find(s.ctx, FindOptions{Type: "many", Conditions: schema.Entity{}})
	s.Equal(ErrInvalidFindType, pkgerrors.Cause(err))

	_, err = s.artist.Find(s.ctx, FindOptions{Conditions: schema.Entity{"name": "nirvana"}})
	s.Equal(schema.ErrInsufficientConditions, pkgerrors.Cause(err))

	s.rec.On("Rows", mock.Anything).Return([]schema.Entity(nil), errors.New("read timeout"))
	_, err = s.artist.FindAll(s.ctx, FindOptions{Conditions: schema.Entity{}})
	s.EqualError(err, "read timeout")
	s.Len(s.rec.Queries, 1)
}

func (s *ModelTestSuite) TestHooks() {
	var calls []string
	s.artist.Before("find:first", func(ctx context.Context, op *Operation) error {
		calls = append(calls, "before 1 "+op.Phase)
		op.Find.Limit = 1
		return nil
	})
	s.artist.Before("find:first", func(ctx context.Context, op *Operation) error {
		calls = append(calls, "before 2")
		return nil
	})
	s.artist.After("find:first", func(ctx context.Context, op *Operation) error {
		calls = append(calls, "after")
		op.Result = schema.Entity{"replaced": true}
		return nil
	})

	res, err := s.artist.FindFirst(s.ctx, FindOptions{Conditions: schema.Entity{}})
	s.Require().NoError(err)
	s.Equal(schema.Entity{"replaced": true}, res)
	s.Equal([]string{"before 1 find:first", "before 2", "after"}, calls)
	s.Contains(s.rec.Queries[0].CQL, "LIMIT 1")
}

func (s *ModelTestSuite) TestHookShortCircuit() {
	stop := errors.New("stop")
	var after bool
	s.artist.Before("create:execute", func(ctx context.Context, op *Operation) error {
		s.Equal(1, op.Statements.Len())
		return stop
	})
	s.artist.After("create:execute", func(ctx context.Context, op *Operation) error {
		after = true
		return nil
	})

	_, err := s.artist.Create(s.ctx, WriteOptions{Entities: []schema.Entity{{"id": artistID}}})
	s.Equal(stop, err)
	s.False(after)
	s.Empty(s.rec.Batches)
}

func (s *ModelTestSuite) TestBuildHookRewritesEntities() {
	s.artist.Before("create:build", func(ctx context.Context, op *Operation) error {
		for _, e := range op.Write.Entities {
			e["name"] = strings.ToUpper(e["name"].(string))
		}
		return nil
	})
	_, err := s.artist.Create(s.ctx, WriteOptions{
		Entities: []schema.Entity{{"id": artistID, "name": "nirvana"}},
	})
	s.Require().NoError(err)
	s.Equal("NIRVANA", s.rec.Batches[0].Queries[0].Params[1].Value)
}

func (s *ModelTestSuite) TestFindIter() {
	s.rec.On("Rows", mock.Anything).Return([]schema.Entity{
		{"artist_id": artistID},
		{"artist_id": otherID},
	}, nil).Once()
	it, err := s.artist.FindIter(s.ctx, FindOptions{Conditions: schema.Entity{}})
	s.Require().NoError(err)
	defer it.Close()

	var ids []interface{}
	for {
		e, err := it.Next()
		s.Require().NoError(err)
		if e == nil {
			break
		}
		ids = append(ids, e["id"])
	}
	s.Equal([]interface{}{artistID, otherID}, ids)

	s.rec.On("Rows", mock.Anything).Return([]schema.Entity(nil), errors.New("read failure"))
	it, err = s.artist.FindIter(s.ctx, FindOptions{Conditions: schema.Entity{}})
	s.Require().NoError(err)
	e, err := it.Next()
	s.Nil(e)
	s.EqualError(err, "read failure")

	_, err = s.artist.FindIter(s.ctx, FindOptions{Type: stmt.FindCount, Conditions: schema.Entity{}})
	s.Error(err)
}

func (s *ModelTestSuite) TestEnsureTables() {
	_, err := s.lookups.EnsureTables(s.ctx, TableOptions{
		With: map[string]interface{}{"gcGraceSeconds": 3600},
	})
	s.Require().NoError(err)
	s.Empty(s.rec.Batches)
	s.Require().Len(s.rec.Queries, 2)

	var tables []string
	for _, q := range s.rec.Queries {
		s.Contains(q.CQL, "WITH gc_grace_seconds = 3600;")
		tables = append(tables, strings.SplitN(q.CQL, " ", 7)[5])
	}
	s.ElementsMatch([]string{"artist", "artist_by_name"}, tables)
}

func (s *ModelTestSuite) TestDropTables() {
	statements := collection.New(s.rec, collection.Concurrent(10))
	_, err := s.lookups.DropTables(s.ctx, TableOptions{Statements: statements})
	s.Require().NoError(err)
	s.Equal(2, statements.Len())
	s.Empty(s.rec.Queries)

	prod, err := New(s.rec, schematest.Artist(), Options{Environment: "prod"})
	s.Require().NoError(err)
	_, err = prod.DropTables(s.ctx, TableOptions{})
	s.Equal(stmt.ErrProductionDrop, pkgerrors.Cause(err))

	_, err = prod.DropTables(s.ctx, TableOptions{Force: true})
	s.Require().NoError(err)
	s.Equal("DROP TABLE artist", s.rec.Queries[0].CQL)
}
