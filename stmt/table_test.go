package stmt_test

import (
	"github.com/pkg/errors"

	"github.com/kzaag/datastar/schema"
	"github.com/kzaag/datastar/schema/schematest"
	"github.com/kzaag/datastar/stmt"
)

const artistColumns = "  artist_id uuid,\n" +
	"  name text,\n" +
	"  create_date timestamp,\n" +
	"  update_date timestamp,\n" +
	"  members set<text>,\n" +
	"  related_artists set<uuid>,\n" +
	"  traits set<text>,\n" +
	"  metadata map<text,text>,\n"

func (s *BuilderTestSuite) TestEnsureTable() {
	st := s.statement(s.builder.Table(stmt.Options{Kind: stmt.TableEnsure}))
	s.Equal("CREATE TABLE IF NOT EXISTS artist (\n"+artistColumns+
		"  PRIMARY KEY (artist_id)\n);", st.CQL)
	s.Equal("ensure-table-artist", st.Options.QueryName)
	s.Equal("artist", st.Table)

	st = s.statement(s.builder.Table(stmt.Options{
		Kind:    stmt.TableEnsure,
		OrderBy: &stmt.OrderBy{Key: "createDate", Order: "desc"},
	}))
	s.Equal("CREATE TABLE IF NOT EXISTS artist (\n"+artistColumns+
		"  PRIMARY KEY (artist_id)\n) WITH CLUSTERING ORDER BY (create_date DESC);", st.CQL)

	st = s.statement(s.cat.Table(stmt.Options{Kind: stmt.TableEnsure}))
	s.Contains(st.CQL, "  PRIMARY KEY ((cat_id, hash))\n);")

	st = s.statement(s.album.Table(stmt.Options{Kind: stmt.TableEnsure}))
	s.Contains(st.CQL, "  PRIMARY KEY (artist_id, album_id)\n);")
}

func (s *BuilderTestSuite) TestEnsureTableWith() {
	st := s.statement(s.builder.Table(stmt.Options{
		Kind: stmt.TableEnsure,
		With: map[string]interface{}{
			"gcGraceSeconds": 86400,
			"orderBy":        map[string]interface{}{"key": "name", "order": "asc"},
		},
	}))
	s.Contains(st.CQL, ") WITH gc_grace_seconds = 86400 AND CLUSTERING ORDER BY (name ASC);")

	_, err := s.builder.Table(stmt.Options{
		Kind:    stmt.TableEnsure,
		OrderBy: &stmt.OrderBy{Key: "nope"},
	})
	s.Error(err)
}

func (s *BuilderTestSuite) TestLookupTable() {
	st := s.statement(s.builder.Table(stmt.Options{Kind: stmt.TableEnsure, LookupKey: "name"}))
	s.Equal("CREATE TABLE IF NOT EXISTS artist_by_name (\n"+artistColumns+
		"  PRIMARY KEY (name)\n);", st.CQL)
	s.Equal("artist_by_name", st.Table)

	st = s.statement(s.builder.Table(stmt.Options{Kind: stmt.TableEnsure, LookupKey: "createDate"}))
	s.Equal("artist_by_create", st.Table)

	st = s.statement(s.builder.Table(stmt.Options{
		Kind:      stmt.TableEnsure,
		LookupKey: "name",
		UseIndex:  true,
	}))
	s.Equal("CREATE INDEX IF NOT EXISTS artist_name on artist(name)", st.CQL)
	s.Equal("ensure-index-artist_name", st.Options.QueryName)

	st = s.statement(s.builder.Table(stmt.Options{
		Kind:      stmt.TableDrop,
		LookupKey: "name",
		UseIndex:  true,
	}))
	s.Equal("DROP INDEX artist_name", st.CQL)

	_, err := s.builder.Table(stmt.Options{Kind: stmt.TableEnsure, LookupKey: "metadata"})
	s.Error(err)
	_, err = s.builder.Table(stmt.Options{Kind: stmt.TableEnsure, LookupKey: "members"})
	s.Error(err)
}

func (s *BuilderTestSuite) TestLookupTableNames() {
	sch, err := schema.NewBuilder("artist", schematest.Artist()).
		LookupTables(map[string]string{"name": "artist_names"}).
		Build()
	s.Require().NoError(err)

	st := s.statement(stmt.NewBuilder(sch).Table(stmt.Options{Kind: stmt.TableEnsure, LookupKey: "name"}))
	s.Equal("artist_names", st.Table)
}

func (s *BuilderTestSuite) TestDropTable() {
	st := s.statement(s.builder.Table(stmt.Options{Kind: stmt.TableDrop}))
	s.Equal("DROP TABLE artist", st.CQL)
	s.Equal("drop-table-artist", st.Options.QueryName)

	prod := stmt.NewBuilder(schematest.MustBuild(schematest.Artist()), stmt.WithEnvironment("production"))
	_, err := prod.Table(stmt.Options{Kind: stmt.TableDrop})
	s.Equal(stmt.ErrProductionDrop, errors.Cause(err))

	st = s.statement(prod.Table(stmt.Options{Kind: stmt.TableDrop, Force: true}))
	s.Equal("DROP TABLE artist", st.CQL)

	st = s.statement(prod.Table(stmt.Options{Kind: stmt.TableEnsure}))
	s.Contains(st.CQL, "CREATE TABLE IF NOT EXISTS artist (")

	_, err = s.builder.Table(stmt.Options{Kind: "truncate"})
	s.Error(err)
}

func (s *BuilderTestSuite) TestAlter() {
	st := s.statement(s.builder.Alter(stmt.Options{
		AlterType: "table",
		With:      map[string]interface{}{"comment": "artists"},
	}))
	s.Equal("ALTER TABLE artist WITH comment = 'artists'", st.CQL)
	s.Equal("alter-table-artist", st.Options.QueryName)

	st = s.statement(s.builder.Alter(stmt.Options{
		AlterType:  "TABLE",
		Table:      "artist_by_name",
		AddColumns: []schema.ColumnDef{{Name: "genre", Type: "text"}},
	}))
	s.Equal("ALTER TABLE artist_by_name ADD genre text", st.CQL)

	st = s.statement(s.builder.Alter(stmt.Options{
		AlterType: "TABLE",
		AddColumns: []schema.ColumnDef{
			{Name: "genre", Type: "text"},
			{Name: "tags", Type: "set<text>"},
		},
	}))
	s.Equal("ALTER TABLE artist ADD (genre text, tags set<text>)", st.CQL)

	testcases := []struct {
		name string
		opts stmt.Options
	}{
		{"bad type", stmt.Options{AlterType: "INDEX", With: map[string]interface{}{"comment": "x"}}},
		{"bad with value", stmt.Options{AlterType: "TABLE", With: map[string]interface{}{"comment": true}}},
		{"nothing", stmt.Options{AlterType: "TABLE"}},
		{"add and with", stmt.Options{
			AlterType:  "TABLE",
			With:       map[string]interface{}{"comment": "x"},
			AddColumns: []schema.ColumnDef{{Name: "genre", Type: "text"}},
		}},
	}
	for _, tc := range testcases {
		_, err := s.builder.Alter(tc.opts)
		s.Error(err, tc.name)
	}
}
