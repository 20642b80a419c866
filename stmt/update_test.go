package stmt_test

import (
	"github.com/kzaag/datastar/schema"
	"github.com/kzaag/datastar/stmt"
)

func cqls(c *stmt.Compound) []string {
	var ret []string
	for _, st := range stmt.Flatten(c) {
		ret = append(ret, st.CQL)
	}
	return ret
}

func (s *BuilderTestSuite) TestUpdateCollections() {
	c := s.compound(s.builder.Update(stmt.Options{TTL: 30}, schema.Entity{
		"id":       artistID,
		"name":     "nirvana",
		"metadata": map[string]interface{}{"label": "dgc"},
		"traits": schema.SetDelta{
			Add:    []interface{}{"loud"},
			Remove: []interface{}{"quiet"},
		},
	}))
	s.Equal([]string{
		"UPDATE artist USING TTL 30 SET name = ?, traits = traits + ?, metadata = metadata + ? WHERE artist_id = ?",
		"UPDATE artist USING TTL 30 SET traits = traits - ? WHERE artist_id = ?",
	}, cqls(c))

	first := c.Statements[0].(*stmt.Statement)
	s.Equal("update-artist", first.Options.QueryName)
	s.Len(first.Params, 4)
	s.Equal(artistID, first.Params[3].Value)
	s.True(first.Params[3].IsRoutingKey)
}

func (s *BuilderTestSuite) TestUpdateSetDeltaOnly() {
	c := s.compound(s.builder.Update(stmt.Options{}, schema.Entity{
		"id": artistID,
		"traits": schema.SetDelta{
			Add:    []interface{}{"loud"},
			Remove: []interface{}{"quiet"},
		},
	}))
	s.Equal([]string{
		"UPDATE artist SET traits = traits + ? WHERE artist_id = ?",
		"UPDATE artist SET traits = traits - ? WHERE artist_id = ?",
	}, cqls(c))

	statements := stmt.Flatten(c)
	s.Require().Len(statements, 2)
	s.Equal([]interface{}{"loud"}, statements[0].Params[0].Value)
	s.Equal(artistID, statements[0].Params[1].Value)
	s.Equal([]interface{}{"quiet"}, statements[1].Params[0].Value)
	s.Equal(artistID, statements[1].Params[1].Value)
}

func (s *BuilderTestSuite) TestUpdateList() {
	c := s.compound(s.album.Update(stmt.Options{}, schema.Entity{
		"artistId": artistID,
		"id":       albumID,
		"trackList": schema.ListDelta{
			Prepend: []interface{}{"intro"},
			Append:  []interface{}{"outro"},
			Index:   map[int]interface{}{2: "lithium", 0: "drain you"},
		},
	}))
	s.Equal([]string{
		"UPDATE album SET track_list = ? + track_list, track_list[0] = ?, track_list[2] = ? " +
			"WHERE artist_id = ? AND album_id = ?",
		"UPDATE album SET track_list = track_list + ? WHERE artist_id = ? AND album_id = ?",
	}, cqls(c))

	first := c.Statements[0].(*stmt.Statement)
	s.Equal("list<text>", first.Params[0].Hint)
	s.Equal("text", first.Params[1].Hint)
	s.Equal("drain you", first.Params[1].Value)

	_, err := s.album.Update(stmt.Options{}, schema.Entity{
		"artistId":  artistID,
		"id":        albumID,
		"trackList": schema.ListDelta{Index: map[int]interface{}{-1: "x"}},
	})
	s.Error(err)
}

func (s *BuilderTestSuite) TestUpdateReplaceCollection() {
	c := s.compound(s.album.Update(stmt.Options{}, schema.Entity{
		"artistId":  artistID,
		"id":        albumID,
		"trackList": []string{"a", "b"},
	}))
	s.Equal([]string{
		"UPDATE album SET track_list = ? WHERE artist_id = ? AND album_id = ?",
	}, cqls(c))
}

func (s *BuilderTestSuite) TestUpdateMapErrors() {
	_, err := s.builder.Update(stmt.Options{}, schema.Entity{
		"id":       artistID,
		"metadata": map[string]interface{}{"bad--key": "x"},
	})
	s.Error(err)

	_, err = s.builder.Update(stmt.Options{}, schema.Entity{
		"id":       artistID,
		"metadata": "not a map",
	})
	s.Error(err)
}

func (s *BuilderTestSuite) TestUpdateRequiresKeys() {
	_, err := s.album.Update(stmt.Options{}, schema.Entity{"id": albumID, "name": "bleach"})
	s.Error(err)

	_, err = s.lookups.Update(stmt.Options{}, schema.Entity{"id": artistID, "traits": []string{"loud"}})
	s.Error(err)
}

func (s *BuilderTestSuite) TestUpdateLookupUnchanged() {
	c := s.compound(s.lookups.Update(stmt.Options{
		Previous: schema.Entity{"id": artistID, "name": "nirvana"},
	}, schema.Entity{
		"id":             artistID,
		"name":           "nirvana",
		"relatedArtists": schema.SetDelta{Add: []interface{}{related1}},
	}))
	s.Require().Len(c.Statements, 2)
	s.Equal([]string{
		"UPDATE artist SET name = ?, related_artists = related_artists + ? WHERE artist_id = ?",
	}, cqls(c.Statements[0].(*stmt.Compound)))
	s.Equal([]string{
		"UPDATE artist_by_name SET artist_id = ?, related_artists = related_artists + ? WHERE name = ?",
	}, cqls(c.Statements[1].(*stmt.Compound)))
}

func (s *BuilderTestSuite) TestUpdateLookupKeyChanged() {
	c := s.compound(s.lookups.Update(stmt.Options{
		Previous: schema.Entity{
			"id":             artistID,
			"name":           "nirvana",
			"relatedArtists": []string{related3},
			"traits":         []string{"loud"},
		},
	}, schema.Entity{
		"id":   artistID,
		"name": "foo fighters",
		"relatedArtists": schema.SetDelta{
			Add:    []interface{}{related1, related2},
			Remove: []interface{}{related3},
		},
	}))
	s.Require().Len(c.Statements, 2)

	primary := c.Statements[0].(*stmt.Compound)
	s.Equal([]string{
		"UPDATE artist SET name = ?, related_artists = related_artists + ? WHERE artist_id = ?",
		"UPDATE artist SET related_artists = related_artists - ? WHERE artist_id = ?",
	}, cqls(primary))

	replace := c.Statements[1].(*stmt.Compound)
	s.Require().Len(replace.Statements, 2)
	remove := replace.Statements[0].(*stmt.Statement)
	s.Equal("DELETE FROM artist_by_name WHERE name = ?", remove.CQL)
	s.Equal("nirvana", remove.Params[0].Value)

	insert := replace.Statements[1].(*stmt.Statement)
	s.Contains(insert.CQL, "INSERT INTO artist_by_name (")
	s.Equal("foo fighters", insert.Params[1].Value)
	s.Equal([]interface{}{related1, related2}, insert.Params[5].Value)
	s.Equal([]interface{}{"loud"}, insert.Params[6].Value)
	s.Equal(schema.NullTime, insert.Params[2].Value)
}

func (s *BuilderTestSuite) TestUpdateLookupIncompletePrevious() {
	_, err := s.lookups.Update(stmt.Options{
		Previous: schema.Entity{"name": "nirvana"},
	}, schema.Entity{"id": artistID, "name": "foo fighters"})
	s.Error(err)
}
