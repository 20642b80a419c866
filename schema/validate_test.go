package schema_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzaag/datastar/schema"
	"github.com/kzaag/datastar/schema/schematest"
)

func TestValidateCreate(t *testing.T) {
	dog := schematest.MustBuild(schematest.Dog())

	out, err := dog.Validate(schema.Entity{"name": "fido", "weight": 12.0}, schema.ModeCreate)
	require.NoError(t, err)
	assert.Len(t, out["id"], 36)
	assert.IsType(t, time.Time{}, out["create_date"])
	assert.Equal(t, int64(12), out["weight"])

	_, err = dog.Validate(schema.Entity{"name": nil}, schema.ModeCreate)
	assert.Error(t, err)

	_, err = dog.Validate(schema.Entity{"name": "fido", "weight": 1.5}, schema.ModeCreate)
	assert.Error(t, err)

	_, err = dog.Validate(schema.Entity{"name": "fido", "bogus": 1}, schema.ModeCreate)
	assert.Error(t, err)
}

func TestValidateIntRange(t *testing.T) {
	dog := schematest.MustBuild(schematest.Dog())

	for _, w := range []interface{}{1e30, -1e30, math.Inf(1), math.Inf(-1), math.NaN(), float64(1 << 63)} {
		_, err := dog.Validate(schema.Entity{"name": "fido", "weight": w}, schema.ModeCreate)
		assert.Error(t, err, "%v", w)
	}

	out, err := dog.Validate(schema.Entity{"name": "fido", "weight": -float64(1 << 62)}, schema.ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, int64(-1<<62), out["weight"])
}

func TestValidateRequiresLookupKeys(t *testing.T) {
	s := schematest.MustBuild(schematest.ArtistWithLookups())

	_, err := s.Validate(schema.Entity{"artist_id": artistID}, schema.ModeCreate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	out, err := s.Validate(schema.Entity{"artist_id": artistID, "name": "nirvana"}, schema.ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, "nirvana", out["name"])

	_, err = s.Validate(schema.Entity{"name": "nirvana"}, schema.ModeUpdate)
	assert.NoError(t, err)
}

func TestValidateRejectsEmptyKeys(t *testing.T) {
	album := schematest.MustBuild(schematest.Album())
	for _, bad := range []interface{}{nil, "", schema.NullUUID} {
		_, err := album.Validate(schema.Entity{"artist_id": bad, "album_id": artistID}, schema.ModeCreate)
		assert.Error(t, err, "%v", bad)
	}

	lookups := schematest.MustBuild(schematest.ArtistWithLookups())
	_, err := lookups.Validate(schema.Entity{"artist_id": artistID, "name": ""}, schema.ModeCreate)
	assert.Contains(t, err.Error(), "name is required")

	s, err := schema.New("tag", &schema.Definition{
		Name: "tag",
		Columns: []schema.ColumnDef{
			{Name: "tag_id", Type: "uuid", Default: schema.DefaultUUIDEmpty},
			{Name: "label", Type: "text"},
		},
		Partition: []string{"tag_id"},
	})
	require.NoError(t, err)
	_, err = s.Validate(schema.Entity{"label": "x"}, schema.ModeCreate)
	assert.Contains(t, err.Error(), "tag_id is required")
}

func TestValidateCollections(t *testing.T) {
	s := schematest.MustBuild(schematest.Artist())
	album := schematest.MustBuild(schematest.Album())

	out, err := s.Validate(schema.Entity{
		"members":  map[string]interface{}{"add": []string{"a"}, "remove": []string{"b"}},
		"metadata": map[string]string{"k": "v"},
	}, schema.ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, schema.SetDelta{Add: []interface{}{"a"}, Remove: []interface{}{"b"}}, out["members"])
	assert.Equal(t, map[string]interface{}{"k": "v"}, out["metadata"])

	_, err = s.Validate(schema.Entity{
		"members": map[string]interface{}{"add": []string{"a"}},
	}, schema.ModeCreate)
	assert.Error(t, err)

	out, err = album.Validate(schema.Entity{
		"track_list": map[string]interface{}{"index": map[string]interface{}{"1": "x"}},
	}, schema.ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, schema.ListDelta{Index: map[int]interface{}{1: "x"}}, out["track_list"])

	for _, bad := range []string{"-1", "one"} {
		_, err = album.Validate(schema.Entity{
			"track_list": map[string]interface{}{"index": map[string]interface{}{bad: "x"}},
		}, schema.ModeUpdate)
		assert.Error(t, err, bad)
	}

	_, err = album.Validate(schema.Entity{
		"track_list": schema.ListDelta{Index: map[int]interface{}{-2: "x"}},
	}, schema.ModeUpdate)
	assert.Error(t, err)

	_, err = album.Validate(schema.Entity{"song_list": []string{"not-a-uuid"}}, schema.ModeUpdate)
	assert.Error(t, err)
}

func TestValidateCustomValidator(t *testing.T) {
	var seen schema.Mode
	s, err := schema.NewBuilder("artist", schematest.ArtistWithLookups()).
		Validator(schema.ValidatorFunc(func(_ *schema.Schema, e schema.Entity, m schema.Mode) (schema.Entity, error) {
			seen = m
			return e, nil
		})).
		Build()
	require.NoError(t, err)

	_, err = s.Validate(schema.Entity{"artist_id": artistID}, schema.ModeCreate)
	assert.Error(t, err)
	assert.Equal(t, schema.ModeCreate, seen)
}

func TestHasAllRequiredKeys(t *testing.T) {
	s := schematest.MustBuild(schematest.Artist())
	assert.False(t, s.HasAllRequiredKeys(nil, nil))
	assert.True(t, s.HasAllRequiredKeys(schema.Entity{"name": "x"}, schema.Entity{"id": artistID}))
	assert.False(t, s.HasAllRequiredKeys(schema.Entity{"name": 1}, nil))
}
