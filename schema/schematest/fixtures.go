// Package schematest holds the definitions shared by the package tests.
package schematest

import (
	"github.com/kzaag/datastar/schema"
)

func Artist() *schema.Definition {
	return &schema.Definition{
		Name: "artist",
		Columns: []schema.ColumnDef{
			{Name: "artist_id", Type: "uuid"},
			{Name: "name", Type: "text"},
			{Name: "create_date", Type: "timestamp"},
			{Name: "update_date", Type: "timestamp"},
			{Name: "members", Type: "set<text>"},
			{Name: "related_artists", Type: "set<uuid>"},
			{Name: "traits", Type: "set<text>"},
			{Name: "metadata", Type: "map<text,text>"},
		},
		Partition: []string{"artist_id"},
		Aliases:   map[string]string{"id": "artist_id"},
	}
}

func Album() *schema.Definition {
	return &schema.Definition{
		Name: "album",
		Columns: []schema.ColumnDef{
			{Name: "artist_id", Type: "uuid"},
			{Name: "album_id", Type: "uuid"},
			{Name: "name", Type: "text"},
			{Name: "track_list", Type: "list<text>"},
			{Name: "song_list", Type: "list<uuid>"},
			{Name: "release_date", Type: "timestamp"},
			{Name: "create_date", Type: "timestamp"},
			{Name: "update_date", Type: "timestamp"},
			{Name: "producer", Type: "text"},
		},
		Partition:  []string{"artist_id"},
		Clustering: []string{"album_id"},
		Aliases:    map[string]string{"id": "album_id"},
	}
}

func Person() *schema.Definition {
	return &schema.Definition{
		Name: "person",
		Columns: []schema.ColumnDef{
			{Name: "person_id", Type: "uuid"},
			{Name: "name", Type: "text"},
			{Name: "create_date", Type: "timestamp"},
			{Name: "characteristics", Type: "list<text>"},
		},
		Partition: []string{"person_id"},
		Aliases:   map[string]string{"id": "person_id"},
	}
}

func Cat() *schema.Definition {
	return &schema.Definition{
		Name: "cat",
		Columns: []schema.ColumnDef{
			{Name: "cat_id", Type: "uuid"},
			{Name: "hash", Type: "int"},
			{Name: "name", Type: "text"},
			{Name: "create_date", Type: "timestamp"},
		},
		Partition: []string{"cat_id", "hash"},
		Aliases:   map[string]string{"id": "cat_id"},
	}
}

func Dog() *schema.Definition {
	return &schema.Definition{
		Name: "dog",
		Columns: []schema.ColumnDef{
			{Name: "id", Type: "uuid", Default: schema.DefaultUUIDv4},
			{Name: "name", Type: "text", NotNull: true},
			{Name: "color", Type: "text"},
			{Name: "weight", Type: "int"},
			{Name: "vaccinations", Type: "list<text>"},
			{Name: "dog_thing", Type: "text"},
			{Name: "create_date", Type: "timestamp", Default: schema.DefaultCreate},
		},
		Partition: []string{"id"},
	}
}

// ArtistWithLookups is Artist with a lookup table on name.
func ArtistWithLookups() *schema.Definition {
	d := Artist()
	d.Lookups = []string{"name"}
	return d
}

// MustBuild panics on construction errors.
func MustBuild(d *schema.Definition) *schema.Schema {
	s, err := schema.New(d.Name, d)
	if err != nil {
		panic(err)
	}
	return s
}
