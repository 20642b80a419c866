package cass

import (
	"context"
	"fmt"
	"os"

	"github.com/uber-go/tally/v4"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
	"github.com/kzaag/datastar/stmt"
	"github.com/kzaag/datastar/target"
)

// LoadBuilders builds a statement builder for every definition found
// under paths.
func LoadBuilders(paths []string, opts ...stmt.BuilderOption) ([]*stmt.Builder, error) {
	var ret []*stmt.Builder
	for _, p := range paths {
		defs, err := schema.LoadDefinitions(p)
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			s, err := schema.New(d.Name, d)
			if err != nil {
				return nil, err
			}
			ret = append(ret, stmt.NewBuilder(s, opts...))
		}
	}
	return ret, nil
}

// TableScript returns the ensure or drop statement of every physical
// table of the builders.
func TableScript(builders []*stmt.Builder, kind stmt.TableKind, force bool) ([]string, error) {
	var ret []string
	for _, b := range builders {
		for _, t := range PhysicalTables(b.Schema()) {
			e, err := b.Table(stmt.Options{Kind: kind, LookupKey: t.LookupKey, Force: force})
			if err != nil {
				return nil, err
			}
			ret = append(ret, cqlOf(e)...)
		}
	}
	return ret, nil
}

func cqlOf(executables ...stmt.Executable) []string {
	var ret []string
	for _, e := range executables {
		for _, s := range stmt.Flatten(e) {
			ret = append(ret, s.CQL)
		}
	}
	return ret
}

func getScript(ctx context.Context, db interface{}, t *target.Target, e *target.Exec) ([]string, error) {
	var opts []stmt.BuilderOption
	if t.Environment != "" {
		opts = append(opts, stmt.WithEnvironment(t.Environment))
	}
	builders, err := LoadBuilders(e.Args, opts...)
	if err != nil {
		return nil, err
	}

	switch e.Type {
	case target.ExecEnsure:
		return TableScript(builders, stmt.TableEnsure, false)
	case target.ExecDrop:
		return TableScript(builders, stmt.TableDrop, e.Force)
	case target.ExecMerge:
		merged, err := Merge(db.(*Connection).Session, t.Database, builders)
		if err != nil {
			return nil, err
		}
		return cqlOf(merged...), nil
	}
	return nil, fmt.Errorf("unknown exec type %s", e.Type)
}

func dbNew(t *target.Target) (interface{}, error) {
	if err := t.EnsurePassword(os.Stderr, target.ReadTerminalPassword); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Hosts = t.Server
	cfg.Keyspace = t.Database
	cfg.Username = t.User
	cfg.Password = t.Password
	cfg.Consistency = t.GetString("consistency", cfg.Consistency)
	for name, v := range map[string]*int{
		"timeout":  &cfg.Timeout,
		"retries":  &cfg.Retries,
		"interval": &cfg.Interval,
	} {
		if err := t.GetInt(name, v); err != nil {
			return nil, err
		}
	}

	sess, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return NewConnection(sess, t.Database, tally.NoopScope), nil
}

func dbClose(db interface{}) {
	db.(*Connection).Close()
}

func dbExec(ctx context.Context, db interface{}, cql string) error {
	return db.(*Connection).BeginQuery().
		Query(cql).
		Options(driver.QueryOptions{QueryName: "stmt"}).
		Exec(ctx)
}

func TargetCtxNew() *target.Ctx {
	return &target.Ctx{
		DbNew:     dbNew,
		DbClose:   dbClose,
		DbExec:    dbExec,
		GetScript: getScript,
		DbSuffix:  ".cql",
	}
}
