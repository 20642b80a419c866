package schema

import (
	"fmt"

	"github.com/kzaag/datastar/cmn"
	"gopkg.in/yaml.v2"
)

var DefinitionSuffixes = []string{".yml", ".yaml"}

type parseCtx struct {
	ret []*Definition
}

func ParserValidateDefinition(d *Definition, path string) error {
	if d == nil {
		return nil
	}
	if d.Name == "" {
		return fmt.Errorf("Validate %s: schema doesnt have name specified", path)
	}
	if len(d.Partition) == 0 {
		return fmt.Errorf("Validate %s: schema partition key doesnt exist", path)
	}
	for i := range d.Columns {
		if d.Columns[i].Type == "" {
			return fmt.Errorf("Validate %s: column %s doesnt specify type", path, d.Columns[i].Name)
		}
	}
	return nil
}

func parserGetValidateDefinition(path string, fc []byte, args interface{}) error {
	ctx := args.(*parseCtx)
	var obj struct {
		Schema *Definition
	}
	if err := yaml.UnmarshalStrict(fc, &obj); err != nil {
		return fmt.Errorf("couldnt unmarshal %s %s", path, err.Error())
	}
	if obj.Schema == nil {
		return fmt.Errorf("couldnt validate %s, no schema found", path)
	}
	if err := ParserValidateDefinition(obj.Schema, path); err != nil {
		return err
	}
	ctx.ret = append(ctx.ret, obj.Schema)
	return nil
}

// LoadDefinitions reads every yaml definition under path.
func LoadDefinitions(path string) ([]*Definition, error) {
	ctx := &parseCtx{}
	if err := cmn.ParserIterateOverSource(
		path,
		DefinitionSuffixes,
		parserGetValidateDefinition,
		ctx); err != nil {
		return nil, err
	}
	return ctx.ret, nil
}

// ParseDefinition reads a single yaml definition.
func ParseDefinition(fc []byte) (*Definition, error) {
	ctx := &parseCtx{}
	if err := parserGetValidateDefinition("<bytes>", fc, ctx); err != nil {
		return nil, err
	}
	return ctx.ret[0], nil
}
