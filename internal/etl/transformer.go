package etl

import (
	"encoding/json"

	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/BartekS5/paysync/pkg/utils"
)

// Transformer maps raw upstream records into warehouse records.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform applies the resource's transform to every raw record.
func (t *Transformer) Transform(res *models.Resource, raws []models.RawRecord) []models.Record {
	fn := res.Transform
	if fn == nil {
		fn = Projector(res.Schema)
	}
	out := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		out = append(out, fn(raw))
	}
	return out
}

// Projector returns a transform that projects raw records onto schema.
func Projector(schema models.Schema) models.TransformFunc {
	return func(raw models.RawRecord) models.Record {
		return Project(schema, raw)
	}
}

// Project builds a record holding exactly the schema's fields. It never
// fails: absent or uncoercible values become nil, and absent nested
// containers become records of nils.
func Project(schema models.Schema, raw map[string]any) models.Record {
	rec := make(models.Record, len(schema))
	for _, f := range schema {
		var val any
		if raw != nil {
			val = raw[f.SourceKey()]
		}
		rec[f.Name] = projectField(f, val)
	}
	return rec
}

func projectField(f models.Field, val any) any {
	if f.Type == models.TypeRecord {
		nested, _ := asMap(val)
		return Project(f.Fields, nested)
	}
	if val == nil {
		return nil
	}

	switch f.Type {
	case models.TypeString:
		if f.Flatten {
			b, err := json.Marshal(val)
			if err != nil {
				logger.Debugf("field %s: cannot serialize %T: %v", f.Name, val, err)
				return nil
			}
			return string(b)
		}
		s, err := utils.ConvertToString(val)
		if err != nil {
			logger.Debugf("field %s: %v", f.Name, err)
			return nil
		}
		return s
	case models.TypeInteger:
		n, err := utils.ConvertToInt64(val)
		if err != nil {
			logger.Debugf("field %s: %v", f.Name, err)
			return nil
		}
		return n
	case models.TypeFloat:
		n, err := utils.ConvertToFloat(val)
		if err != nil {
			logger.Debugf("field %s: %v", f.Name, err)
			return nil
		}
		return n
	case models.TypeBoolean:
		b, err := utils.ConvertToBool(val)
		if err != nil {
			logger.Debugf("field %s: %v", f.Name, err)
			return nil
		}
		return b
	case models.TypeTimestamp:
		ts, err := utils.ConvertDateTime(val)
		if err != nil {
			logger.Debugf("field %s: %v", f.Name, err)
			return nil
		}
		return ts
	}
	return nil
}
