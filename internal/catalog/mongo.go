package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/database"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

// Collections map onto tables keyed "database.collection". Columns come from
// the $jsonSchema validator when one exists, otherwise from the top-level
// fields of a sampled document.

func (r *Reader) inspectMongo(ctx context.Context, cfg config.DatabaseConfig) (*schema.Snapshot, error) {
	conn, err := database.NewMongoConnection(ctx, cfg, r.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			r.logger.Warnf("failed to close connection to %s: %v", cfg.String(), cerr)
		}
	}()

	dbs, err := conn.Databases(ctx)
	if err != nil {
		return nil, err
	}

	snap := schema.NewSnapshot()
	var collections []*mongo.Collection
	for _, name := range dbs {
		db := conn.Client.Database(name)
		specs, err := db.ListCollectionSpecifications(ctx, bson.D{{Key: "type", Value: "collection"}})
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("failed to list collections of %s", name), err)
		}
		sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

		for _, spec := range specs {
			if strings.HasPrefix(spec.Name, "system.") {
				continue
			}
			table := schema.Qualify(name, spec.Name)
			coll := db.Collection(spec.Name)
			collections = append(collections, coll)

			fields, ok := validatorSchema(spec.Options)
			if !ok {
				fields, err = sampleFields(ctx, coll)
				if err != nil {
					return nil, err
				}
			}
			snap.AddTable(table)
			addMongoFields(snap, table, fields)
		}
	}
	r.report(PhaseTables, 1, len(Phases))

	for _, coll := range collections {
		specs, err := coll.Indexes().ListSpecifications(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("failed to list indexes of %s", coll.Name()), err)
		}
		table := schema.Qualify(coll.Database().Name(), coll.Name())
		for _, spec := range specs {
			snap.AddIndex(table, spec.Name, mongoIndex(spec.Name, spec.KeysDocument, spec.Unique))
		}
	}
	r.report(PhaseIndexes, 2, len(Phases))

	// References between collections are not declared anywhere.
	r.report(PhaseForeignKeys, 3, len(Phases))
	r.report(PhaseEnums, 4, len(Phases))

	return snap, nil
}

// mongoField is one top-level property of a collection.
type mongoField struct {
	Name     string
	Type     string
	Required bool
	MaxLen   *int
	Enum     []string
}

// validatorSchema extracts the properties of a collection's $jsonSchema
// validator from its creation options.
func validatorSchema(opts bson.Raw) ([]mongoField, bool) {
	if len(opts) == 0 {
		return nil, false
	}
	raw, err := opts.LookupErr("validator", "$jsonSchema")
	if err != nil {
		return nil, false
	}
	doc, ok := raw.DocumentOK()
	if !ok {
		return nil, false
	}
	return jsonSchemaFields(doc), true
}

func jsonSchemaFields(doc bson.Raw) []mongoField {
	required := make(map[string]bool)
	if arr, ok := doc.Lookup("required").ArrayOK(); ok {
		vals, _ := arr.Values()
		for _, v := range vals {
			if s, ok := v.StringValueOK(); ok {
				required[s] = true
			}
		}
	}

	props, ok := doc.Lookup("properties").DocumentOK()
	if !ok {
		return nil
	}
	elems, err := props.Elements()
	if err != nil {
		return nil
	}

	fields := make([]mongoField, 0, len(elems))
	for _, el := range elems {
		f := mongoField{Name: el.Key(), Required: required[el.Key()], Type: "mixed"}
		prop, ok := el.Value().DocumentOK()
		if ok {
			f.Type = bsonTypeName(prop.Lookup("bsonType"))
			if f.Type == "mixed" {
				f.Type = bsonTypeName(prop.Lookup("type"))
			}
			if n, ok := prop.Lookup("maxLength").AsInt64OK(); ok {
				v := int(n)
				f.MaxLen = &v
			}
			if arr, ok := prop.Lookup("enum").ArrayOK(); ok {
				vals, _ := arr.Values()
				for _, v := range vals {
					if s, ok := v.StringValueOK(); ok {
						f.Enum = append(f.Enum, s)
					} else {
						f.Enum = append(f.Enum, v.String())
					}
				}
			}
		}
		fields = append(fields, f)
	}
	return fields
}

// bsonTypeName reads a bsonType/type keyword, which is a string or an array
// of alternatives.
func bsonTypeName(v bson.RawValue) string {
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if arr, ok := v.ArrayOK(); ok {
		vals, _ := arr.Values()
		names := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.StringValueOK(); ok {
				names = append(names, s)
			}
		}
		if len(names) > 0 {
			return strings.Join(names, "|")
		}
	}
	return "mixed"
}

func sampleFields(ctx context.Context, coll *mongo.Collection) ([]mongoField, error) {
	var doc bson.Raw
	err := coll.FindOne(ctx, bson.D{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("failed to sample %s", coll.Name()), err)
	}
	return documentFields(doc), nil
}

func documentFields(doc bson.Raw) []mongoField {
	elems, err := doc.Elements()
	if err != nil {
		return nil
	}
	fields := make([]mongoField, 0, len(elems))
	for _, el := range elems {
		fields = append(fields, mongoField{
			Name:     el.Key(),
			Type:     bsonTypeLabel(el.Value()),
			Required: el.Key() == "_id",
		})
	}
	return fields
}

func bsonTypeLabel(v bson.RawValue) string {
	switch v.Type {
	case bson.TypeString:
		return "string"
	case bson.TypeInt32:
		return "int"
	case bson.TypeInt64:
		return "long"
	case bson.TypeDouble:
		return "double"
	case bson.TypeDecimal128:
		return "decimal"
	case bson.TypeBoolean:
		return "bool"
	case bson.TypeDateTime:
		return "date"
	case bson.TypeObjectID:
		return "objectId"
	case bson.TypeEmbeddedDocument:
		return "object"
	case bson.TypeArray:
		return "array"
	case bson.TypeBinary:
		return "binData"
	case bson.TypeNull:
		return "null"
	default:
		return v.Type.String()
	}
}

// addMongoFields records fields as columns; a field with an enum keyword gets
// a named enum "<table>_<field>" as its type.
func addMongoFields(snap *schema.Snapshot, table string, fields []mongoField) {
	for _, f := range fields {
		info := schema.ColumnInfo{DataType: f.Type, IsNullable: !f.Required, MaxLength: f.MaxLen}
		if len(f.Enum) > 0 {
			enum := table + "_" + f.Name
			for _, label := range f.Enum {
				snap.AddEnumLabel(enum, label)
			}
			info.DataType = enum
		}
		snap.AddColumn(table, f.Name, info)
	}
}

func mongoIndex(name string, keys bson.Raw, unique *bool) schema.IndexInfo {
	info := schema.IndexInfo{
		IsPrimary:  name == "_id_",
		IndexType:  "btree",
		Definition: keys.String(),
	}
	info.IsUnique = info.IsPrimary || (unique != nil && *unique)
	if info.IsUnique && !info.IsPrimary {
		info.Definition += " unique"
	}

	elems, err := keys.Elements()
	if err != nil {
		return info
	}
	for _, el := range elems {
		info.Columns = append(info.Columns, el.Key())
		if s, ok := el.Value().StringValueOK(); ok {
			info.IndexType = s
		}
	}
	return info
}
