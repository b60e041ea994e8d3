// pagedb is a small driver around the storage library: create a table from
// a yaml schema file, insert rows, scan them back, print pool statistics.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tuannm99/pagedb/internal"
	"github.com/tuannm99/pagedb/internal/bufferpool"
	"github.com/tuannm99/pagedb/internal/engine"
	"github.com/tuannm99/pagedb/internal/heap"
	"github.com/tuannm99/pagedb/internal/record"
)

type schemaFile struct {
	Name  string `yaml:"name"`
	Attrs []struct {
		Name   string `yaml:"name"`
		Type   string `yaml:"type"`
		Length int    `yaml:"length"`
	} `yaml:"attrs"`
	Keys []int `yaml:"keys"`
}

func loadSchemaFile(path string) (string, record.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", record.Schema{}, err
	}
	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return "", record.Schema{}, fmt.Errorf("parse schema file: %w", err)
	}

	var schema record.Schema
	for _, a := range sf.Attrs {
		var typ record.DataType
		switch strings.ToUpper(a.Type) {
		case "INT":
			typ = record.TypeInt
		case "STRING":
			typ = record.TypeString
		case "FLOAT":
			typ = record.TypeFloat
		case "BOOL":
			typ = record.TypeBool
		default:
			return "", record.Schema{}, fmt.Errorf("unknown attribute type %q", a.Type)
		}
		schema.Attrs = append(schema.Attrs, record.Attr{Name: a.Name, Type: typ, Length: a.Length})
	}
	schema.Keys = sf.Keys
	return sf.Name, schema, schema.Validate()
}

func parseValue(a record.Attr, s string) (record.Value, error) {
	switch a.Type {
	case record.TypeInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return record.Value{}, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		return record.IntValue(int32(n)), nil
	case record.TypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return record.Value{}, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		return record.FloatValue(float32(f)), nil
	case record.TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return record.Value{}, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		return record.BoolValue(b), nil
	default:
		return record.StringValue(s), nil
	}
}

func formatRow(tbl *heap.Table, rec *record.Record) string {
	parts := make([]string, 0, tbl.Schema.NumAttrs())
	for i := range tbl.Schema.Attrs {
		v, err := record.GetAttr(rec, tbl.Schema, i)
		if err != nil {
			parts = append(parts, "?")
			continue
		}
		parts = append(parts, v.String())
	}
	return rec.ID.String() + " [" + strings.Join(parts, ", ") + "]"
}

func main() {
	cfgPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg := internal.DefaultConfig()
	if *cfgPath != "" {
		loaded, err := internal.LoadConfig(*cfgPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err == nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	policy, err := bufferpool.ParsePolicy(cfg.Storage.Policy)
	if err != nil {
		fatal(err)
	}
	db := engine.NewDatabase(cfg.Storage.Dir, cfg.Storage.PoolSize, policy)
	defer db.Close()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	switch args[0] {
	case "create":
		if len(args) != 2 {
			usage()
		}
		name, schema, err := loadSchemaFile(args[1])
		if err != nil {
			fatal(err)
		}
		if _, err := db.CreateTable(name, schema); err != nil {
			fatal(err)
		}
		fmt.Printf("table %s created\n", name)

	case "insert":
		if len(args) < 3 {
			usage()
		}
		tbl, err := db.OpenTable(args[1])
		if err != nil {
			fatal(err)
		}
		vals := args[2:]
		if len(vals) != tbl.Schema.NumAttrs() {
			fatal(fmt.Errorf("table %s has %d attributes, got %d values",
				args[1], tbl.Schema.NumAttrs(), len(vals)))
		}
		rec := record.NewRecord(tbl.Schema)
		for i, a := range tbl.Schema.Attrs {
			v, err := parseValue(a, vals[i])
			if err != nil {
				fatal(err)
			}
			if err := record.SetAttr(rec, tbl.Schema, i, v); err != nil {
				fatal(err)
			}
		}
		if err := tbl.Insert(rec); err != nil {
			fatal(err)
		}
		fmt.Printf("inserted %s\n", rec.ID)

	case "scan":
		if len(args) != 2 {
			usage()
		}
		tbl, err := db.OpenTable(args[1])
		if err != nil {
			fatal(err)
		}
		sc := tbl.StartScan(nil)
		rec := record.NewRecord(tbl.Schema)
		for {
			err := sc.Next(rec)
			if err == heap.ErrNoMoreTuples {
				break
			}
			if err != nil {
				fatal(err)
			}
			fmt.Println(formatRow(tbl, rec))
		}

	case "stats":
		if len(args) != 2 {
			usage()
		}
		tbl, err := db.OpenTable(args[1])
		if err != nil {
			fatal(err)
		}
		pool := tbl.Pool()
		fmt.Printf("tuples:  %d\n", tbl.NumTuples())
		fmt.Printf("pages:   %d\n", pool.TotalPages())
		fmt.Printf("readIO:  %d\n", pool.ReadIOCount())
		fmt.Printf("writeIO: %d\n", pool.WriteIOCount())

	case "drop":
		if len(args) != 2 {
			usage()
		}
		if err := db.DropTable(args[1]); err != nil {
			fatal(err)
		}
		fmt.Printf("table %s dropped\n", args[1])

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: pagedb [-config cfg.yaml] <command>

commands:
  create <schema.yaml>        create a table from a schema file
  insert <table> <values...>  insert one row
  scan   <table>              print all rows
  stats  <table>              tuple count and pool IO counters
  drop   <table>              destroy a table
`)
	os.Exit(2)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "pagedb:", err)
	os.Exit(1)
}
