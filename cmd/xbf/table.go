package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"goXBF/internal/bridge"
	"goXBF/internal/engine"
	"goXBF/internal/schemaid"
	"goXBF/internal/xbf"
)

func newTableCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "create, fill and query tables of XBF records",
	}
	cmd.AddCommand(
		newTableCreateCmd(c),
		newTableListCmd(c),
		newTableInsertCmd(c),
		newTableScanCmd(c),
		newTableDeleteCmd(c),
		newTableUpdateCmd(c),
	)
	return cmd
}

func newTableCreateCmd(c *Command) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <schema.yaml>",
		Short: "create an empty table whose rows follow a schema",
		Args:  cobra.ExactArgs(2),
		RunE:  mkRunE(c, runTableCreate),
	}
}

func runTableCreate(cmd *Command, args []string) error {
	meta, err := readSchemaFile(args[1])
	if err != nil {
		return err
	}
	eng, release, err := cmd.openEngine()
	if err != nil {
		return err
	}
	defer release()

	if err := eng.CreateTable(args[0], meta); err != nil {
		return err
	}
	id, err := schemaid.Of(meta)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s (schema %s)\n", args[0], id.Short())
	return err
}

func newTableListCmd(c *Command) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list tables and their schemas",
		Args:  cobra.NoArgs,
		RunE:  mkRunE(c, runTableList),
	}
}

func runTableList(cmd *Command, args []string) error {
	eng, release, err := cmd.openEngine()
	if err != nil {
		return err
	}
	defer release()

	names, err := eng.ListTables()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, name := range names {
		schema, err := eng.TableSchema(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, schema); err != nil {
			return err
		}
	}
	return nil
}

func newTableInsertCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <name> <rows-file>",
		Short: "insert rows read from a YAML, JSON or CBOR file",
		Long: `Insert reads one row, or a sequence of rows, from the file and
inserts them in a single transaction. Each row maps field names to values.
The input format comes from --in, or from the file extension (.json or
.jsonc, .cbor, anything else is YAML). JSON input may carry comments.
`,
		Args: cobra.ExactArgs(2),
		RunE: mkRunE(c, runTableInsert),
	}
	cmd.Flags().String(string(flagIn), "", "input format: yaml, json or cbor")
	return cmd
}

func inputFormat(cmd *Command, path string) (bridge.Format, error) {
	if flagIn.Changed(cmd) {
		return bridge.ParseFormat(flagIn.String(cmd))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return bridge.JSON, nil
	case ".cbor":
		return bridge.CBOR, nil
	}
	return bridge.YAML, nil
}

func runTableInsert(cmd *Command, args []string) error {
	table, path := args[0], args[1]
	f, err := inputFormat(cmd, path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	eng, release, err := cmd.openEngine()
	if err != nil {
		return err
	}
	defer release()

	schema, err := eng.TableSchema(table)
	if err != nil {
		return err
	}
	rows, err := bridge.DecodeRecords(data, f, schema)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := eng.Begin(); err != nil {
		return err
	}
	for i, row := range rows {
		if err := eng.InsertRow(table, row); err != nil {
			return errors.Join(fmt.Errorf("row %d: %w", i, err), eng.Rollback())
		}
	}
	if err := eng.Commit(); err != nil {
		return err
	}
	cmd.log.Debug("rows inserted", "table", table, "rows", len(rows))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "inserted %d rows into %s\n", len(rows), table)
	return err
}

func newTableScanCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <name>",
		Short: "print the rows of a table",
		Long: `Scan prints every row of the table, or only the rows whose --field
equals --equals. --fields limits the output to the named fields, in order.
`,
		Args: cobra.ExactArgs(1),
		RunE: mkRunE(c, runTableScan),
	}
	addOutFlags(cmd.Flags())
	addWhereFlags(cmd.Flags())
	cmd.Flags().StringSlice(string(flagFields), nil, "comma-separated fields to print")
	return cmd
}

func runTableScan(cmd *Command, args []string) error {
	table := args[0]
	f, err := cmd.outFormat()
	if err != nil {
		return err
	}
	eng, release, err := cmd.openEngine()
	if err != nil {
		return err
	}
	defer release()

	var pred engine.Predicate
	if flagField.Changed(cmd) {
		if pred, err = wherePredicate(cmd, eng, table); err != nil {
			return err
		}
	}
	_, rows, err := eng.Select(table, pred, flagFields.StringSlice(cmd)...)
	if err != nil {
		return err
	}
	return bridge.EncodeRecords(cmd.OutOrStdout(), f, rows)
}

func newTableDeleteCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name> --field <f> --equals <v>",
		Short: "delete the rows whose field equals a value",
		Args:  cobra.ExactArgs(1),
		RunE:  mkRunE(c, runTableDelete),
	}
	addWhereFlags(cmd.Flags())
	cmd.MarkFlagRequired(string(flagField))
	cmd.MarkFlagRequired(string(flagEquals))
	return cmd
}

func runTableDelete(cmd *Command, args []string) error {
	table := args[0]
	eng, release, err := cmd.openEngine()
	if err != nil {
		return err
	}
	defer release()

	pred, err := wherePredicate(cmd, eng, table)
	if err != nil {
		return err
	}
	n, err := eng.DeleteWhere(table, pred)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d rows from %s\n", n, table)
	return err
}

func newTableUpdateCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <name> --field <f> --equals <v> --set <g> --to <w>",
		Short: "set one field of the rows whose field equals a value",
		Args:  cobra.ExactArgs(1),
		RunE:  mkRunE(c, runTableUpdate),
	}
	addWhereFlags(cmd.Flags())
	cmd.Flags().String(string(flagSet), "", "field to change")
	cmd.Flags().String(string(flagTo), "", "new value, written as YAML")
	for _, f := range []flagName{flagField, flagEquals, flagSet, flagTo} {
		cmd.MarkFlagRequired(string(f))
	}
	return cmd
}

func runTableUpdate(cmd *Command, args []string) error {
	table := args[0]
	eng, release, err := cmd.openEngine()
	if err != nil {
		return err
	}
	defer release()

	pred, err := wherePredicate(cmd, eng, table)
	if err != nil {
		return err
	}
	schema, err := eng.TableSchema(table)
	if err != nil {
		return err
	}
	name := flagSet.String(cmd)
	v, err := fieldValue(schema, name, flagTo.String(cmd))
	if err != nil {
		return err
	}
	n, err := eng.UpdateWhere(table, pred, engine.SetField(name, v))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "updated %d rows in %s\n", n, table)
	return err
}

// wherePredicate builds the --field/--equals predicate, converting the
// value to the field's shape.
func wherePredicate(cmd *Command, eng *engine.DBEngine, table string) (engine.Predicate, error) {
	schema, err := eng.TableSchema(table)
	if err != nil {
		return nil, err
	}
	name := flagField.String(cmd)
	v, err := fieldValue(schema, name, flagEquals.String(cmd))
	if err != nil {
		return nil, err
	}
	return engine.FieldEquals(name, v), nil
}

// fieldValue parses text as YAML and converts it to a value of the named
// field. String fields take text as is, so "007" stays a string.
func fieldValue(schema xbf.RecordMetadata, name, text string) (xbf.Value, error) {
	idx, ok := schema.FieldIndex(name)
	if !ok {
		return nil, fmt.Errorf("table schema %s has no field %q", schema.Name(), name)
	}
	meta := schema.Field(idx).Metadata
	if k, ok := meta.(xbf.PrimitiveKind); ok && k == xbf.KindString {
		return xbf.String(text), nil
	}
	var x any
	if err := yaml.Unmarshal([]byte(text), &x); err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	v, err := bridge.FromNative(meta, x)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	return v, nil
}
