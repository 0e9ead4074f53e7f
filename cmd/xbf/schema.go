package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"goXBF/internal/bridge"
	"goXBF/internal/schemaid"
	"goXBF/internal/xbf"
)

func newSchemaCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "encode, inspect and fingerprint XBF schemas",
	}
	cmd.AddCommand(
		newSchemaEncodeCmd(c),
		newSchemaShowCmd(c),
		newSchemaFingerprintCmd(c),
	)
	return cmd
}

func newSchemaEncodeCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode <schema.yaml>",
		Short: "encode a YAML schema as XBF metadata",
		Long: `Encode reads a YAML schema document and writes its XBF metadata
encoding to --outfile, or to stdout when none is given.
`,
		Args: cobra.ExactArgs(1),
		RunE: mkRunE(c, runSchemaEncode),
	}
	cmd.Flags().StringP(string(flagOutFile), "o", "", "write the metadata blob to this file")
	return cmd
}

func runSchemaEncode(cmd *Command, args []string) error {
	meta, err := readSchemaFile(args[0])
	if err != nil {
		return err
	}
	blob, err := xbf.MarshalMetadata(meta)
	if err != nil {
		return err
	}
	if out := flagOutFile.String(cmd); out != "" {
		if err := os.WriteFile(out, blob, 0o644); err != nil {
			return err
		}
		cmd.log.Info("wrote metadata", "file", out, "bytes", len(blob), "schema", schemaid.Sum(blob).Short())
		return nil
	}
	_, err = cmd.OutOrStdout().Write(blob)
	return err
}

func newSchemaShowCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <metadata-file>",
		Short: "decode an XBF metadata blob and print it",
		Long: `Show decodes an XBF metadata blob, or a YAML schema document, and
prints it in the schema document shape using --out.
`,
		Args: cobra.ExactArgs(1),
		RunE: mkRunE(c, runSchemaShow),
	}
	addOutFlags(cmd.Flags())
	return cmd
}

func runSchemaShow(cmd *Command, args []string) error {
	meta, err := cmd.loadMetadata(args[0])
	if err != nil {
		return err
	}
	f, err := cmd.outFormat()
	if err != nil {
		return err
	}
	return bridge.Encode(cmd.OutOrStdout(), f, bridge.Describe(meta))
}

func newSchemaFingerprintCmd(c *Command) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <schema.yaml|metadata-file>",
		Short: "print the BLAKE3 fingerprint of a schema",
		Long: `Fingerprint prints the schema ID that table files and WAL records
carry: a keyed BLAKE3 hash of the encoded metadata.
`,
		Args: cobra.ExactArgs(1),
		RunE: mkRunE(c, runSchemaFingerprint),
	}
}

func runSchemaFingerprint(cmd *Command, args []string) error {
	meta, err := cmd.loadMetadata(args[0])
	if err != nil {
		return err
	}
	id, err := schemaid.Of(meta)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
	return err
}

func readSchemaFile(path string) (xbf.RecordMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return xbf.RecordMetadata{}, err
	}
	return bridge.ParseSchema(data)
}

// loadMetadata reads either an encoded metadata blob or a YAML schema
// document. Input that does not decode as a blob is parsed as YAML.
func (c *Command) loadMetadata(path string) (xbf.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	meta, blobErr := xbf.NewDecoder(r, xbf.WithMaxDepth(c.cfg.MaxDepth)).DecodeMetadata()
	if blobErr == nil && r.Len() == 0 {
		return meta, nil
	}
	if blobErr == nil {
		blobErr = fmt.Errorf("%d trailing bytes after metadata", r.Len())
	}

	rec, err := bridge.ParseSchema(data)
	if err != nil {
		// Report the error for whichever reading the input looks like.
		if len(data) > 0 && data[0] <= xbf.RecordDiscriminant && data[0] != '\n' && data[0] != '\t' {
			return nil, fmt.Errorf("%s: %w", path, blobErr)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}
