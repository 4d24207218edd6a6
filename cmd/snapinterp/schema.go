package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/jarvis394/snapshot-interpolation/internal/net/proto"
)

func newSchemaCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Write the JSON schema of the snapshot feed message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return encodeSchema(cmd.OutOrStdout(), buildSchema())
			}
			return writeSchema(outPath, buildSchema())
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the JSON schema (stdout when empty)")
	return cmd
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(proto.SnapshotMessage))
	schema.Title = "Snapshot Feed Message"
	schema.Description = "One world snapshot as broadcast on the websocket feed"
	return schema
}

func encodeSchema(w io.Writer, schema *jsonschema.Schema) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return nil
}

// writeSchema replaces outPath atomically so readers never see a partial file.
func writeSchema(outPath string, schema *jsonschema.Schema) (err error) {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(outPath)+".*")
	if err != nil {
		return fmt.Errorf("create temp schema: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err := encodeSchema(tmp, schema); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp schema: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod schema: %w", err)
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return fmt.Errorf("replace %s: %w", outPath, err)
	}
	return nil
}
