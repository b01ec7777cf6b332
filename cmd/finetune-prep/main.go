// Command finetune-prep converts a spreadsheet of Input/Output pairs into
// conversational fine-tuning records.
//
//	finetune-prep pairs.xlsx train.parquet
//	finetune-prep --sheet Dialogue pairs.xlsx train.jsonl
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelreg/internal/finetune"
)

func main() { os.Exit(MainWithArgs(os.Args[1:])) }

// MainWithArgs runs the command with explicit args and returns the exit code.
func MainWithArgs(args []string) int { return run(args, os.Stdout, os.Stderr) }

func run(args []string, stdout, stderr io.Writer) int {
	cmd := buildCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err.Error())
		return 1
	}
	return 0
}

func buildCmd(stdout, stderr io.Writer) *cobra.Command {
	var sheet string
	var quiet bool
	cmd := &cobra.Command{
		Use:           "finetune-prep <input.xlsx|input.csv> <output.parquet|output.jsonl>",
		Short:         "Convert Input/Output spreadsheet rows into conversation records",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
			if quiet {
				log = log.Level(zerolog.WarnLevel)
			}
			in, out := args[0], args[1]
			start := time.Now()
			n, err := finetune.Convert(in, out, finetune.Options{Sheet: sheet})
			if err != nil {
				return err
			}
			log.Info().Str("input", in).Str("output", out).Int("records", n).Dur("dur", time.Since(start)).Msg("converted")
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet to read from an xlsx input (default: first sheet)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	return cmd
}
