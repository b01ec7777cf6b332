// Package finetune turns a spreadsheet of Input/Output pairs into
// conversational training records.
//
// Each data row becomes one Conversation holding a user turn (Input) and an
// assistant turn (Output). Records are written as parquet, with a single
// LIST<struct{role, content}> column named "conversations", or as JSON lines
// of the same shape.
package finetune

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	InputColumn  = "Input"
	OutputColumn = "Output"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    string `json:"role" parquet:"role"`
	Content string `json:"content" parquet:"content"`
}

// Conversation is one training record.
type Conversation struct {
	Conversations []Turn `json:"conversations" parquet:"conversations,list"`
}

// Pair is one spreadsheet row.
type Pair struct {
	Input  string
	Output string
}

// Format names an input or output file format.
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// FormatOf infers the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ToConversations maps pairs to records, preserving order.
func ToConversations(pairs []Pair) []Conversation {
	out := make([]Conversation, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Conversation{Conversations: []Turn{
			{Role: RoleUser, Content: p.Input},
			{Role: RoleAssistant, Content: p.Output},
		}})
	}
	return out
}

// Options configures Convert.
type Options struct {
	// Sheet selects the worksheet of an xlsx input; empty means the first.
	Sheet string
}

// Convert reads pairs from in and writes records to out, choosing both
// formats from the file extensions. It returns the number of records written.
func Convert(in, out string, opts Options) (int, error) {
	outFmt, err := FormatOf(out)
	if err != nil {
		return 0, err
	}
	if outFmt != FormatParquet && outFmt != FormatJSONL {
		return 0, fmt.Errorf("%w for output: %s", ErrUnsupportedFormat, outFmt)
	}
	pairs, err := ReadPairs(in, opts.Sheet)
	if err != nil {
		return 0, err
	}
	records := ToConversations(pairs)
	switch outFmt {
	case FormatParquet:
		err = WriteParquet(out, records)
	default:
		err = WriteJSONL(out, records)
	}
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
