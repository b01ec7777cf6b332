package finetune

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// WriteParquet writes records to path, replacing any existing file.
func WriteParquet(path string, records []Conversation) error {
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// ReadParquet reads records written by WriteParquet.
func ReadParquet(path string) ([]Conversation, error) {
	rows, err := parquet.ReadFile[Conversation](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL(path string, records []Conversation) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write jsonl %s: %w", path, err)
		}
	}
	return bw.Flush()
}

// ReadJSONL reads records written by WriteJSONL.
func ReadJSONL(path string) ([]Conversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []Conversation
	dec := json.NewDecoder(f)
	for dec.More() {
		var c Conversation
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("read jsonl %s: %w", path, err)
		}
		out = append(out, c)
	}
	return out, nil
}
