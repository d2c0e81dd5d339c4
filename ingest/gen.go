package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stratarag/stratarag/model"
)

// GenFlag selects what text is embedded for a chunk (spec.md §4.7).
type GenFlag string

const (
	GenFlagOnlyText         GenFlag = "ONLY_TEXT"
	GenFlagFullTextMetadata GenFlag = "FULL_TEXT_METADATA"
	GenFlagOnlyMetadata     GenFlag = "ONLY_METADATA"
)

// metadataSuppressionSet holds the lowercase metadata keys spec.md §4.7 says
// never belong in an embedded metadata block: storage/integrity bookkeeping
// that carries no semantic signal.
var metadataSuppressionSet = map[string]bool{
	"crc":        true,
	"checksum":   true,
	"size":       true,
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"url":        true,
}

// buildMetadataBlock renders a chunk's non-suppressed metadata as a sorted
// "key: value" block, deterministic so identical metadata always embeds to
// the same text.
func buildMetadataBlock(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if !metadataSuppressionSet[strings.ToLower(k)] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, meta[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// embedText builds the text actually sent to the embedding model for a
// chunk, per genFlag.
func embedText(c model.Chunk, genFlag GenFlag) string {
	switch genFlag {
	case GenFlagOnlyMetadata:
		return buildMetadataBlock(c.Metadata)
	case GenFlagFullTextMetadata:
		block := buildMetadataBlock(c.Metadata)
		if block == "" {
			return c.Text
		}
		return block + "\n\n" + c.Text
	default: // GenFlagOnlyText and unrecognised values
		return c.Text
	}
}
