// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package loader reads data files into importer sources and writes
// imported data sets back out.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileType represents the type of data file
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeCSV
	FileTypeParquet
	FileTypeJSON
	FileTypeXLSX
)

func (f FileType) String() string {
	switch f {
	case FileTypeCSV:
		return "csv"
	case FileTypeParquet:
		return "parquet"
	case FileTypeJSON:
		return "json"
	case FileTypeXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// ParseFileType maps a format name such as "csv" onto a FileType.
func ParseFileType(name string) FileType {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "csv", "tsv", "txt":
		return FileTypeCSV
	case "parquet", "pq":
		return FileTypeParquet
	case "json":
		return FileTypeJSON
	case "xlsx":
		return FileTypeXLSX
	default:
		return FileTypeUnknown
	}
}

// DetectFileType determines the type of file based on its extension
func DetectFileType(filePath string) FileType {
	return ParseFileType(filepath.Ext(filePath))
}

// DetectCSVSeparator tries to detect the CSV separator from the first line
func DetectCSVSeparator(filePath string) (rune, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return ',', fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return detectSeparator(file), nil
}

func detectSeparator(r io.Reader) rune {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return ','
	}

	firstLine := scanner.Text()
	if firstLine == "" {
		return ','
	}

	// Fixed order so ties resolve the same way every time
	candidates := []rune{',', ';', '\t', '|'}

	maxCount := 0
	detectedSep := ','
	for _, sep := range candidates {
		if count := strings.Count(firstLine, string(sep)); count > maxCount {
			maxCount = count
			detectedSep = sep
		}
	}

	return detectedSep
}

// SeparatorName returns a human-readable name for the separator
func SeparatorName(sep rune) string {
	switch sep {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	case '|':
		return "pipe"
	default:
		return string(sep)
	}
}
