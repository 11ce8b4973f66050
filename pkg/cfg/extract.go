package cfg

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ExtractCFG extracts the Control Flow Graph for a function, picking the
// front end from the file extension.
func ExtractCFG(filePath string, functionName string) (*CFGInfo, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".go":
		return ExtractGoCFG(filePath, functionName)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}
}

// ListFunctions lists the functions a front end can extract from a file.
func ListFunctions(filePath string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".go":
		return ListGoFunctions(filePath)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}
}
