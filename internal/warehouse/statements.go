package warehouse

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is returned when a table or stage name cannot be safely
// interpolated into a statement.
var ErrInvalidIdentifier = errors.New("invalid warehouse identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

// ValidateIdentifier accepts plain or dotted (db.schema.name) unquoted identifiers.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// PutStatement uploads one local file, uncompressed, into the named stage.
func PutStatement(localPath, stage string) (string, error) {
	if err := ValidateIdentifier(stage); err != nil {
		return "", err
	}
	if localPath == "" {
		return "", fmt.Errorf("put: local path must not be empty")
	}

	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("put: resolve %s: %w", localPath, err)
	}
	uri := "file://" + filepath.ToSlash(abs)
	if strings.ContainsAny(uri, " '") {
		uri = "'" + strings.ReplaceAll(uri, "'", `\'`) + "'"
	}

	return fmt.Sprintf("PUT %s @%s AUTO_COMPRESS=FALSE", uri, stage), nil
}

// CopyStatement loads every JSON document in the stage into table's raw_data
// column, skipping rows the engine cannot parse.
func CopyStatement(table, stage string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", err
	}
	if err := ValidateIdentifier(stage); err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"COPY INTO %s (raw_data) FROM (SELECT $1 FROM @%s) FILE_FORMAT = (TYPE = 'JSON') ON_ERROR = 'CONTINUE'",
		table, stage,
	), nil
}
