package crimesql

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nao1215/crimesql/domain/model"
)

// validator checks loader inputs before any source is opened
type validator struct{}

// newValidator creates a new validator instance
func newValidator() *validator {
	return &validator{}
}

// validateSource validates a single source file path
func (v *validator) validateSource(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrSourceNotFound)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: path does not exist: %s", ErrSourceNotFound, path)
		}
		return fmt.Errorf("%w: failed to stat path %s: %w", ErrIOFailure, path, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: path is a directory: %s", ErrUnsupported, path)
	}

	if !model.NewSourceFile(path).IsSupported() {
		return fmt.Errorf("%w: file type: %s", ErrUnsupported, path)
	}

	return nil
}

// validateReader validates a reader input
func (v *validator) validateReader(reader any, fileType model.FileType) error {
	if reader == nil {
		return errors.New("crimesql: reader cannot be nil")
	}
	if fileType == model.FileTypeUnsupported {
		return fmt.Errorf("%w: file type must be specified for reader input", ErrUnsupported)
	}
	return nil
}

// validateRelation validates a relation name
func (v *validator) validateRelation(relation string) error {
	if strings.TrimSpace(relation) == "" {
		return errors.New("crimesql: relation name cannot be empty")
	}
	return nil
}
