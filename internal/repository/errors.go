package repository

import (
	"errors"
	"fmt"
	"regexp"

	pkgerrors "github.com/pkg/errors"
)

// ErrStoreUnavailable marks transport failures of Redis, the row store or etcd.
var ErrStoreUnavailable = errors.New("store unavailable")

var ErrInvalidTableName = errors.New("invalid table name")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to use as a table or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

func unavailable(op string, err error) error {
	return pkgerrors.WithStack(fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err))
}
