package registry

import (
	"errors"
	"fmt"

	"github.com/meigma/asar/registry/oras"
)

// mapOCIError translates ORAS client errors to package sentinels.
func mapOCIError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidReference), errors.Is(err, ErrDigestMismatch):
		return err
	case errors.Is(err, oras.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, oras.ErrInvalidReference):
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	case errors.Is(err, oras.ErrDigestMismatch), errors.Is(err, oras.ErrSizeMismatch):
		return fmt.Errorf("%w: %v", ErrDigestMismatch, err)
	case errors.Is(err, oras.ErrManifestInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return err
}
