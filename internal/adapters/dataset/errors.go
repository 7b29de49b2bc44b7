package dataset

import (
	"fmt"

	"github.com/okian/dealsync/internal/domain/model"
)

// Sentinel kinds for dataset errors. ErrSchema is a kind of
// model.ErrInvalidInput, so shape and semantic problems share one check.
var (
	ErrSchema = fmt.Errorf("%w: dataset does not match schema", model.ErrInvalidInput)
)
