package pipeline

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// Caller errors. Faults inside a run are reported on the run instead.
var (
	ErrRunNotFound  = fmt.Errorf("%w: run not found", common.ErrNotFound)
	ErrRunNotPaused = errors.New("run is not awaiting review")
)

// MsgNoText is the document_ingestion error when no usable text came back.
const MsgNoText = "No text extracted from document"
