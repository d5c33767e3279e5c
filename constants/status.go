package constants

// StepStatus is the status of a single stage inside a run's step envelope.
type StepStatus string

// Stable values (these exact strings appear in run results).
const (
	StepProcessing StepStatus = "processing"
	StepSuccess    StepStatus = "success"
	StepFailed     StepStatus = "failed"  // validation found rule violations
	StepError      StepStatus = "error"   // the stage could not do its job
	StepSkipped    StepStatus = "skipped" // database_write when the decision is no-write
)

// OverallStatus is the run-level outcome.
type OverallStatus string

const (
	OverallAwaitingReview OverallStatus = "awaiting_review" // paused, not terminal
	OverallSuccess        OverallStatus = "success"
	OverallIncomplete     OverallStatus = "incomplete"
	OverallError          OverallStatus = "error"
)

// Terminal reports whether no further resume is possible.
func (s OverallStatus) Terminal() bool {
	return s == OverallSuccess || s == OverallIncomplete || s == OverallError
}

// RunState is the orchestrator state machine position.
type RunState string

const (
	StateIngesting           RunState = "ingesting"
	StateIngested            RunState = "ingested"
	StateIngestFailed        RunState = "ingest_failed"
	StateExtracting          RunState = "extracting"
	StateExtracted           RunState = "extracted"
	StateAwaitingHumanReview RunState = "awaiting_human_review"
	StateReviewing           RunState = "reviewing"
	StateValidating          RunState = "validating"
	StateValidated           RunState = "validated"
	StateDeciding            RunState = "deciding"
	StateDecided             RunState = "decided"
	StateWriting             RunState = "writing"
	StateWritten             RunState = "written"
	StateWriteFailed         RunState = "write_failed"
	StateWriteSkipped        RunState = "write_skipped"
	StateFaulted             RunState = "faulted"
)

// StepName keys the run's steps mapping.
type StepName string

const (
	StepDocumentIngestion StepName = "document_ingestion"
	StepExtraction        StepName = "extraction"
	StepValidation        StepName = "validation"
	StepToolDecision      StepName = "tool_decision"
	StepDatabaseWrite     StepName = "database_write"
)

// StepOrder is the fixed stage sequence.
var StepOrder = []StepName{
	StepDocumentIngestion,
	StepExtraction,
	StepValidation,
	StepToolDecision,
	StepDatabaseWrite,
}

// Agent labels shown next to each step.
const (
	AgentDocumentIngestion = "Document Ingestion Agent"
	AgentExtraction        = "Information Extraction Agent"
	AgentValidation        = "Validation Agent"
	AgentToolDecision      = "Tool Decision Agent"
	AgentDatabaseTool      = "Database Tool"
)

// InvoiceStatusStored is written on every persisted invoice record.
const InvoiceStatusStored = "stored"
