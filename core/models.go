package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived 64-bit identifier.
type ID uint64

// IDFromContent derives a stable ID from arbitrary text using blake2b.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID in base 36.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 36)
}

// OperationType names one kind of AI-backed transformation.
type OperationType string

const (
	OperationFrontMatter    OperationType = "front_matter"
	OperationWikilinks      OperationType = "wikilinks"
	OperationOntology       OperationType = "ontology"
	OperationKnowledgeBloom OperationType = "knowledge_bloom"
	// OperationBatch runs each of OperationRequest.Operations in order for one target.
	OperationBatch OperationType = "batch"
)

// GeneratorTypes lists the operation types backed by a single generator.
var GeneratorTypes = []OperationType{
	OperationFrontMatter,
	OperationWikilinks,
	OperationOntology,
	OperationKnowledgeBloom,
}

// Well-known payload keys.
const (
	// PayloadContent carries the document body the operation works on.
	PayloadContent = "content"
	// PayloadTitle carries the document title.
	PayloadTitle = "title"
	// PayloadCandidates carries newline separated titles of existing documents
	// that link generation may target.
	PayloadCandidates = "candidates"
)

// OperationRequest describes one operation against one target item.
// Requests are treated as immutable once enqueued; use Clone before mutating.
type OperationRequest struct {
	Type        OperationType
	TargetID    string
	Provider    string
	ModelName   string
	Payload     map[string]string
	UserContext string
	// Operations lists the sub-operations of an OperationBatch request.
	Operations []OperationType
}

// Key identifies the request for queue deduplication: one type per target.
func (r OperationRequest) Key() string {
	return IDFromContent(string(r.Type) + ":" + r.TargetID).String()
}

// Clone returns a deep copy of the request.
func (r OperationRequest) Clone() OperationRequest {
	c := r
	if r.Payload != nil {
		c.Payload = make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			c.Payload[k] = v
		}
	}
	if r.Operations != nil {
		c.Operations = append([]OperationType(nil), r.Operations...)
	}
	return c
}

// OperationState is the lifecycle state of an OperationStatus.
type OperationState int

const (
	OperationQueued OperationState = iota + 1
	OperationRunning
	OperationSucceeded
	OperationFailed
)

func (s OperationState) String() string {
	switch s {
	case OperationQueued:
		return "queued"
	case OperationRunning:
		return "running"
	case OperationSucceeded:
		return "succeeded"
	case OperationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s OperationState) Terminal() bool {
	return s == OperationSucceeded || s == OperationFailed
}

// OperationStatus tracks one attempt at an OperationRequest.
// A retry is a new status whose RetryOf points at the previous attempt.
type OperationStatus struct {
	ID         string
	Type       OperationType
	TargetID   string
	State      OperationState
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
	RetryOf    string
}

// ItemRef identifies a document in the document store.
type ItemRef struct {
	ID         string
	ModifiedAt time.Time
}

// ProcessedItemRecord is the ledger's durable history for one item.
type ProcessedItemRecord struct {
	ItemID           string          `json:"itemId"`
	LastProcessedAt  time.Time       `json:"lastProcessedAt"`
	LastModifiedAt   time.Time       `json:"lastModifiedAt"`
	ResultKinds      []OperationType `json:"resultKinds,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	RetryCount       int             `json:"retryCount"`
	LastError        string          `json:"lastError,omitempty"`
}

// HasError reports whether the record carries an unresolved error.
func (r *ProcessedItemRecord) HasError() bool {
	return r.LastError != ""
}

// ProcessingStatsSample summarizes one processing run.
type ProcessingStatsSample struct {
	TotalItems              int       `json:"totalItems"`
	ProcessedItems          int       `json:"processedItems"`
	ErrorItems              int       `json:"errorItems"`
	SkippedItems            int       `json:"skippedItems"`
	StartedAt               time.Time `json:"startedAt"`
	FinishedAt              time.Time `json:"finishedAt"`
	AverageProcessingTimeMs float64   `json:"averageProcessingTimeMs"`
	Timestamp               time.Time `json:"timestamp"`
}
