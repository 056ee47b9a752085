package ingestion

import (
	"github.com/54b3r/ragdesk/internal/budget"
	"github.com/54b3r/ragdesk/internal/chunker"
	"github.com/54b3r/ragdesk/internal/extract"
)

// Chunk is one piece of a source document ready for embedding.
type Chunk struct {
	// Text is the chunk content.
	Text string `json:"text"`
	// SourceName identifies the document the chunk came from.
	SourceName string `json:"source"`
	// ChunkIndex is the 0-based position within the source.
	ChunkIndex int `json:"chunk_id"`
	// TotalChunks is the number of chunks produced for the source.
	TotalChunks int `json:"total_chunks"`
	// Size is the chunk length measured in Unit.
	Size int `json:"size"`
	// Unit is the unit Size is measured in.
	Unit chunker.Unit `json:"unit"`
	// EstimatedTokens is the chars/4 LLM token estimate.
	EstimatedTokens int `json:"tokens"`
}

// Processor turns raw payloads into chunk records: extract → clean → chunk.
// It holds no mutable state and is safe for concurrent use.
type Processor struct {
	// policy is used when a call does not supply one.
	policy chunker.Policy
}

// NewProcessor constructs a Processor with a default policy. The policy is
// validated here so misconfiguration surfaces at startup.
func NewProcessor(policy chunker.Policy) (*Processor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Processor{policy: policy}, nil
}

// Policy returns the processor's default chunking policy.
func (p *Processor) Policy() chunker.Policy { return p.policy }

// ProcessDocument extracts text from payload, normalises whitespace and cuts
// it into chunks. A nil policy selects the processor default. Extraction and
// policy errors are returned unchanged.
func (p *Processor) ProcessDocument(payload []byte, sourceName string, fileType extract.FileType, policy *chunker.Policy) ([]Chunk, error) {
	text, err := extract.ExtractText(payload, fileType)
	if err != nil {
		return nil, err
	}
	return p.ProcessText(text, sourceName, policy)
}

// ProcessText cleans and chunks already-extracted text.
func (p *Processor) ProcessText(text, sourceName string, policy *chunker.Policy) ([]Chunk, error) {
	pol := p.policy
	if policy != nil {
		pol = *policy
	}
	unit := pol.Unit
	if unit == "" {
		unit = chunker.UnitCharacters
	}

	pieces, err := chunker.Chunk(chunker.Clean(text), pol)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{
			Text:            piece,
			SourceName:      sourceName,
			ChunkIndex:      i,
			Size:            chunker.Measure(piece, unit),
			Unit:            unit,
			EstimatedTokens: budget.Estimate(piece),
		})
	}
	// TotalChunks is only known once the sequence is complete.
	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks, nil
}
