package ai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GenerateRequest describes one grounded generation call: persona-priming
// system prompt followed by the user query, searched against one store.
type GenerateRequest struct {
	Model          string
	Query          string
	StoreName      string
	MetadataFilter string
	SystemPrompt   string
}

// Chunk is a retrieved text fragment plus its source document reference.
type Chunk struct {
	SourceDocument string
	Text           string
}

// CitationRef names a document backing part of the answer.
type CitationRef struct {
	Document  string
	Reference string
}

// Answer is the provider response with its grounding metadata flattened.
// Chunks and Citations keep the provider-determined order.
type Answer struct {
	Text      string
	Chunks    []Chunk
	Citations []CitationRef
}

// Generator produces grounded answers. The genai-backed implementation is
// Service; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Answer, error)
}

// Service calls the Gemini API with a file search grounding tool.
type Service struct {
	client *genai.Client
	logger *zap.Logger
}

// NewService wraps a shared Gemini client.
func NewService(client *genai.Client, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Generate asks the model to answer the query grounded in the named store.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Answer, error) {
	if req.Query == "" {
		return nil, errors.New("query is required")
	}
	if req.StoreName == "" {
		return nil, errors.New("store name is required")
	}

	fileSearch := &genai.FileSearch{
		FileSearchStoreNames: []string{req.StoreName},
	}
	if req.MetadataFilter != "" {
		fileSearch.MetadataFilter = req.MetadataFilter
	}
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{FileSearch: fileSearch}},
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Query, genai.RoleUser),
	}
	resp, err := s.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	answer := &Answer{Text: resp.Text()}
	s.extractGrounding(resp, answer)
	return answer, nil
}

// extractGrounding flattens grounding metadata: citations come from the
// grounding chunks, retrieval chunks from the support segments (falling back
// to retrieved-context text when the provider sends no supports).
func (s *Service) extractGrounding(resp *genai.GenerateContentResponse, answer *Answer) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return
	}
	meta := resp.Candidates[0].GroundingMetadata

	docs := make([]string, 0, len(meta.GroundingChunks))
	for _, gc := range meta.GroundingChunks {
		doc, ref := chunkSource(gc)
		docs = append(docs, doc)
		answer.Citations = append(answer.Citations, CitationRef{Document: doc, Reference: ref})
	}

	for _, sup := range meta.GroundingSupports {
		if sup == nil || sup.Segment == nil || sup.Segment.Text == "" {
			continue
		}
		doc := "unknown"
		if len(sup.GroundingChunkIndices) > 0 {
			if idx := int(sup.GroundingChunkIndices[0]); idx >= 0 && idx < len(docs) {
				doc = docs[idx]
			}
		}
		answer.Chunks = append(answer.Chunks, Chunk{SourceDocument: doc, Text: sup.Segment.Text})
	}

	if len(answer.Chunks) == 0 {
		for i, gc := range meta.GroundingChunks {
			if gc.RetrievedContext != nil && gc.RetrievedContext.Text != "" {
				answer.Chunks = append(answer.Chunks, Chunk{
					SourceDocument: docs[i],
					Text:           gc.RetrievedContext.Text,
				})
			}
		}
	}

	if s.logger != nil {
		s.logger.Debug("grounding metadata extracted",
			zap.Int("chunks", len(answer.Chunks)),
			zap.Int("citations", len(answer.Citations)))
	}
}

func chunkSource(gc *genai.GroundingChunk) (doc, ref string) {
	switch {
	case gc.RetrievedContext != nil:
		doc = gc.RetrievedContext.Title
		if doc == "" {
			doc = gc.RetrievedContext.URI
		}
		ref = gc.RetrievedContext.URI
	case gc.Web != nil:
		doc = gc.Web.URI
		if doc == "" {
			doc = "unknown"
		}
		ref = gc.Web.Title
	default:
		doc = "unknown"
	}
	return doc, ref
}
