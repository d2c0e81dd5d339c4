// Package model defines the plain record types shared by every component:
// Library, Document, Chapter, and Chunk. Relations are expressed as foreign-key
// ids only; nothing here loads an object graph.
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// WeightTolerance is the maximum allowed drift of w_sem+w_lex from 1.0.
const WeightTolerance = 1e-3

// ErrWeightSum is returned when a library's ranking weights do not sum to 1.0
// within WeightTolerance.
var ErrWeightSum = errors.New("model: w_sem + w_lex must equal 1.0 within tolerance")

// Library is a named collection of documents scoped to a knowledge area.
type Library struct {
	ID                 uuid.UUID
	SurrogateID        int64
	Name               string
	Area               string
	WeightSemantic     float64
	WeightLexical      float64
	EmbeddingModel     string
	EmbeddingDimension int
	CompletionModel    string
	Metadata           map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ValidateWeights enforces w_sem + w_lex = 1.0 within WeightTolerance.
func (l Library) ValidateWeights() error {
	sum := l.WeightSemantic + l.WeightLexical
	if diff := sum - 1.0; diff > WeightTolerance || diff < -WeightTolerance {
		return ErrWeightSum
	}
	return nil
}
