package core

import (
	"errors"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name: "valid document",
			doc: &Document{
				Filename: "reports/q1.pdf",
				Path:     "/library/reports/q1.pdf",
				Status:   StatusScanned,
			},
			wantErr: nil,
		},
		{
			name: "valid document without hash",
			doc: &Document{
				Filename:    "notes.txt",
				Path:        "/library/notes.txt",
				ContentHash: "",
				Status:      StatusIndexed,
			},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name: "empty filename",
			doc: &Document{
				Filename: "   ",
				Path:     "/library/x",
				Status:   StatusScanned,
			},
			wantErr: ErrEmptyFilename,
		},
		{
			name: "empty path",
			doc: &Document{
				Filename: "x.txt",
				Status:   StatusScanned,
			},
			wantErr: ErrEmptyPath,
		},
		{
			name: "undefined status",
			doc: &Document{
				Filename: "x.txt",
				Path:     "/library/x.txt",
				Status:   "PENDING",
			},
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name      string
		chunk     *Chunk
		dimension int
		wantErr   error
	}{
		{
			name:      "valid chunk",
			chunk:     &Chunk{Index: 0, Content: "hello", Embedding: []float32{1, 2, 3}},
			dimension: 3,
		},
		{
			name:      "dimension check disabled",
			chunk:     &Chunk{Index: 4, Content: "hello"},
			dimension: 0,
		},
		{
			name:      "nil chunk",
			chunk:     nil,
			dimension: 3,
			wantErr:   ErrInvalidChunk,
		},
		{
			name:      "whitespace content",
			chunk:     &Chunk{Index: 0, Content: " \n\t", Embedding: []float32{1, 2, 3}},
			dimension: 3,
			wantErr:   ErrEmptyContent,
		},
		{
			name:      "negative index",
			chunk:     &Chunk{Index: -1, Content: "x", Embedding: []float32{1, 2, 3}},
			dimension: 3,
			wantErr:   ErrNegativeIndex,
		},
		{
			name:      "wrong dimension",
			chunk:     &Chunk{Index: 0, Content: "x", Embedding: []float32{1, 2}},
			dimension: 3,
			wantErr:   ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk, tt.dimension)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStatus(t *testing.T) {
	for _, s := range Statuses {
		if err := ValidateStatus(s); err != nil {
			t.Errorf("ValidateStatus(%q) = %v, want nil", s, err)
		}
	}
	if err := ValidateStatus(""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ValidateStatus(\"\") = %v, want ErrInvalidStatus", err)
	}
}
