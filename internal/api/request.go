// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SendRequest is the body of a question submission.
type SendRequest struct {
	// Channel is the session id that correlates the send with the stream.
	Channel     string         `json:"channel" validate:"required"`
	Question    string         `json:"question" validate:"required"`
	System      string         `json:"system"`
	Temperature float64        `json:"temperature" validate:"gte=0,lte=1"`
	Model       string         `json:"model" validate:"required"`
	Sources     bool           `json:"sources"`
	Context     RequestContext `json:"context" validate:"required"`
}

// RequestContext maps a vector store kind to the document it should search.
// Encodes as {"faiss": {"bucket_name": ..., "path": ...}}.
type RequestContext map[string]StoreRef

// StoreRef locates a document inside a vector store.
type StoreRef struct {
	BucketName string `json:"bucket_name"`
	Path       string `json:"path"`
}

// NewContext builds a single-store context.
func NewContext(storeKind, bucket, path string) RequestContext {
	if storeKind == "" {
		storeKind = "faiss"
	}
	return RequestContext{storeKind: {BucketName: bucket, Path: path}}
}

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid send request")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the request before it is sent.
func (r SendRequest) Validate() error {
	err := requestValidator().Struct(r)
	if err == nil {
		for kind, ref := range r.Context {
			if kind == "" || ref.Path == "" {
				return fmt.Errorf("%w: context %q needs a path", ErrInvalidRequest, kind)
			}
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}
