// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for reading request bodies. Clients send
// either JSON or form-encoded bodies, and numbers either as JSON numbers or
// as typed text.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"eventledger/internal/core"
)

const maxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned for bodies over maxBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = ErrBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Has reports whether key is present with a non-null value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Raw returns the value of key as sent, without trimming.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// Get returns a trimmed string value with control characters removed.
func (p *RequestBodyParser) Get(key string) string {
	return sanitizeInput(p.Raw(key))
}

// Float returns a required number. JSON numbers and numeric text are both
// accepted.
func (p *RequestBodyParser) Float(key string) (float64, error) {
	if !p.Has(key) {
		return 0, &core.ValidationError{Field: key, Reason: "is required"}
	}
	return p.number(key)
}

// OptionalFloat returns nil when key is missing, null or blank.
func (p *RequestBodyParser) OptionalFloat(key string) (*float64, error) {
	if !p.Has(key) || strings.TrimSpace(p.Raw(key)) == "" {
		return nil, nil
	}
	f, err := p.number(key)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (p *RequestBodyParser) number(key string) (float64, error) {
	if p.jsonData != nil {
		if f, ok := p.jsonData[key].(float64); ok {
			return f, nil
		}
		if _, ok := p.jsonData[key].(string); !ok {
			return 0, &core.ValidationError{Field: key, Reason: "must be a number"}
		}
	}
	f, err := core.ParseAmount(p.Raw(key))
	if err != nil {
		return 0, &core.ValidationError{Field: key, Reason: "must be a number"}
	}
	return f, nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
