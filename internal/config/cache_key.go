package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateTokenKey returns the key holding the candidate's bearer token
func (r *CacheKeyStruct) CandidateTokenKey() string {
	return "candidate:token"
}

// CandidateNameKey returns the key holding the candidate's display name
func (r *CacheKeyStruct) CandidateNameKey() string {
	return "candidate:name"
}

// CaptureAuditKey returns the list key for proctoring capture audit entries
func (r *CacheKeyStruct) CaptureAuditKey(examType string) string {
	return fmt.Sprintf("candidate:exam:%s:captures", examType)
}

var CacheKey = NewCacheKeyStruct()
