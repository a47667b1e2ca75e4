package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// FormStateKey returns the hash key holding a form instance's field values
func (r *CacheKeyStruct) FormStateKey(formID string) string {
	return fmt.Sprintf("survey:form:%s:state", formID)
}

// FormSubmittingKey returns the key that exists while a form instance is submitting
func (r *CacheKeyStruct) FormSubmittingKey(formID string) string {
	return fmt.Sprintf("survey:form:%s:submitting", formID)
}

// FormEventsChannel returns the Redis PubSub channel name for a form instance
func (r *CacheKeyStruct) FormEventsChannel(formID string) string {
	return fmt.Sprintf("survey:form:%s:events", formID)
}

var CacheKey = NewCacheKeyStruct()
