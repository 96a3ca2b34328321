package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchKeyIsOrderInsensitive(t *testing.T) {
	a := BatchKey([]string{"task-a", "task-b", "task-c"})
	b := BatchKey([]string{"task-c", "task-a", "task-b"})
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "invoice:batch:"))
}

func TestBatchKeyDistinguishesBatches(t *testing.T) {
	a := BatchKey([]string{"task-a", "task-b"})
	b := BatchKey([]string{"task-a"})
	assert.NotEqual(t, a, b)
}

func TestBatchKeyDoesNotMutateInput(t *testing.T) {
	ids := []string{"task-c", "task-a"}
	BatchKey(ids)
	assert.Equal(t, []string{"task-c", "task-a"}, ids)
}
