package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})
	Logf("frame %d: %d points", 1000, 3)
	assert.Equal(t, []string{"frame 1000: 3 points"}, captured)

	// nil installs a no-op, not a nil function.
	SetLogger(nil)
	assert.NotNil(t, Logf)
	Logf("dropped")
	assert.Len(t, captured, 1)
}

func TestLogfDefault(t *testing.T) {
	assert.NotNil(t, Logf)
}
