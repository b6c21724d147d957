package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("info level hides debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&buf, false, "launcher")
		log.Debug("hidden")
		log.Info("shown", "key", "value")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "msg=shown")
		assert.Contains(t, out, "component=launcher")
		assert.Contains(t, out, "key=value")
	})

	t.Run("debug level shows debug", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, true, "web").Debug("verbose")
		assert.Contains(t, buf.String(), "msg=verbose")
	})
}
