package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeJSON(t *testing.T) {
	out, err := EncodeJSON(map[string]string{"reference": "IGA_1_abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reference":"IGA_1_abc"}`, string(out))

	_, err = EncodeJSON(make(chan int))
	assert.Error(t, err)
}

func TestPutBuffer_DropsOversizedBuffers(t *testing.T) {
	big := bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1))
	PutBuffer(big)

	buf := GetBuffer()
	assert.Zero(t, buf.Len())
	PutBuffer(buf)
}
