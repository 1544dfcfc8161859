package drdynvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDisplayObserver struct {
	payloads [][]byte
}

func (o *recordingDisplayObserver) ObserveDisplayControl(payload []byte) {
	o.payloads = append(o.payloads, payload)
}

func TestDisplayHandler_ForwardsToObserver(t *testing.T) {
	obs := &recordingDisplayObserver{}
	h := NewDisplayHandler(obs)

	resp, err := h.HandleData([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Nil(t, resp)
	require.Len(t, obs.payloads, 1)
	assert.Equal(t, []byte{1, 2, 3}, obs.payloads[0])
}

func TestDisplayHandler_NilObserverDoesNotPanic(t *testing.T) {
	h := NewDisplayHandler(nil)
	resp, err := h.HandleData([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Nil(t, resp)
}
