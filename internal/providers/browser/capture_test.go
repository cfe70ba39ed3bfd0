package browser

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var portalMatch = ResponseMatch{URLContains: "buscarCronograma", Method: "POST", Status: 200}

func sent(id, method string) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Request:   &network.Request{Method: method},
	}
}

func received(id, url string, status int64) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(id),
		Response:  &network.Response{URL: url, Status: status},
	}
}

func finished(id string) *network.EventLoadingFinished {
	return &network.EventLoadingFinished{RequestID: network.RequestID(id)}
}

func pending(c *responseCapture) bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func TestCaptureResolvesOnMatchingResponse(t *testing.T) {
	c := newResponseCapture(portalMatch)

	c.observe(sent("1", "GET"))
	c.observe(received("1", "https://portal/buscarCronograma", 200))
	c.observe(finished("1"))
	require.True(t, pending(c), "GET must not match")

	c.observe(sent("2", "POST"))
	c.observe(received("2", "https://portal/buscarCronograma", 200))
	require.True(t, pending(c), "waits for the body to finish loading")

	c.observe(finished("2"))
	res := <-c.done
	require.NoError(t, res.err)
	assert.Equal(t, network.RequestID("2"), res.id)
}

func TestCaptureIgnoresNonOKStatus(t *testing.T) {
	c := newResponseCapture(portalMatch)

	c.observe(sent("1", "POST"))
	c.observe(received("1", "https://portal/buscarCronograma", 500))
	c.observe(finished("1"))

	assert.True(t, pending(c))
}

func TestCaptureFirstMatchWins(t *testing.T) {
	c := newResponseCapture(portalMatch)

	c.observe(sent("a", "POST"))
	c.observe(sent("b", "POST"))
	c.observe(received("a", "https://portal/buscarCronograma", 200))
	c.observe(received("b", "https://portal/buscarCronograma", 200))
	c.observe(finished("b"))
	require.True(t, pending(c))

	c.observe(finished("a"))
	res := <-c.done
	assert.Equal(t, network.RequestID("a"), res.id)

	// Later events are ignored once resolved.
	assert.NotPanics(t, func() { c.observe(finished("b")) })
}

func TestCaptureReportsLoadingFailure(t *testing.T) {
	c := newResponseCapture(portalMatch)

	c.observe(sent("1", "POST"))
	c.observe(received("1", "https://portal/buscarCronograma", 200))
	c.observe(&network.EventLoadingFailed{RequestID: "1", ErrorText: "net::ERR_ABORTED"})

	res := <-c.done
	assert.ErrorContains(t, res.err, "ERR_ABORTED")
}
