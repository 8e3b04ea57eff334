package edgeauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	// sha256("") = e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855
	got := Canonical("post", "/api/v1/edge/heartbeat", 1700000000, nil)
	assert.Equal(t,
		"POST|/api/v1/edge/heartbeat|1700000000|e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		got)
}

func TestSignDeterministic(t *testing.T) {
	body := []byte(`{"edge_id":"edge-001"}`)

	a := Sign("secret", "POST", "/api/v1/edge/heartbeat", 1700000000, body)
	b := Sign("secret", "POST", "/api/v1/edge/heartbeat", 1700000000, body)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.True(t, Verify("secret", "POST", "/api/v1/edge/heartbeat", 1700000000, body, a))
}

func TestVerifyRejectsMutations(t *testing.T) {
	body := []byte(`{"edge_id":"edge-001"}`)
	sig := Sign("secret", "POST", "/api/v1/edge/heartbeat", 1700000000, body)

	assert.False(t, Verify("other-secret", "POST", "/api/v1/edge/heartbeat", 1700000000, body, sig))
	assert.False(t, Verify("secret", "GET", "/api/v1/edge/heartbeat", 1700000000, body, sig))
	assert.False(t, Verify("secret", "POST", "/api/v1/edge/cameras", 1700000000, body, sig))
	assert.False(t, Verify("secret", "POST", "/api/v1/edge/heartbeat", 1700000001, body, sig))
	assert.False(t, Verify("secret", "POST", "/api/v1/edge/heartbeat", 1700000000, []byte(`{"edge_id":"edge-002"}`), sig))
	assert.False(t, Verify("secret", "POST", "/api/v1/edge/heartbeat", 1700000000, body, ""))
}

func TestSignLowercaseMethodNormalized(t *testing.T) {
	body := []byte("x")

	lower := Sign("secret", "post", "/p", 1, body)
	upper := Sign("secret", "POST", "/p", 1, body)

	assert.Equal(t, upper, lower)
}

func TestFresh(t *testing.T) {
	now := time.Unix(1700000000, 0)
	window := 300 * time.Second

	assert.True(t, Fresh(now.Unix(), now, window))
	assert.True(t, Fresh(now.Unix()-299, now, window))
	assert.True(t, Fresh(now.Unix()-300, now, window))
	assert.False(t, Fresh(now.Unix()-301, now, window))

	// window is symmetric around now
	assert.True(t, Fresh(now.Unix()+299, now, window))
	assert.True(t, Fresh(now.Unix()+300, now, window))
	assert.False(t, Fresh(now.Unix()+301, now, window))

	assert.False(t, Fresh(now.Unix()-400, now, window))
}
