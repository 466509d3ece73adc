package interceptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadFromQuery(t *testing.T) {
	p := RequestPayload(get(t, "http://localhost/api/rules/search?available_since=2014-12-01&f=name&f=lang"))
	assert.Equal(t, map[string]string{"available_since": "2014-12-01", "f": "name"}, p)
}

func TestPayloadFromJSONBody(t *testing.T) {
	p := RequestPayload(post(t, "http://localhost/x?a=1", "application/json; charset=utf-8",
		`{"a": "2", "n": 3.5, "b": true, "z": null, "o": {"k": [1, 2]}}`))
	assert.Equal(t, map[string]string{"a": "2", "n": "3.5", "b": "true", "z": "", "o": `{"k":[1,2]}`}, p)
}

func TestPayloadFromUntypedJSONBody(t *testing.T) {
	p := RequestPayload(post(t, "http://localhost/x", "", `{"key":"squid:S1"}`))
	assert.Equal(t, map[string]string{"key": "squid:S1"}, p)
}

func TestPayloadFromFormBody(t *testing.T) {
	p := RequestPayload(post(t, "http://localhost/x", "application/x-www-form-urlencoded", "key=squid%3AS1&p=1"))
	assert.Equal(t, map[string]string{"key": "squid:S1", "p": "1"}, p)
}

func TestPayloadWithEmptyBody(t *testing.T) {
	p := RequestPayload(post(t, "http://localhost/x?q=1", "application/json", "  "))
	assert.Equal(t, map[string]string{"q": "1"}, p)
}
