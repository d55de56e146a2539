package soap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBodyShape(t *testing.T) {
	req := Request{
		ControlURL:  "http://192.168.1.1:5885/control/",
		ServiceType: "urn:schemas-upnp-org:service:serviceType:ver",
		Action:      "test",
		Args: []Arg{
			{Name: "arg1", Value: "458"},
			{Name: "arg2", Value: "885"},
		},
	}

	body, err := req.Body()
	require.NoError(t, err)
	s := string(body)

	assert.Contains(t, s, "s:Envelope")
	assert.Contains(t, s, "s:Body")
	assert.Contains(t, s, `<u:test xmlns:u="urn:schemas-upnp-org:service:serviceType:ver">`)
	assert.Contains(t, s, "<arg1>458</arg1>")
	assert.Contains(t, s, "<arg2>885</arg2>")

	headers := req.Headers()
	assert.Equal(t, `"urn:schemas-upnp-org:service:serviceType:ver#test"`, headers["SOAPAction"])
}
