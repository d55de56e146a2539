package urn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURNRoundTrip(t *testing.T) {
	for _, s := range []string{
		"urn:schemas-upnp-org:device:InternetGatewayDevice:1",
		"urn:schemas-upnp-org:service:WANIPConnection:2",
		"urn:my-vendor.com:service:MyService:1",
	} {
		u, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, u.String())

		u2, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, u, u2)
		assert.True(t, u.Equal(u2))
	}
}

func TestURNIsVendor(t *testing.T) {
	std := MustParse("urn:schemas-upnp-org:device:InternetGatewayDevice:1")
	assert.False(t, std.IsVendor())

	vendor := MustParse("urn:example-com:device:Widget:1")
	assert.True(t, vendor.IsVendor())
}

func TestURNRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"falsy_urn",
		"urn:schemas-upnp-org:gadget:Foo:1", // bad kind
		"urn:schemas-upnp-org:device::1",    // empty type
		"urn::device:Foo:1",                 // empty domain
	} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestUSNRoundTrip(t *testing.T) {
	for _, s := range []string{
		"uuid:4d696e69-0000-0000-0000-ace1d0665a11",
		"uuid:4d696e69-0000-0000-0000-ace1d0665a11::upnp:rootdevice",
		"uuid:4d696e69-0000-0000-0000-ace1d0665a11::urn:schemas-upnp-org:service:WANIPConnection:1",
	} {
		u, err := ParseUSN(s)
		require.NoError(t, err)
		assert.Equal(t, s, u.String())
		assert.True(t, u.Equal(u))
	}
}

func TestUSNLowercasesUUID(t *testing.T) {
	u, err := ParseUSN("uuid:4D696E69-0000-0000-0000-ACE1D0665A11")
	require.NoError(t, err)
	assert.Equal(t, "4d696e69-0000-0000-0000-ace1d0665a11", u.UUID)
	assert.Equal(t, "uuid:4d696e69-0000-0000-0000-ace1d0665a11", u.String())
}

func TestUSNRejectsMalformed(t *testing.T) {
	_, err := ParseUSN("not-a-usn")
	assert.Error(t, err)
}
