package ssdp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotifyAlive(t *testing.T) {
	raw := "NOTIFY * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"LOCATION: http://192.168.1.1:5000/desc.xml\r\n" +
		"NT: urn:schemas-upnp-org:device:InternetGatewayDevice:1\r\n" +
		"NTS: ssdp:alive\r\n" +
		"USN: uuid:4d696e69-0000-0000-0000-ace1d0665a11::upnp:rootdevice\r\n" +
		"SERVER: Linux/1.0 UPnP/1.0 Gateway/1.0\r\n" +
		"\r\n"

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.False(t, msg.IsResponse)
	assert.Equal(t, "NOTIFY", msg.Method)
	age, ok := msg.MaxAge()
	assert.True(t, ok)
	assert.Equal(t, 1800, age)
	assert.Equal(t, "http://192.168.1.1:5000/desc.xml", msg.Location())
	assert.Equal(t, "ssdp:alive", msg.NTS())

	nt, err := msg.NT()
	require.NoError(t, err)
	require.NotNil(t, nt.URN)
	assert.Equal(t, "InternetGatewayDevice", nt.URN.Type)

	usn, present, err := msg.USN()
	require.NoError(t, err)
	require.True(t, present)
	assert.True(t, usn.IsRoot)
}

func TestParseResponse(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=120\r\n" +
		"EXT:\r\n" +
		"LOCATION: http://10.0.0.1:80/desc.xml\r\n" +
		"SERVER: foo\r\n" +
		"ST: upnp:rootdevice\r\n" +
		"USN: uuid:abc\r\n" +
		"\r\n"

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, msg.IsResponse)
	assert.Equal(t, 200, msg.Status)
	assert.Equal(t, "OK", msg.Reason)

	st, err := msg.ST()
	require.NoError(t, err)
	assert.Nil(t, st.URN)
	assert.Equal(t, "upnp:rootdevice", st.Raw)
}

func TestParseToleratesLFOnly(t *testing.T) {
	raw := "HTTP/1.1 200 OK\nST: ssdp:all\n\n"
	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, msg.IsResponse)
	st, err := msg.ST()
	require.NoError(t, err)
	assert.Equal(t, "ssdp:all", st.Raw)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)

	_, err = Parse("NOTIFY *\r\n\r\n") // missing HTTP version token
	assert.Error(t, err)
}

func TestSerializeRequestDefaultsHost(t *testing.T) {
	msg := NewRequest("M-SEARCH", Headers{
		"MAN": `"ssdp:discover"`,
		"MX":  "2",
		"ST":  "ssdp:all",
	})

	out := msg.Serialize()
	assert.True(t, strings.HasPrefix(out, "M-SEARCH * HTTP/1.1\r\n"))
	assert.Contains(t, out, "HOST: 239.255.255.250:1900\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"))
}

func TestRoundTripNotifyByebye(t *testing.T) {
	raw := "NOTIFY * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"NT: upnp:rootdevice\r\n" +
		"NTS: ssdp:byebye\r\n" +
		"USN: uuid:4d696e69-0000-0000-0000-ace1d0665a11::upnp:rootdevice\r\n" +
		"\r\n"

	msg, err := Parse(raw)
	require.NoError(t, err)

	reparsed, err := Parse(msg.Serialize())
	require.NoError(t, err)

	assert.Equal(t, msg.Method, reparsed.Method)
	assert.Equal(t, msg.Headers, reparsed.Headers)
}

func TestHostDefaultsPort(t *testing.T) {
	msg := Message{Headers: Headers{"HOST": "239.255.255.250"}}
	host, port, ok := msg.Host()
	require.True(t, ok)
	assert.Equal(t, "239.255.255.250", host)
	assert.Equal(t, 1900, port)
}
