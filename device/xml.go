package device

import "encoding/xml"

// The structs below mirror the UPnP device description and SCPD XML
// grammars closely enough for decoding; unrecognized elements are captured
// generically so they can be folded into a device's metadata map (§4.6).

type rawRoot struct {
	XMLName xml.Name  `xml:"root"`
	Device  rawDevice `xml:"device"`
}

type rawDevice struct {
	DeviceType   string          `xml:"deviceType"`
	FriendlyName string          `xml:"friendlyName"`
	UDN          string          `xml:"UDN"`
	ServiceList  []rawService    `xml:"serviceList>service"`
	DeviceList   []rawDevice     `xml:"deviceList>device"`
	Any          []rawAnyElement `xml:",any"`
}

// rawAnyElement captures every child element of <device> so that ones not
// named above (manufacturer, modelName, and vendor extensions) can be
// folded into Device.Metadata.
type rawAnyElement struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type rawService struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
	SCPDURL     string `xml:"SCPDURL"`
}

type rawSCPD struct {
	XMLName           xml.Name           `xml:"scpd"`
	ActionList        []rawAction        `xml:"actionList>action"`
	ServiceStateTable []rawStateVariable `xml:"serviceStateTable>stateVariable"`
}

type rawAction struct {
	Name      string         `xml:"name"`
	Arguments []rawArgument  `xml:"argumentList>argument"`
}

type rawArgument struct {
	Name                 string `xml:"name"`
	Direction            string `xml:"direction"`
	RetVal               *struct{} `xml:"retval"`
	RelatedStateVariable string `xml:"relatedStateVariable"`
}

type rawStateVariable struct {
	SendEvents     string   `xml:"sendEvents,attr"`
	Multicast      string   `xml:"multicast,attr"`
	Name           string   `xml:"name"`
	DataType       string   `xml:"dataType"`
	DefaultValue   string   `xml:"defaultValue"`
	AllowedValues  []string `xml:"allowedValueList>allowedValue"`
	AllowedMinimum string   `xml:"allowedValueRange>minimum"`
	AllowedMaximum string   `xml:"allowedValueRange>maximum"`
	AllowedStep    string   `xml:"allowedValueRange>step"`
}

// skippedDeviceFields names the elements of rawDevice already mapped to a
// first-class field, so the generic Any capture can exclude them when
// building the metadata map.
var skippedDeviceFields = map[string]bool{
	"deviceType":   true,
	"friendlyName": true,
	"UDN":          true,
	"serviceList":  true,
	"deviceList":   true,
	"iconList":     true, // explicitly ignored per §4.6
}
