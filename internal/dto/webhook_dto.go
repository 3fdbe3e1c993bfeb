package dto

import "encoding/xml"

// InboundMessage is the form payload posted by the WhatsApp transport.
type InboundMessage struct {
	From string `form:"From" validate:"required"`
	Body string `form:"Body"`
}

// TwiMLResponse is the reply envelope returned to the transport.
type TwiMLResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}
