package uds

// NegativeResponse builds the three-byte [0x7F, sid, nrc] negative response
// frame. Every service handler in this package funnels through this one
// builder rather than each assembling its own slice, so the wire format for
// a negative response lives in exactly one place.
func NegativeResponse(sid, nrc byte) []byte {
	return []byte{SIDNegativeResponse, sid, nrc}
}

// positiveResponse returns the positive response SID for a request sid.
func positiveResponse(sid byte) byte {
	return sid + RspPositive
}
