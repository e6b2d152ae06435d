package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// MaxMessageSize bounds a single framed message. A malicious or buggy peer
// that sends a length prefix larger than this is treated as a framing error
// rather than an invitation to allocate gigabytes.
const MaxMessageSize = 64 << 20 // 64 MiB

// ErrFraming marks a short read on the length prefix or the payload. It is
// never reported back to the peer; the connection is simply closed.
var ErrFraming = fmt.Errorf("wire: short read while framing message")

// ReadFrame reads one length-prefixed payload from r. io.EOF on the very
// first byte means a clean close; any other short read returns ErrFraming.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrFraming, err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return nil, fmt.Errorf("%w: declared length %d exceeds max %d", ErrFraming, n, MaxMessageSize)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFraming, err)
	}
	return body, nil
}

// WriteFrame writes payload to w prefixed by its 4-byte big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// DecodeRequest parses a raw JSON body into a Request. It uses gjson to peek
// the operation field first and rejects a body whose operation is missing
// or empty; the full decode into Request then happens via encoding/json.
func DecodeRequest(body []byte) (*Request, error) {
	op := gjson.GetBytes(body, "operation")
	if !op.Exists() || op.String() == "" {
		return nil, fmt.Errorf("wire: missing or empty %q field", "operation")
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("wire: malformed JSON body: %w", err)
	}
	return &req, nil
}

// EncodeResponse serializes a Response to its wire JSON form.
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// WriteResponse is a convenience combining EncodeResponse + WriteFrame.
func WriteResponse(w io.Writer, resp *Response) error {
	body, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return WriteFrame(w, body)
}

// ReadRequest is a convenience combining ReadFrame + DecodeRequest.
func ReadRequest(r io.Reader) (*Request, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeRequest(body)
}

// EncodeRequest serializes a Request to its wire JSON form — used by the
// client SDK and the cluster transport to build outgoing messages.
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// WriteRequest is a convenience combining EncodeRequest + WriteFrame.
func WriteRequest(w io.Writer, req *Request) error {
	body, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	return WriteFrame(w, body)
}

// ReadResponse is a convenience combining ReadFrame + json.Unmarshal into a
// Response — used by the client SDK and cluster transport for replies.
func ReadResponse(r io.Reader) (*Response, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("wire: malformed response JSON: %w", err)
	}
	return &resp, nil
}
