package wire

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	req := &Request{Operation: OpSet, Key: "a", Value: json.RawMessage(`"1"`)}

	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, req))

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, req.Operation, got.Operation)
	require.Equal(t, req.Key, got.Key)
	require.JSONEq(t, string(req.Value), string(got.Value))
}

func TestReadFrameEmptyStreamIsEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameShortBodyIsFramingError(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 10})
	buf.WriteString("short")

	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrFraming)
}

func TestReadFrameRejectsOversizedDeclaredLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrFraming)
}

func TestDecodeRequestRejectsMissingOperation(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"key":"a"}`))
	require.Error(t, err)
}

func TestDecodeRequestBulkSet(t *testing.T) {
	body := []byte(`{"operation":"BULK_SET","items":[{"key":"a","value":1},{"key":"b","value":"x"}]}`)
	req, err := DecodeRequest(body)
	require.NoError(t, err)
	require.Equal(t, OpBulkSet, req.Operation)
	require.Len(t, req.Items, 2)
	require.Equal(t, "a", req.Items[0].Key)
}

func TestEncodeResponseOmitsUnsetFields(t *testing.T) {
	resp := OK(WithSuccess(true))
	data, err := EncodeResponse(resp)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"OK","success":true}`, string(data))
}

func TestNotFoundResponseShape(t *testing.T) {
	data, err := EncodeResponse(NotFound())
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"NOT_FOUND","value":null}`, string(data))
}

func TestErrorResponseWithPrimaryHint(t *testing.T) {
	data, err := EncodeResponse(Error("Not primary", []any{"localhost", 10001}))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ERROR","message":"Not primary","primary":["localhost",10001]}`, string(data))
}
