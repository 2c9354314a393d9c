package codec

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{"proto", Proto, false},
		{"GOB", Gob, false},
		{" json ", JSON, false},
		{"xml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "Parse(%q) should fail", tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNameUnmarshalText(t *testing.T) {
	var n Name
	require.NoError(t, n.UnmarshalText([]byte("gob")))
	assert.Equal(t, Gob, n)

	assert.Error(t, n.UnmarshalText([]byte("msgpack")))
	assert.Equal(t, Gob, n, "a rejected value leaves the name unchanged")
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, writeFrame(w, []byte("header")))
	require.NoError(t, writeFrame(w, nil))
	require.NoError(t, w.Flush())

	r := bufio.NewReader(&buf)
	first, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("header"), first)

	second, err := readFrame(r)
	require.NoError(t, err)
	assert.Empty(t, second)

	_, err = readFrame(r)
	assert.Equal(t, io.EOF, err, "a clean end of stream is io.EOF")
}

func TestReadFrameTruncated(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x05, 'a', 'b'}))

	_, err := readFrame(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	prefix := protowire.AppendVarint(nil, MaxFrameSize+1)
	r := bufio.NewReader(bytes.NewReader(prefix))

	_, err := readFrame(r)
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestConsumeFieldsSkipsUnknown(t *testing.T) {
	b := protowire.AppendTag(nil, 5, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 1)
	b = AppendString(b, 1, "kept")

	var got string
	err := ConsumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			return ConsumeString(v, &got)
		}
		return -1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "kept", got)
}

func TestAppendOmitsZeroValues(t *testing.T) {
	assert.Empty(t, AppendString(nil, 1, ""))
	assert.Empty(t, AppendUint64(nil, 2, 0))
	assert.Empty(t, AppendInt32(nil, 2, 0))
}

func TestProtoHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	conn := nopCloser{&buf}

	client := newProtoClientCodec(conn)
	require.NoError(t, client.WriteRequest(&rpc.Request{ServiceMethod: "UserService.GetUserInfo", Seq: 7}, &testMessage{value: "Alice"}))

	server := newProtoServerCodec(conn)
	var req rpc.Request
	require.NoError(t, server.ReadRequestHeader(&req))
	assert.Equal(t, "UserService.GetUserInfo", req.ServiceMethod)
	assert.Equal(t, uint64(7), req.Seq)

	body := &testMessage{}
	require.NoError(t, server.ReadRequestBody(body))
	assert.Equal(t, "Alice", body.value)
}

func TestProtoErrorResponseHasEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	conn := nopCloser{&buf}

	server := newProtoServerCodec(conn)
	require.NoError(t, server.WriteResponse(&rpc.Response{ServiceMethod: "S.M", Seq: 3, Error: "boom"}, struct{}{}))

	client := newProtoClientCodec(conn)
	var resp rpc.Response
	require.NoError(t, client.ReadResponseHeader(&resp))
	assert.Equal(t, "boom", resp.Error)
	assert.Equal(t, uint64(3), resp.Seq)
	require.NoError(t, client.ReadResponseBody(nil))
}

func TestProtoClientRejectsPlainValues(t *testing.T) {
	client := newProtoClientCodec(nopCloser{&bytes.Buffer{}})

	err := client.WriteRequest(&rpc.Request{ServiceMethod: "S.M"}, 42)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMalformedServerCodec(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantMalformed bool
	}{
		{"decode failure", errors.New("bad field"), true},
		{"end of stream", io.EOF, false},
		{"no error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &malformedServerCodec{ServerCodec: stubServerCodec{bodyErr: tt.err}}
			err := c.ReadRequestBody(nil)
			if tt.wantMalformed {
				assert.ErrorIs(t, err, ErrMalformed)
				assert.Contains(t, err.Error(), "malformed request: bad field")
				return
			}
			assert.Equal(t, tt.err, err)
		})
	}
}

type nopCloser struct {
	io.ReadWriter
}

func (nopCloser) Close() error { return nil }

type testMessage struct {
	value string
}

func (m *testMessage) AppendWire(b []byte) []byte {
	return AppendString(b, 1, m.value)
}

func (m *testMessage) UnmarshalWire(b []byte) error {
	return ConsumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			return ConsumeString(v, &m.value)
		}
		return -1, nil
	})
}

type stubServerCodec struct {
	bodyErr error
}

func (s stubServerCodec) ReadRequestHeader(*rpc.Request) error { return nil }
func (s stubServerCodec) ReadRequestBody(any) error { return s.bodyErr }
func (s stubServerCodec) WriteResponse(*rpc.Response, any) error { return nil }
func (s stubServerCodec) Close() error { return nil }
