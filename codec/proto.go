package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/rpc"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize bounds a single header or body frame.
const MaxFrameSize = 4 << 20

// Field numbers of the call headers.
const (
	fieldServiceMethod protowire.Number = 1
	fieldSeq           protowire.Number = 2
	fieldError         protowire.Number = 3
)

// Every call is written as two frames, header then body. A frame is a uvarint
// length followed by that many bytes of protobuf wire data.
type protoServerCodec struct {
	conn io.ReadWriteCloser
	r    *bufio.Reader
	w    *bufio.Writer
}

var _ rpc.ServerCodec = (*protoServerCodec)(nil)

func newProtoServerCodec(conn io.ReadWriteCloser) *protoServerCodec {
	return &protoServerCodec{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (c *protoServerCodec) ReadRequestHeader(r *rpc.Request) error {
	frame, err := readFrame(c.r)
	if err != nil {
		return err
	}
	r.ServiceMethod, r.Seq = "", 0
	return ConsumeFields(frame, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldServiceMethod && typ == protowire.BytesType:
			return ConsumeString(b, &r.ServiceMethod)
		case num == fieldSeq && typ == protowire.VarintType:
			return consumeUint64(b, &r.Seq)
		}
		return -1, nil
	})
}

func (c *protoServerCodec) ReadRequestBody(body any) error {
	frame, err := readFrame(c.r)
	if err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	m, ok := body.(Message)
	if !ok {
		return fmt.Errorf("proto codec: %T is not a wire message", body)
	}
	return m.UnmarshalWire(frame)
}

func (c *protoServerCodec) WriteResponse(r *rpc.Response, body any) error {
	var payload []byte
	if r.Error == "" {
		m, ok := body.(Message)
		if !ok {
			return fmt.Errorf("proto codec: %T is not a wire message", body)
		}
		payload = m.AppendWire(nil)
	}

	header := AppendString(nil, fieldServiceMethod, r.ServiceMethod)
	header = AppendUint64(header, fieldSeq, r.Seq)
	header = AppendString(header, fieldError, r.Error)

	if err := writeFrame(c.w, header); err != nil {
		return err
	}
	if err := writeFrame(c.w, payload); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *protoServerCodec) Close() error {
	return c.conn.Close()
}

type protoClientCodec struct {
	conn io.ReadWriteCloser
	r    *bufio.Reader
	w    *bufio.Writer
}

var _ rpc.ClientCodec = (*protoClientCodec)(nil)

func newProtoClientCodec(conn io.ReadWriteCloser) *protoClientCodec {
	return &protoClientCodec{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (c *protoClientCodec) WriteRequest(r *rpc.Request, body any) error {
	m, ok := body.(Message)
	if !ok {
		return fmt.Errorf("%w: %T is not a wire message", ErrMalformed, body)
	}

	header := AppendString(nil, fieldServiceMethod, r.ServiceMethod)
	header = AppendUint64(header, fieldSeq, r.Seq)

	if err := writeFrame(c.w, header); err != nil {
		return err
	}
	if err := writeFrame(c.w, m.AppendWire(nil)); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *protoClientCodec) ReadResponseHeader(r *rpc.Response) error {
	frame, err := readFrame(c.r)
	if err != nil {
		return err
	}
	r.ServiceMethod, r.Seq, r.Error = "", 0, ""
	return ConsumeFields(frame, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldServiceMethod && typ == protowire.BytesType:
			return ConsumeString(b, &r.ServiceMethod)
		case num == fieldSeq && typ == protowire.VarintType:
			return consumeUint64(b, &r.Seq)
		case num == fieldError && typ == protowire.BytesType:
			return ConsumeString(b, &r.Error)
		}
		return -1, nil
	})
}

func (c *protoClientCodec) ReadResponseBody(body any) error {
	frame, err := readFrame(c.r)
	if err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	m, ok := body.(Message)
	if !ok {
		return fmt.Errorf("proto codec: %T is not a wire message", body)
	}
	return m.UnmarshalWire(frame)
}

func (c *protoClientCodec) Close() error {
	return c.conn.Close()
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("proto codec: frame of %d bytes exceeds limit of %d", n, MaxFrameSize)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

func writeFrame(w *bufio.Writer, frame []byte) error {
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("proto codec: frame of %d bytes exceeds limit of %d", len(frame), MaxFrameSize)
	}
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(frame)))
	if _, err := w.Write(prefix[:n]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

// FieldFunc decodes the value of one field from b and reports how many bytes
// it consumed. Returning a negative count skips the field as unknown.
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// ConsumeFields walks the protobuf wire data in b and hands every field to fn.
func ConsumeFields(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}

// AppendString appends a length-delimited string field. Empty strings are
// omitted, as proto3 does.
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendUint64 appends a varint field, omitting zero.
func AppendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendInt32 appends an int32 varint field with proto3 sign extension.
func AppendInt32(b []byte, num protowire.Number, v int32) []byte {
	return AppendUint64(b, num, uint64(int64(v)))
}

// ConsumeString decodes a UTF-8 string value into dst.
func ConsumeString(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if !utf8.ValidString(v) {
		return 0, errors.New("string is not valid UTF-8")
	}
	*dst = v
	return n, nil
}

// ConsumeInt32 decodes an int32 varint value into dst.
func ConsumeInt32(b []byte, dst *int32) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = int32(v)
	return n, nil
}

func consumeUint64(b []byte, dst *uint64) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}
