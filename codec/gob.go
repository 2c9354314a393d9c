package codec

import (
	"bufio"
	"encoding/gob"
	"io"
	"net/rpc"

	"github.com/charmbracelet/log"
)

type gobServerCodec struct {
	conn io.ReadWriteCloser
	buf  *bufio.Writer
	dec  *gob.Decoder
	enc  *gob.Encoder
}

var _ rpc.ServerCodec = (*gobServerCodec)(nil)

func newGobServerCodec(conn io.ReadWriteCloser) *gobServerCodec {
	buf := bufio.NewWriter(conn)
	return &gobServerCodec{
		conn: conn,
		buf:  buf,
		dec:  gob.NewDecoder(conn),
		enc:  gob.NewEncoder(buf),
	}
}

func (c *gobServerCodec) ReadRequestHeader(r *rpc.Request) error {
	return c.dec.Decode(r)
}

func (c *gobServerCodec) ReadRequestBody(body any) error {
	return c.dec.Decode(body)
}

func (c *gobServerCodec) WriteResponse(r *rpc.Response, body any) (err error) {
	defer func() {
		if flushErr := c.buf.Flush(); err == nil {
			err = flushErr
		}
		if err != nil {
			c.Close()
		}
	}()

	if err = c.enc.Encode(r); err != nil {
		log.Errorf("gob codec: encoding response header: %v", err)
		return err
	}
	if err = c.enc.Encode(body); err != nil {
		log.Errorf("gob codec: encoding response body: %v", err)
		return err
	}
	return nil
}

func (c *gobServerCodec) Close() error {
	return c.conn.Close()
}

type gobClientCodec struct {
	conn io.ReadWriteCloser
	buf  *bufio.Writer
	dec  *gob.Decoder
	enc  *gob.Encoder
}

var _ rpc.ClientCodec = (*gobClientCodec)(nil)

func newGobClientCodec(conn io.ReadWriteCloser) *gobClientCodec {
	buf := bufio.NewWriter(conn)
	return &gobClientCodec{
		conn: conn,
		buf:  buf,
		dec:  gob.NewDecoder(conn),
		enc:  gob.NewEncoder(buf),
	}
}

func (c *gobClientCodec) WriteRequest(r *rpc.Request, body any) error {
	if err := c.enc.Encode(r); err != nil {
		return err
	}
	if err := c.enc.Encode(body); err != nil {
		return err
	}
	return c.buf.Flush()
}

func (c *gobClientCodec) ReadResponseHeader(r *rpc.Response) error {
	return c.dec.Decode(r)
}

func (c *gobClientCodec) ReadResponseBody(body any) error {
	return c.dec.Decode(body)
}

func (c *gobClientCodec) Close() error {
	return c.conn.Close()
}
