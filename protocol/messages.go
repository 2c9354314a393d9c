package protocol

import (
	"github.com/alanwang67/userinfo/codec"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers follow user.proto.
const (
	fieldName protowire.Number = 1
	fieldAge  protowire.Number = 2
)

type UserRequest struct {
	Name string `json:"name"`
}

type UserResponse struct {
	Name string `json:"name"`
	Age  int32  `json:"age"`
}

var (
	_ codec.Message = (*UserRequest)(nil)
	_ codec.Message = (*UserResponse)(nil)
)

func (r *UserRequest) AppendWire(b []byte) []byte {
	return codec.AppendString(b, fieldName, r.Name)
}

func (r *UserRequest) UnmarshalWire(b []byte) error {
	*r = UserRequest{}
	return codec.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == fieldName && typ == protowire.BytesType {
			return codec.ConsumeString(v, &r.Name)
		}
		return -1, nil
	})
}

func (r *UserResponse) AppendWire(b []byte) []byte {
	b = codec.AppendString(b, fieldName, r.Name)
	return codec.AppendInt32(b, fieldAge, r.Age)
}

func (r *UserResponse) UnmarshalWire(b []byte) error {
	*r = UserResponse{}
	return codec.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case num == fieldName && typ == protowire.BytesType:
			return codec.ConsumeString(v, &r.Name)
		case num == fieldAge && typ == protowire.VarintType:
			return codec.ConsumeInt32(v, &r.Age)
		}
		return -1, nil
	})
}
