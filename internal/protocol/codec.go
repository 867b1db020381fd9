package protocol

import (
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	MIMEJSON    = "application/json"
	MIMEMsgpack = "application/msgpack"
)

// Codec encodes tool-call payloads. Call and reply frames keep their args
// and result encoded so they can be decoded into the concrete type later.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	DecodeCall(data []byte) (*Call, error)
	DecodeReply(data []byte) (*Reply, error)
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// ByName returns the codec called name ("json" or "msgpack").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}

// Negotiate picks the codec for a Content-Type or Accept header value.
// Anything that does not ask for msgpack gets JSON.
func Negotiate(header string) Codec {
	for _, part := range strings.Split(header, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case MIMEMsgpack, "application/x-msgpack", "application/vnd.msgpack":
			return Msgpack
		case MIMEJSON:
			return JSON
		}
	}
	return JSON
}

type jsonCodec struct{}

func (jsonCodec) Name() string        { return "json" }
func (jsonCodec) ContentType() string { return MIMEJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) DecodeCall(data []byte) (*Call, error) {
	var f struct {
		ID   string          `json:"id"`
		Tool string          `json:"tool"`
		Args json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &Call{ID: f.ID, Tool: f.Tool, Args: f.Args}, nil
}

func (jsonCodec) DecodeReply(data []byte) (*Reply, error) {
	var f struct {
		ID     string          `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *ErrorBody      `json:"error"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &Reply{ID: f.ID, Result: f.Result, Error: f.Error}, nil
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string        { return "msgpack" }
func (msgpackCodec) ContentType() string { return MIMEMsgpack }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return msgpack.Unmarshal(data, v)
}

func (msgpackCodec) DecodeCall(data []byte) (*Call, error) {
	var f struct {
		ID   string             `msgpack:"id"`
		Tool string             `msgpack:"tool"`
		Args msgpack.RawMessage `msgpack:"args"`
	}
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &Call{ID: f.ID, Tool: f.Tool, Args: f.Args}, nil
}

func (msgpackCodec) DecodeReply(data []byte) (*Reply, error) {
	var f struct {
		ID     string             `msgpack:"id"`
		Result msgpack.RawMessage `msgpack:"result"`
		Error  *ErrorBody         `msgpack:"error"`
	}
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &Reply{ID: f.ID, Result: f.Result, Error: f.Error}, nil
}
