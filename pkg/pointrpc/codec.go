package pointrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName 是 content-subtype，client 需以 grpc.CallContentSubtype(CodecName) 呼叫
const CodecName = "json"

// jsonCodec 以 JSON 編碼 gRPC 訊息 (不需要 protoc 產生的程式碼)
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
