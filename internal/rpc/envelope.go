package rpc

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// envelope wraps every request/response with the wall-clock time it was
// sent, the same boundary-conversion pattern the controller side of this
// codebase uses when crossing into a wire format: internal types keep
// time.Time, the wire layer carries a protobuf timestamp.
type envelope[T any] struct {
	SentAt  *timestamppb.Timestamp `json:"sent_at"`
	Payload T                      `json:"payload"`
}

func wrap[T any](payload T) envelope[T] {
	return envelope[T]{SentAt: timestamppb.New(time.Now()), Payload: payload}
}
