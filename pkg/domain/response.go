package domain

import (
	"encoding/json"
	"fmt"
)

// ResponseKind tags the variant carried by a Response.
type ResponseKind int

const (
	// KindCallback asks the owner to run a named callback with a parameter.
	KindCallback ResponseKind = iota
	// KindError asks the owner to surface an error message to the user.
	KindError
)

// String returns the wire name of the kind.
func (k ResponseKind) String() string {
	switch k {
	case KindCallback:
		return "callback"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseResponseKind maps a wire name back to a kind.
func ParseResponseKind(s string) (ResponseKind, error) {
	switch s {
	case "callback":
		return KindCallback, nil
	case "error":
		return KindError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownResponseKind, s)
	}
}

// Response is a message sent from the component process to the owner.
// Name and Param are set for KindCallback, Message for KindError.
type Response struct {
	Kind    ResponseKind
	Name    string
	Param   string
	Message string
}

// Callback builds a callback response.
func Callback(name, param string) Response {
	return Response{Kind: KindCallback, Name: name, Param: param}
}

// Failure builds an error response.
func Failure(message string) Response {
	return Response{Kind: KindError, Message: message}
}

type responseFrame struct {
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON encodes the response as a tagged object.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindCallback:
		return json.Marshal(responseFrame{Kind: r.Kind.String(), Name: r.Name, Param: r.Param})
	case KindError:
		return json.Marshal(responseFrame{Kind: r.Kind.String(), Message: r.Message})
	default:
		return nil, fmt.Errorf("marshal response: %w: %d", ErrUnknownResponseKind, int(r.Kind))
	}
}

// UnmarshalJSON decodes a tagged object, rejecting unknown kinds.
func (r *Response) UnmarshalJSON(data []byte) error {
	var frame responseFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	kind, err := ParseResponseKind(frame.Kind)
	if err != nil {
		return err
	}
	*r = Response{Kind: kind, Name: frame.Name, Param: frame.Param, Message: frame.Message}
	return nil
}
