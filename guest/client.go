package guest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reglet-dev/hostbridge/wireformat"
)

// Transport delivers one JSON request for op and returns the JSON response.
type Transport func(op wireformat.Op, request []byte) []byte

// Error is an error reported by the host.
type Error struct {
	// Kind is the wire error type, e.g. wireformat.ErrorNotFound.
	Kind    string
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("hostbridge: %s (%d): %s", e.Kind, e.Code, e.Message)
}

// IsNotFound reports whether err is the host's answer for an unknown object.
func IsNotFound(err error) bool {
	var hostErr *Error
	return errors.As(err, &hostErr) && hostErr.Kind == wireformat.ErrorNotFound
}

// Client issues object operations through a Transport.
type Client struct {
	transport Transport
}

// NewClient creates a Client. Tests pass a transport that talks to an
// in-process object set.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// Default talks to the host module the guest was instantiated with.
var Default = NewClient(hostTransport)

// response holds either a value or an error.
type response struct {
	Value   json.RawMessage `json:"value"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

func (c *Client) do(op wireformat.Op, req wireformat.ObjectRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", op, err)
	}

	var resp response
	if err := json.Unmarshal(c.transport(op, payload), &resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", op, err)
	}
	if resp.Error != "" {
		return nil, &Error{Kind: resp.Error, Message: resp.Message, Code: resp.Code}
	}
	return resp.Value, nil
}

// Get reads a property. Callables come back as a wireformat.FunctionRef.
func (c *Client) Get(object, name string) (json.RawMessage, error) {
	return c.do(wireformat.OpGet, wireformat.ObjectRequest{Object: object, Name: name})
}

// Set writes a property.
func (c *Client) Set(object, name string, value any) error {
	_, err := c.do(wireformat.OpSet, wireformat.ObjectRequest{Object: object, Name: name, Value: value})
	return err
}

// Call invokes a callable property with args.
func (c *Client) Call(object, name string, args ...any) (json.RawMessage, error) {
	return c.do(wireformat.OpCall, wireformat.ObjectRequest{Object: object, Name: name, Args: args})
}

// Keys lists the properties of object.
func (c *Client) Keys(object string) ([]string, error) {
	raw, err := c.do(wireformat.OpKeys, wireformat.ObjectRequest{Object: object})
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("decoding keys: %w", err)
	}
	return keys, nil
}

// Objects lists the names of the objects the host serves.
func (c *Client) Objects() ([]string, error) {
	return c.Keys("")
}

// FunctionName returns the callable name raw refers to, if it is a
// wireformat.FunctionRef.
func FunctionName(raw json.RawMessage) (string, bool) {
	var ref wireformat.FunctionRef
	if err := json.Unmarshal(raw, &ref); err != nil || ref.Function == "" {
		return "", false
	}
	return ref.Function, true
}

// Get reads a property through Default.
func Get(object, name string) (json.RawMessage, error) {
	return Default.Get(object, name)
}

// Set writes a property through Default.
func Set(object, name string, value any) error {
	return Default.Set(object, name, value)
}

// Call invokes a callable through Default.
func Call(object, name string, args ...any) (json.RawMessage, error) {
	return Default.Call(object, name, args...)
}

// Keys lists properties through Default.
func Keys(object string) ([]string, error) {
	return Default.Keys(object)
}
