package wazero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/reglet-dev/hostbridge/hostobject"
	"github.com/reglet-dev/hostbridge/wireformat"
)

// ErrDuplicateObject is returned when two objects share a name.
var ErrDuplicateObject = errors.New("duplicate host object")

// ErrEmptyObjectName is returned for objects registered without a name.
var ErrEmptyObjectName = errors.New("host object name cannot be empty")

type hostObject interface {
	Get(rt hostobject.Runtime[any], name string) (any, error)
	Set(rt hostobject.Runtime[any], name string, value any) error
	Keys() []string
	Close()
}

type entry struct {
	obj  hostObject
	kind func(name string) hostobject.Kind
}

// ObjectSet is an immutable collection of named host objects served to wasm
// guests. Handle is safe for concurrent use; calls are serialized.
type ObjectSet struct {
	mu      sync.Mutex
	objects map[string]entry
	names   []string
	policy  *Policy
	logger  *slog.Logger
}

type objectSetBuilder struct {
	ctors  map[string]func(opts ...hostobject.Option) (entry, error)
	order  []string
	policy hostobject.SetPolicy
	access *Policy
	logger *slog.Logger
	errors []error
}

// ObjectOption configures an ObjectSet.
type ObjectOption func(*objectSetBuilder)

// WithObject adds recv under name.
func WithObject[T any](name string, recv T, decl *hostobject.Declaration[T, any]) ObjectOption {
	return func(b *objectSetBuilder) {
		if name == "" {
			b.errors = append(b.errors, ErrEmptyObjectName)
			return
		}
		if _, exists := b.ctors[name]; exists {
			b.errors = append(b.errors, fmt.Errorf("%w: %s", ErrDuplicateObject, name))
			return
		}
		b.ctors[name] = func(opts ...hostobject.Option) (entry, error) {
			obj, err := hostobject.New(recv, decl, opts...)
			if err != nil {
				return entry{}, fmt.Errorf("host object %s: %w", name, err)
			}
			return entry{
				obj: obj,
				kind: func(member string) hostobject.Kind {
					return obj.Exports().Resolve(member).Kind
				},
			}, nil
		}
		b.order = append(b.order, name)
	}
}

// WithSetPolicy sets the policy for writes to unknown properties.
func WithSetPolicy(p hostobject.SetPolicy) ObjectOption {
	return func(b *objectSetBuilder) {
		b.policy = p
	}
}

// WithPolicy restricts which properties guests may reach. Denied reads,
// writes and calls fail with PERMISSION_DENIED; denied names are left out of
// key listings.
func WithPolicy(p *Policy) ObjectOption {
	return func(b *objectSetBuilder) {
		b.access = p
	}
}

// WithObjectLogger sets the logger (default: slog.Default()).
func WithObjectLogger(l *slog.Logger) ObjectOption {
	return func(b *objectSetBuilder) {
		b.logger = l
	}
}

// NewObjectSet creates an ObjectSet. It fails on the first invalid object or
// declaration.
func NewObjectSet(opts ...ObjectOption) (*ObjectSet, error) {
	b := &objectSetBuilder{
		ctors:  make(map[string]func(opts ...hostobject.Option) (entry, error)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	objects := make(map[string]entry, len(b.ctors))
	for _, name := range b.order {
		e, err := b.ctors[name](
			hostobject.WithSetPolicy(b.policy),
			hostobject.WithLogger(b.logger),
		)
		if err != nil {
			return nil, err
		}
		objects[name] = e
	}

	names := append([]string(nil), b.order...)
	sort.Strings(names)

	return &ObjectSet{
		objects: objects,
		names:   names,
		policy:  b.access,
		logger:  b.logger,
	}, nil
}

// Names returns the object names in sorted order.
func (s *ObjectSet) Names() []string {
	return append([]string(nil), s.names...)
}

// Close closes every object. Later operations report INTERNAL_ERROR.
func (s *ObjectSet) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.objects {
		e.obj.Close()
	}
}

// Handle runs op on a JSON request and returns the JSON response. Failures
// are reported as an ErrorResponse, never as a Go error.
func (s *ObjectSet) Handle(ctx context.Context, op wireformat.Op, payload []byte) (resp []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "wazero: object operation panicked", "op", op, "panic", r)
			resp = wireformat.NewPanicError(r).ToJSON()
		}
	}()

	var req wireformat.ObjectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wireformat.NewValidationError(fmt.Sprintf("invalid request: %v", err)).ToJSON()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value, errResp := s.dispatch(op, req)
	if errResp != nil {
		s.logger.DebugContext(ctx, "wazero: object operation failed",
			"op", op, "object", req.Object, "name", req.Name, "error", errResp.Message)
		return errResp.ToJSON()
	}

	data, err := json.Marshal(wireformat.ObjectResponse{Value: value})
	if err != nil {
		return wireformat.NewInternalError(fmt.Sprintf("encoding response: %v", err)).ToJSON()
	}
	return data
}

func (s *ObjectSet) dispatch(op wireformat.Op, req wireformat.ObjectRequest) (any, *wireformat.ErrorResponse) {
	if op == wireformat.OpKeys && req.Object == "" {
		return s.visibleNames(), nil
	}

	e, ok := s.objects[req.Object]
	if !ok {
		errResp := wireformat.NewNotFoundError(req.Object)
		return nil, &errResp
	}
	if op != wireformat.OpKeys && req.Name == "" {
		errResp := wireformat.NewValidationError("missing property name")
		return nil, &errResp
	}

	if op != wireformat.OpKeys && !s.policy.Allows(req.Object, req.Name) {
		s.logger.Warn("wazero: access denied", "op", op, "object", req.Object, "name", req.Name)
		errResp := wireformat.NewDeniedError(req.Object + "." + req.Name)
		return nil, &errResp
	}

	var rt jsonRuntime
	switch op {
	case wireformat.OpGet:
		v, err := e.obj.Get(rt, req.Name)
		return fail(v, err)
	case wireformat.OpSet:
		return fail(nil, e.obj.Set(rt, req.Name, req.Value))
	case wireformat.OpKeys:
		return s.policy.filter(req.Object, e.obj.Keys()), nil
	case wireformat.OpCall:
		if e.kind(req.Name) != hostobject.KindCallable {
			errResp := wireformat.NewValidationError(fmt.Sprintf("%s.%s is not a function", req.Object, req.Name))
			return nil, &errResp
		}
		v, err := e.obj.Get(rt, req.Name)
		if err != nil {
			return fail(nil, err)
		}
		return fail(v.(*Function).Invoke(req.Args))
	default:
		errResp := wireformat.NewNotFoundError(string(op))
		errResp.Message = "unknown object operation: " + string(op)
		return nil, &errResp
	}
}

// visibleNames returns the objects with at least one property the policy
// allows.
func (s *ObjectSet) visibleNames() []string {
	if s.policy == nil {
		return s.Names()
	}
	names := make([]string, 0, len(s.names))
	for _, name := range s.names {
		if len(s.policy.filter(name, s.objects[name].obj.Keys())) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// errorResponseFor classifies a member or property error.
func errorResponseFor(err error) wireformat.ErrorResponse {
	if errors.Is(err, hostobject.ErrUnknownProperty) {
		return wireformat.NewValidationError(err.Error())
	}
	return wireformat.NewInternalError(err.Error())
}

func fail(v any, err error) (any, *wireformat.ErrorResponse) {
	if err != nil {
		errResp := errorResponseFor(err)
		return nil, &errResp
	}
	return v, nil
}
