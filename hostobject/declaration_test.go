package hostobject_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/hostbridge/hostobject"
)

func TestDeclare_Empty(t *testing.T) {
	decl := hostobject.Declare(func(b *hostobject.Builder[*counter, any]) {})

	exports, err := decl.Exports()
	require.NoError(t, err)
	assert.Zero(t, exports.Callables().Len())
	assert.Zero(t, exports.Getters().Len())
	assert.Zero(t, exports.Setters().Len())
	assert.Empty(t, exports.Names())
}

func TestDeclare_NilBuild(t *testing.T) {
	decl := hostobject.Declare[*counter, any](nil)

	exports, err := decl.Exports()
	require.NoError(t, err)
	assert.Empty(t, exports.Names())
}

func TestDeclare_Tables(t *testing.T) {
	exports := labeledDecl.MustExports()

	assert.Equal(t, []string{"add", "increment"}, exports.Callables().Names())
	assert.Equal(t, []string{"count", "label"}, exports.Getters().Names())
	assert.Equal(t, []string{"label"}, exports.Setters().Names())
	assert.Equal(t, []string{"add", "count", "increment", "label"}, exports.Names())
	assert.Equal(t, "*hostobject_test.counter", exports.TypeName())
}

func TestDeclare_Errors(t *testing.T) {
	tests := []struct {
		name    string
		build   func(b *hostobject.Builder[*counter, any])
		wantErr error
		wantMsg string
	}{
		{
			name: "duplicate callable",
			build: func(b *hostobject.Builder[*counter, any]) {
				b.Func("increment", (*counter).increment)
				b.Func("increment", (*counter).add)
			},
			wantErr: hostobject.ErrDuplicateMember,
			wantMsg: `callable "increment"`,
		},
		{
			name: "duplicate getter",
			build: func(b *hostobject.Builder[*counter, any]) {
				b.Get("count", (*counter).count)
				b.Get("count", (*counter).count)
			},
			wantErr: hostobject.ErrDuplicateMember,
			wantMsg: `getter "count"`,
		},
		{
			name: "duplicate setter",
			build: func(b *hostobject.Builder[*counter, any]) {
				b.Set("label", (*counter).setLabel)
				b.Property("label", (*counter).getLabel, (*counter).setLabel)
			},
			wantErr: hostobject.ErrDuplicateMember,
			wantMsg: `setter "label"`,
		},
		{
			name: "empty name",
			build: func(b *hostobject.Builder[*counter, any]) {
				b.Func("", (*counter).increment)
			},
			wantErr: hostobject.ErrEmptyName,
			wantMsg: "cannot be empty",
		},
		{
			name: "nil member",
			build: func(b *hostobject.Builder[*counter, any]) {
				b.Get("count", nil)
			},
			wantErr: hostobject.ErrNilMember,
			wantMsg: "is nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := hostobject.Declare(tt.build)

			exports, err := decl.Exports()
			require.Error(t, err)
			assert.Nil(t, exports)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var declErr *hostobject.DeclarationError
			require.ErrorAs(t, err, &declErr)
			assert.Equal(t, "*hostobject_test.counter", declErr.Type)

			// The failure is sticky.
			_, again := decl.Exports()
			assert.Same(t, err, again)
			assert.Panics(t, func() { decl.MustExports() })
		})
	}
}

func TestDeclare_BuildPanicIsSticky(t *testing.T) {
	var builds atomic.Int32
	decl := hostobject.Declare(func(b *hostobject.Builder[*counter, any]) {
		builds.Add(1)
		b.Func("increment", (*counter).increment)
		panic("table wiring broke")
	})

	exports, err := decl.Exports()
	require.Error(t, err)
	assert.Nil(t, exports)
	assert.ErrorIs(t, err, hostobject.ErrBuildPanic)
	assert.Equal(t, "declaring *hostobject_test.counter: declaration build panicked: table wiring broke", err.Error())
	assert.True(t, decl.Initialized())

	exports, again := decl.Exports()
	assert.Nil(t, exports)
	assert.Same(t, err, again)
	assert.Equal(t, int32(1), builds.Load())

	obj, err := hostobject.New(&counter{}, decl)
	require.Error(t, err)
	assert.Nil(t, obj)
	assert.ErrorIs(t, err, hostobject.ErrBuildPanic)
}

func TestDeclare_CrossCategoryNamesAllowed(t *testing.T) {
	decl := hostobject.Declare(func(b *hostobject.Builder[*counter, any]) {
		b.Func("value", (*counter).increment)
		b.Property("value", (*counter).count, func(c *counter, rt hostobject.Runtime[any], v any) error {
			return nil
		})
	})

	exports, err := decl.Exports()
	require.NoError(t, err)
	assert.Equal(t, []string{"value"}, exports.Names())
	assert.True(t, exports.Callables().Has("value"))
	assert.True(t, exports.Getters().Has("value"))
	assert.True(t, exports.Setters().Has("value"))
}

func TestDeclare_BuildsOnce(t *testing.T) {
	var builds atomic.Int32
	decl := hostobject.Declare(func(b *hostobject.Builder[*counter, any]) {
		builds.Add(1)
		b.Func("increment", (*counter).increment)
	})
	assert.False(t, decl.Initialized())

	var wg sync.WaitGroup
	results := make([]*hostobject.Exports[*counter, any], 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = decl.MustExports()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	assert.True(t, decl.Initialized())
	for _, exports := range results {
		assert.Same(t, results[0], exports)
	}
}

func TestExports_Resolve(t *testing.T) {
	exports := labeledDecl.MustExports()

	tests := []struct {
		name       string
		wantRead   hostobject.Kind
		wantWrite  hostobject.Kind
		wantExists bool
	}{
		{name: "increment", wantRead: hostobject.KindCallable, wantWrite: hostobject.KindNotFound, wantExists: true},
		{name: "count", wantRead: hostobject.KindGetter, wantWrite: hostobject.KindNotFound, wantExists: true},
		{name: "label", wantRead: hostobject.KindGetter, wantWrite: hostobject.KindSetter, wantExists: true},
		{name: "missing", wantRead: hostobject.KindNotFound, wantWrite: hostobject.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			read := exports.Resolve(tt.name)
			assert.Equal(t, tt.wantRead, read.Kind)
			assert.Equal(t, tt.name, read.Name)
			assert.Equal(t, tt.wantRead != hostobject.KindNotFound, read.Found())

			write := exports.ResolveSetter(tt.name)
			assert.Equal(t, tt.wantWrite, write.Kind)

			assert.Equal(t, tt.wantExists, exports.Has(tt.name))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "callable", hostobject.KindCallable.String())
	assert.Equal(t, "getter", hostobject.KindGetter.String())
	assert.Equal(t, "setter", hostobject.KindSetter.String())
	assert.Equal(t, "not_found", hostobject.KindNotFound.String())
}
