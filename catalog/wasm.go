package catalog

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/replica/errors"
)

// WasmSource exposes the exported functions of a core WebAssembly module
// as catalog functions. Export names become catalog names; the catalog's
// name sort keeps ids stable across peers even though wasm export order is
// arbitrary. Arguments and results are numeric (wasm core types).
type WasmSource struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	instance api.Module
}

// NewWasmSource compiles and instantiates a core wasm module for use as a
// catalog source. The caller owns the source and must Close it.
func NewWasmSource(ctx context.Context, wasmBytes []byte) (*WasmSource, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig())

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "compile catalog module")
	}

	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "instantiate catalog module")
	}

	return &WasmSource{
		runtime:  rt,
		compiled: compiled,
		instance: instance,
	}, nil
}

// Functions implements Source. Each exported wasm function is wrapped so
// the catalog can invoke it with numeric args; non-numeric args fail with
// a type mismatch rather than being silently truncated.
func (s *WasmSource) Functions() (map[string]Func, error) {
	defs := s.compiled.ExportedFunctions()
	funcs := make(map[string]Func, len(defs))

	for name := range defs {
		fn := s.instance.ExportedFunction(name)
		if fn == nil {
			continue
		}
		funcs[name] = wrapWasmFunc(fn)
	}
	return funcs, nil
}

// Close releases the wasm runtime and everything compiled within it.
func (s *WasmSource) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

func wrapWasmFunc(fn api.Function) Func {
	return func(ctx context.Context, call *Call) ([]any, error) {
		raw := make([]uint64, 0, len(call.Args))
		for _, a := range call.Args {
			v, err := encodeWasmArg(a)
			if err != nil {
				return nil, err
			}
			raw = append(raw, v)
		}

		results, err := fn.Call(ctx, raw...)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseWrite, errors.KindInvalidData, err, "call catalog function")
		}

		out := make([]any, len(results))
		for i, r := range results {
			out[i] = r
		}
		return out, nil
	}
}

func encodeWasmArg(a any) (uint64, error) {
	switch v := a.(type) {
	case uint64:
		return v, nil
	case int64:
		return uint64(v), nil
	case int:
		return uint64(int64(v)), nil
	case int32:
		return uint64(int64(v)), nil
	case uint32:
		return uint64(v), nil
	case float64:
		return math.Float64bits(v), nil
	case float32:
		return uint64(math.Float32bits(v)), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.TypeMismatch(errors.PhaseWrite, nil, "numeric argument", a)
	}
}
