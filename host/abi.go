package host

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/msgwire/errors"
)

// Export names of the encoder ABI.
const (
	ExportMemory = "memory"
	ExportMalloc = "malloc"
	ExportFree   = "free_ptr"
	ExportEncode = "encode_from_json"
)

// ABI declares the functions an encoder module must export. Pointers and
// sizes are 32-bit offsets into the exported memory.
const ABI = `
malloc: func(size: u32) -> u32;
free_ptr: func(ptr: u32);
encode_from_json: func(input: u32) -> u32;
`

var funcPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

type signature struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

func (s signature) String() string {
	return fmt.Sprintf("%s -> %s", valueTypes(s.params), valueTypes(s.results))
}

func valueTypes(ts []api.ValueType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = api.ValueTypeName(t)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// parseSignatures extracts core signatures from WIT function declarations.
// Pattern: name: func(params) -> result;
func parseSignatures(witText string) ([]signature, error) {
	var sigs []signature
	for _, match := range funcPattern.FindAllStringSubmatch(witText, -1) {
		sig := signature{name: match[1]}

		if params := strings.TrimSpace(match[2]); params != "" {
			for _, p := range strings.Split(params, ",") {
				typStr := p
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					typStr = p[idx+1:]
				}
				vt, err := coreType(typStr)
				if err != nil {
					return nil, err
				}
				sig.params = append(sig.params, vt)
			}
		}

		if result := strings.TrimSpace(match[3]); result != "" && result != "()" {
			vt, err := coreType(result)
			if err != nil {
				return nil, err
			}
			sig.results = []api.ValueType{vt}
		}

		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no functions found in WIT text")
	}
	return sigs, nil
}

// coreType lowers a WIT scalar to its core wasm value type.
func coreType(s string) (api.ValueType, error) {
	t, err := wit.ParseType(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "parse WIT type "+s)
	}
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return api.ValueTypeI32, nil
	case wit.U64, wit.S64:
		return api.ValueTypeI64, nil
	case wit.F32:
		return api.ValueTypeF32, nil
	case wit.F64:
		return api.ValueTypeF64, nil
	default:
		return 0, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("WIT type %s has no single core value type", s))
	}
}

var abiSignatures = mustParse(ABI)

func mustParse(witText string) []signature {
	sigs, err := parseSignatures(witText)
	if err != nil {
		panic(err)
	}
	return sigs
}

// checkABI verifies that compiled exports memory and every ABI function
// with the declared core signature.
func checkABI(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		return errors.MissingExport(ExportMemory)
	}
	exports := compiled.ExportedFunctions()
	for _, want := range abiSignatures {
		def, ok := exports[want.name]
		if !ok {
			return errors.MissingExport(want.name)
		}
		got := signature{name: want.name, params: def.ParamTypes(), results: def.ResultTypes()}
		if !sameTypes(got.params, want.params) || !sameTypes(got.results, want.results) {
			return errors.Signature(want.name, want.String(), got.String())
		}
	}
	return nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
