package projectconfig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/dshills/projectd/internal/analysis"
)

// FileName is the configuration file name written by Default.
const FileName = "projectd.json"

// Default returns the JSON of a new configuration including every file under
// its directory with the given compiler options.
func Default(opts analysis.Options) ([]byte, error) {
	data := []byte(`{}`)
	var err error

	data, err = sjson.SetBytes(data, "include", DefaultInclude)
	if err != nil {
		return nil, fmt.Errorf("set include: %w", err)
	}
	data, err = sjson.SetBytes(data, "exclude", DefaultExclude)
	if err != nil {
		return nil, fmt.Errorf("set exclude: %w", err)
	}
	data, err = sjson.SetRawBytes(data, "compilerOptions", []byte(`{}`))
	if err != nil {
		return nil, fmt.Errorf("set compilerOptions: %w", err)
	}
	for _, key := range sortedOptionKeys(opts) {
		data, err = sjson.SetBytes(data, "compilerOptions."+escapeKey(key), opts[key])
		if err != nil {
			return nil, fmt.Errorf("set compilerOptions.%s: %w", key, err)
		}
	}
	return data, nil
}

// SetCompilerOption updates one compiler option in existing configuration
// JSON, leaving the rest of the document untouched.
func SetCompilerOption(data []byte, key string, value any) ([]byte, error) {
	out, err := sjson.SetBytes(data, "compilerOptions."+escapeKey(key), value)
	if err != nil {
		return nil, fmt.Errorf("set compilerOptions.%s: %w", key, err)
	}
	return out, nil
}

func sortedOptionKeys(opts analysis.Options) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// escapeKey escapes sjson path metacharacters in an object key.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
