package patch

import (
	"encoding/json"
	"fmt"

	"github.com/iancoleman/orderedmap"

	"moonsan/internal/flags"
)

// structuredOp patches moon.pkg.json. The document is decoded into an
// order-preserving map, mutated, and re-serialized with the conventional
// two-space indent, so untouched keys keep their position.
type structuredOp struct{}

func (structuredOp) Apply(content []byte, set flags.Set, entry bool) ([]byte, error) {
	root := orderedmap.New()
	if err := json.Unmarshal(content, root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}

	link, err := ensureObject(root, "link")
	if err != nil {
		return nil, err
	}
	native, err := ensureObject(&link, "native")
	if err != nil {
		return nil, err
	}

	patchNative(&native, set, entry)

	link.Set("native", native)
	root.Set("link", link)

	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("re-encode package config: %w", err)
	}
	return append(out, '\n'), nil
}

// ensureObject returns the object value at key, or a fresh empty object when
// the key is absent. A present non-object value is a configuration error.
func ensureObject(parent *orderedmap.OrderedMap, key string) (orderedmap.OrderedMap, error) {
	v, ok := parent.Get(key)
	if !ok {
		return *orderedmap.New(), nil
	}
	obj, ok := v.(orderedmap.OrderedMap)
	if !ok {
		return orderedmap.OrderedMap{}, fmt.Errorf("%w: %q is not an object", ErrMalformedConfig, key)
	}
	return obj, nil
}

func patchNative(native *orderedmap.OrderedMap, set flags.Set, entry bool) {
	if set.CC != "" {
		native.Set(keyCC, set.CC)
	}
	if entry && set.CCFlags != "" {
		native.Set(keyCCFlags, set.CCFlags)
	}
	if set.StubCC != "" {
		native.Set(keyStubCC, set.StubCC)
	}
	if set.StubCCFlags != "" {
		value := set.StubCCFlags
		if !set.OverrideStubCCFlags {
			// Append so include/define flags already present survive.
			if prev, ok := stringValue(native, keyStubCCFlags); ok && prev != "" {
				value = prev + " " + set.StubCCFlags
			}
		}
		native.Set(keyStubCCFlags, value)
	}
	if set.LinkFlags != "" {
		// Prepend: the sanitizer runtime must come before existing libs.
		value := set.LinkFlags
		if prev, ok := stringValue(native, keyLinkFlags); ok && prev != "" {
			value = set.LinkFlags + " " + prev
		}
		native.Set(keyLinkFlags, value)
	}
}

func stringValue(m *orderedmap.OrderedMap, key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
