package manifest

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/depstale/depstale/pkg/errors"
)

// declaredDependency is one entry of a package.json dependency section: the
// declared name and its (possibly range-based) version specifier.
type declaredDependency struct {
	Name string
	Spec string
}

// packageJSON is the decoded subset of a package.json file. Dependency
// sections are kept as ordered slices rather than maps so the manifest's
// declaration order survives decoding.
type packageJSON struct {
	Name            string
	Dependencies    []declaredDependency
	DevDependencies []declaredDependency
	Workspaces      []string
}

func readPackageJSON(path string) (*packageJSON, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "package.json not found at %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "failed to read %s", path)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "%s is not a JSON object", path)
	}

	pkg := &packageJSON{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "failed to parse %s", path)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "%s is not a JSON object", path)
		}

		switch key {
		case "name":
			err = dec.Decode(&pkg.Name)
		case "dependencies":
			pkg.Dependencies, err = decodeOrderedSection(dec)
		case "devDependencies":
			pkg.DevDependencies, err = decodeOrderedSection(dec)
		case "workspaces":
			pkg.Workspaces, err = decodeWorkspaces(dec)
		default:
			var skip json.RawMessage
			err = dec.Decode(&skip)
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "failed to parse %s", path)
		}
	}

	return pkg, nil
}

// decodeOrderedSection decodes a dependency section object while preserving
// key order. encoding/json maps are unordered, so this walks tokens instead.
func decodeOrderedSection(dec *json.Decoder) ([]declaredDependency, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if tok != json.Delim('{') {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "dependency section is not a JSON object")
	}

	var deps []declaredDependency
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := nameTok.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "dependency name is not a string")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		// Specifiers are normally strings; anything else still gives us the
		// name, which is all the lockfile lookup needs.
		var spec string
		_ = json.Unmarshal(raw, &spec)

		deps = append(deps, declaredDependency{Name: name, Spec: spec})
	}

	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return deps, nil
}

// decodeWorkspaces accepts both workspace forms: a bare glob array and the
// yarn-style {"packages": [...]} object.
func decodeWorkspaces(dec *json.Decoder) ([]string, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	var globs []string
	if err := json.Unmarshal(raw, &globs); err == nil {
		return globs, nil
	}

	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "invalid workspaces field")
	}
	return obj.Packages, nil
}
