package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/depstale/depstale/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadResolvesVersionsFromLockfile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"name": "app",
		"dependencies": {"react": "^18.0.0", "left-pad": "~1.0.0"},
		"devDependencies": {"jest": "^29.0.0"}
	}`)
	writeFile(t, dir, "package-lock.json", `{
		"lockfileVersion": 3,
		"packages": {
			"": {"name": "app"},
			"node_modules/react": {"version": "18.2.0"},
			"node_modules/left-pad": {"version": "1.3.0"},
			"node_modules/jest": {"version": "29.7.0", "dev": true}
		}
	}`)

	project, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(project.Sets) != 1 {
		t.Fatalf("len(Sets) = %d, want 1", len(project.Sets))
	}

	set := project.Sets[0]
	wantProd := []Dependency{{"react", "18.2.0"}, {"left-pad", "1.3.0"}}
	wantDev := []Dependency{{"jest", "29.7.0"}}
	if !reflect.DeepEqual(set.Production, wantProd) {
		t.Errorf("Production = %v, want %v", set.Production, wantProd)
	}
	if !reflect.DeepEqual(set.Development, wantDev) {
		t.Errorf("Development = %v, want %v", set.Development, wantDev)
	}
	if len(project.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", project.Warnings)
	}
}

func TestLoadPreservesDeclarationOrder(t *testing.T) {
	dir := t.TempDir()
	// Deliberately not alphabetical.
	writeFile(t, dir, "package.json", `{
		"dependencies": {"zlib": "1", "axios": "1", "moment": "1"}
	}`)
	writeFile(t, dir, "package-lock.json", `{
		"lockfileVersion": 3,
		"packages": {
			"node_modules/axios": {"version": "1.6.0"},
			"node_modules/moment": {"version": "2.29.0"},
			"node_modules/zlib": {"version": "1.0.5"}
		}
	}`)

	project, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	var names []string
	for _, d := range project.Sets[0].Production {
		names = append(names, d.Name)
	}
	want := []string{"zlib", "axios", "moment"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("declaration order = %v, want %v", names, want)
	}
}

func TestLockfileFormatEquivalence(t *testing.T) {
	manifest := `{
		"dependencies": {"express": "^4.0.0"},
		"devDependencies": {"mocha": "^10.0.0"}
	}`

	lockfiles := map[string]string{
		"flat map": `{
			"dependencies": {
				"express": {"version": "4.18.2"},
				"mocha": {"version": "10.2.0"}
			}
		}`,
		"nested tree": `{
			"lockfileVersion": 1,
			"dependencies": {
				"express": {
					"version": "4.18.2",
					"requires": {"body-parser": "^1.20.0"},
					"dependencies": {
						"body-parser": {"version": "1.20.1"}
					}
				},
				"mocha": {"version": "10.2.0", "dev": true}
			}
		}`,
		"packages map": `{
			"lockfileVersion": 3,
			"packages": {
				"": {"name": "app"},
				"node_modules/express": {"version": "4.18.2", "dependencies": {"body-parser": "^1.20.0"}},
				"node_modules/body-parser": {"version": "1.20.1"},
				"node_modules/mocha": {"version": "10.2.0", "dev": true}
			}
		}`,
	}

	var got []DependencySet
	for shape, lockfile := range lockfiles {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", manifest)
		writeFile(t, dir, "package-lock.json", lockfile)

		project, err := Load(dir, nil)
		if err != nil {
			t.Fatalf("Load() with %s lockfile error: %v", shape, err)
		}
		got = append(got, project.Sets[0])
	}

	for i := 1; i < len(got); i++ {
		if !reflect.DeepEqual(got[0], got[i]) {
			t.Errorf("lockfile shapes disagree: %v vs %v", got[0], got[i])
		}
	}
}

func TestLoadWarnsOnMissingLockEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"dependencies": {"left-pad": "^1.0.0", "react": "^18.0.0"}
	}`)
	writeFile(t, dir, "package-lock.json", `{
		"lockfileVersion": 3,
		"packages": {"node_modules/react": {"version": "18.2.0"}}
	}`)

	project, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := []Dependency{{"react", "18.2.0"}}
	if !reflect.DeepEqual(project.Sets[0].Production, want) {
		t.Errorf("Production = %v, want %v", project.Sets[0].Production, want)
	}
	if len(project.Warnings) != 1 || !strings.Contains(project.Warnings[0], "left-pad") {
		t.Errorf("Warnings = %v, want one naming left-pad", project.Warnings)
	}
}

func TestLoadMissingFilesAreFatal(t *testing.T) {
	t.Run("no package.json", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package-lock.json", `{"lockfileVersion": 3, "packages": {}}`)

		_, err := Load(dir, nil)
		if !errors.Is(err, errors.ErrCodeFileNotFound) {
			t.Errorf("Load() error = %v, want FILE_NOT_FOUND", err)
		}
	})

	t.Run("no lockfile", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `{"dependencies": {}}`)

		_, err := Load(dir, nil)
		if !errors.Is(err, errors.ErrCodeFileNotFound) {
			t.Errorf("Load() error = %v, want FILE_NOT_FOUND", err)
		}
	})

	t.Run("malformed package.json", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `[1, 2]`)
		writeFile(t, dir, "package-lock.json", `{"lockfileVersion": 3, "packages": {}}`)

		_, err := Load(dir, nil)
		if !errors.Is(err, errors.ErrCodeInvalidManifest) {
			t.Errorf("Load() error = %v, want INVALID_MANIFEST", err)
		}
	})

	t.Run("malformed lockfile", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `{"dependencies": {}}`)
		writeFile(t, dir, "package-lock.json", `not json`)

		_, err := Load(dir, nil)
		if !errors.Is(err, errors.ErrCodeInvalidLockfile) {
			t.Errorf("Load() error = %v, want INVALID_LOCKFILE", err)
		}
	})
}

func TestLoadScopedPackages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"dependencies": {"@babel/core": "^7.0.0"}
	}`)
	writeFile(t, dir, "package-lock.json", `{
		"lockfileVersion": 3,
		"packages": {"node_modules/@babel/core": {"version": "7.23.0"}}
	}`)

	project, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []Dependency{{"@babel/core", "7.23.0"}}
	if !reflect.DeepEqual(project.Sets[0].Production, want) {
		t.Errorf("Production = %v, want %v", project.Sets[0].Production, want)
	}
}

func TestLoadWorkspaces(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"name": "monorepo",
		"workspaces": ["frontend"],
		"dependencies": {"lodash": "^4.0.0"}
	}`)
	writeFile(t, dir, "frontend/package.json", `{
		"dependencies": {"react": "^17.0.0", "lodash": "^4.0.0"}
	}`)
	// The workspace pins its own react; lodash is hoisted.
	writeFile(t, dir, "package-lock.json", `{
		"lockfileVersion": 3,
		"packages": {
			"": {"name": "monorepo"},
			"frontend": {"version": "0.1.0"},
			"node_modules/frontend": {"link": true, "resolved": "frontend"},
			"node_modules/lodash": {"version": "4.17.21"},
			"node_modules/react": {"version": "18.2.0"},
			"frontend/node_modules/react": {"version": "17.0.2"}
		}
	}`)

	project, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(project.Sets) != 2 {
		t.Fatalf("len(Sets) = %d, want 2 (root + frontend)", len(project.Sets))
	}

	root, ws := project.Sets[0], project.Sets[1]
	if root.Workspace != "" || ws.Workspace != "frontend" {
		t.Errorf("workspace tags = %q, %q", root.Workspace, ws.Workspace)
	}

	wantWS := []Dependency{{"react", "17.0.2"}, {"lodash", "4.17.21"}}
	if !reflect.DeepEqual(ws.Production, wantWS) {
		t.Errorf("workspace Production = %v, want %v", ws.Production, wantWS)
	}
	if len(project.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", project.Warnings)
	}
}

func TestLoadExplicitWorkspacesOverrideManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"workspaces": ["frontend", "backend"]}`)
	writeFile(t, dir, "frontend/package.json", `{"dependencies": {"react": "1"}}`)
	writeFile(t, dir, "backend/package.json", `{"dependencies": {"express": "1"}}`)
	writeFile(t, dir, "package-lock.json", `{
		"lockfileVersion": 3,
		"packages": {
			"node_modules/react": {"version": "18.2.0"},
			"node_modules/express": {"version": "4.18.2"}
		}
	}`)

	project, err := Load(dir, []string{"backend"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(project.Sets) != 2 {
		t.Fatalf("len(Sets) = %d, want 2", len(project.Sets))
	}
	if project.Sets[1].Workspace != "backend" {
		t.Errorf("Workspace = %q, want backend", project.Sets[1].Workspace)
	}
}

func TestLoadSkipsInvalidNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"dependencies": {"../evil": "1", "ok": "1"}
	}`)
	writeFile(t, dir, "package-lock.json", `{
		"lockfileVersion": 3,
		"packages": {"node_modules/ok": {"version": "1.0.0"}}
	}`)

	project, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []Dependency{{"ok", "1.0.0"}}
	if !reflect.DeepEqual(project.Sets[0].Production, want) {
		t.Errorf("Production = %v, want %v", project.Sets[0].Production, want)
	}
	if len(project.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one for the invalid name", project.Warnings)
	}
}
