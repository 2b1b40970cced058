package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadMode controls how errors are handled while loading a directory.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every graph and reports all errors.
	LoadModeCollectAll
)

// LoadDir loads the CUE package in dir and parses every entry under the
// top-level graph field, sorted by name. Graphs are not validated.
func LoadDir(dir string, mode LoadMode) ([]*GraphSpec, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("graphs directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scanning %s: %w", dir, err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	if err := instances[0].Err; err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", err)}
	}
	value := cuecontext.New().BuildInstance(instances[0])
	return ParseAll(value, mode)
}

// LoadString compiles CUE source text and parses its graphs.
func LoadString(src, filename string, mode LoadMode) ([]*GraphSpec, []error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	return ParseAll(value, mode)
}

// ParseAll parses every field of value's graph struct.
func ParseAll(value cue.Value, mode LoadMode) ([]*GraphSpec, []error) {
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	graphsVal := value.LookupPath(cue.ParsePath("graph"))
	if !graphsVal.Exists() {
		return nil, []error{&CompileError{Field: "graph", Message: "no graphs defined", Pos: value.Pos()}}
	}
	iter, err := graphsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var specs []*GraphSpec
	var errs []error
	for iter.Next() {
		spec, err := ParseGraph(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("graph.%s: %w", iter.Label(), err))
			if mode == LoadModeFailFast {
				return specs, errs
			}
			continue
		}
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
