package main

import (
	"fmt"
	"os"

	"v8heap/internal/config"
	"v8heap/internal/ranges"
	"v8heap/internal/target"
)

// heapSettings are the settings the decoder or scanner is built with.
var heapSettings = map[string]bool{
	"ranges_file":          true,
	"workers":              true,
	"wide":                 true,
	"max_constructor_hops": true,
}

func (sh *shell) settingsCmd(args []string) error {
	fs := sh.flags("settings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if sh.tf != nil {
		st, err := sh.tf.settings()
		if err != nil {
			return err
		}
		sh.settings = st
	}

	rest := fs.Args()
	if len(rest) == 0 {
		data, err := sh.settings.Marshal()
		if err != nil {
			return err
		}
		_, err = sh.out.Write(data)
		return err
	}
	switch rest[0] {
	case "get":
		if len(rest) != 2 {
			return fmt.Errorf("usage: settings get <key>")
		}
		v, err := sh.settings.Get(rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, v)
	case "set":
		if len(rest) != 3 {
			return fmt.Errorf("usage: settings set <key> <value>")
		}
		if err := sh.settings.Set(rest[1], rest[2]); err != nil {
			return err
		}
		if heapSettings[rest[1]] {
			sh.reconfigure()
		}
	case "save":
		path := config.DefaultPath()
		if sh.tf != nil && sh.tf.config != "" {
			path = sh.tf.config
		}
		if len(rest) == 2 {
			path = rest[1]
		}
		if path == "" {
			return fmt.Errorf("usage: settings save <path>")
		}
		data, err := sh.settings.Marshal()
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
		fmt.Fprintf(sh.errOut, "saved %s\n", path)
	case "keys":
		for _, k := range sh.settings.Keys() {
			fmt.Fprintln(sh.out, k)
		}
	default:
		return fmt.Errorf("usage: settings [get <key> | set <key> <value> | save [path] | keys]")
	}
	return nil
}

// exportRanges writes the core's loadable segments in the ranges file
// format, replacing the readelf-based helper script.
func (sh *shell) exportRanges(args []string) error {
	fs := sh.flags("ranges")
	all := fs.Bool("all", false, "include read-only segments")
	outPath := fs.String("o", "", "write to a file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := sh.session()
	if err != nil {
		return err
	}
	c, ok := s.Target.(*target.Core)
	if !ok {
		return fmt.Errorf("ranges: target %s is not a core dump", s.Target.ID())
	}
	rs := ranges.FromSegments(c.CoreFile().LoadSegments(), *all)
	if *outPath == "" {
		return ranges.Write(sh.out, rs)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("ranges: %w", err)
	}
	if err := ranges.Write(f, rs); err != nil {
		f.Close()
		return fmt.Errorf("ranges: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ranges: %w", err)
	}
	fmt.Fprintf(sh.errOut, "wrote %d ranges to %s\n", len(rs), *outPath)
	return nil
}
