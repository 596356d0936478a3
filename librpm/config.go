package librpm

import (
	"context"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DBPathMacro is the macro naming the database directory.
const DBPathMacro = "_dbpath"

// ReadConfig reads the engine configuration from path, or from the engine's
// default locations if path is empty. It may succeed once per State.
func (s *State) ReadConfig(ctx context.Context, path string) error {
	g, err := s.Lock(ctx)
	if err != nil {
		return err
	}
	defer g.Release()
	return g.ReadConfig(path)
}

// ReadConfig is State.ReadConfig for a caller that holds the lease.
func (g *GlobalTS) ReadConfig(path string) error {
	return g.Configure(func(e Engine) error {
		if path != "" {
			if strings.IndexByte(path, 0) >= 0 {
				return &ConfigError{Path: path, Msg: "invalid path"}
			}
			if _, err := os.Stat(path); err != nil {
				return &ConfigError{Path: path, Msg: "no such file"}
			}
		}
		if rc := e.ReadConfigFiles(path); rc != 0 {
			if path == "" {
				return &ConfigError{Msg: "error reading RPM config from default location"}
			}
			return &ConfigError{Path: path, Msg: "error reading RPM config"}
		}
		log.WithFields(log.Fields{
			"path":   path,
			"dbpath": e.ExpandMacro("%{" + DBPathMacro + "}"),
		}).Debug("librpm: configuration loaded")
		return nil
	})
}

// SetDBPath points the engine at the database in path.
func (s *State) SetDBPath(ctx context.Context, path string) error {
	return s.DefineMacro(ctx, DBPathMacro+" "+path, MacroLevelGlobal)
}

// SetDBPath is State.SetDBPath for a caller that holds the lease.
func (g *GlobalTS) SetDBPath(path string) error {
	return g.DefineMacro(DBPathMacro+" "+path, MacroLevelGlobal)
}

// DefineMacro defines a macro from a "name value" string.
func (s *State) DefineMacro(ctx context.Context, macro string, level MacroLevel) error {
	g, err := s.Lock(ctx)
	if err != nil {
		return err
	}
	defer g.Release()
	return g.DefineMacro(macro, level)
}

// DefineMacro is State.DefineMacro for a caller that holds the lease.
func (g *GlobalTS) DefineMacro(macro string, level MacroLevel) error {
	if strings.IndexByte(macro, 0) >= 0 {
		return &ConfigError{Msg: "macro contains a NUL byte: " + strings.ReplaceAll(macro, "\x00", `\0`)}
	}
	name, _, _ := strings.Cut(macro, " ")
	if name == "" {
		return &ConfigError{Msg: "empty macro name"}
	}
	if rc := g.Engine().DefineMacro(macro, level); rc != 0 {
		return &ConfigError{Msg: "failed to define macro " + name}
	}
	log.WithFields(log.Fields{"macro": macro, "level": int(level)}).Debug("librpm: macro defined")
	return nil
}

// UndefineMacro removes the most recent definition of the named macro.
func (s *State) UndefineMacro(ctx context.Context, name string) error {
	g, err := s.Lock(ctx)
	if err != nil {
		return err
	}
	defer g.Release()
	return g.UndefineMacro(name)
}

// UndefineMacro is State.UndefineMacro for a caller that holds the lease.
func (g *GlobalTS) UndefineMacro(name string) error {
	if name == "" || strings.ContainsAny(name, "\x00 ") {
		return &ConfigError{Msg: "invalid macro name: " + strings.ReplaceAll(name, "\x00", `\0`)}
	}
	g.Engine().DeleteMacro(name)
	return nil
}

// ExpandMacro expands the macros in expr, such as "%{_dbpath}".
func (s *State) ExpandMacro(ctx context.Context, expr string) (string, error) {
	g, err := s.Lock(ctx)
	if err != nil {
		return "", err
	}
	defer g.Release()
	return g.ExpandMacro(expr)
}

// ExpandMacro is State.ExpandMacro for a caller that holds the lease.
func (g *GlobalTS) ExpandMacro(expr string) (string, error) {
	if strings.IndexByte(expr, 0) >= 0 {
		return "", &ConfigError{Msg: "expression contains a NUL byte"}
	}
	return g.Engine().ExpandMacro(expr), nil
}
